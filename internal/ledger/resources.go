package ledger

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/climateguardian/guardian/internal/access"
	"github.com/climateguardian/guardian/internal/models"
)

// AllocateResource records resources committed to an alert. RESPONDER only.
func (l *Ledger) AllocateResource(ctx context.Context, actor common.Address, alertID uint64, resourceType string, quantity int64, unit string) (models.ResourceAllocation, error) {
	var out models.ResourceAllocation
	err := l.mutate(ctx, opAllocateResource, actor, func(tx *txn) error {
		if !tx.st.Roles.Has(actor, access.Responder) {
			return reject(KindAuthorization, tx.op, ReasonNotResponder)
		}
		if tx.st.alert(alertID) == nil {
			return reject(KindConsistency, tx.op, ReasonInvalidAlertID)
		}
		resourceType = strings.TrimSpace(resourceType)
		if resourceType == "" {
			return reject(KindValidation, tx.op, ReasonResourceTypeRequired)
		}
		if quantity <= 0 {
			return reject(KindValidation, tx.op, ReasonInvalidQuantity)
		}

		r := models.ResourceAllocation{
			ID:           tx.st.NextResourceID,
			AlertID:      alertID,
			ResourceType: resourceType,
			Quantity:     uint64(quantity),
			Unit:         strings.TrimSpace(unit),
			Allocator:    actor,
			AllocatedAt:  tx.now,
		}
		tx.st.NextResourceID++
		tx.st.Resources[alertID] = append(tx.st.Resources[alertID], r)
		tx.emit(models.EventResourceAllocated, resourceAllocated{
			AllocationID: r.ID,
			AlertID:      alertID,
			ResourceType: r.ResourceType,
			Quantity:     r.Quantity,
			Unit:         r.Unit,
		})
		out = r
		return nil
	})
	return out, err
}

// Resources lists the allocations recorded against an alert.
func (l *Ledger) Resources(alertID uint64) ([]models.ResourceAllocation, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.state.alert(alertID) == nil {
		return nil, ErrNotFound
	}
	return append([]models.ResourceAllocation{}, l.state.Resources[alertID]...), nil
}
