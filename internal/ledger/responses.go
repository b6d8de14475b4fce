package ledger

import (
	"context"
	"math"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/climateguardian/guardian/internal/access"
	"github.com/climateguardian/guardian/internal/models"
)

// ResponsePlanInput describes a new response plan.
type ResponsePlanInput struct {
	AlertID            uint64
	ResponseType       string
	Description        string
	Priority           int64
	PersonnelCount     uint32
	EstimatedCost      float64
	DeploymentLocation string
	SupportingAgencies []string
	ContactPerson      string
	ContactPhone       string
}

// CreateResponsePlan opens a pending plan against an active alert with actor
// as lead agency. RESPONDER, EMERGENCY_RESPONDER or GOVERNMENT only.
func (l *Ledger) CreateResponsePlan(ctx context.Context, actor common.Address, in ResponsePlanInput) (models.ResponsePlan, error) {
	var out models.ResponsePlan
	err := l.mutate(ctx, opCreateResponsePlan, actor, func(tx *txn) error {
		if !tx.st.Roles.HasAny(actor, access.Responder, access.EmergencyResponder, access.Government) {
			return reject(KindAuthorization, tx.op, ReasonNotResponder)
		}
		a := tx.st.alert(in.AlertID)
		if a == nil {
			return reject(KindConsistency, tx.op, ReasonInvalidAlertID)
		}
		if in.Priority < 1 || in.Priority > 5 {
			return reject(KindValidation, tx.op, ReasonInvalidPriority)
		}
		if in.EstimatedCost < 0 || math.IsNaN(in.EstimatedCost) || math.IsInf(in.EstimatedCost, 0) {
			return reject(KindValidation, tx.op, ReasonInvalidCost)
		}
		if a.EffectiveStatus(tx.now) != models.AlertStatusActive {
			return reject(KindConsistency, tx.op, ReasonAlertNotActive)
		}

		var agencies []string
		for _, agency := range in.SupportingAgencies {
			if agency = strings.TrimSpace(agency); agency != "" {
				agencies = append(agencies, agency)
			}
		}
		p := &models.ResponsePlan{
			ID:                 uint64(len(tx.st.Responses)) + 1,
			AlertID:            a.ID,
			ResponseType:       strings.TrimSpace(in.ResponseType),
			Description:        strings.TrimSpace(in.Description),
			Priority:           uint8(in.Priority),
			PersonnelCount:     in.PersonnelCount,
			EstimatedCost:      in.EstimatedCost,
			DeploymentLocation: strings.TrimSpace(in.DeploymentLocation),
			LeadAgency:         actor,
			SupportingAgencies: agencies,
			ContactPerson:      strings.TrimSpace(in.ContactPerson),
			ContactPhone:       strings.TrimSpace(in.ContactPhone),
			Status:             models.ResponseStatusPending,
			Updates:            []models.StatusUpdate{},
			CreatedAt:          tx.now,
			UpdatedAt:          tx.now,
		}
		tx.st.Responses = append(tx.st.Responses, p)
		tx.emit(models.EventResponsePlanCreated, responsePlanCreated{
			ResponseID:   p.ID,
			AlertID:      p.AlertID,
			ResponseType: p.ResponseType,
			Priority:     p.Priority,
		})
		out = p.Clone()
		return nil
	})
	return out, err
}

// UpdateResponseStatus advances a plan and records the update in its
// history. A nil completion keeps the plan's current progress. Only the lead
// agency or an ADMIN may do so.
func (l *Ledger) UpdateResponseStatus(ctx context.Context, actor common.Address, responseID uint64, status models.ResponseStatus, completion *float64, note string) (models.ResponsePlan, error) {
	var out models.ResponsePlan
	err := l.mutate(ctx, opUpdateResponseStatus, actor, func(tx *txn) error {
		p := tx.st.response(responseID)
		if p == nil {
			return reject(KindConsistency, tx.op, ReasonInvalidResponseID)
		}
		if p.LeadAgency != actor && !tx.st.Roles.Has(actor, access.Admin) {
			return reject(KindAuthorization, tx.op, ReasonNotAuthorizedResponse)
		}
		progress := p.Completion
		if completion != nil {
			progress = *completion
		}
		if math.IsNaN(progress) || progress < 0 || progress > 100 {
			return reject(KindValidation, tx.op, ReasonInvalidCompletion)
		}
		if !responseTransitionAllowed(p.Status, status) {
			return reject(KindConsistency, tx.op, ReasonInvalidTransition)
		}

		if status == models.ResponseStatusCompleted {
			progress = 100
		}
		old := p.Status
		p.Status = status
		p.Completion = progress
		p.UpdatedAt = tx.now
		p.Updates = append(p.Updates, models.StatusUpdate{
			Status:     status,
			Completion: progress,
			Note:       strings.TrimSpace(note),
			Author:     actor,
			CreatedAt:  tx.now,
		})
		tx.emit(models.EventResponseStatusUpdated, responseStatusUpdated{
			ResponseID: p.ID,
			OldStatus:  old,
			NewStatus:  status,
			Completion: progress,
		})
		out = p.Clone()
		return nil
	})
	return out, err
}

// responseTransitionAllowed encodes PENDING -> IN_PROGRESS -> COMPLETED with
// CANCELLED reachable from any open state. Open states may repeat to record
// progress.
func responseTransitionAllowed(from, to models.ResponseStatus) bool {
	if !to.Valid() || from.Terminal() {
		return false
	}
	switch to {
	case from, models.ResponseStatusCancelled:
		return true
	case models.ResponseStatusInProgress:
		return from == models.ResponseStatusPending
	case models.ResponseStatusCompleted:
		return from == models.ResponseStatusInProgress
	}
	return false
}

// TotalResponses returns the number of response plans.
func (l *Ledger) TotalResponses() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.state.Responses)
}

// ResponsePlan returns the plan with id.
func (l *Ledger) ResponsePlan(id uint64) (models.ResponsePlan, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p := l.state.response(id)
	if p == nil {
		return models.ResponsePlan{}, ErrNotFound
	}
	return p.Clone(), nil
}

// ResponsesByAlert lists the plans opened against an alert.
func (l *Ledger) ResponsesByAlert(alertID uint64) ([]models.ResponsePlan, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.state.alert(alertID) == nil {
		return nil, ErrNotFound
	}
	var out []models.ResponsePlan
	for _, p := range l.state.Responses {
		if p.AlertID == alertID {
			out = append(out, p.Clone())
		}
	}
	return out, nil
}

// ResponseFilter narrows a response plan listing. Zero values do not filter.
type ResponseFilter struct {
	AlertID    uint64
	Status     models.ResponseStatus
	LeadAgency common.Address
	Limit      int
	Offset     int
}

// Responses lists plans matching filter, newest first.
func (l *Ledger) Responses(filter ResponseFilter) []models.ResponsePlan {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []models.ResponsePlan
	for i := len(l.state.Responses) - 1; i >= 0; i-- {
		p := l.state.Responses[i]
		if filter.AlertID != 0 && p.AlertID != filter.AlertID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.LeadAgency != (common.Address{}) && p.LeadAgency != filter.LeadAgency {
			continue
		}
		out = append(out, p.Clone())
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}
