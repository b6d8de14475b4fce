package ledger

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/climateguardian/guardian/internal/access"
	"github.com/climateguardian/guardian/internal/models"
)

// HashEvent computes the chained keccak-256 digest of an event.
func HashEvent(e models.Event) common.Hash {
	var seq, ts [8]byte
	binary.BigEndian.PutUint64(seq[:], e.Seq)
	binary.BigEndian.PutUint64(ts[:], uint64(e.OccurredAt.UnixNano()))
	return crypto.Keccak256Hash(
		e.PrevHash.Bytes(),
		seq[:],
		[]byte(e.Type),
		e.Actor.Bytes(),
		ts[:],
		e.Payload,
	)
}

// VerifyChain checks that events form an unbroken chain starting after prev.
func VerifyChain(prev common.Hash, events []models.Event) error {
	for i, e := range events {
		if e.PrevHash != prev {
			return fmt.Errorf("event %d (seq %d): previous hash mismatch", i, e.Seq)
		}
		if got := HashEvent(e); got != e.Hash {
			return fmt.Errorf("event %d (seq %d): hash mismatch", i, e.Seq)
		}
		prev = e.Hash
	}
	return nil
}

func newEventID() string {
	return uuid.NewString()
}

// Events returns a page of the committed event log.
func (l *Ledger) Events(ctx context.Context, afterSeq uint64, limit int) ([]models.Event, error) {
	events, err := l.store.Events(ctx, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	return events, nil
}

// Head returns the sequence number and hash of the latest committed event.
func (l *Ledger) Head() (uint64, common.Hash) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.EventSeq, l.state.LastHash
}

func sortedPrincipals(m access.Matrix) []common.Address {
	out := make([]common.Address, 0, len(m))
	for principal := range m {
		out = append(out, principal)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Cmp(out[j]) < 0 })
	return out
}

// Event payloads.

type roleChange struct {
	Principal common.Address `json:"principal"`
	Role      access.Role    `json:"role"`
}

type pauseChange struct {
	Paused bool `json:"paused"`
}

// ValidatorRegisteredPayload is the payload of ValidatorRegistered.
type ValidatorRegisteredPayload struct {
	Validator common.Address `json:"validator"`
	Stake     *big.Int       `json:"stake"`
}

type fundsWithdrawn struct {
	Recipient common.Address `json:"recipient"`
	Amount    *big.Int       `json:"amount"`
	Remaining *big.Int       `json:"remaining"`
}

// ProofSubmittedPayload is the payload of DataProofSubmitted.
type ProofSubmittedPayload struct {
	ProofID     uint64               `json:"proof_id"`
	Fingerprint common.Hash          `json:"fingerprint"`
	Submitter   common.Address       `json:"submitter"`
	Category    models.ProofCategory `json:"category"`
}

// ProofValidatedPayload is the payload of DataProofValidated.
type ProofValidatedPayload struct {
	ProofID   uint64         `json:"proof_id"`
	Validator common.Address `json:"validator"`
	Affirm    bool           `json:"affirm"`
	Bond      *big.Int       `json:"bond"`
}

// ProofFinalizedPayload is the payload of DataProofVerified and DataProofRejected.
type ProofFinalizedPayload struct {
	ProofID uint64             `json:"proof_id"`
	Status  models.ProofStatus `json:"status"`
	Affirm  int                `json:"affirm"`
	Deny    int                `json:"deny"`
}

type reputationInitialized struct {
	Principal common.Address `json:"principal"`
	Score     int64          `json:"score"`
}

// ReputationUpdatedPayload is the payload of ReputationUpdated.
type ReputationUpdatedPayload struct {
	Principal common.Address `json:"principal"`
	OldScore  int64          `json:"old_score"`
	NewScore  int64          `json:"new_score"`
	Cause     string         `json:"cause"`
}

type feedbackSubmitted struct {
	Target common.Address `json:"target"`
	Rater  common.Address `json:"rater"`
	Rating uint8          `json:"rating"`
}

// AlertIssuedPayload is the payload of EmergencyAlertIssued.
type AlertIssuedPayload struct {
	AlertID       uint64          `json:"alert_id"`
	Title         string          `json:"title"`
	Severity      models.Severity `json:"severity"`
	Location      models.Location `json:"location"`
	RadiusKm      float64         `json:"radius_km"`
	RiskType      string          `json:"risk_type"`
	LinkedProofID uint64          `json:"linked_proof_id,omitempty"`
}

// CriticalAlertPayload is the payload of CriticalAlert.
type CriticalAlertPayload struct {
	AlertID  uint64          `json:"alert_id"`
	Severity models.Severity `json:"severity"`
	RadiusKm float64         `json:"radius_km"`
}

// AlertStatusPayload is the payload of AlertStatusUpdated.
type AlertStatusPayload struct {
	AlertID   uint64             `json:"alert_id"`
	OldStatus models.AlertStatus `json:"old_status"`
	NewStatus models.AlertStatus `json:"new_status"`
}

type responsePlanCreated struct {
	ResponseID   uint64 `json:"response_id"`
	AlertID      uint64 `json:"alert_id"`
	ResponseType string `json:"response_type"`
	Priority     uint8  `json:"priority"`
}

type responseStatusUpdated struct {
	ResponseID uint64                `json:"response_id"`
	OldStatus  models.ResponseStatus `json:"old_status"`
	NewStatus  models.ResponseStatus `json:"new_status"`
	Completion float64               `json:"completion_percentage"`
}

type resourceAllocated struct {
	AllocationID uint64 `json:"allocation_id"`
	AlertID      uint64 `json:"alert_id"`
	ResourceType string `json:"resource_type"`
	Quantity     uint64 `json:"quantity"`
	Unit         string `json:"unit,omitempty"`
}
