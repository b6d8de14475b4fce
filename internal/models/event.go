package models

import (
	"encoding/json"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Event is an entry of the append-only ledger event log. Each event commits
// to its predecessor through PrevHash so the log is tamper evident.
type Event struct {
	Seq        uint64          `json:"seq"`
	ID         string          `json:"id"`
	Type       EventType       `json:"type"`
	Actor      common.Address  `json:"actor"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
	PrevHash   common.Hash     `json:"prev_hash"`
	Hash       common.Hash     `json:"hash"`
}

// EventType names a domain event emitted by a ledger mutation.
type EventType string

const (
	EventRoleGranted           EventType = "RoleGranted"
	EventRoleRevoked           EventType = "RoleRevoked"
	EventPaused                EventType = "Paused"
	EventUnpaused              EventType = "Unpaused"
	EventValidatorRegistered   EventType = "ValidatorRegistered"
	EventFundsWithdrawn        EventType = "FundsWithdrawn"
	EventDataProofSubmitted    EventType = "DataProofSubmitted"
	EventDataProofValidated    EventType = "DataProofValidated"
	EventDataProofVerified     EventType = "DataProofVerified"
	EventDataProofRejected     EventType = "DataProofRejected"
	EventReputationInitialized EventType = "ReputationInitialized"
	EventFeedbackSubmitted     EventType = "CommunityFeedbackSubmitted"
	EventReputationUpdated     EventType = "ReputationUpdated"
	EventAlertIssued           EventType = "EmergencyAlertIssued"
	EventCriticalAlert         EventType = "CriticalAlert"
	EventAlertStatusUpdated    EventType = "AlertStatusUpdated"
	EventResponsePlanCreated   EventType = "ResponsePlanCreated"
	EventResponseStatusUpdated EventType = "ResponseStatusUpdated"
	EventResourceAllocated     EventType = "ResourceAllocated"
)

// Decode unmarshals the event payload into v.
func (e Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
}
