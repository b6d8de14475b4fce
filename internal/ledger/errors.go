package ledger

import (
	"errors"
	"fmt"
)

// Kind classifies why a ledger operation was rejected.
type Kind uint8

const (
	KindValidation Kind = iota + 1
	KindAuthorization
	KindEconomic
	KindConsistency
	KindAvailability
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindEconomic:
		return "economic"
	case KindConsistency:
		return "consistency"
	case KindAvailability:
		return "availability"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Sentinels matched by errors.Is against an *Error of the same kind.
var (
	ErrValidation    = errors.New("ledger: validation error")
	ErrAuthorization = errors.New("ledger: authorization error")
	ErrEconomic      = errors.New("ledger: economic error")
	ErrConsistency   = errors.New("ledger: consistency error")
	ErrAvailability  = errors.New("ledger: availability error")

	// ErrNotFound is returned by queries for unknown identifiers.
	ErrNotFound = errors.New("ledger: not found")
)

// Error is a rejected operation. The message is the revert reason verbatim.
type Error struct {
	Kind   Kind
	Op     string
	Reason string
}

func (e *Error) Error() string {
	return e.Reason
}

// Unwrap exposes the sentinel for the error's kind.
func (e *Error) Unwrap() error {
	switch e.Kind {
	case KindValidation:
		return ErrValidation
	case KindAuthorization:
		return ErrAuthorization
	case KindEconomic:
		return ErrEconomic
	case KindConsistency:
		return ErrConsistency
	case KindAvailability:
		return ErrAvailability
	}
	return nil
}

// IsUnknownReference reports whether err rejected an operation because an
// identifier did not resolve.
func IsUnknownReference(err error) bool {
	var lerr *Error
	if !errors.As(err, &lerr) || lerr.Kind != KindConsistency {
		return false
	}
	switch lerr.Reason {
	case ReasonInvalidProofID, ReasonInvalidAlertID, ReasonInvalidResponseID, ReasonReputationNotInitialized:
		return true
	}
	return false
}

// Revert reasons shared with existing integrators.
const (
	ReasonPaused                   = "Pausable: paused"
	ReasonNotPaused                = "Pausable: not paused"
	ReasonInvalidAccount           = "Invalid account"
	ReasonInsufficientStake        = "Insufficient stake"
	ReasonAlreadyRegistered        = "Already registered"
	ReasonInvalidAmount            = "Invalid amount"
	ReasonInsufficientEscrow       = "Insufficient escrow balance"
	ReasonNotDataProvider          = "Not a data provider"
	ReasonInvalidDataHash          = "Invalid data hash"
	ReasonReferenceRequired        = "IPFS hash required"
	ReasonDataAlreadySubmitted     = "Data already submitted"
	ReasonInvalidCategory          = "Invalid category"
	ReasonInvalidMetadata          = "Invalid metadata"
	ReasonInvalidProofID           = "Invalid proof ID"
	ReasonOwnSubmission            = "Cannot validate own submission"
	ReasonAlreadyValidated         = "Already validated this proof"
	ReasonProofFinalized           = "Proof already finalized"
	ReasonNotAuthorizedTrigger     = "Not authorized to trigger alerts"
	ReasonInvalidSeverity          = "Invalid severity level"
	ReasonReputationInitialized    = "Reputation already initialized"
	ReasonReputationNotInitialized = "Reputation not initialized"
	ReasonInvalidRating            = "Invalid rating"
	ReasonSelfRating               = "Cannot rate yourself"
	ReasonNotCoordinator           = "Not an emergency coordinator"
	ReasonTitleRequired            = "Title required"
	ReasonInvalidRiskScore         = "Invalid risk score"
	ReasonInvalidExpiration        = "Invalid expiration time"
	ReasonInvalidLocation          = "Invalid location"
	ReasonInvalidAlertID           = "Invalid alert ID"
	ReasonNotAuthorizedAlert       = "Not authorized to update alert"
	ReasonInvalidTransition        = "Invalid status transition"
	ReasonNotResponder             = "Not an authorized responder"
	ReasonInvalidPriority          = "Invalid priority"
	ReasonInvalidCost              = "Invalid estimated cost"
	ReasonAlertNotActive           = "Alert not active"
	ReasonInvalidResponseID        = "Invalid response ID"
	ReasonNotAuthorizedResponse    = "Not authorized to update response"
	ReasonInvalidCompletion        = "Invalid completion percentage"
	ReasonResourceTypeRequired     = "Resource type required"
	ReasonInvalidQuantity          = "Invalid quantity"
)

func reject(kind Kind, op, reason string) *Error {
	return &Error{Kind: kind, Op: op, Reason: reason}
}

func missingRole(op string, role fmt.Stringer) *Error {
	return reject(KindAuthorization, op, "AccessControl: missing role "+role.String())
}
