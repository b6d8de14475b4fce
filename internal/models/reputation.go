package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ReputationRecord tracks the trust score of a principal.
type ReputationRecord struct {
	Principal             common.Address `json:"principal"`
	Score                 int64          `json:"score"` // 0-100
	TotalValidations      uint64         `json:"total_validations"`
	SuccessfulValidations uint64         `json:"successful_validations"`
	Feedback              []Feedback     `json:"feedback"`
	CreatedAt             time.Time      `json:"created_at"`
	UpdatedAt             time.Time      `json:"updated_at"`
}

// Feedback is a peer rating left by one principal for another.
type Feedback struct {
	Rater     common.Address `json:"rater"`
	Rating    uint8          `json:"rating"` // 1-5
	Comment   string         `json:"comment,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Clone returns a copy with its own feedback slice.
func (r ReputationRecord) Clone() ReputationRecord {
	r.Feedback = append([]Feedback(nil), r.Feedback...)
	return r
}
