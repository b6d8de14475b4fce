package models

import (
	"encoding/json"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// DataProof is a content fingerprint submitted for multi-party verification.
type DataProof struct {
	ID          uint64          `json:"id"`
	Fingerprint common.Hash     `json:"fingerprint"`
	Submitter   common.Address  `json:"submitter"`
	Reference   string          `json:"reference"` // Off-chain pointer, usually an IPFS CID
	Category    ProofCategory   `json:"category"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	Validations []Validation    `json:"validations"`
	Verified    bool            `json:"verified"`
	Status      ProofStatus     `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	FinalizedAt *time.Time      `json:"finalized_at,omitempty"`
}

// ProofCategory classifies the data a proof fingerprints.
type ProofCategory string

const (
	ProofCategoryWeather    ProofCategory = "weather"
	ProofCategorySensor     ProofCategory = "iot_sensor"
	ProofCategorySatellite  ProofCategory = "satellite"
	ProofCategoryPrediction ProofCategory = "prediction"
	ProofCategoryCommunity  ProofCategory = "community_report"
	ProofCategoryGovernment ProofCategory = "government_bulletin"
	ProofCategoryOther      ProofCategory = "other"
)

// Valid reports whether c is a known category.
func (c ProofCategory) Valid() bool {
	switch c {
	case ProofCategoryWeather, ProofCategorySensor, ProofCategorySatellite,
		ProofCategoryPrediction, ProofCategoryCommunity, ProofCategoryGovernment,
		ProofCategoryOther:
		return true
	}
	return false
}

// ProofStatus is the quorum outcome of a proof.
type ProofStatus string

const (
	ProofStatusPending  ProofStatus = "pending"  // Collecting validations
	ProofStatusVerified ProofStatus = "verified" // Affirming quorum reached
	ProofStatusRejected ProofStatus = "rejected" // Denying quorum reached
)

// Validation is a single validator's verdict on a proof.
type Validation struct {
	ProofID   uint64         `json:"proof_id"`
	Validator common.Address `json:"validator"`
	Affirm    bool           `json:"affirm"`
	Comment   string         `json:"comment,omitempty"`
	Bond      *big.Int       `json:"bond"`
	CreatedAt time.Time      `json:"created_at"`
}

// Tally counts affirming and denying validations.
func (p *DataProof) Tally() (affirm, deny int) {
	for _, v := range p.Validations {
		if v.Affirm {
			affirm++
		} else {
			deny++
		}
	}
	return affirm, deny
}

// HasValidation reports whether addr already validated the proof.
func (p *DataProof) HasValidation(addr common.Address) bool {
	for _, v := range p.Validations {
		if v.Validator == addr {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the proof.
func (p DataProof) Clone() DataProof {
	if p.Metadata != nil {
		p.Metadata = append(json.RawMessage(nil), p.Metadata...)
	}
	validations := make([]Validation, len(p.Validations))
	for i, v := range p.Validations {
		if v.Bond != nil {
			v.Bond = new(big.Int).Set(v.Bond)
		}
		validations[i] = v
	}
	p.Validations = validations
	if p.FinalizedAt != nil {
		t := *p.FinalizedAt
		p.FinalizedAt = &t
	}
	return p
}
