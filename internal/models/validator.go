package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Validator is a principal that bonded stake to take part in proof validation.
type Validator struct {
	Address          common.Address `json:"address"`
	Stake            *big.Int       `json:"stake"`      // Escrowed bond in wei
	Active           bool           `json:"active"`     // Eligible to validate
	Reputation       common.Address `json:"reputation"` // Key of the reputation record
	TotalValidations uint64         `json:"total_validations"`
	RegisteredAt     time.Time      `json:"registered_at"`
}

// Clone returns a copy that shares no mutable state with v.
func (v Validator) Clone() Validator {
	if v.Stake != nil {
		v.Stake = new(big.Int).Set(v.Stake)
	}
	return v
}
