package ledger

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/climateguardian/guardian/internal/access"
	"github.com/climateguardian/guardian/internal/models"
)

// RegisterValidator escrows bond for actor and enrols it as an active
// validator with a baseline reputation.
func (l *Ledger) RegisterValidator(ctx context.Context, actor common.Address, bond *big.Int) (models.Validator, error) {
	var out models.Validator
	err := l.mutate(ctx, opRegisterValidator, actor, func(tx *txn) error {
		if bond == nil || bond.Cmp(l.params.MinValidationStake) < 0 {
			return reject(KindEconomic, tx.op, ReasonInsufficientStake)
		}
		if _, ok := tx.st.Validators[actor]; ok {
			return reject(KindConsistency, tx.op, ReasonAlreadyRegistered)
		}

		tx.escrow(actor, bond)
		v := &models.Validator{
			Address:      actor,
			Stake:        new(big.Int).Set(bond),
			Active:       true,
			Reputation:   actor,
			RegisteredAt: tx.now,
		}
		tx.st.Validators[actor] = v
		tx.emit(models.EventValidatorRegistered, ValidatorRegisteredPayload{Validator: actor, Stake: v.Stake})

		tx.ensureReputation(actor)
		if tx.st.Roles.Grant(actor, access.Validator) {
			tx.emit(models.EventRoleGranted, roleChange{Principal: actor, Role: access.Validator})
		}
		out = v.Clone()
		return nil
	})
	return out, err
}

// Withdraw moves amount out of the escrow pool to recipient. ADMIN only.
func (l *Ledger) Withdraw(ctx context.Context, actor, recipient common.Address, amount *big.Int) error {
	return l.mutate(ctx, opWithdraw, actor, func(tx *txn) error {
		if err := tx.requireRole(access.Admin); err != nil {
			return err
		}
		if amount == nil || amount.Sign() <= 0 {
			return reject(KindValidation, tx.op, ReasonInvalidAmount)
		}
		if recipient == (common.Address{}) {
			return reject(KindValidation, tx.op, ReasonInvalidAccount)
		}
		if amount.Cmp(tx.st.EscrowTotal) > 0 {
			return reject(KindEconomic, tx.op, ReasonInsufficientEscrow)
		}

		tx.st.EscrowTotal = new(big.Int).Sub(tx.st.EscrowTotal, amount)
		tx.emit(models.EventFundsWithdrawn, fundsWithdrawn{
			Recipient: recipient,
			Amount:    new(big.Int).Set(amount),
			Remaining: new(big.Int).Set(tx.st.EscrowTotal),
		})
		return nil
	})
}

// escrow credits bond to principal and the pool in one step.
func (tx *txn) escrow(principal common.Address, bond *big.Int) {
	balance, ok := tx.st.Escrow[principal]
	if !ok {
		balance = new(big.Int)
	}
	tx.st.Escrow[principal] = new(big.Int).Add(balance, bond)
	tx.st.EscrowTotal = new(big.Int).Add(tx.st.EscrowTotal, bond)
}

// Validator returns the validator registered for principal.
func (l *Ledger) Validator(principal common.Address) (models.Validator, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	v, ok := l.state.Validators[principal]
	if !ok {
		return models.Validator{}, ErrNotFound
	}
	return v.Clone(), nil
}

// EscrowBalance returns the total bonded by principal.
func (l *Ledger) EscrowBalance(principal common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if balance, ok := l.state.Escrow[principal]; ok {
		return new(big.Int).Set(balance)
	}
	return new(big.Int)
}

// EscrowTotal returns the unallocated escrow pool.
func (l *Ledger) EscrowTotal() *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(big.Int).Set(l.state.EscrowTotal)
}
