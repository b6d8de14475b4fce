package ledger

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/climateguardian/guardian/internal/access"
	"github.com/climateguardian/guardian/internal/models"
)

// requireRole fails with the access-control reason when principal lacks role.
func (tx *txn) requireRole(role access.Role) error {
	if !tx.st.Roles.Has(tx.actor, role) {
		return missingRole(tx.op, role)
	}
	return nil
}

// GrantRole gives principal a role. ADMIN only.
func (l *Ledger) GrantRole(ctx context.Context, actor, principal common.Address, role access.Role) error {
	return l.mutate(ctx, opGrantRole, actor, func(tx *txn) error {
		if err := tx.requireRole(access.Admin); err != nil {
			return err
		}
		if principal == (common.Address{}) {
			return reject(KindValidation, tx.op, ReasonInvalidAccount)
		}
		if tx.st.Roles.Grant(principal, role) {
			tx.emit(models.EventRoleGranted, roleChange{Principal: principal, Role: role})
		}
		return nil
	})
}

// RevokeRole removes a role from principal. ADMIN only.
func (l *Ledger) RevokeRole(ctx context.Context, actor, principal common.Address, role access.Role) error {
	return l.mutate(ctx, opRevokeRole, actor, func(tx *txn) error {
		if err := tx.requireRole(access.Admin); err != nil {
			return err
		}
		if tx.st.Roles.Revoke(principal, role) {
			tx.emit(models.EventRoleRevoked, roleChange{Principal: principal, Role: role})
		}
		return nil
	})
}

// Pause engages the circuit breaker. ADMIN only.
func (l *Ledger) Pause(ctx context.Context, actor common.Address) error {
	return l.mutate(ctx, opPause, actor, func(tx *txn) error {
		if err := tx.requireRole(access.Admin); err != nil {
			return err
		}
		if tx.st.Paused {
			return reject(KindAvailability, tx.op, ReasonPaused)
		}
		tx.st.Paused = true
		tx.emit(models.EventPaused, pauseChange{Paused: true})
		return nil
	})
}

// Unpause releases the circuit breaker. ADMIN only.
func (l *Ledger) Unpause(ctx context.Context, actor common.Address) error {
	return l.mutate(ctx, opUnpause, actor, func(tx *txn) error {
		if err := tx.requireRole(access.Admin); err != nil {
			return err
		}
		if !tx.st.Paused {
			return reject(KindConsistency, tx.op, ReasonNotPaused)
		}
		tx.st.Paused = false
		tx.emit(models.EventUnpaused, pauseChange{Paused: false})
		return nil
	})
}

// Paused reports whether the circuit breaker is engaged.
func (l *Ledger) Paused() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.Paused
}

// HasRole reports whether principal holds role.
func (l *Ledger) HasRole(principal common.Address, role access.Role) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.Roles.Has(principal, role)
}

// RolesOf lists the roles principal holds.
func (l *Ledger) RolesOf(principal common.Address) []access.Role {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.Roles[principal].Roles()
}

// Members lists the principals holding role.
func (l *Ledger) Members(role access.Role) []common.Address {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.Roles.Members(role)
}
