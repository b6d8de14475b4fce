package api

import (
	"context"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/climateguardian/guardian/internal/access"
)

// RoleRequest is the body of POST and DELETE /api/admin/roles.
type RoleRequest struct {
	Address string `json:"address"`
	Role    string `json:"role"`
}

// GrantRole handles POST /api/admin/roles
func (h *Handler) GrantRole(w http.ResponseWriter, r *http.Request) {
	h.changeRole(w, r, h.ledger.GrantRole)
}

// RevokeRole handles DELETE /api/admin/roles
func (h *Handler) RevokeRole(w http.ResponseWriter, r *http.Request) {
	h.changeRole(w, r, h.ledger.RevokeRole)
}

func (h *Handler) changeRole(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, actor, principal common.Address, role access.Role) error) {
	var req RoleRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	addr, err := ParseAddress("address", req.Address)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	role, err := ParseRoleField("role", req.Role)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := apply(r.Context(), principal(r), addr, role); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"address": addr,
		"roles":   rolesOf(h.ledger, addr),
	})
}

// Pause handles POST /api/admin/pause
func (h *Handler) Pause(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.Pause(r.Context(), principal(r)); err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.logger.Warn("ledger paused", "admin", principal(r).Hex())
	writeJSON(w, h.logger, http.StatusOK, map[string]bool{"paused": true})
}

// Unpause handles POST /api/admin/unpause
func (h *Handler) Unpause(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.Unpause(r.Context(), principal(r)); err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.logger.Warn("ledger unpaused", "admin", principal(r).Hex())
	writeJSON(w, h.logger, http.StatusOK, map[string]bool{"paused": false})
}

// WithdrawRequest is the body of POST /api/admin/withdraw.
type WithdrawRequest struct {
	Recipient string `json:"recipient"`
	Amount    *Wei   `json:"amount_wei"`
}

// Withdraw handles POST /api/admin/withdraw
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req WithdrawRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	recipient, err := ParseAddress("recipient", req.Recipient)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	amount := weiValue(req.Amount)
	if err := h.ledger.Withdraw(r.Context(), principal(r), recipient, amount); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"recipient":        recipient,
		"amount_wei":       amount.String(),
		"escrow_total_wei": h.ledger.EscrowTotal().String(),
	})
}
