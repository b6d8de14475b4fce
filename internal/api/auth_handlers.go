package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/climateguardian/guardian/internal/access"
	"github.com/climateguardian/guardian/internal/auth"
	"github.com/climateguardian/guardian/internal/ledger"
	"github.com/climateguardian/guardian/internal/models"
)

const maxIssuedTokenTTL = 30 * 24 * time.Hour

// AuthHandler handles authentication requests
type AuthHandler struct {
	config     auth.Config
	challenges *auth.ChallengeStore
	ledger     *ledger.Ledger
	activity   models.ActivityLogRepository
	logger     *slog.Logger
}

// NewAuthHandler creates a new authentication handler. activity may be nil.
func NewAuthHandler(config auth.Config, challenges *auth.ChallengeStore, l *ledger.Ledger, activity models.ActivityLogRepository, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		config:     config,
		challenges: challenges,
		ledger:     l,
		activity:   activity,
		logger:     logger,
	}
}

// LoginRequest represents a login request
type LoginRequest struct {
	Password string `json:"password"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Token     string         `json:"token"`
	ExpiresAt time.Time      `json:"expires_at"`
	Principal common.Address `json:"principal"`
	Roles     []access.Role  `json:"roles"`
}

// Login handles POST /api/auth/login. The admin password yields a token for
// the configured admin address.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if h.config.AdminAddress == (common.Address{}) {
		writeJSON(w, h.logger, http.StatusServiceUnavailable, ErrorResponse{Error: "Password login is not configured"})
		return
	}

	var req LoginRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if !h.config.CheckAdminPassword(req.Password) {
		h.logger.Warn("failed login attempt", "ip", r.RemoteAddr)
		// Use a generic error message to prevent username enumeration
		writeJSON(w, h.logger, http.StatusUnauthorized, ErrorResponse{Error: "Invalid credentials"})
		return
	}

	h.issue(w, r, h.config.AdminAddress, "password", h.config.TokenDuration)
}

// ChallengeRequest is the body of POST /api/auth/challenge.
type ChallengeRequest struct {
	Address string `json:"address"`
}

// Challenge handles POST /api/auth/challenge
func (h *AuthHandler) Challenge(w http.ResponseWriter, r *http.Request) {
	var req ChallengeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	addr, err := ParseAddress("address", req.Address)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	challenge, err := h.challenges.Issue(addr)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, challenge)
}

// WalletLoginRequest is the body of POST /api/auth/wallet.
type WalletLoginRequest struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
}

// WalletLogin handles POST /api/auth/wallet. The caller signs the pending
// challenge with personal_sign.
func (h *AuthHandler) WalletLogin(w http.ResponseWriter, r *http.Request) {
	var req WalletLoginRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	addr, err := ParseAddress("address", req.Address)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.challenges.Redeem(addr, req.Signature); err != nil {
		h.logger.Warn("failed wallet login", "address", addr.Hex(), "ip", r.RemoteAddr, "error", err)
		writeJSON(w, h.logger, http.StatusUnauthorized, ErrorResponse{Error: "Invalid signature"})
		return
	}

	h.issue(w, r, addr, "wallet", h.config.TokenDuration)
}

// IssueTokenRequest is the body of POST /api/admin/tokens.
type IssueTokenRequest struct {
	Address  string  `json:"address"`
	TTLHours float64 `json:"ttl_hours,omitempty"`
}

// IssueToken handles POST /api/admin/tokens. Admins mint tokens for
// principals that cannot sign challenges, such as service accounts.
func (h *AuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	if !requireAnyRole(w, r, h.ledger, h.logger, access.Admin) {
		return
	}
	caller := principal(r)

	var req IssueTokenRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	addr, err := ParseAddress("address", req.Address)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	ttl := h.config.TokenDuration
	if req.TTLHours != 0 {
		if ttl, err = ParseTTL("ttl_hours", req.TTLHours, maxIssuedTokenTTL); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}

	h.logger.Info("token issued", "admin", caller.Hex(), "principal", addr.Hex(), "ttl", ttl.String())
	h.issue(w, r, addr, "issued", ttl)
}

// ValidateToken handles GET /api/auth/validate
func (h *AuthHandler) ValidateToken(w http.ResponseWriter, r *http.Request) {
	// Token validation is handled by the middleware
	caller := principal(r)
	writeJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"valid":     true,
		"principal": caller,
		"roles":     rolesOf(h.ledger, caller),
	})
}

func (h *AuthHandler) issue(w http.ResponseWriter, r *http.Request, addr common.Address, method string, ttl time.Duration) {
	token, err := auth.GenerateToken(addr, method, h.config.JWTSecret, ttl)
	if err != nil {
		h.logger.Error("failed to generate token", "error", err)
		writeJSON(w, h.logger, http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
		return
	}

	h.logger.Info("successful login", "principal", addr.Hex(), "method", method, "ip", r.RemoteAddr)
	h.recordLogin(r.Context(), addr, method)

	writeJSON(w, h.logger, http.StatusOK, LoginResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(ttl),
		Principal: addr,
		Roles:     rolesOf(h.ledger, addr),
	})
}

func (h *AuthHandler) recordLogin(ctx context.Context, addr common.Address, method string) {
	if h.activity == nil {
		return
	}
	err := h.activity.Log(ctx, models.ActivityLog{
		ActivityType: models.ActivityTypeLogin,
		Source:       method,
		Message:      "token issued for " + addr.Hex(),
		Details:      map[string]interface{}{"principal": addr.Hex()},
	})
	if err != nil {
		h.logger.Warn("failed to record login", "error", err)
	}
}
