package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/climateguardian/guardian/internal/access"
	"github.com/climateguardian/guardian/internal/ledger"
	"github.com/climateguardian/guardian/internal/models"
)

// Handler serves the ledger's mutators and queries over HTTP.
type Handler struct {
	ledger    *ledger.Ledger
	health    func(ctx context.Context) error
	logger    *slog.Logger
	startTime time.Time
}

// NewHandler creates a ledger handler. health may be nil.
func NewHandler(l *ledger.Ledger, health func(ctx context.Context) error, logger *slog.Logger) *Handler {
	return &Handler{
		ledger:    l,
		health:    health,
		logger:    logger,
		startTime: time.Now(),
	}
}

// StatsResponse is returned by GET /api/stats.
type StatsResponse struct {
	ledger.Stats
	UptimeSeconds int64 `json:"uptime_seconds"`
}

// GetStats handles GET /api/stats
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.logger, http.StatusOK, StatsResponse{
		Stats:         h.ledger.Stats(),
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	})
}

// GetDashboard handles GET /api/dashboard. Restricted to government,
// emergency responders and admins.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	if !requireAnyRole(w, r, h.ledger, h.logger, access.Government, access.EmergencyResponder, access.Admin) {
		return
	}
	writeJSON(w, h.logger, http.StatusOK, h.ledger.Dashboard())
}

// EventsResponse is a page of the event log.
type EventsResponse struct {
	Events   []models.Event `json:"events"`
	Count    int            `json:"count"`
	HeadSeq  uint64         `json:"head_seq"`
	HeadHash string         `json:"head_hash"`
}

// GetEvents handles GET /api/events?after=&limit=
func (h *Handler) GetEvents(w http.ResponseWriter, r *http.Request) {
	var after uint64
	if raw := r.URL.Query().Get("after"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, h.logger, ValidationError{Field: "after", Message: "Invalid sequence number"})
			return
		}
		after = v
	}
	limit := queryLimit(r, 100, 1000)

	events, err := h.ledger.Events(r.Context(), after, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if events == nil {
		events = []models.Event{}
	}
	seq, head := h.ledger.Head()
	writeJSON(w, h.logger, http.StatusOK, EventsResponse{
		Events:   events,
		Count:    len(events),
		HeadSeq:  seq,
		HeadHash: head.Hex(),
	})
}

// GetRoles handles GET /api/roles/{address}
func (h *Handler) GetRoles(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "address")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"address": addr,
		"roles":   rolesOf(h.ledger, addr),
	})
}

func rolesOf(l *ledger.Ledger, addr common.Address) []access.Role {
	roles := l.RolesOf(addr)
	if roles == nil {
		roles = []access.Role{}
	}
	return roles
}

// Healthz handles GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]interface{}{
		"status": "ok",
		"paused": h.ledger.Paused(),
	}
	if h.health != nil {
		if err := h.health(r.Context()); err != nil {
			h.logger.Warn("health check failed", "error", err)
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["storage"] = err.Error()
		}
	}
	writeJSON(w, h.logger, status, body)
}

// requireAnyRole writes 403 unless the caller holds one of roles.
func requireAnyRole(w http.ResponseWriter, r *http.Request, l *ledger.Ledger, logger *slog.Logger, roles ...access.Role) bool {
	caller := principal(r)
	for _, role := range roles {
		if l.HasRole(caller, role) {
			return true
		}
	}
	writeJSON(w, logger, http.StatusForbidden, ErrorResponse{
		Error: "AccessControl: missing role " + roles[0].String(),
		Kind:  ledger.KindAuthorization.String(),
	})
	return false
}

func queryLimit(r *http.Request, def, max int) int {
	limit := def
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > max {
		limit = max
	}
	return limit
}
