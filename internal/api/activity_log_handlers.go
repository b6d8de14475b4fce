package api

import (
	"log/slog"
	"net/http"

	"github.com/climateguardian/guardian/internal/access"
	"github.com/climateguardian/guardian/internal/advisory"
	"github.com/climateguardian/guardian/internal/ledger"
	"github.com/climateguardian/guardian/internal/models"
)

// ActivityLogHandlers serves the activity log and drafted advisories.
type ActivityLogHandlers struct {
	repo   models.ActivityLogRepository
	ledger *ledger.Ledger
	logger *slog.Logger
}

func NewActivityLogHandlers(repo models.ActivityLogRepository, l *ledger.Ledger, logger *slog.Logger) *ActivityLogHandlers {
	return &ActivityLogHandlers{
		repo:   repo,
		ledger: l,
		logger: logger,
	}
}

// ListActivities handles GET /api/admin/activity
func (h *ActivityLogHandlers) ListActivities(w http.ResponseWriter, r *http.Request) {
	if !requireAnyRole(w, r, h.ledger, h.logger, access.Admin) {
		return
	}

	limit := queryLimit(r, 100, 1000)
	activityType := models.ActivityType(r.URL.Query().Get("activity_type"))
	source := r.URL.Query().Get("source")

	logs, err := h.repo.List(r.Context(), limit, activityType, source)
	if err != nil {
		h.logger.Error("failed to list activity logs", "error", err)
		writeJSON(w, h.logger, http.StatusInternalServerError, ErrorResponse{Error: "Failed to retrieve activity logs"})
		return
	}

	writeJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"logs":  logs,
		"count": len(logs),
	})
}

// ListAdvisories handles GET /api/alerts/{id}/advisories
func (h *ActivityLogHandlers) ListAdvisories(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if _, err := h.ledger.Alert(id); err != nil {
		writeError(w, h.logger, err)
		return
	}

	logs, err := h.repo.List(r.Context(), queryLimit(r, 20, 100), models.ActivityTypeAdvisory, advisory.SourceForAlert(id))
	if err != nil {
		h.logger.Error("failed to list advisories", "alert_id", id, "error", err)
		writeJSON(w, h.logger, http.StatusInternalServerError, ErrorResponse{Error: "Failed to retrieve advisories"})
		return
	}

	advisories := make([]advisory.Advisory, 0, len(logs))
	for _, log := range logs {
		advisories = append(advisories, advisory.FromActivity(log, id))
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"alert_id":   id,
		"advisories": advisories,
		"count":      len(advisories),
	})
}
