package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/climateguardian/guardian/internal/auth"
	"github.com/climateguardian/guardian/internal/ledger"
	"github.com/climateguardian/guardian/internal/models"
)

// Dependencies are the services the HTTP API is built on.
type Dependencies struct {
	Ledger     *ledger.Ledger
	Activity   models.ActivityLogRepository
	Auth       auth.Config
	Challenges *auth.ChallengeStore
	// Health reports storage health for /healthz. Optional.
	Health func(ctx context.Context) error
	Logger *slog.Logger
}

// SetupRoutes configures all API routes
func SetupRoutes(mux *http.ServeMux, deps Dependencies) {
	logger := deps.Logger
	handler := NewHandler(deps.Ledger, deps.Health, logger)
	authHandler := NewAuthHandler(deps.Auth, deps.Challenges, deps.Ledger, deps.Activity, logger)
	activityHandler := NewActivityLogHandlers(deps.Activity, deps.Ledger, logger)

	// Auth middleware
	authMiddleware := auth.AuthMiddleware(deps.Auth)
	protect := func(h http.HandlerFunc) http.Handler {
		return authMiddleware(h)
	}

	mux.HandleFunc("GET /healthz", handler.Healthz)

	// Authentication routes (public)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/challenge", authHandler.Challenge)
	mux.HandleFunc("POST /api/auth/wallet", authHandler.WalletLogin)
	mux.Handle("GET /api/auth/validate", protect(authHandler.ValidateToken))

	// Queries (public)
	mux.HandleFunc("GET /api/stats", handler.GetStats)
	mux.HandleFunc("GET /api/events", handler.GetEvents)
	mux.HandleFunc("GET /api/roles/{address}", handler.GetRoles)
	mux.HandleFunc("GET /api/validators/{address}", handler.GetValidator)
	mux.HandleFunc("GET /api/proofs/exists", handler.ProofExists)
	mux.HandleFunc("GET /api/proofs/{id}", handler.GetProof)
	mux.HandleFunc("GET /api/proofs/{id}/validations", handler.ListValidations)
	mux.HandleFunc("GET /api/alerts", handler.ListAlerts)
	mux.HandleFunc("GET /api/alerts/{id}", handler.GetAlert)
	mux.HandleFunc("GET /api/alerts/{id}/resources", handler.ListResources)
	mux.HandleFunc("GET /api/alerts/{id}/responses", handler.ListAlertResponses)
	mux.HandleFunc("GET /api/alerts/{id}/advisories", activityHandler.ListAdvisories)
	mux.HandleFunc("GET /api/responses", handler.ListResponses)
	mux.HandleFunc("GET /api/responses/{id}", handler.GetResponsePlan)
	mux.HandleFunc("GET /api/reputation/{address}", handler.GetReputation)

	// Role-gated queries
	mux.Handle("GET /api/dashboard", protect(handler.GetDashboard))
	mux.Handle("GET /api/admin/activity", protect(activityHandler.ListActivities))

	// Mutators (bearer token required; the ledger enforces roles)
	mux.Handle("POST /api/validators", protect(handler.RegisterValidator))
	mux.Handle("POST /api/proofs", protect(handler.SubmitProof))
	mux.Handle("POST /api/proofs/{id}/validations", protect(handler.ValidateProof))
	mux.Handle("POST /api/proofs/{id}/trigger-alert", protect(handler.TriggerAlert))
	mux.Handle("POST /api/alerts", protect(handler.IssueAlert))
	mux.Handle("PUT /api/alerts/{id}/status", protect(handler.UpdateAlertStatus))
	mux.Handle("POST /api/alerts/{id}/resources", protect(handler.AllocateResource))
	mux.Handle("POST /api/responses", protect(handler.CreateResponsePlan))
	mux.Handle("PUT /api/responses/{id}/status", protect(handler.UpdateResponseStatus))
	mux.Handle("POST /api/reputation/{address}/init", protect(handler.InitializeReputation))
	mux.Handle("POST /api/reputation/{address}/feedback", protect(handler.SubmitFeedback))

	// Admin routes
	mux.Handle("POST /api/admin/roles", protect(handler.GrantRole))
	mux.Handle("DELETE /api/admin/roles", protect(handler.RevokeRole))
	mux.Handle("POST /api/admin/pause", protect(handler.Pause))
	mux.Handle("POST /api/admin/unpause", protect(handler.Unpause))
	mux.Handle("POST /api/admin/withdraw", protect(handler.Withdraw))
	mux.Handle("POST /api/admin/tokens", protect(authHandler.IssueToken))
}
