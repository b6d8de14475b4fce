package api

import "net/http"

// InitializeReputation handles POST /api/reputation/{address}/init
func (h *Handler) InitializeReputation(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "address")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	rep, err := h.ledger.InitializeReputation(r.Context(), principal(r), addr)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, rep)
}

// FeedbackRequest is the body of POST /api/reputation/{address}/feedback.
type FeedbackRequest struct {
	Rating  int64  `json:"rating"`
	Comment string `json:"comment,omitempty"`
}

// SubmitFeedback handles POST /api/reputation/{address}/feedback
func (h *Handler) SubmitFeedback(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "address")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req FeedbackRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	rep, err := h.ledger.SubmitFeedback(r.Context(), principal(r), addr, req.Rating, req.Comment)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, rep)
}

// GetReputation handles GET /api/reputation/{address}
func (h *Handler) GetReputation(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "address")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	rep, err := h.ledger.Reputation(addr)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, rep)
}
