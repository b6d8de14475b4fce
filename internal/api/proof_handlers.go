package api

import (
	"encoding/json"
	"net/http"

	"github.com/climateguardian/guardian/internal/ledger"
	"github.com/climateguardian/guardian/internal/models"
)

// RegisterValidatorRequest is the body of POST /api/validators.
type RegisterValidatorRequest struct {
	Stake *Wei `json:"stake_wei"`
}

// RegisterValidator handles POST /api/validators
func (h *Handler) RegisterValidator(w http.ResponseWriter, r *http.Request) {
	var req RegisterValidatorRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	v, err := h.ledger.RegisterValidator(r.Context(), principal(r), weiValue(req.Stake))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, v)
}

// ValidatorResponse combines a validator with its reputation.
type ValidatorResponse struct {
	models.Validator
	Reputation *ledger.ReputationDetails `json:"reputation_details,omitempty"`
}

// GetValidator handles GET /api/validators/{address}
func (h *Handler) GetValidator(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r, "address")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	v, err := h.ledger.Validator(addr)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	resp := ValidatorResponse{Validator: v}
	if rep, err := h.ledger.Reputation(addr); err == nil {
		resp.Reputation = &rep
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

// SubmitProofRequest is the body of POST /api/proofs. Either fingerprint or
// data must be given; data is hashed with Keccak-256.
type SubmitProofRequest struct {
	Fingerprint string          `json:"fingerprint,omitempty"`
	Data        string          `json:"data,omitempty"`
	Reference   string          `json:"reference"`
	Category    string          `json:"category"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
}

func (req SubmitProofRequest) input() (ledger.ProofInput, error) {
	in := ledger.ProofInput{
		Reference: req.Reference,
		Category:  models.ProofCategory(req.Category),
		Metadata:  req.Metadata,
	}
	switch {
	case req.Fingerprint != "" && req.Data != "":
		return in, ValidationError{Field: "fingerprint", Message: "Give either fingerprint or data, not both"}
	case req.Fingerprint != "":
		fp, err := ParseFingerprint("fingerprint", req.Fingerprint)
		if err != nil {
			return in, err
		}
		in.Fingerprint = fp
	case req.Data != "":
		in.Fingerprint = ledger.Fingerprint([]byte(req.Data))
	}
	return in, nil
}

// SubmitProof handles POST /api/proofs
func (h *Handler) SubmitProof(w http.ResponseWriter, r *http.Request) {
	var req SubmitProofRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	in, err := req.input()
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	proof, err := h.ledger.SubmitProof(r.Context(), principal(r), in)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, proof)
}

// GetProof handles GET /api/proofs/{id}
func (h *Handler) GetProof(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	proof, err := h.ledger.Proof(id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, proof)
}

// ListValidations handles GET /api/proofs/{id}/validations
func (h *Handler) ListValidations(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	validations, err := h.ledger.Validations(id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]interface{}{
		"proof_id":    id,
		"validations": validations,
		"count":       len(validations),
	})
}

// ProofExists handles GET /api/proofs/exists?fingerprint=
func (h *Handler) ProofExists(w http.ResponseWriter, r *http.Request) {
	fp, err := ParseFingerprint("fingerprint", r.URL.Query().Get("fingerprint"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	id, ok := h.ledger.ProofByFingerprint(fp)
	resp := map[string]interface{}{
		"fingerprint": fp,
		"exists":      ok,
	}
	if ok {
		resp["proof_id"] = id
	}
	writeJSON(w, h.logger, http.StatusOK, resp)
}

// ValidateProofRequest is the body of POST /api/proofs/{id}/validations.
type ValidateProofRequest struct {
	Affirm  *bool  `json:"affirm"`
	Comment string `json:"comment,omitempty"`
	Bond    *Wei   `json:"bond_wei"`
}

// ValidateProof handles POST /api/proofs/{id}/validations
func (h *Handler) ValidateProof(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req ValidateProofRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.Affirm == nil {
		writeError(w, h.logger, ValidationError{Field: "affirm", Message: "Verdict is required"})
		return
	}

	proof, err := h.ledger.ValidateProof(r.Context(), principal(r), id, *req.Affirm, req.Comment, weiValue(req.Bond))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, proof)
}

// TriggerAlertRequest is the body of POST /api/proofs/{id}/trigger-alert.
type TriggerAlertRequest struct {
	RiskType string        `json:"risk_type"`
	Severity SeverityParam `json:"severity"`
}

// TriggerAlert handles POST /api/proofs/{id}/trigger-alert
func (h *Handler) TriggerAlert(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	var req TriggerAlertRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	alert, err := h.ledger.TriggerEmergencyAlert(r.Context(), principal(r), id, req.RiskType, models.Severity(req.Severity))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, alert)
}
