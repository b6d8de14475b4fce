package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/climateguardian/guardian/internal/auth"
	"github.com/climateguardian/guardian/internal/ledger"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}

// writeError maps err to an HTTP status. Ledger rejections keep their
// reason verbatim.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var verr ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, logger, http.StatusBadRequest, ErrorResponse{Error: verr.Message, Kind: "validation", Field: verr.Field})
		return
	}

	if errors.Is(err, ledger.ErrNotFound) {
		writeJSON(w, logger, http.StatusNotFound, ErrorResponse{Error: "Not found"})
		return
	}

	var lerr *ledger.Error
	if errors.As(err, &lerr) {
		writeJSON(w, logger, statusForKind(lerr), ErrorResponse{Error: lerr.Reason, Kind: lerr.Kind.String()})
		return
	}

	logger.Error("request failed", "error", err)
	writeJSON(w, logger, http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
}

func statusForKind(err *ledger.Error) int {
	if ledger.IsUnknownReference(err) {
		return http.StatusNotFound
	}
	switch err.Kind {
	case ledger.KindValidation:
		return http.StatusBadRequest
	case ledger.KindAuthorization:
		return http.StatusForbidden
	case ledger.KindEconomic:
		return http.StatusPaymentRequired
	case ledger.KindConsistency:
		return http.StatusConflict
	case ledger.KindAvailability:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// decodeBody reads a JSON request body into v, rejecting unknown fields.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var verr ValidationError
		if errors.As(err, &verr) {
			return verr
		}
		if errors.Is(err, io.EOF) {
			return ValidationError{Field: "body", Message: "Request body is required"}
		}
		return ValidationError{Field: "body", Message: "Invalid request body: " + err.Error()}
	}
	return nil
}

// principal returns the authenticated caller. Routes using it are wrapped
// in auth.AuthMiddleware.
func principal(r *http.Request) common.Address {
	p, _ := auth.PrincipalFromContext(r.Context())
	return p
}

func pathID(r *http.Request, name string) (uint64, error) {
	return ParseID(name, r.PathValue(name))
}

func pathAddress(r *http.Request, name string) (common.Address, error) {
	return ParseAddress(name, r.PathValue(name))
}
