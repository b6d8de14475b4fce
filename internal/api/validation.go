package api

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gmath "github.com/ethereum/go-ethereum/common/math"

	"github.com/climateguardian/guardian/internal/access"
	"github.com/climateguardian/guardian/internal/models"
)

// ValidationError represents a malformed request field. Business rule
// violations are reported by the ledger instead.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ParseAddress validates a hex principal address.
func ParseAddress(field, raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return common.Address{}, ValidationError{Field: field, Message: "Address is required"}
	}
	if !common.IsHexAddress(raw) {
		return common.Address{}, ValidationError{Field: field, Message: "Invalid address"}
	}
	return common.HexToAddress(raw), nil
}

// ParseID validates a positive decimal identifier.
func ParseID(field, raw string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, ValidationError{Field: field, Message: "Invalid identifier"}
	}
	return id, nil
}

// ParseFingerprint validates a 32-byte hex fingerprint.
func ParseFingerprint(field, raw string) (common.Hash, error) {
	b, err := hexutil.Decode(strings.TrimSpace(raw))
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, ValidationError{Field: field, Message: "Fingerprint must be 0x-prefixed 32-byte hex"}
	}
	return common.BytesToHash(b), nil
}

// Wei is a wei amount given as a decimal or 0x-hex string.
type Wei = gmath.HexOrDecimal256

// weiValue returns the amount, or zero when absent.
func weiValue(w *Wei) *big.Int {
	if w == nil {
		return new(big.Int)
	}
	return new(big.Int).Set((*big.Int)(w))
}

// SeverityParam accepts a severity as its name ("CRITICAL") or level (4).
// Unknown names and out of range levels decode to zero so the ledger
// reports them as an invalid severity level.
type SeverityParam models.Severity

// UnmarshalJSON implements json.Unmarshaler.
func (s *SeverityParam) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		sev, _ := models.ParseSeverity(raw)
		*s = SeverityParam(sev)
		return nil
	}
	var level int64
	if err := json.Unmarshal(data, &level); err != nil {
		return ValidationError{Field: "severity", Message: "Severity must be a name or a level"}
	}
	if level < 0 || level > math.MaxUint8 {
		level = 0
	}
	*s = SeverityParam(level)
	return nil
}

// ParseRoleField validates a role name.
func ParseRoleField(field, raw string) (access.Role, error) {
	role, err := access.ParseRole(raw)
	if err != nil {
		return 0, ValidationError{Field: field, Message: err.Error()}
	}
	return role, nil
}

// ParseTTL turns an optional hours value into a duration.
func ParseTTL(field string, hours float64, max time.Duration) (time.Duration, error) {
	if hours < 0 {
		return 0, ValidationError{Field: field, Message: "Must not be negative"}
	}
	d := time.Duration(hours * float64(time.Hour))
	if max > 0 && d > max {
		return 0, ValidationError{Field: field, Message: fmt.Sprintf("Must not exceed %v", max)}
	}
	return d, nil
}
