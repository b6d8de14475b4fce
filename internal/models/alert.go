package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EmergencyAlert is a public warning about a hazard in a geographic area.
type EmergencyAlert struct {
	ID            uint64         `json:"id"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Severity      Severity       `json:"severity"`
	Location      Location       `json:"location"`
	RadiusKm      float64        `json:"radius_km"`
	RiskType      string         `json:"risk_type"`  // flood, storm, drought, wildfire...
	RiskScore     uint8          `json:"risk_score"` // 0-100
	IssuedAt      time.Time      `json:"issued_at"`
	ExpiresAt     time.Time      `json:"expires_at"`
	Status        AlertStatus    `json:"status"`
	LinkedProofID uint64         `json:"linked_proof_id,omitempty"` // 0 when not linked
	ContactInfo   string         `json:"contact_info,omitempty"`
	Issuer        common.Address `json:"issuer"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Location represents geographic coordinates of an alert or deployment.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Name      string  `json:"name,omitempty"`
}

// Valid reports whether the coordinates are on the globe.
func (l Location) Valid() bool {
	return l.Latitude >= -90 && l.Latitude <= 90 && l.Longitude >= -180 && l.Longitude <= 180
}

// Severity ranks how dangerous an alert is.
type Severity uint8

const (
	SeverityLow      Severity = 1
	SeverityMedium   Severity = 2
	SeverityHigh     Severity = 3
	SeverityCritical Severity = 4
	SeverityExtreme  Severity = 5
)

var severityNames = map[Severity]string{
	SeverityLow:      "LOW",
	SeverityMedium:   "MEDIUM",
	SeverityHigh:     "HIGH",
	SeverityCritical: "CRITICAL",
	SeverityExtreme:  "EXTREME",
}

// Valid reports whether s is within the severity scale.
func (s Severity) Valid() bool {
	return s >= SeverityLow && s <= SeverityExtreme
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Severity(%d)", uint8(s))
}

// ParseSeverity accepts either a level name or its numeric value.
func ParseSeverity(raw string) (Severity, error) {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	for s, name := range severityNames {
		if name == raw || fmt.Sprint(uint8(s)) == raw {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown severity %q", raw)
}

// AlertStatus represents the lifecycle state of an alert.
type AlertStatus string

const (
	AlertStatusActive    AlertStatus = "ACTIVE"
	AlertStatusResolved  AlertStatus = "RESOLVED"
	AlertStatusCancelled AlertStatus = "CANCELLED"
	AlertStatusExpired   AlertStatus = "EXPIRED" // Derived on read, never stored
)

// Terminal reports whether no transition leaves the status.
func (s AlertStatus) Terminal() bool {
	return s == AlertStatusResolved || s == AlertStatusCancelled || s == AlertStatusExpired
}

// EffectiveStatus returns EXPIRED for active alerts past their expiry.
func (a *EmergencyAlert) EffectiveStatus(now time.Time) AlertStatus {
	if a.Status == AlertStatusActive && !now.Before(a.ExpiresAt) {
		return AlertStatusExpired
	}
	return a.Status
}
