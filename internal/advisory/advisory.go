// Package advisory drafts public advisory texts for critical emergency
// alerts. Drafts are written to the activity log; they never change the
// ledger.
package advisory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/climateguardian/guardian/internal/models"
)

// Advisory is a drafted public message for one alert.
type Advisory struct {
	AlertID   uint64    `json:"alert_id"`
	Text      string    `json:"text"`
	Drafter   string    `json:"drafter"`
	DraftedAt time.Time `json:"drafted_at"`
}

// Drafter turns an alert into advisory text.
type Drafter interface {
	Name() string
	Draft(ctx context.Context, alert models.EmergencyAlert) (string, error)
}

// TemplateDrafter builds advisories from a fixed template. It needs no
// network access and is the fallback for model-backed drafters.
type TemplateDrafter struct{}

// Name implements Drafter.
func (TemplateDrafter) Name() string { return "template" }

// Draft implements Drafter.
func (TemplateDrafter) Draft(_ context.Context, alert models.EmergencyAlert) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s ALERT: %s.", alert.Severity, alert.Title)

	area := alert.Location.Name
	if area == "" {
		area = fmt.Sprintf("%.4f, %.4f", alert.Location.Latitude, alert.Location.Longitude)
	}
	if alert.RadiusKm > 0 {
		fmt.Fprintf(&b, " Affected area: within %.0f km of %s.", alert.RadiusKm, area)
	} else {
		fmt.Fprintf(&b, " Affected area: %s.", area)
	}

	if alert.RiskType != "" {
		fmt.Fprintf(&b, " Hazard: %s.", alert.RiskType)
	}
	if d := strings.TrimSpace(alert.Description); d != "" {
		fmt.Fprintf(&b, " %s", strings.TrimSuffix(d, "."))
		b.WriteString(".")
	}
	if !alert.ExpiresAt.IsZero() {
		fmt.Fprintf(&b, " In effect until %s.", alert.ExpiresAt.UTC().Format("2006-01-02 15:04 MST"))
	}
	if alert.ContactInfo != "" {
		fmt.Fprintf(&b, " Contact: %s.", alert.ContactInfo)
	}
	b.WriteString(" Follow instructions from local authorities.")
	return b.String(), nil
}
