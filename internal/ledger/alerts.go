package ledger

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/climateguardian/guardian/internal/access"
	"github.com/climateguardian/guardian/internal/models"
)

const (
	earthRadiusKm       = 6371.0
	defaultSearchRadius = 50.0
)

// AlertInput describes a new emergency alert. A zero ExpiresAt takes the
// ledger's DefaultAlertTTL.
type AlertInput struct {
	Title         string
	Description   string
	Severity      models.Severity
	Location      models.Location
	RadiusKm      float64
	RiskType      string
	RiskScore     int64
	ExpiresAt     time.Time
	ContactInfo   string
	LinkedProofID uint64
}

// IssueAlert publishes a new active alert. EMERGENCY_COORDINATOR only.
func (l *Ledger) IssueAlert(ctx context.Context, actor common.Address, in AlertInput) (models.EmergencyAlert, error) {
	var out models.EmergencyAlert
	err := l.mutate(ctx, opIssueAlert, actor, func(tx *txn) error {
		if !tx.st.Roles.Has(actor, access.EmergencyCoordinator) {
			return reject(KindAuthorization, tx.op, ReasonNotCoordinator)
		}
		a, err := tx.issueAlert(in)
		if err != nil {
			return err
		}
		out = *a
		return nil
	})
	return out, err
}

// issueAlert is the canonical issuance path shared by IssueAlert and
// TriggerEmergencyAlert. Authorization is the caller's concern.
func (tx *txn) issueAlert(in AlertInput) (*models.EmergencyAlert, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, reject(KindValidation, tx.op, ReasonTitleRequired)
	}
	if !in.Severity.Valid() {
		return nil, reject(KindValidation, tx.op, ReasonInvalidSeverity)
	}
	if in.RiskScore < 0 || in.RiskScore > 100 {
		return nil, reject(KindValidation, tx.op, ReasonInvalidRiskScore)
	}
	if in.ExpiresAt.IsZero() {
		in.ExpiresAt = tx.now.Add(tx.l.params.DefaultAlertTTL)
	}
	if !in.ExpiresAt.After(tx.now) {
		return nil, reject(KindValidation, tx.op, ReasonInvalidExpiration)
	}
	if !in.Location.Valid() || in.RadiusKm < 0 || math.IsNaN(in.RadiusKm) {
		return nil, reject(KindValidation, tx.op, ReasonInvalidLocation)
	}
	if in.LinkedProofID != 0 && tx.st.proof(in.LinkedProofID) == nil {
		return nil, reject(KindConsistency, tx.op, ReasonInvalidProofID)
	}

	a := &models.EmergencyAlert{
		ID:            uint64(len(tx.st.Alerts)) + 1,
		Title:         title,
		Description:   strings.TrimSpace(in.Description),
		Severity:      in.Severity,
		Location:      in.Location,
		RadiusKm:      in.RadiusKm,
		RiskType:      strings.TrimSpace(in.RiskType),
		RiskScore:     uint8(in.RiskScore),
		IssuedAt:      tx.now,
		ExpiresAt:     in.ExpiresAt.UTC(),
		Status:        models.AlertStatusActive,
		LinkedProofID: in.LinkedProofID,
		ContactInfo:   strings.TrimSpace(in.ContactInfo),
		Issuer:        tx.actor,
		UpdatedAt:     tx.now,
	}
	tx.st.Alerts = append(tx.st.Alerts, a)
	tx.emit(models.EventAlertIssued, AlertIssuedPayload{
		AlertID:       a.ID,
		Title:         a.Title,
		Severity:      a.Severity,
		Location:      a.Location,
		RadiusKm:      a.RadiusKm,
		RiskType:      a.RiskType,
		LinkedProofID: a.LinkedProofID,
	})
	if a.Severity >= tx.l.params.CriticalAlertThreshold {
		tx.emit(models.EventCriticalAlert, CriticalAlertPayload{
			AlertID:  a.ID,
			Severity: a.Severity,
			RadiusKm: a.RadiusKm,
		})
	}
	c := *a
	return &c, nil
}

// UpdateAlertStatus resolves or cancels an active alert. Only the issuer or
// an ADMIN may do so.
func (l *Ledger) UpdateAlertStatus(ctx context.Context, actor common.Address, alertID uint64, status models.AlertStatus) (models.EmergencyAlert, error) {
	var out models.EmergencyAlert
	err := l.mutate(ctx, opUpdateAlertStatus, actor, func(tx *txn) error {
		a := tx.st.alert(alertID)
		if a == nil {
			return reject(KindConsistency, tx.op, ReasonInvalidAlertID)
		}
		if a.Issuer != actor && !tx.st.Roles.Has(actor, access.Admin) {
			return reject(KindAuthorization, tx.op, ReasonNotAuthorizedAlert)
		}
		current := a.EffectiveStatus(tx.now)
		if !alertTransitionAllowed(current, status) {
			return reject(KindConsistency, tx.op, ReasonInvalidTransition)
		}

		a.Status = status
		a.UpdatedAt = tx.now
		tx.emit(models.EventAlertStatusUpdated, AlertStatusPayload{
			AlertID:   a.ID,
			OldStatus: current,
			NewStatus: status,
		})
		out = *a
		return nil
	})
	return out, err
}

func alertTransitionAllowed(from, to models.AlertStatus) bool {
	return from == models.AlertStatusActive &&
		(to == models.AlertStatusResolved || to == models.AlertStatusCancelled)
}

// AlertFilter narrows an alert listing. Zero values do not filter.
type AlertFilter struct {
	Severity   models.Severity
	Status     models.AlertStatus
	RiskType   string
	ActiveOnly bool
	// Near restricts to alerts whose area covers the point. The alert's
	// own radius is used, falling back to RadiusKm and then 50 km.
	Near     *models.Location
	RadiusKm float64
	Limit    int
	Offset   int
}

// Alerts lists alerts matching filter, newest first, with expiry applied.
func (l *Ledger) Alerts(filter AlertFilter) []models.EmergencyAlert {
	l.mu.RLock()
	defer l.mu.RUnlock()
	now := l.now()

	riskType := strings.ToLower(strings.TrimSpace(filter.RiskType))
	var out []models.EmergencyAlert
	for i := len(l.state.Alerts) - 1; i >= 0; i-- {
		a := l.readAlert(l.state.Alerts[i], now)
		if filter.Severity != 0 && a.Severity != filter.Severity {
			continue
		}
		if filter.ActiveOnly && a.Status != models.AlertStatusActive {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if riskType != "" && !strings.Contains(strings.ToLower(a.RiskType), riskType) {
			continue
		}
		if filter.Near != nil {
			radius := a.RadiusKm
			if radius == 0 {
				radius = filter.RadiusKm
			}
			if radius == 0 {
				radius = defaultSearchRadius
			}
			if DistanceKm(*filter.Near, a.Location) > radius {
				continue
			}
		}
		out = append(out, a)
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out
}

// Alert returns the alert with id, with expiry applied.
func (l *Ledger) Alert(id uint64) (models.EmergencyAlert, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	a := l.state.alert(id)
	if a == nil {
		return models.EmergencyAlert{}, ErrNotFound
	}
	return l.readAlert(a, l.now()), nil
}

// AlertsBySeverity lists alerts of one severity in issue order.
func (l *Ledger) AlertsBySeverity(severity models.Severity) []models.EmergencyAlert {
	alerts := l.Alerts(AlertFilter{Severity: severity})
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].ID < alerts[j].ID })
	return alerts
}

// TotalAlerts returns the number of issued alerts.
func (l *Ledger) TotalAlerts() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.state.Alerts)
}

// ActiveAlertsCount returns the number of alerts that are active and unexpired.
func (l *Ledger) ActiveAlertsCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.activeAlerts(l.now())
}

func (l *Ledger) activeAlerts(now time.Time) int {
	n := 0
	for _, a := range l.state.Alerts {
		if a.EffectiveStatus(now) == models.AlertStatusActive {
			n++
		}
	}
	return n
}

func (l *Ledger) readAlert(a *models.EmergencyAlert, now time.Time) models.EmergencyAlert {
	out := *a
	out.Status = a.EffectiveStatus(now)
	return out
}

// DistanceKm returns the great-circle distance between two points.
func DistanceKm(a, b models.Location) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}
