package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/climateguardian/guardian/internal/models"
)

func TestIssueAlertChecks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	now := f.clock.Now()
	valid := AlertInput{
		Title:     "Cyclone approaching coast",
		Severity:  models.SeverityHigh,
		Location:  models.Location{Latitude: -4.0435, Longitude: 39.6682, Name: "Mombasa"},
		RadiusKm:  80,
		RiskType:  "storm",
		RiskScore: 60,
		ExpiresAt: now.Add(12 * time.Hour),
	}

	tests := []struct {
		name     string
		mutate   func(in *AlertInput)
		sentinel error
		reason   string
	}{
		{name: "empty title", mutate: func(in *AlertInput) { in.Title = "" }, sentinel: ErrValidation, reason: ReasonTitleRequired},
		{name: "severity zero", mutate: func(in *AlertInput) { in.Severity = 0 }, sentinel: ErrValidation, reason: ReasonInvalidSeverity},
		{name: "risk score 150", mutate: func(in *AlertInput) { in.RiskScore = 150 }, sentinel: ErrValidation, reason: ReasonInvalidRiskScore},
		{name: "negative risk score", mutate: func(in *AlertInput) { in.RiskScore = -1 }, sentinel: ErrValidation, reason: ReasonInvalidRiskScore},
		{name: "expired", mutate: func(in *AlertInput) { in.ExpiresAt = now.Add(-time.Hour) }, sentinel: ErrValidation, reason: ReasonInvalidExpiration},
		{name: "expires now", mutate: func(in *AlertInput) { in.ExpiresAt = now }, sentinel: ErrValidation, reason: ReasonInvalidExpiration},
		{name: "latitude off globe", mutate: func(in *AlertInput) { in.Location.Latitude = 91 }, sentinel: ErrValidation, reason: ReasonInvalidLocation},
		{name: "negative radius", mutate: func(in *AlertInput) { in.RadiusKm = -1 }, sentinel: ErrValidation, reason: ReasonInvalidLocation},
		{name: "unknown proof", mutate: func(in *AlertInput) { in.LinkedProofID = 7 }, sentinel: ErrConsistency, reason: ReasonInvalidProofID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			_, err := f.ledger.IssueAlert(ctx, coordinator, in)
			requireReason(t, err, tt.sentinel, tt.reason)
		})
	}

	_, err := f.ledger.IssueAlert(ctx, fieldTeam, valid)
	requireReason(t, err, ErrAuthorization, ReasonNotCoordinator)

	a, err := f.ledger.IssueAlert(ctx, coordinator, valid)
	require.NoError(t, err)
	require.Equal(t, uint64(1), a.ID)
	require.Equal(t, models.AlertStatusActive, a.Status)
	require.Equal(t, coordinator, a.Issuer)
	require.Empty(t, f.published.ofType(models.EventCriticalAlert))
	require.Equal(t, 0, f.ledger.TotalProofs())
	require.Equal(t, 1, f.ledger.TotalAlerts())
}

func TestIssueAlertDefaultExpiry(t *testing.T) {
	f := newFixture(t, nil)
	now := f.clock.Now()

	a, err := f.ledger.IssueAlert(context.Background(), coordinator, AlertInput{
		Title:    "Heatwave",
		Severity: models.SeverityMedium,
		Location: models.Location{Latitude: 37.98, Longitude: 23.73},
	})
	require.NoError(t, err)
	require.True(t, a.ExpiresAt.Equal(now.Add(f.ledger.Params().DefaultAlertTTL).UTC()))
}

func TestCriticalAlertSignal(t *testing.T) {
	f := newFixture(t, nil)
	a := f.issueAlert(t, models.SeverityCritical)

	critical := f.published.ofType(models.EventCriticalAlert)
	require.Len(t, critical, 1)
	var payload CriticalAlertPayload
	require.NoError(t, critical[0].Decode(&payload))
	require.Equal(t, CriticalAlertPayload{AlertID: a.ID, Severity: models.SeverityCritical, RadiusKm: 25}, payload)
}

func TestUpdateAlertStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	first := f.issueAlert(t, models.SeverityMedium)
	second := f.issueAlert(t, models.SeverityMedium)

	_, err := f.ledger.UpdateAlertStatus(ctx, coordinator, 999, models.AlertStatusResolved)
	requireReason(t, err, ErrConsistency, ReasonInvalidAlertID)

	_, err = f.ledger.UpdateAlertStatus(ctx, responder, first.ID, models.AlertStatusResolved)
	requireReason(t, err, ErrAuthorization, ReasonNotAuthorizedAlert)

	_, err = f.ledger.UpdateAlertStatus(ctx, coordinator, first.ID, models.AlertStatusExpired)
	requireReason(t, err, ErrConsistency, ReasonInvalidTransition)

	a, err := f.ledger.UpdateAlertStatus(ctx, coordinator, first.ID, models.AlertStatusResolved)
	require.NoError(t, err)
	require.Equal(t, models.AlertStatusResolved, a.Status)

	_, err = f.ledger.UpdateAlertStatus(ctx, coordinator, first.ID, models.AlertStatusActive)
	requireReason(t, err, ErrConsistency, ReasonInvalidTransition)
	_, err = f.ledger.UpdateAlertStatus(ctx, coordinator, first.ID, models.AlertStatusCancelled)
	requireReason(t, err, ErrConsistency, ReasonInvalidTransition)

	_, err = f.ledger.UpdateAlertStatus(ctx, admin, second.ID, models.AlertStatusCancelled)
	require.NoError(t, err)

	updates := f.published.ofType(models.EventAlertStatusUpdated)
	require.Len(t, updates, 2)
	var payload AlertStatusPayload
	require.NoError(t, updates[1].Decode(&payload))
	require.Equal(t, models.AlertStatusActive, payload.OldStatus)
	require.Equal(t, models.AlertStatusCancelled, payload.NewStatus)
	require.Equal(t, 0, f.ledger.ActiveAlertsCount())
}

func TestAlertExpiryIsDerivedOnRead(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	a := f.issueAlert(t, models.SeverityHigh)
	f.issueAlert(t, models.SeverityLow)
	require.Equal(t, 2, f.ledger.ActiveAlertsCount())

	f.clock.Advance(6 * time.Hour)

	got, err := f.ledger.Alert(a.ID)
	require.NoError(t, err)
	require.Equal(t, models.AlertStatusExpired, got.Status)
	require.Equal(t, 0, f.ledger.ActiveAlertsCount())
	require.Equal(t, 0, f.ledger.Stats().ActiveAlerts)

	_, err = f.ledger.UpdateAlertStatus(ctx, coordinator, a.ID, models.AlertStatusResolved)
	requireReason(t, err, ErrConsistency, ReasonInvalidTransition)

	_, err = f.ledger.CreateResponsePlan(ctx, responder, ResponsePlanInput{AlertID: a.ID, ResponseType: "evacuation", Priority: 3})
	requireReason(t, err, ErrConsistency, ReasonAlertNotActive)
}

func TestAlertQueries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	nairobi := f.issueAlert(t, models.SeverityHigh)
	f.issueAlert(t, models.SeverityLow)
	mombasa, err := f.ledger.IssueAlert(ctx, coordinator, AlertInput{
		Title:     "Coastal storm surge",
		Severity:  models.SeverityHigh,
		Location:  models.Location{Latitude: -4.0435, Longitude: 39.6682},
		RiskType:  "Storm Surge",
		ExpiresAt: f.clock.Now().Add(time.Hour),
	})
	require.NoError(t, err)

	high := f.ledger.AlertsBySeverity(models.SeverityHigh)
	require.Len(t, high, 2)
	require.Equal(t, nairobi.ID, high[0].ID)
	require.Equal(t, mombasa.ID, high[1].ID)

	near := f.ledger.Alerts(AlertFilter{Near: &models.Location{Latitude: -1.30, Longitude: 36.80}})
	require.Len(t, near, 2, "both Nairobi alerts cover the point")
	for _, a := range near {
		require.NotEqual(t, mombasa.ID, a.ID)
	}

	coast := f.ledger.Alerts(AlertFilter{Near: &models.Location{Latitude: -4.05, Longitude: 39.67}, RadiusKm: 10})
	require.Len(t, coast, 1)
	require.Equal(t, mombasa.ID, coast[0].ID)

	surge := f.ledger.Alerts(AlertFilter{RiskType: "surge"})
	require.Len(t, surge, 1)

	newest := f.ledger.Alerts(AlertFilter{Limit: 1})
	require.Len(t, newest, 1)
	require.Equal(t, mombasa.ID, newest[0].ID)
	require.Len(t, f.ledger.Alerts(AlertFilter{Offset: 1}), 2)
	require.Empty(t, f.ledger.Alerts(AlertFilter{Offset: 5}))

	f.clock.Advance(2 * time.Hour)
	active := f.ledger.Alerts(AlertFilter{ActiveOnly: true})
	require.Len(t, active, 2)
	expired := f.ledger.Alerts(AlertFilter{Status: models.AlertStatusExpired})
	require.Len(t, expired, 1)
	require.Equal(t, mombasa.ID, expired[0].ID)

	_, err = f.ledger.Alert(404)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDistanceKm(t *testing.T) {
	nairobi := models.Location{Latitude: -1.2921, Longitude: 36.8219}
	mombasa := models.Location{Latitude: -4.0435, Longitude: 39.6682}

	require.InDelta(t, 440, DistanceKm(nairobi, mombasa), 10)
	require.Zero(t, DistanceKm(nairobi, nairobi))
}

func TestDashboard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.issueAlert(t, models.SeverityCritical)
	a := f.issueAlert(t, models.SeverityHigh)
	f.submitProof(t, "dashboard")

	_, err := f.ledger.CreateResponsePlan(ctx, responder, ResponsePlanInput{AlertID: a.ID, ResponseType: "shelter", Priority: 2})
	require.NoError(t, err)
	_, err = f.ledger.AllocateResource(ctx, responder, a.ID, "water_tankers", 4, "trucks")
	require.NoError(t, err)

	d := f.ledger.Dashboard()
	require.Equal(t, map[string]int{"CRITICAL": 1, "HIGH": 1}, d.ActiveAlertsBySeverity)
	require.Equal(t, map[string]int{"PENDING": 1}, d.ResponsesByStatus)
	require.Equal(t, map[string]int{"pending": 1}, d.ProofsByStatus)
	require.Equal(t, 2, d.RecentAlerts24h)
	require.Equal(t, 1, d.ResourcesAllocated)
}
