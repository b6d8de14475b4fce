package advisory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/climateguardian/guardian/internal/ledger"
	"github.com/climateguardian/guardian/internal/models"
)

const maxAdvisoriesPerAlert = 100

// AlertSource looks up alerts by id.
type AlertSource interface {
	Alert(id uint64) (models.EmergencyAlert, error)
}

// Sink drafts an advisory for every CriticalAlert event it receives and
// stores it in the activity log. It satisfies notify.Sink.
type Sink struct {
	alerts   AlertSource
	primary  Drafter
	fallback Drafter
	activity models.ActivityLogRepository
	now      func() time.Time
	logger   *slog.Logger
}

// NewSink creates an advisory sink. A nil primary drafts with the template
// only.
func NewSink(alerts AlertSource, primary Drafter, activity models.ActivityLogRepository, logger *slog.Logger) *Sink {
	if primary == nil {
		primary = TemplateDrafter{}
	}
	return &Sink{
		alerts:   alerts,
		primary:  primary,
		fallback: TemplateDrafter{},
		activity: activity,
		now:      time.Now,
		logger:   logger.With(slog.String("component", "advisory")),
	}
}

// Name implements notify.Sink.
func (s *Sink) Name() string { return "advisory" }

// Deliver implements notify.Sink. Alerts already drafted for the same event
// are skipped, so a retried batch only drafts what is missing.
func (s *Sink) Deliver(ctx context.Context, events []models.Event) error {
	for _, e := range events {
		if e.Type != models.EventCriticalAlert {
			continue
		}
		var payload ledger.CriticalAlertPayload
		if err := e.Decode(&payload); err != nil {
			return fmt.Errorf("decode critical alert %d: %w", e.Seq, err)
		}
		done, err := s.drafted(ctx, e.Seq, payload.AlertID)
		if err != nil {
			return err
		}
		if done {
			continue
		}
		if err := s.draft(ctx, e.Seq, payload.AlertID); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sink) drafted(ctx context.Context, seq, alertID uint64) (bool, error) {
	logs, err := s.activity.List(ctx, maxAdvisoriesPerAlert, models.ActivityTypeAdvisory, SourceForAlert(alertID))
	if err != nil {
		return false, fmt.Errorf("list advisories for alert %d: %w", alertID, err)
	}
	for _, log := range logs {
		if log.EventSeq != nil && *log.EventSeq == seq {
			return true, nil
		}
	}
	return false, nil
}

func (s *Sink) draft(ctx context.Context, seq, alertID uint64) error {
	alert, err := s.alerts.Alert(alertID)
	if err != nil {
		return fmt.Errorf("load alert %d: %w", alertID, err)
	}

	start := s.now()
	drafter := s.primary
	text, err := drafter.Draft(ctx, alert)
	if err != nil && drafter != s.fallback {
		s.logger.Warn("advisory drafter failed, using template",
			slog.String("drafter", drafter.Name()),
			slog.Uint64("alert_id", alertID),
			slog.String("error", err.Error()),
		)
		drafter = s.fallback
		text, err = drafter.Draft(ctx, alert)
	}
	if err != nil {
		return fmt.Errorf("draft advisory for alert %d: %w", alertID, err)
	}

	ms := int(s.now().Sub(start).Milliseconds())
	entry := models.ActivityLog{
		Timestamp:    s.now().UTC(),
		ActivityType: models.ActivityTypeAdvisory,
		Source:       SourceForAlert(alertID),
		Message:      text,
		Details: map[string]interface{}{
			"alert_id": alertID,
			"drafter":  drafter.Name(),
			"severity": alert.Severity.String(),
			"title":    alert.Title,
		},
		EventSeq:   &seq,
		DurationMs: &ms,
	}
	if err := s.activity.Log(ctx, entry); err != nil {
		return fmt.Errorf("store advisory for alert %d: %w", alertID, err)
	}

	s.logger.Info("advisory drafted",
		slog.Uint64("alert_id", alertID),
		slog.String("drafter", drafter.Name()),
	)
	return nil
}

// SourceForAlert is the activity log source under which advisories for
// alertID are stored.
func SourceForAlert(alertID uint64) string {
	return fmt.Sprintf("alert/%d", alertID)
}

// FromActivity converts a stored advisory entry back into an Advisory.
func FromActivity(log models.ActivityLog, alertID uint64) Advisory {
	drafter, _ := log.Details["drafter"].(string)
	return Advisory{
		AlertID:   alertID,
		Text:      log.Message,
		Drafter:   drafter,
		DraftedAt: log.Timestamp,
	}
}
