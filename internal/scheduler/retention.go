package scheduler

import (
	"context"
	"log/slog"
	"time"
)

// Pruner deletes records older than a given age.
type Pruner interface {
	DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error)
}

// RetentionScheduler periodically prunes the activity log.
type RetentionScheduler struct {
	pruner        Pruner
	retention     time.Duration
	checkInterval time.Duration
	logger        *slog.Logger
	stopChan      chan struct{}
}

// NewRetentionScheduler creates a scheduler that removes entries older than
// retention every checkInterval.
func NewRetentionScheduler(pruner Pruner, retention, checkInterval time.Duration, logger *slog.Logger) *RetentionScheduler {
	if checkInterval <= 0 {
		checkInterval = time.Hour
	}
	return &RetentionScheduler{
		pruner:        pruner,
		retention:     retention,
		checkInterval: checkInterval,
		logger:        logger.With(slog.String("component", "retention")),
		stopChan:      make(chan struct{}),
	}
}

// Start begins the scheduler loop. It blocks until Stop is called or ctx is
// cancelled.
func (s *RetentionScheduler) Start(ctx context.Context) {
	s.logger.Info("starting retention scheduler",
		"retention", s.retention.String(),
		"check_interval", s.checkInterval.String(),
	)
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	// Run once immediately on start
	s.prune(ctx)

	for {
		select {
		case <-ticker.C:
			s.prune(ctx)
		case <-s.stopChan:
			s.logger.Info("retention scheduler stopped")
			return
		case <-ctx.Done():
			s.logger.Info("retention scheduler stopping due to context cancellation")
			return
		}
	}
}

// Stop stops the scheduler
func (s *RetentionScheduler) Stop() {
	close(s.stopChan)
}

func (s *RetentionScheduler) prune(ctx context.Context) {
	removed, err := s.pruner.DeleteOlderThan(ctx, s.retention)
	if err != nil {
		s.logger.Error("failed to prune activity log", "error", err)
		return
	}
	if removed > 0 {
		s.logger.Info("pruned activity log", "removed", removed)
	}
}
