package models

import (
	"context"
	"time"
)

// ActivityType represents the type of activity being logged.
type ActivityType string

const (
	ActivityTypeDelivery ActivityType = "event_delivery"
	ActivityTypeAdvisory ActivityType = "advisory"
	ActivityTypeLogin    ActivityType = "login"
)

// ActivityLog is a record of service side activity that is not part of the
// ledger itself, such as delivered events or drafted advisories.
type ActivityLog struct {
	ID           string                 `json:"id"`
	Timestamp    time.Time              `json:"timestamp"`
	ActivityType ActivityType           `json:"activity_type"`
	Source       string                 `json:"source,omitempty"`
	Message      string                 `json:"message"`
	Details      map[string]interface{} `json:"details,omitempty"`
	EventSeq     *uint64                `json:"event_seq,omitempty"`
	DurationMs   *int                   `json:"duration_ms,omitempty"`
}

// ActivityLogRepository stores and lists activity entries.
type ActivityLogRepository interface {
	Log(ctx context.Context, log ActivityLog) error
	List(ctx context.Context, limit int, activityType ActivityType, source string) ([]ActivityLog, error)
}
