package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/climateguardian/guardian/internal/models"
	"github.com/google/uuid"
)

const (
	defaultActivityLimit = 100
	maxActivityLimit     = 1000
)

// ActivityLogRepository handles activity log storage and retrieval.
type ActivityLogRepository struct {
	db *sql.DB
}

var _ models.ActivityLogRepository = (*ActivityLogRepository)(nil)

// NewActivityLogRepository creates a new activity log repository.
func NewActivityLogRepository(db *sql.DB) *ActivityLogRepository {
	return &ActivityLogRepository{db: db}
}

// Log stores a new activity log entry.
func (r *ActivityLogRepository) Log(ctx context.Context, log models.ActivityLog) error {
	log = withDefaults(log)

	var detailsJSON []byte
	if log.Details != nil {
		var err error
		detailsJSON, err = json.Marshal(log.Details)
		if err != nil {
			return fmt.Errorf("failed to marshal details: %w", err)
		}
	}

	var eventSeq sql.NullInt64
	if log.EventSeq != nil {
		eventSeq = sql.NullInt64{Int64: int64(*log.EventSeq), Valid: true}
	}

	query := `
		INSERT INTO activity_logs (id, timestamp, activity_type, source, message, details, event_seq, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		log.ID,
		log.Timestamp,
		log.ActivityType,
		log.Source,
		log.Message,
		detailsJSON,
		eventSeq,
		log.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("failed to insert activity log: %w", err)
	}
	return nil
}

// List retrieves activity logs, newest first, with optional filtering.
func (r *ActivityLogRepository) List(ctx context.Context, limit int, activityType models.ActivityType, source string) ([]models.ActivityLog, error) {
	limit = clampLimit(limit)

	query := `
		SELECT id, timestamp, activity_type, COALESCE(source, ''), message, details, event_seq, duration_ms
		FROM activity_logs
		WHERE 1=1
	`
	args := []interface{}{}
	argPos := 1

	if activityType != "" {
		query += fmt.Sprintf(" AND activity_type = $%d", argPos)
		args = append(args, activityType)
		argPos++
	}

	if source != "" {
		query += fmt.Sprintf(" AND source = $%d", argPos)
		args = append(args, source)
		argPos++
	}

	query += " ORDER BY timestamp DESC"
	query += fmt.Sprintf(" LIMIT $%d", argPos)
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity logs: %w", err)
	}
	defer rows.Close()

	logs := []models.ActivityLog{}
	for rows.Next() {
		var (
			log         models.ActivityLog
			detailsJSON []byte
			eventSeq    sql.NullInt64
			durationMs  sql.NullInt64
		)

		err := rows.Scan(
			&log.ID,
			&log.Timestamp,
			&log.ActivityType,
			&log.Source,
			&log.Message,
			&detailsJSON,
			&eventSeq,
			&durationMs,
		)
		if err != nil {
			return nil, err
		}

		if len(detailsJSON) > 0 {
			if err := json.Unmarshal(detailsJSON, &log.Details); err != nil {
				return nil, fmt.Errorf("failed to unmarshal details: %w", err)
			}
		}
		if eventSeq.Valid {
			seq := uint64(eventSeq.Int64)
			log.EventSeq = &seq
		}
		if durationMs.Valid {
			ms := int(durationMs.Int64)
			log.DurationMs = &ms
		}

		logs = append(logs, log)
	}

	return logs, rows.Err()
}

// DeleteOlderThan deletes activity logs older than the specified duration.
func (r *ActivityLogRepository) DeleteOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	query := `DELETE FROM activity_logs WHERE timestamp < $1`
	cutoff := time.Now().Add(-age)

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// MemoryActivityLog keeps activity entries in process memory. It is used by
// the memory storage backend and in tests.
type MemoryActivityLog struct {
	mu   sync.RWMutex
	logs []models.ActivityLog
}

var _ models.ActivityLogRepository = (*MemoryActivityLog)(nil)

// NewMemoryActivityLog creates an empty in-memory activity log.
func NewMemoryActivityLog() *MemoryActivityLog {
	return &MemoryActivityLog{}
}

// Log stores a new activity log entry.
func (m *MemoryActivityLog) Log(_ context.Context, log models.ActivityLog) error {
	log = withDefaults(log)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, log)
	return nil
}

// List returns matching entries, newest first.
func (m *MemoryActivityLog) List(_ context.Context, limit int, activityType models.ActivityType, source string) ([]models.ActivityLog, error) {
	limit = clampLimit(limit)

	m.mu.RLock()
	matched := []models.ActivityLog{}
	for _, log := range m.logs {
		if activityType != "" && log.ActivityType != activityType {
			continue
		}
		if source != "" && log.Source != source {
			continue
		}
		matched = append(matched, log)
	}
	m.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// DeleteOlderThan drops entries older than age.
func (m *MemoryActivityLog) DeleteOlderThan(_ context.Context, age time.Duration) (int64, error) {
	cutoff := time.Now().Add(-age)

	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.logs[:0]
	var removed int64
	for _, log := range m.logs {
		if log.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, log)
	}
	m.logs = kept
	return removed, nil
}

func withDefaults(log models.ActivityLog) models.ActivityLog {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now().UTC()
	}
	return log
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultActivityLimit
	}
	if limit > maxActivityLimit {
		return maxActivityLimit
	}
	return limit
}
