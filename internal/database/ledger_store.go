package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/climateguardian/guardian/internal/ledger"
	"github.com/climateguardian/guardian/internal/models"
)

// LedgerStore persists ledger snapshots and the event log in PostgreSQL.
// Each Commit writes the events and the new snapshot in one transaction.
type LedgerStore struct {
	db *sql.DB
}

var _ ledger.Store = (*LedgerStore)(nil)

// NewLedgerStore creates a PostgreSQL backed ledger store.
func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// Load returns the latest committed snapshot, or nil for an empty ledger.
func (s *LedgerStore) Load(ctx context.Context) ([]byte, error) {
	var state []byte
	err := s.db.QueryRowContext(ctx, `SELECT state FROM ledger_snapshots WHERE id = 1`).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger snapshot: %w", err)
	}
	return state, nil
}

// Commit appends events and replaces the snapshot atomically.
func (s *LedgerStore) Commit(ctx context.Context, snapshot []byte, events []models.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin ledger commit: %w", err)
	}
	defer tx.Rollback()

	insert := `
		INSERT INTO ledger_events (seq, id, type, actor, occurred_at, occurred_unix_nano, payload, prev_hash, hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	var lastSeq uint64
	for _, e := range events {
		_, err := tx.ExecContext(ctx, insert,
			int64(e.Seq),
			e.ID,
			string(e.Type),
			e.Actor.Hex(),
			e.OccurredAt,
			e.OccurredAt.UnixNano(),
			string(e.Payload),
			e.PrevHash.Hex(),
			e.Hash.Hex(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert event %d: %w", e.Seq, err)
		}
		lastSeq = e.Seq
	}

	upsert := `
		INSERT INTO ledger_snapshots (id, state, event_seq, updated_at)
		VALUES (1, $1, $2, NOW())
		ON CONFLICT (id) DO UPDATE
		SET state = EXCLUDED.state, event_seq = GREATEST(ledger_snapshots.event_seq, EXCLUDED.event_seq), updated_at = NOW()
	`
	if _, err := tx.ExecContext(ctx, upsert, string(snapshot), int64(lastSeq)); err != nil {
		return fmt.Errorf("failed to write ledger snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit ledger transaction: %w", err)
	}
	return nil
}

// Events returns up to limit events with seq greater than afterSeq. A
// non-positive limit returns every remaining event.
func (s *LedgerStore) Events(ctx context.Context, afterSeq uint64, limit int) ([]models.Event, error) {
	query := `
		SELECT seq, id, type, actor, occurred_unix_nano, payload, prev_hash, hash
		FROM ledger_events
		WHERE seq > $1
		ORDER BY seq ASC
	`
	args := []interface{}{int64(afterSeq)}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger events: %w", err)
	}
	defer rows.Close()

	events := []models.Event{}
	for rows.Next() {
		var (
			e              models.Event
			seq, nanos     int64
			typ, actor     string
			payload        []byte
			prevHash, hash string
		)
		if err := rows.Scan(&seq, &e.ID, &typ, &actor, &nanos, &payload, &prevHash, &hash); err != nil {
			return nil, fmt.Errorf("failed to scan ledger event: %w", err)
		}
		e.Seq = uint64(seq)
		e.Type = models.EventType(typ)
		e.Actor = common.HexToAddress(actor)
		e.OccurredAt = time.Unix(0, nanos).UTC()
		e.Payload = json.RawMessage(payload)
		e.PrevHash = common.HexToHash(prevHash)
		e.Hash = common.HexToHash(hash)
		events = append(events, e)
	}

	return events, rows.Err()
}
