package database

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/climateguardian/guardian/internal/access"
	"github.com/climateguardian/guardian/internal/ledger"
	"github.com/climateguardian/guardian/internal/models"
)

// openTestDB connects to TEST_DATABASE_URL, applies the migrations and
// empties the ledger tables. Tests are skipped without it.
func openTestDB(t *testing.T) *LedgerStore {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.URL = dbURL
	db, err := Connect(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := RunMigrations(ctx, db, migrationsDir(t), logger); err != nil {
		t.Fatalf("RunMigrations: %v", err)
	}
	if _, err := db.ExecContext(ctx, "TRUNCATE ledger_events, ledger_snapshots"); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return NewLedgerStore(db)
}

func migrationsDir(t *testing.T) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot locate test file")
	}
	return filepath.Join(filepath.Dir(file), "..", "..", "migrations")
}

func TestLedgerStoreRoundTrip(t *testing.T) {
	store := openTestDB(t)
	ctx := context.Background()

	admin := common.HexToAddress("0x000000000000000000000000000000000000a001")
	coordinator := common.HexToAddress("0x000000000000000000000000000000000000d001")
	params := ledger.DefaultParams()
	params.Admin = admin
	params.GenesisRoles = access.Matrix{}
	params.GenesisRoles.Grant(coordinator, access.EmergencyCoordinator)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	l, err := ledger.New(ctx, params, store, logger)
	if err != nil {
		t.Fatalf("ledger.New: %v", err)
	}
	if err := l.GrantRole(ctx, admin, coordinator, access.Government); err != nil {
		t.Fatalf("GrantRole: %v", err)
	}
	seq, head := l.Head()

	restored, err := ledger.New(ctx, params, store, logger)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if !restored.HasRole(coordinator, access.Government) {
		t.Fatal("expected restored ledger to keep granted role")
	}
	if gotSeq, gotHead := restored.Head(); gotSeq != seq || gotHead != head {
		t.Fatalf("expected head %d/%s, got %d/%s", seq, head.Hex(), gotSeq, gotHead.Hex())
	}

	events, err := store.Events(ctx, 0, 0)
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if uint64(len(events)) != seq {
		t.Fatalf("expected %d events, got %d", seq, len(events))
	}
	if err := ledger.VerifyChain(common.Hash{}, events); err != nil {
		t.Fatalf("stored chain does not verify: %v", err)
	}

	page, err := store.Events(ctx, 1, 1)
	if err != nil {
		t.Fatalf("Events page: %v", err)
	}
	if len(page) != 1 || page[0].Seq != 2 {
		t.Fatalf("expected single event with seq 2, got %+v", page)
	}
}

func TestLedgerStoreEmpty(t *testing.T) {
	store := openTestDB(t)

	snapshot, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if snapshot != nil {
		t.Fatalf("expected nil snapshot, got %s", snapshot)
	}
}

func TestPendingMigrations(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"002_b.sql", "001_a.sql", "003_c.sql", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o600); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	pending, err := PendingMigrations(dir, map[string]bool{"002_b.sql": true})
	if err != nil {
		t.Fatalf("PendingMigrations: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending migrations, got %v", pending)
	}
	if filepath.Base(pending[0]) != "001_a.sql" || filepath.Base(pending[1]) != "003_c.sql" {
		t.Fatalf("unexpected order %v", pending)
	}
}

func TestMemoryActivityLog(t *testing.T) {
	ctx := context.Background()
	log := NewMemoryActivityLog()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	entries := []struct {
		typ    string
		source string
		offset time.Duration
	}{
		{"advisory", "openai", 0},
		{"event_delivery", "redis", time.Minute},
		{"advisory", "template", 2 * time.Minute},
	}
	for _, e := range entries {
		err := log.Log(ctx, activity(e.typ, e.source, base.Add(e.offset)))
		if err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	all, err := log.List(ctx, 0, "", "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
	if all[0].Source != "template" {
		t.Fatalf("expected newest entry first, got %q", all[0].Source)
	}
	if all[0].ID == "" {
		t.Fatal("expected generated id")
	}

	advisories, err := log.List(ctx, 1, "advisory", "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(advisories) != 1 || advisories[0].Source != "template" {
		t.Fatalf("unexpected filtered result %+v", advisories)
	}

	bySource, err := log.List(ctx, 10, "", "redis")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(bySource) != 1 {
		t.Fatalf("expected 1 redis entry, got %d", len(bySource))
	}
}

func activity(typ, source string, at time.Time) models.ActivityLog {
	return models.ActivityLog{
		Timestamp:    at,
		ActivityType: models.ActivityType(typ),
		Source:       source,
		Message:      typ + " via " + source,
	}
}

func TestMemoryActivityLogDeleteOlderThan(t *testing.T) {
	ctx := context.Background()
	log := NewMemoryActivityLog()
	now := time.Now().UTC()

	for _, ts := range []time.Time{now.Add(-72 * time.Hour), now.Add(-50 * time.Hour), now.Add(-time.Hour)} {
		if err := log.Log(ctx, activity("advisory", "template", ts)); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	removed, err := log.DeleteOlderThan(ctx, 48*time.Hour)
	if err != nil {
		t.Fatalf("DeleteOlderThan: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	left, _ := log.List(ctx, 0, "", "")
	if len(left) != 1 {
		t.Fatalf("expected 1 entry left, got %d", len(left))
	}
}

func TestHealthCheckOnEmptyLedger(t *testing.T) {
	store := openTestDB(t)
	if err := HealthCheck(context.Background(), store.db); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}
