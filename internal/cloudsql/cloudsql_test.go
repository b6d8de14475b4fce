package cloudsql

import (
	"strings"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"DATABASE_URL", "INSTANCE_CONNECTION_NAME", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE"} {
		t.Setenv(key, "")
	}
}

func TestBuildDatabaseURLPrefersDirectURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://guardian:pw@localhost:5432/guardian")
	t.Setenv("INSTANCE_CONNECTION_NAME", "proj:region:inst")

	got, err := BuildDatabaseURL()
	if err != nil {
		t.Fatalf("BuildDatabaseURL: %v", err)
	}
	if got != "postgres://guardian:pw@localhost:5432/guardian" {
		t.Fatalf("unexpected url %q", got)
	}
}

func TestBuildDatabaseURLCloudSQL(t *testing.T) {
	clearEnv(t)
	t.Setenv("INSTANCE_CONNECTION_NAME", "proj:region:inst")
	t.Setenv("DB_USER", "guardian")
	t.Setenv("DB_NAME", "ledger")

	got, err := BuildDatabaseURL()
	if err != nil {
		t.Fatalf("BuildDatabaseURL: %v", err)
	}
	want := "host=/cloudsql/proj:region:inst user=guardian dbname=ledger sslmode=disable"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}

	t.Setenv("DB_PASSWORD", "pw")
	got, err = BuildDatabaseURL()
	if err != nil {
		t.Fatalf("BuildDatabaseURL: %v", err)
	}
	if !strings.Contains(got, "password=pw") {
		t.Fatalf("expected password in dsn, got %q", got)
	}
}

func TestBuildDatabaseURLErrors(t *testing.T) {
	clearEnv(t)
	if _, err := BuildDatabaseURL(); err == nil {
		t.Fatal("expected error without any configuration")
	}

	t.Setenv("INSTANCE_CONNECTION_NAME", "proj:region:inst")
	if _, err := BuildDatabaseURL(); err == nil {
		t.Fatal("expected error without DB_USER and DB_NAME")
	}
}

func TestGetConnectionInfoRedactsPassword(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://guardian:topsecret@db:5432/guardian?sslmode=disable")

	info := GetConnectionInfo()
	if info.Type != "direct" {
		t.Fatalf("expected direct connection, got %q", info.Type)
	}
	if strings.Contains(info.URL, "topsecret") {
		t.Fatalf("password leaked in %q", info.URL)
	}
	if !strings.Contains(info.URL, "guardian:xxxxx@db:5432") {
		t.Fatalf("unexpected redacted url %q", info.URL)
	}
}

func TestGetConnectionInfoNone(t *testing.T) {
	clearEnv(t)
	if got := GetConnectionInfo().Type; got != "none" {
		t.Fatalf("expected none, got %q", got)
	}
}
