package config

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func TestLoadDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Server.Port != defaultPort {
		t.Errorf("expected default port %q, got %q", defaultPort, cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != defaultReadTimeout {
		t.Errorf("expected default read timeout %v, got %v", defaultReadTimeout, cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout != defaultWriteTimeout {
		t.Errorf("expected default write timeout %v, got %v", defaultWriteTimeout, cfg.Server.WriteTimeout)
	}
	if cfg.Server.ShutdownTimeout != defaultShutdownTimeout {
		t.Errorf("expected default shutdown timeout %v, got %v", defaultShutdownTimeout, cfg.Server.ShutdownTimeout)
	}
	if cfg.Logging.Level != slog.LevelInfo {
		t.Errorf("expected default log level %v, got %v", slog.LevelInfo, cfg.Logging.Level)
	}
	if cfg.Logging.Format != defaultLogFormat {
		t.Errorf("expected default log format %q, got %q", defaultLogFormat, cfg.Logging.Format)
	}
	if cfg.Storage.Backend != defaultStorageBackend {
		t.Errorf("expected default storage backend %q, got %q", defaultStorageBackend, cfg.Storage.Backend)
	}
	if cfg.Ledger.MinValidationStake.String() != defaultMinValidationStakeWei {
		t.Errorf("expected default minimum stake %s, got %s", defaultMinValidationStakeWei, cfg.Ledger.MinValidationStake)
	}
	if cfg.Ledger.MinValidationsRequired != 3 {
		t.Errorf("expected quorum 3, got %d", cfg.Ledger.MinValidationsRequired)
	}
	if cfg.Ledger.CriticalAlertThreshold != 4 {
		t.Errorf("expected critical threshold 4, got %d", cfg.Ledger.CriticalAlertThreshold)
	}
	if cfg.Ledger.ReputationThreshold != 80 {
		t.Errorf("expected reputation threshold 80, got %d", cfg.Ledger.ReputationThreshold)
	}
	if cfg.Ledger.DefaultAlertTTL != 24*time.Hour {
		t.Errorf("expected alert ttl 24h, got %v", cfg.Ledger.DefaultAlertTTL)
	}
	if cfg.Redis.URL != "" || cfg.Redis.Channel != defaultRedisChannel {
		t.Errorf("unexpected redis defaults %+v", cfg.Redis)
	}
	if cfg.OpenAI.Model != defaultOpenAIModel {
		t.Errorf("expected default model %q, got %q", defaultOpenAIModel, cfg.OpenAI.Model)
	}
}

func TestLoadLedgerOverrides(t *testing.T) {
	clearConfigEnv(t)

	overrides := map[string]string{
		"STORAGE_BACKEND":          "memory",
		"MIN_VALIDATION_STAKE_WEI": "50000000000000000",
		"MIN_VALIDATIONS_REQUIRED": "5",
		"CRITICAL_ALERT_THRESHOLD": "3",
		"REPUTATION_THRESHOLD":     "90",
		"DEFAULT_ALERT_TTL_HOURS":  "48",
		"ADMIN_ADDRESS":            "0x00000000000000000000000000000000000000aa",
		"GENESIS_ROLES":            "0x00000000000000000000000000000000000000bb:VALIDATOR",
		"REDIS_URL":                "redis://localhost:6379/0",
		"REDIS_CHANNEL":            "alerts",
		"ACTIVITY_RETENTION_DAYS":  "7",
	}
	for key, value := range overrides {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Storage.Backend != "memory" {
		t.Errorf("expected memory backend, got %q", cfg.Storage.Backend)
	}
	if cfg.Storage.ActivityRetention != 7*24*time.Hour {
		t.Errorf("expected 7 day retention, got %v", cfg.Storage.ActivityRetention)
	}
	if cfg.Ledger.MinValidationStake.String() != "50000000000000000" {
		t.Errorf("unexpected minimum stake %s", cfg.Ledger.MinValidationStake)
	}
	if cfg.Ledger.MinValidationsRequired != 5 {
		t.Errorf("expected quorum 5, got %d", cfg.Ledger.MinValidationsRequired)
	}
	if cfg.Ledger.CriticalAlertThreshold != 3 {
		t.Errorf("expected critical threshold 3, got %d", cfg.Ledger.CriticalAlertThreshold)
	}
	if cfg.Ledger.ReputationThreshold != 90 {
		t.Errorf("expected reputation threshold 90, got %d", cfg.Ledger.ReputationThreshold)
	}
	if cfg.Ledger.DefaultAlertTTL != 48*time.Hour {
		t.Errorf("expected alert ttl 48h, got %v", cfg.Ledger.DefaultAlertTTL)
	}
	if cfg.Provisioning.AdminAddress != common.HexToAddress(overrides["ADMIN_ADDRESS"]) {
		t.Errorf("unexpected admin address %s", cfg.Provisioning.AdminAddress.Hex())
	}
	if cfg.Provisioning.GenesisRoles != overrides["GENESIS_ROLES"] {
		t.Errorf("unexpected genesis roles %q", cfg.Provisioning.GenesisRoles)
	}
	if cfg.Redis.URL != overrides["REDIS_URL"] || cfg.Redis.Channel != "alerts" {
		t.Errorf("unexpected redis config %+v", cfg.Redis)
	}
}

func TestLoadWithOverrides(t *testing.T) {
	clearConfigEnv(t)

	overrides := map[string]string{
		"SERVER_PORT":                     "9090",
		"SERVER_READ_TIMEOUT_SECONDS":     "30",
		"SERVER_WRITE_TIMEOUT_SECONDS":    "45",
		"SERVER_SHUTDOWN_TIMEOUT_SECONDS": "15",
		"LOG_LEVEL":                       "debug",
		"LOG_FORMAT":                      "text",
	}
	for key, value := range overrides {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Server.Port != overrides["SERVER_PORT"] {
		t.Errorf("expected overridden port %q, got %q", overrides["SERVER_PORT"], cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("expected read timeout %v, got %v", 30*time.Second, cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout != 45*time.Second {
		t.Errorf("expected write timeout %v, got %v", 45*time.Second, cfg.Server.WriteTimeout)
	}
	if cfg.Server.ShutdownTimeout != 15*time.Second {
		t.Errorf("expected shutdown timeout %v, got %v", 15*time.Second, cfg.Server.ShutdownTimeout)
	}
	if cfg.Logging.Level != slog.LevelDebug {
		t.Errorf("expected log level %v, got %v", slog.LevelDebug, cfg.Logging.Level)
	}
	if cfg.Logging.Format != overrides["LOG_FORMAT"] {
		t.Errorf("expected log format %q, got %q", overrides["LOG_FORMAT"], cfg.Logging.Format)
	}
}

func TestLoadPartialOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("SERVER_READ_TIMEOUT_SECONDS", "5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("expected overridden read timeout %v, got %v", 5*time.Second, cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout != defaultWriteTimeout {
		t.Errorf("expected default write timeout %v, got %v", defaultWriteTimeout, cfg.Server.WriteTimeout)
	}
}

func TestLoadWithInvalidValues(t *testing.T) {
	tests := map[string]string{
		"SERVER_READ_TIMEOUT_SECONDS":     "-1",
		"SERVER_WRITE_TIMEOUT_SECONDS":    "abc",
		"SERVER_SHUTDOWN_TIMEOUT_SECONDS": "3.5",
		"LOG_LEVEL":                       "verbose",
		"LOG_FORMAT":                      "xml",
		"STORAGE_BACKEND":                 "sqlite",
		"MIN_VALIDATION_STAKE_WEI":        "0",
		"MIN_VALIDATIONS_REQUIRED":        "0",
		"CRITICAL_ALERT_THRESHOLD":        "6",
		"REPUTATION_THRESHOLD":            "101",
		"DEFAULT_ALERT_TTL_HOURS":         "soon",
		"ADMIN_ADDRESS":                   "admin",
		"OPENAI_TIMEOUT_SECONDS":          "-5",
	}

	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			clearConfigEnv(t)
			t.Setenv(key, value)

			if _, err := Load(); err == nil {
				t.Fatalf("expected error when %s=%q", key, value)
			}
		})
	}
}

func TestParseLogLevelAliases(t *testing.T) {
	tests := map[string]slog.Level{
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
	}

	for input, expected := range tests {
		level, err := parseLogLevel(input)
		if err != nil {
			t.Fatalf("parseLogLevel(%q) returned error: %v", input, err)
		}

		if level != expected {
			t.Errorf("parseLogLevel(%q) = %v, want %v", input, level, expected)
		}
	}
}

func TestParseSecondsRejectsInvalidInput(t *testing.T) {
	cases := []string{"-1", "abc"}

	for _, input := range cases {
		if _, err := parseSeconds(input); err == nil {
			t.Fatalf("expected error for input %q", input)
		}
	}
}

func TestLoadDoesNotPersistEnvBetweenRuns(t *testing.T) {
	clearConfigEnv(t)

	t.Setenv("SERVER_READ_TIMEOUT_SECONDS", "5")
	if _, err := Load(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := os.Unsetenv("SERVER_READ_TIMEOUT_SECONDS"); err != nil {
		t.Fatalf("failed to unset env: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Server.ReadTimeout != defaultReadTimeout {
		t.Errorf("expected default read timeout after reset, got %v", cfg.Server.ReadTimeout)
	}
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"PORT",
		"SERVER_PORT",
		"SERVER_READ_TIMEOUT_SECONDS",
		"SERVER_WRITE_TIMEOUT_SECONDS",
		"SERVER_SHUTDOWN_TIMEOUT_SECONDS",
		"LOG_LEVEL",
		"LOG_FORMAT",
		"STORAGE_BACKEND",
		"MIGRATIONS_DIR",
		"ACTIVITY_RETENTION_DAYS",
		"MIN_VALIDATION_STAKE_WEI",
		"MIN_VALIDATIONS_REQUIRED",
		"CRITICAL_ALERT_THRESHOLD",
		"REPUTATION_THRESHOLD",
		"DEFAULT_ALERT_TTL_HOURS",
		"ADMIN_ADDRESS",
		"GENESIS_ROLES",
		"REDIS_URL",
		"REDIS_CHANNEL",
		"OPENAI_API_KEY",
		"OPENAI_MODEL",
		"OPENAI_TIMEOUT_SECONDS",
	}

	for _, key := range keys {
		t.Setenv(key, "")
	}
}
