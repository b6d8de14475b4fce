package config

import (
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config represents runtime configuration derived from environment variables.
type Config struct {
	Server       ServerConfig
	Logging      LoggingConfig
	Storage      StorageConfig
	Ledger       LedgerConfig
	Provisioning ProvisioningConfig
	Redis        RedisConfig
	OpenAI       OpenAIConfig
}

// ServerConfig holds HTTP server runtime parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// LoggingConfig represents structured logging configuration.
type LoggingConfig struct {
	Level  slog.Level
	Format string
}

// StorageConfig selects where ledger snapshots and events are kept.
// Connection details for postgres come from cloudsql.BuildDatabaseURL.
type StorageConfig struct {
	Backend       string // "postgres" or "memory"
	MigrationsDir string
	// ActivityRetention bounds how long activity log entries are kept.
	// Zero disables pruning.
	ActivityRetention time.Duration
	RetentionInterval time.Duration
}

// LedgerConfig holds the constants the ledger is provisioned with.
type LedgerConfig struct {
	MinValidationStake     *big.Int
	MinValidationsRequired int
	CriticalAlertThreshold int
	ReputationThreshold    int
	DefaultAlertTTL        time.Duration
}

// ProvisioningConfig assigns the initial roles of a fresh ledger.
type ProvisioningConfig struct {
	AdminAddress common.Address
	// GenesisRoles uses the form "0xADDR:ROLE,ROLE;0xADDR:ROLE".
	GenesisRoles string
}

// RedisConfig configures the event sink. An empty URL disables it.
type RedisConfig struct {
	URL     string
	Channel string
}

// OpenAIConfig configures the advisory drafter. An empty key selects the
// template drafter.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

const (
	defaultPort            = "8080"
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second

	defaultLogFormat = "json"

	defaultStorageBackend = "postgres"
	defaultMigrationsDir  = "./migrations"

	defaultActivityRetention = 30 * 24 * time.Hour
	defaultRetentionInterval = time.Hour

	defaultMinValidationStakeWei  = "10000000000000000" // 0.01 ether
	defaultMinValidationsRequired = 3
	defaultCriticalAlertThreshold = 4
	defaultReputationThreshold    = 80
	defaultAlertTTL               = 24 * time.Hour

	defaultRedisChannel  = "guardian:events"
	defaultOpenAIModel   = "gpt-4o-mini"
	defaultOpenAITimeout = 30 * time.Second
)

// Load reads configuration from environment variables, applying defaults when
// values are not provided or invalid.
func Load() (Config, error) {
	// Cloud Run sets PORT, but allow SERVER_PORT override for local dev
	port := getEnv("PORT", "")
	if port == "" {
		port = getEnv("SERVER_PORT", defaultPort)
	}

	minStake, _ := new(big.Int).SetString(defaultMinValidationStakeWei, 10)
	cfg := Config{
		Server: ServerConfig{
			Port:            port,
			ReadTimeout:     defaultReadTimeout,
			WriteTimeout:    defaultWriteTimeout,
			ShutdownTimeout: defaultShutdownTimeout,
		},
		Logging: LoggingConfig{
			Level:  slog.LevelInfo,
			Format: defaultLogFormat,
		},
		Storage: StorageConfig{
			Backend:           defaultStorageBackend,
			MigrationsDir:     getEnv("MIGRATIONS_DIR", defaultMigrationsDir),
			ActivityRetention: defaultActivityRetention,
			RetentionInterval: defaultRetentionInterval,
		},
		Ledger: LedgerConfig{
			MinValidationStake:     minStake,
			MinValidationsRequired: defaultMinValidationsRequired,
			CriticalAlertThreshold: defaultCriticalAlertThreshold,
			ReputationThreshold:    defaultReputationThreshold,
			DefaultAlertTTL:        defaultAlertTTL,
		},
		Provisioning: ProvisioningConfig{
			GenesisRoles: os.Getenv("GENESIS_ROLES"),
		},
		Redis: RedisConfig{
			URL:     os.Getenv("REDIS_URL"),
			Channel: getEnv("REDIS_CHANNEL", defaultRedisChannel),
		},
		OpenAI: OpenAIConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			Model:   getEnv("OPENAI_MODEL", defaultOpenAIModel),
			Timeout: defaultOpenAITimeout,
		},
	}

	if v := os.Getenv("SERVER_READ_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_READ_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ReadTimeout = d
	}

	if v := os.Getenv("SERVER_WRITE_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_WRITE_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.WriteTimeout = d
	}

	if v := os.Getenv("SERVER_SHUTDOWN_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SERVER_SHUTDOWN_TIMEOUT_SECONDS: %w", err)
		}
		cfg.Server.ShutdownTimeout = d
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		level, err := parseLogLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.Logging.Level = level
	}

	if v := os.Getenv("LOG_FORMAT"); v != "" {
		switch v {
		case "json", "text":
			cfg.Logging.Format = v
		default:
			return Config{}, fmt.Errorf("invalid LOG_FORMAT: must be 'json' or 'text'")
		}
	}

	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		switch v {
		case "postgres", "memory":
			cfg.Storage.Backend = v
		default:
			return Config{}, fmt.Errorf("invalid STORAGE_BACKEND: must be 'postgres' or 'memory'")
		}
	}

	if v := os.Getenv("ACTIVITY_RETENTION_DAYS"); v != "" {
		n, err := parseBounded(v, 0, 3650)
		if err != nil {
			return Config{}, fmt.Errorf("invalid ACTIVITY_RETENTION_DAYS: %w", err)
		}
		cfg.Storage.ActivityRetention = time.Duration(n) * 24 * time.Hour
	}

	if v := os.Getenv("MIN_VALIDATION_STAKE_WEI"); v != "" {
		stake, ok := new(big.Int).SetString(v, 10)
		if !ok || stake.Sign() <= 0 {
			return Config{}, fmt.Errorf("invalid MIN_VALIDATION_STAKE_WEI: must be a positive integer")
		}
		cfg.Ledger.MinValidationStake = stake
	}

	if v := os.Getenv("MIN_VALIDATIONS_REQUIRED"); v != "" {
		n, err := parseBounded(v, 1, 100)
		if err != nil {
			return Config{}, fmt.Errorf("invalid MIN_VALIDATIONS_REQUIRED: %w", err)
		}
		cfg.Ledger.MinValidationsRequired = n
	}

	if v := os.Getenv("CRITICAL_ALERT_THRESHOLD"); v != "" {
		n, err := parseBounded(v, 1, 5)
		if err != nil {
			return Config{}, fmt.Errorf("invalid CRITICAL_ALERT_THRESHOLD: %w", err)
		}
		cfg.Ledger.CriticalAlertThreshold = n
	}

	if v := os.Getenv("REPUTATION_THRESHOLD"); v != "" {
		n, err := parseBounded(v, 0, 100)
		if err != nil {
			return Config{}, fmt.Errorf("invalid REPUTATION_THRESHOLD: %w", err)
		}
		cfg.Ledger.ReputationThreshold = n
	}

	if v := os.Getenv("DEFAULT_ALERT_TTL_HOURS"); v != "" {
		n, err := parseBounded(v, 1, 24*365)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DEFAULT_ALERT_TTL_HOURS: %w", err)
		}
		cfg.Ledger.DefaultAlertTTL = time.Duration(n) * time.Hour
	}

	if v := os.Getenv("ADMIN_ADDRESS"); v != "" {
		if !common.IsHexAddress(v) {
			return Config{}, fmt.Errorf("invalid ADMIN_ADDRESS: must be a hex address")
		}
		cfg.Provisioning.AdminAddress = common.HexToAddress(v)
	}

	if v := os.Getenv("OPENAI_TIMEOUT_SECONDS"); v != "" {
		d, err := parseSeconds(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid OPENAI_TIMEOUT_SECONDS: %w", err)
		}
		cfg.OpenAI.Timeout = d
	}

	return cfg, nil
}

func parseSeconds(raw string) (time.Duration, error) {
	seconds, err := strconv.Atoi(raw)
	if err != nil || seconds < 0 {
		return 0, fmt.Errorf("must be a non-negative integer")
	}
	return time.Duration(seconds) * time.Second, nil
}

func parseBounded(raw string, min, max int) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < min || n > max {
		return 0, fmt.Errorf("must be an integer between %d and %d", min, max)
	}
	return n, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch raw {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("must be one of debug, info, warn, error")
	}
}
