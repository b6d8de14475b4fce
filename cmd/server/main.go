package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"

	"github.com/climateguardian/guardian/internal/access"
	"github.com/climateguardian/guardian/internal/advisory"
	"github.com/climateguardian/guardian/internal/api"
	"github.com/climateguardian/guardian/internal/auth"
	"github.com/climateguardian/guardian/internal/cloudsql"
	"github.com/climateguardian/guardian/internal/config"
	"github.com/climateguardian/guardian/internal/database"
	"github.com/climateguardian/guardian/internal/ledger"
	"github.com/climateguardian/guardian/internal/logging"
	"github.com/climateguardian/guardian/internal/metrics"
	"github.com/climateguardian/guardian/internal/models"
	"github.com/climateguardian/guardian/internal/notify"
	"github.com/climateguardian/guardian/internal/scheduler"
	"github.com/climateguardian/guardian/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting guardian", "storage", cfg.Storage.Backend)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage
	var (
		db       *sql.DB
		store    ledger.Store
		activity models.ActivityLogRepository
		pruner   scheduler.Pruner
		health   func(context.Context) error
	)
	switch cfg.Storage.Backend {
	case "postgres":
		db, err = openDatabase(ctx, cfg, logger)
		if err != nil {
			logger.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		store = database.NewLedgerStore(db)
		activityRepo := database.NewActivityLogRepository(db)
		activity, pruner = activityRepo, activityRepo
		health = func(ctx context.Context) error { return database.HealthCheck(ctx, db) }
	default:
		logger.Warn("using in-memory storage, state is lost on restart")
		store = ledger.NewMemoryStore()
		memoryLog := database.NewMemoryActivityLog()
		activity, pruner = memoryLog, memoryLog
	}

	// Metrics
	collector, err := metrics.NewHTTPCollector()
	if err != nil {
		logger.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}
	if db != nil {
		if err := collector.WatchDB(db); err != nil {
			logger.Error("failed to register database metrics", "error", err)
			os.Exit(1)
		}
	}
	ledgerMetrics, err := metrics.NewLedgerCollector(collector.Registerer())
	if err != nil {
		logger.Error("failed to init ledger metrics", "error", err)
		os.Exit(1)
	}

	// Event delivery
	bus := notify.NewBus(logger,
		notify.WithSink(notify.NewLogSink(logger)),
		notify.WithObserver(ledgerMetrics),
		notify.WithActivityLog(activity),
	)
	if cfg.Redis.URL != "" {
		client, err := notify.DialRedis(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		bus.AddSink(notify.NewRedisSink(client, cfg.Redis.Channel))
		logger.Info("publishing events to redis", "channel", cfg.Redis.Channel)
	}

	// Ledger
	params, err := ledgerParams(cfg)
	if err != nil {
		logger.Error("invalid ledger provisioning", "error", err)
		os.Exit(1)
	}
	l, err := ledger.New(ctx, params, store, logger,
		ledger.WithPublisher(bus),
		ledger.WithRecorder(ledgerMetrics),
	)
	if err != nil {
		logger.Error("failed to initialise ledger", "error", err)
		os.Exit(1)
	}
	if err := metrics.WatchState(collector.Registerer(), l); err != nil {
		logger.Error("failed to register ledger gauges", "error", err)
		os.Exit(1)
	}

	bus.AddSink(advisory.NewSink(l, newDrafter(cfg, logger), activity, logger))
	bus.Start(ctx)

	// Auth
	authConfig := auth.LoadConfigFromEnv()
	if authConfig.AdminAddress == (common.Address{}) {
		authConfig.AdminAddress = cfg.Provisioning.AdminAddress
	}
	logger.Info("auth configured",
		"jwt_secret_set", authConfig.JWTSecret != "change-this-secret",
		"password_login", authConfig.AdminAddress != (common.Address{}),
	)

	if cfg.Storage.ActivityRetention > 0 {
		retention := scheduler.NewRetentionScheduler(pruner, cfg.Storage.ActivityRetention, cfg.Storage.RetentionInterval, logger)
		go retention.Start(ctx)
		defer retention.Stop()
	}

	// Routes
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", collector.Handler())
	api.SetupRoutes(mux, api.Dependencies{
		Ledger:     l,
		Activity:   activity,
		Auth:       authConfig,
		Challenges: auth.NewChallengeStore(authConfig.ChallengeTTL),
		Health:     health,
		Logger:     logger,
	})

	srv := server.New(cfg.Server, logger, collector.InstrumentHandler(mux))

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	head, hash := l.Head()
	logger.Info("guardian started",
		"url", fmt.Sprintf("http://localhost:%s", cfg.Server.Port),
		"event_seq", head,
		"head_hash", hash.Hex(),
	)

	waitForSignal(logger)

	logger.Info("shutting down")
	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	bus.Close()
	logger.Info("shutdown complete")
}

func openDatabase(ctx context.Context, cfg config.Config, logger *slog.Logger) (*sql.DB, error) {
	dbConfig, err := database.ConfigFromEnv()
	if err != nil {
		return nil, err
	}

	// Log connection config (without sensitive data)
	logger.Info("database configuration", "config", cloudsql.GetConnectionInfo())

	db, err := database.Connect(ctx, dbConfig)
	if err != nil {
		return nil, err
	}
	logger.Info("database connected")

	if err := database.RunMigrations(ctx, db, cfg.Storage.MigrationsDir, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

func ledgerParams(cfg config.Config) (ledger.Params, error) {
	params := ledger.DefaultParams()
	params.MinValidationStake = cfg.Ledger.MinValidationStake
	params.MinValidationsRequired = cfg.Ledger.MinValidationsRequired
	params.CriticalAlertThreshold = models.Severity(cfg.Ledger.CriticalAlertThreshold)
	params.ReputationThreshold = int64(cfg.Ledger.ReputationThreshold)
	params.DefaultAlertTTL = cfg.Ledger.DefaultAlertTTL
	params.Admin = cfg.Provisioning.AdminAddress

	if cfg.Provisioning.GenesisRoles != "" {
		grants, err := access.ParseGrants(cfg.Provisioning.GenesisRoles)
		if err != nil {
			return params, fmt.Errorf("GENESIS_ROLES: %w", err)
		}
		params.GenesisRoles = grants
	}
	return params, nil
}

func newDrafter(cfg config.Config, logger *slog.Logger) advisory.Drafter {
	if cfg.OpenAI.APIKey == "" {
		logger.Info("OPENAI_API_KEY not set, advisories use the template drafter")
		return advisory.TemplateDrafter{}
	}
	drafter, err := advisory.NewOpenAIDrafter(advisory.OpenAIConfig{
		APIKey:  cfg.OpenAI.APIKey,
		Model:   cfg.OpenAI.Model,
		Timeout: cfg.OpenAI.Timeout,
	})
	if err != nil {
		logger.Warn("failed to initialise OpenAI drafter, using template", "error", err)
		return advisory.TemplateDrafter{}
	}
	logger.Info("advisories drafted with OpenAI", "model", cfg.OpenAI.Model)
	return drafter
}

func waitForSignal(logger *slog.Logger) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	sig := <-c
	logger.Info("received signal", "signal", sig.String())
	signal.Stop(c)
	close(c)
}
