package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	corecfg "github.com/aevon-lab/statenames/internal/core/config"
	"github.com/aevon-lab/statenames/internal/core/storage"
	"github.com/aevon-lab/statenames/internal/core/storage/memory"
	"github.com/aevon-lab/statenames/internal/core/storage/postgres"
	"github.com/aevon-lab/statenames/internal/core/storage/redis"
	"github.com/aevon-lab/statenames/internal/loader"
	"github.com/aevon-lab/statenames/internal/logging"
	"github.com/aevon-lab/statenames/internal/metrics"
	"github.com/aevon-lab/statenames/internal/migrations"
)

func main() {
	configPath := flag.String("config", "statenames.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("Loaded config", "config", cfg)

	stateDelay := time.Duration(0)
	if cfg.Loader.StateDelay != "" {
		stateDelay, err = time.ParseDuration(cfg.Loader.StateDelay)
		if err != nil {
			slog.Error("Invalid state delay", "value", cfg.Loader.StateDelay, "error", err)
			os.Exit(1)
		}
	}

	// 2. Initialize Storage
	var repo storage.Repository

	switch cfg.Storage.Backend {
	case "postgres":
		dbAdapter, err := postgres.NewAdapter(
			cfg.Database.DSN,
			cfg.Database.MaxOpenConns,
			cfg.Database.MaxIdleConns,
		)
		if err != nil {
			slog.Error("Failed to initialize database", "error", err)
			os.Exit(1)
		}
		defer dbAdapter.Close()

		// 2.1. Run Database Migrations
		if err := migrations.RunMigrations(dbAdapter.DB(), cfg.Database.AutoMigrate); err != nil {
			slog.Error("Failed to run database migrations", "error", err)
			os.Exit(1)
		}
		repo = dbAdapter

	case "redis":
		redisAdapter, err := redis.NewAdapter(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.KeyPrefix)
		if err != nil {
			slog.Error("Failed to initialize redis", "error", err)
			os.Exit(1)
		}
		defer redisAdapter.Close()
		repo = redisAdapter

	case "memory":
		repo = memory.NewRepository()
		slog.Warn("Using in-memory storage, published records vanish when the loader exits")

	default:
		slog.Error("Unsupported storage backend", "backend", cfg.Storage.Backend)
		os.Exit(1)
	}

	// 3. Initialize Loader
	m := metrics.New()
	loaderSvc := loader.NewService(repo, loader.Options{
		StateGlob:      cfg.Loader.StateGlob,
		OtherNamesPath: cfg.Loader.OtherNamesPath,
		YearFrom:       cfg.Bucketing.YearFrom,
		YearTo:         cfg.Bucketing.YearTo,
		MaxBucketBytes: cfg.Bucketing.MaxBucketBytes,
		StateBuckets:   cfg.Bucketing.StateBuckets,
		OtherBuckets:   cfg.Bucketing.OtherBuckets,
		StateDelay:     stateDelay,
		TopNames:       cfg.Loader.TopNames,
	}, m)

	// 4. Run Batch
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Signal handler stops the run between states.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, stopping batch run...")
		cancel()
	}()

	summary, err := loaderSvc.Run(ctx)
	if err != nil {
		slog.Error("Batch run failed", "error", err)
		os.Exit(1)
	}
	if summary.StatesFailed > 0 {
		slog.Warn("Batch run finished with failures",
			"run_id", summary.RunID,
			"states_published", summary.StatesPublished,
			"states_failed", summary.StatesFailed,
		)
		os.Exit(1)
	}
}
