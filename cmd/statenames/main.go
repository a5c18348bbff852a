package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	corecfg "github.com/aevon-lab/statenames/internal/core/config"
	"github.com/aevon-lab/statenames/internal/core/storage"
	"github.com/aevon-lab/statenames/internal/core/storage/memory"
	"github.com/aevon-lab/statenames/internal/core/storage/postgres"
	"github.com/aevon-lab/statenames/internal/core/storage/redis"
	"github.com/aevon-lab/statenames/internal/logging"
	"github.com/aevon-lab/statenames/internal/lookup"
	"github.com/aevon-lab/statenames/internal/metrics"
	"github.com/aevon-lab/statenames/internal/migrations"
	"github.com/aevon-lab/statenames/internal/server"
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

	// 2. Initialize Storage
	var repo storage.Repository
	var health server.HealthChecker

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
		repo, health = dbAdapter, dbAdapter

	case "redis":
		redisAdapter, err := redis.NewAdapter(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.KeyPrefix)
		if err != nil {
			slog.Error("Failed to initialize redis", "error", err)
			os.Exit(1)
		}
		defer redisAdapter.Close()
		repo, health = redisAdapter, redisAdapter

	case "memory":
		mem := memory.NewRepository()
		repo, health = mem, mem
		slog.Warn("Using in-memory storage, records do not survive restarts")

	default:
		slog.Error("Unsupported storage backend", "backend", cfg.Storage.Backend)
		os.Exit(1)
	}

	// 3. Initialize Metrics
	m := metrics.New()

	// 4. Initialize Lookup Service
	lookupSvc := lookup.NewService(repo, cfg.Bucketing.StateBuckets, cfg.Bucketing.OtherBuckets, m)

	// 5. Initialize Server
	srv := server.New(
		fmtAddr(cfg.Server.Host, cfg.Server.Port),
		cfg.Server.Mode,
		cfg.Server.AllowedOrigins,
		lookupSvc,
		m,
		health,
	)

	// 6. Start Services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Signal handler triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	slog.Info("Shutdown complete")
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
