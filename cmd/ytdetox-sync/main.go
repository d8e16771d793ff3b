package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/emiliopalmerini/ytdetox/internal/adapters/turso"
	"github.com/emiliopalmerini/ytdetox/internal/database"
	"github.com/emiliopalmerini/ytdetox/internal/infrastructure/config"
	"github.com/emiliopalmerini/ytdetox/internal/logger"
	"github.com/emiliopalmerini/ytdetox/internal/migrate"
	"github.com/emiliopalmerini/ytdetox/internal/syncserver"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	config.LoadDotEnv()
	cfg, err := config.LoadServer()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, closeLog, err := logger.New(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DatabaseURL, database.Options{AuthToken: cfg.AuthToken, Ping: true})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := migrate.RunAll(ctx, db.DB); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	repos := turso.NewRepositories(db.DB)
	server := syncserver.NewServer(syncserver.Config{
		Port:                      cfg.Port,
		SyncRateLimit:             cfg.SyncRateLimit,
		APIRateLimit:              cfg.APIRateLimit,
		MaxBodyBytes:              cfg.MaxBodyBytes,
		MaxSessionsPerSync:        cfg.MaxSessionsPerSync,
		MaxBrowserSessionsPerSync: cfg.MaxBrowserSessionsPerSync,
	}, syncserver.Stores{
		Sync:     repos.Sync,
		Settings: repos.Settings,
		Stats:    repos.Stats,
	}, syncserver.WithLogger(log))
	return server.Start(ctx)
}
