package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/emiliopalmerini/ytdetox/internal/adapters/turso"
	"github.com/emiliopalmerini/ytdetox/internal/database"
	"github.com/emiliopalmerini/ytdetox/internal/infrastructure/config"
	"github.com/emiliopalmerini/ytdetox/internal/logger"
	"github.com/emiliopalmerini/ytdetox/internal/migrate"
	"github.com/emiliopalmerini/ytdetox/internal/syncserver"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Sync Service HTTP server",
		Long: `Runs the Sync Service. Pending migrations are applied on start.

Requires YTDETOX_DATABASE_URL (libsql://, https:// or a local file path).
YTDETOX_AUTH_TOKEN is sent to Turso when set.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadServer()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	log, closeLog, err := logger.New(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return err
	}
	defer closeLog()

	srv, closeDB, err := openSyncServer(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeDB()

	return srv.Start(ctx)
}

// openSyncServer connects to the server database, migrates it and builds the server.
func openSyncServer(ctx context.Context, cfg *config.Server, log *slog.Logger) (*syncserver.Server, func() error, error) {
	db, err := database.Open(ctx, cfg.DatabaseURL, database.Options{AuthToken: cfg.AuthToken, Ping: true})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := migrate.RunAll(ctx, db.DB); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	log.Info("database ready", "driver", db.Driver)

	repos := turso.NewRepositories(db.DB)
	srv := syncserver.NewServer(syncserver.Config{
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
	return srv, db.Close, nil
}
