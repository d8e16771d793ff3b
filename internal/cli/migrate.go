package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/emiliopalmerini/ytdetox/internal/database"
	"github.com/emiliopalmerini/ytdetox/internal/infrastructure/config"
	"github.com/emiliopalmerini/ytdetox/internal/migrate"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate [version]",
		Short: "Run Sync Service database migrations",
		Long: `Run database migrations against YTDETOX_DATABASE_URL.

Without arguments, runs all pending migrations (up).
With a version number, migrates to that specific version (up or down as needed).

Examples:
  ytdetox migrate      # Run all pending migrations
  ytdetox migrate 1    # Migrate to version 1
  ytdetox migrate 0    # Rollback all migrations`,
		Args: cobra.MaximumNArgs(1),
		RunE: runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, args []string) error {
	target := -1
	if len(args) == 1 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 0 {
			return fmt.Errorf("invalid version number: %s", args[0])
		}
		target = v
	}

	cfg, err := config.LoadServer()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := database.Open(cmd.Context(), cfg.DatabaseURL, database.Options{AuthToken: cfg.AuthToken, Ping: true})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	all, err := migrate.Load()
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	out := cmd.OutOrStdout()
	current, _, err := migrate.CurrentVersion(cmd.Context(), db.DB)
	if err == nil {
		fmt.Fprintf(out, "Current version: %d\n", current)
	}
	return migrate.NewRunner(db.DB, out).Migrate(cmd.Context(), all, target)
}
