package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/emiliopalmerini/ytdetox/internal/infrastructure/config"
	"github.com/emiliopalmerini/ytdetox/internal/scheduler"
)

func newAgentCmd() *cobra.Command {
	var serve bool
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run the background agent",
		Long: `Runs until interrupted. The agent closes expired or stale sessions, pushes
unsynced records on a schedule and computes the weekly summary.

With --serve it also runs the Sync Service in the same process.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(cmd, serve)
		},
	}
	cmd.Flags().BoolVar(&serve, "serve", false, "also run the Sync Service")
	return cmd
}

func runAgent(cmd *cobra.Command, serve bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := NewAppContext(ctx, false)
	if err != nil {
		return err
	}
	defer app.Close()

	mgr := app.NewManager()
	defer mgr.Close()

	// Sessions left open by a previous process are closed at their deadline.
	if res, err := mgr.Reconcile(ctx); err != nil {
		app.Logger.Warn("initial reconcile failed", "error", err)
	} else if len(res.Closed) > 0 {
		app.Logger.Info("closed leftover session", "session_id", res.Closed[0].ID, "exit_type", res.Closed[0].ExitType)
	}

	sched, err := scheduler.New(scheduler.Schedules{
		Sync:      app.Config.SyncInterval,
		Weekly:    app.Config.WeeklySchedule,
		Reconcile: app.Config.ReconcileInterval,
	}, scheduler.Jobs{
		Sync:      app.NewSyncClient(nil),
		Reconcile: mgr,
		Summary:   app.NewCalculator(),
		Summaries: app.Repos.Summaries,
		Notifier:  app.Notifier,
	}, app.Location, app.Logger)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(ctx) })

	if serve {
		cfg, err := config.LoadServer()
		if err != nil {
			return fmt.Errorf("failed to load server configuration: %w", err)
		}
		srv, closeDB, err := openSyncServer(ctx, cfg, app.Logger)
		if err != nil {
			return err
		}
		defer closeDB()
		g.Go(func() error { return srv.Start(ctx) })
	}

	app.Logger.Info("agent started", "data_dir", app.Config.DataDir, "serve", serve)
	return g.Wait()
}
