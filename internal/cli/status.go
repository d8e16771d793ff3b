package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/emiliopalmerini/ytdetox/internal/domain"
	"github.com/emiliopalmerini/ytdetox/internal/util"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show tracking, session and sync status",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := NewAppContext(ctx, false)
	if err != nil {
		return err
	}
	defer app.Close()

	settings, err := app.Repos.Settings.Get(ctx)
	if err != nil {
		return err
	}
	open, err := app.Repos.Checkpoints.Load(ctx)
	if err != nil {
		return err
	}
	now := app.Clock.Now()
	today, err := app.Repos.DailyStats.Get(ctx, domain.DateKey(now, app.Location))
	if err != nil {
		return err
	}
	state, err := app.Repos.SyncState.Get(ctx)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	tracking := "on"
	if !settings.TrackingEnabled {
		tracking = "off"
	}
	fmt.Fprintf(w, "Tracking:  %s (%s phase)\n", tracking, settings.Phase)
	fmt.Fprintf(w, "User:      %s\n", settings.Sync.UserID)

	fmt.Fprintf(w, "Session:   %s", open.State())
	if open != nil {
		fmt.Fprintf(w, " since %s (tab %d)", open.StartedAt.In(app.Location).Format("15:04"), open.TabID)
		if open.GraceDeadline != nil {
			fmt.Fprintf(w, ", closes in %s", open.GraceDeadline.Sub(now).Round(time.Second))
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Today:     %s, %d videos, %d sessions\n",
		util.FormatSeconds(today.TotalSeconds), today.VideoCount, today.Sessions)

	syncStatus := "disabled"
	if settings.SyncConfigured() {
		syncStatus = settings.Sync.URL
	}
	fmt.Fprintf(w, "Sync:      %s, last %s\n", syncStatus, util.FormatMillis(state.LastSync, app.Location))
	if state.LastError != "" {
		fmt.Fprintf(w, "Last error: %s (%d records pending)\n", state.LastError, len(state.OfflineQueue))
	}
	return nil
}
