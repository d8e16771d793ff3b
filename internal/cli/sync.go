package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/emiliopalmerini/ytdetox/internal/util"
)

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push unsynced records to the Sync Service now",
		Args:  cobra.NoArgs,
		RunE:  runSync,
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the sync watermark and pending records",
		Args:  cobra.NoArgs,
		RunE:  runSyncStatus,
	})
	return cmd
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	app, err := NewAppContext(ctx, false)
	if err != nil {
		return err
	}
	defer app.Close()

	res, err := app.NewSyncClient(nil).Push(ctx)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	w := cmd.OutOrStdout()
	if res.Skipped {
		fmt.Fprintf(w, "Nothing pushed: %s\n", res.Reason)
		return nil
	}
	fmt.Fprintf(w, "Pushed %d watch sessions and %d browser sessions in %d requests\n",
		res.Sessions, res.BrowserSessions, res.Requests)
	fmt.Fprintf(w, "Watermark: %s\n", util.FormatMillis(res.Watermark, app.Location))
	return nil
}

func runSyncStatus(cmd *cobra.Command, args []string) error {
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
	state, err := app.Repos.SyncState.Get(ctx)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Enabled:      %t\n", settings.Sync.Enabled)
	fmt.Fprintf(w, "URL:          %s\n", settings.Sync.URL)
	fmt.Fprintf(w, "User:         %s\n", settings.Sync.UserID)
	fmt.Fprintf(w, "Last sync:    %s\n", util.FormatMillis(state.LastSync, app.Location))
	fmt.Fprintf(w, "Last attempt: %s\n", util.FormatMillis(state.LastAttempt, app.Location))
	fmt.Fprintf(w, "Pending:      %d\n", len(state.OfflineQueue))
	if state.LastError != "" {
		fmt.Fprintf(w, "Last error:   %s\n", state.LastError)
	}
	return nil
}
