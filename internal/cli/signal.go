package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/emiliopalmerini/ytdetox/internal/domain"
	"github.com/emiliopalmerini/ytdetox/internal/tracker"
)

func newSignalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "signal",
		Short: "Apply one page observer signal read from stdin",
		Long: `Reads one JSON signal from stdin, applies it to the current session and
prints the result as JSON.

  echo '{"type":"page_load","tabId":7}' | ytdetox signal

Signal types: page_load, page_unload, tab_hidden, tab_visible, video_watched,
search, recommendation_click, autoplay_pending, tab_removed, rate_video,
prompt_shown, heartbeat.`,
		Args: cobra.NoArgs,
		RunE: runSignal,
	}
}

func runSignal(cmd *cobra.Command, args []string) error {
	input, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		return fmt.Errorf("failed to read stdin: %w", err)
	}

	sig, err := domain.ParseSignal(input)
	if err != nil {
		return err
	}

	app, err := NewAppContext(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer app.Close()

	res, err := processSignal(cmd.Context(), app, sig)
	if err != nil {
		app.Logger.Error("signal failed", "signal", sig.SignalType(), "error", err)
		return err
	}
	return json.NewEncoder(cmd.OutOrStdout()).Encode(res)
}

func processSignal(ctx context.Context, app *AppContext, sig domain.Signal) (tracker.Result, error) {
	mgr := app.NewManager()
	defer mgr.Close()

	res, err := mgr.Dispatch(ctx, sig)
	if err != nil {
		return res, err
	}
	app.Logger.Debug("signal applied",
		"signal", res.Signal,
		"state", res.State,
		"session_id", res.SessionID,
		"ignored", res.Ignored,
		"closed", len(res.Closed))
	return res, nil
}
