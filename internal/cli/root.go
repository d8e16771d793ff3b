package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/emiliopalmerini/ytdetox/internal/infrastructure/config"
)

// NewRootCmd builds the ytdetox command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ytdetox",
		Short: "Track and reduce time spent on YouTube",
		Long: `ytdetox tracks how you spend time on YouTube.

The page observer reports activity with "ytdetox signal". The agent closes
abandoned sessions, syncs records to a remote store and sends a weekly summary.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newSignalCmd(),
		newStatusCmd(),
		newAgentCmd(),
		newSyncCmd(),
		newSummaryCmd(),
		newStatsCmd(),
		newSettingsCmd(),
		newMigrateCmd(),
		newServeCmd(),
	)
	return root
}

func Execute() {
	config.LoadDotEnv()
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
