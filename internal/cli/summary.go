package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/emiliopalmerini/ytdetox/internal/adapters/notify"
	"github.com/emiliopalmerini/ytdetox/internal/domain"
	"github.com/emiliopalmerini/ytdetox/internal/util"
)

func newSummaryCmd() *cobra.Command {
	var (
		asJSON   bool
		sendNote bool
	)
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Compute the weekly summary from local stats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			app, err := NewAppContext(ctx, false)
			if err != nil {
				return err
			}
			defer app.Close()

			s, err := app.NewCalculator().Compute(ctx)
			if err != nil {
				return err
			}
			if err := app.Repos.Summaries.Save(ctx, s); err != nil {
				return err
			}
			if sendNote {
				if err := app.Notifier.Notify(notify.WeeklySummary(s)); err != nil {
					app.Logger.Warn("failed to send notification", "error", err)
				}
			}

			if asJSON {
				return printJSON(cmd.OutOrStdout(), s)
			}
			printSummary(cmd.OutOrStdout(), s)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().BoolVar(&sendNote, "notify", false, "also send a desktop notification")
	return cmd
}

func printSummary(w io.Writer, s domain.WeeklySummary) {
	fmt.Fprintln(w, "Weekly Summary")
	fmt.Fprintln(w, "==============")
	fmt.Fprintf(w, "This week:  %s (%d videos, %d sessions)\n",
		util.FormatSeconds(s.ThisWeek.TotalSeconds), s.ThisWeek.VideoCount, s.ThisWeek.Sessions)
	fmt.Fprintf(w, "Last week:  %s (%d videos, %d sessions)\n",
		util.FormatSeconds(s.PrevWeek.TotalSeconds), s.PrevWeek.VideoCount, s.PrevWeek.Sessions)
	fmt.Fprintf(w, "Change:     %s\n", util.FormatChange(s.ChangePercent))
	fmt.Fprintf(w, "Rated:      %d productive, %d unproductive\n",
		s.ThisWeek.ProductiveVideos, s.ThisWeek.UnproductiveVideos)

	if len(s.TopChannels) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Top channels:")
		for i, c := range s.TopChannels {
			fmt.Fprintf(w, "  %d. %s  %d min\n", i+1, c.Channel, c.Minutes)
		}
	}
}
