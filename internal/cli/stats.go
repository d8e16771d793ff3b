package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/emiliopalmerini/ytdetox/internal/domain"
	"github.com/emiliopalmerini/ytdetox/internal/summary"
	"github.com/emiliopalmerini/ytdetox/internal/util"
)

func newStatsCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show local daily statistics",
	}
	cmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print JSON")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "today",
			Short: "Show today's statistics",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runStatsDays(cmd, asJSON, func(now time.Time, loc *time.Location) ([]string, error) {
					return []string{domain.DateKey(now, loc)}, nil
				})
			},
		},
		&cobra.Command{
			Use:   "week",
			Short: "Show the last seven days",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return runStatsDays(cmd, asJSON, func(now time.Time, loc *time.Location) ([]string, error) {
					dates := summary.WindowDates(now, loc, 7)
					for i, j := 0, len(dates)-1; i < j; i, j = i+1, j-1 {
						dates[i], dates[j] = dates[j], dates[i]
					}
					return dates, nil
				})
			},
		},
		&cobra.Command{
			Use:   "day DATE",
			Short: "Show one day (YYYY-MM-DD)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runStatsDays(cmd, asJSON, func(now time.Time, loc *time.Location) ([]string, error) {
					if _, _, err := util.DayBounds(args[0], loc); err != nil {
						return nil, err
					}
					return []string{args[0]}, nil
				})
			},
		},
	)
	return cmd
}

func runStatsDays(cmd *cobra.Command, asJSON bool, dates func(time.Time, *time.Location) ([]string, error)) error {
	ctx := cmd.Context()
	app, err := NewAppContext(ctx, false)
	if err != nil {
		return err
	}
	defer app.Close()

	keys, err := dates(app.Clock.Now(), app.Location)
	if err != nil {
		return err
	}
	byDate, err := app.Repos.DailyStats.Range(ctx, keys)
	if err != nil {
		return err
	}

	days := make([]domain.DailyStats, 0, len(keys))
	for _, k := range keys {
		d := byDate[k]
		d.Date = k
		days = append(days, d)
	}

	if asJSON {
		if len(days) == 1 {
			return printJSON(cmd.OutOrStdout(), days[0])
		}
		return printJSON(cmd.OutOrStdout(), days)
	}

	w := cmd.OutOrStdout()
	var total domain.WeekTotals
	for _, d := range days {
		printDay(w, d)
		total.Add(d)
	}
	if len(days) > 1 {
		fmt.Fprintf(w, "Total: %s, %d videos, %d sessions\n",
			util.FormatSeconds(total.TotalSeconds), total.VideoCount, total.Sessions)
	}
	return nil
}

func printDay(w io.Writer, d domain.DailyStats) {
	fmt.Fprintf(w, "%s  %-8s active %-8s background %-8s videos %d (shorts %d)  sessions %d",
		d.Date,
		util.FormatSeconds(d.TotalSeconds),
		util.FormatSeconds(d.ActiveSeconds),
		util.FormatSeconds(d.BackgroundSeconds),
		d.VideoCount, d.ShortsCount, d.Sessions)
	if d.FirstCheckTime != "" {
		fmt.Fprintf(w, "  first %s", d.FirstCheckTime)
	}
	fmt.Fprintln(w)
}
