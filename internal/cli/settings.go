package cli

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/emiliopalmerini/ytdetox/internal/domain"
)

// settingSetters maps the keys accepted by "settings set" to their fields.
var settingSetters = map[string]func(s *domain.Settings, v string) error{
	"tracking":          setBool(func(s *domain.Settings) *bool { return &s.TrackingEnabled }),
	"prompts":           setBool(func(s *domain.Settings) *bool { return &s.Interventions.ProductivityPrompts }),
	"time-warnings":     setBool(func(s *domain.Settings) *bool { return &s.Interventions.TimeWarnings }),
	"shorts-blocking":   setBool(func(s *domain.Settings) *bool { return &s.Interventions.ShortsBlocking }),
	"autoplay-blocking": setBool(func(s *domain.Settings) *bool { return &s.Interventions.AutoplayBlocking }),
	"sync.enabled":      setBool(func(s *domain.Settings) *bool { return &s.Sync.Enabled }),
	"daily-goal":        setInt(func(s *domain.Settings) *int { return &s.DailyGoalMinutes }),
	"weekend-goal":      setInt(func(s *domain.Settings) *int { return &s.WeekendGoalMinutes }),
	"phase": func(s *domain.Settings, v string) error {
		s.Phase = domain.Phase(v)
		return nil
	},
	"sync.url": func(s *domain.Settings, v string) error {
		s.Sync.URL = strings.TrimRight(v, "/")
		return nil
	},
}

func setBool(field func(*domain.Settings) *bool) func(*domain.Settings, string) error {
	return func(s *domain.Settings, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("expected true or false, got %q", v)
		}
		*field(s) = b
		return nil
	}
}

func setInt(field func(*domain.Settings) *int) func(*domain.Settings, string) error {
	return func(s *domain.Settings, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("expected a number, got %q", v)
		}
		*field(s) = n
		return nil
	}
}

func settingKeys() []string {
	keys := make([]string, 0, len(settingSetters))
	for k := range settingSetters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change settings",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "get",
			Short: "Print the settings as JSON",
			Args:  cobra.NoArgs,
			RunE:  runSettingsGet,
		},
		&cobra.Command{
			Use:   "set KEY VALUE",
			Short: "Change one setting",
			Long:  "Change one setting. Keys: " + strings.Join(settingKeys(), ", "),
			Args:  cobra.ExactArgs(2),
			RunE:  runSettingsSet,
		},
		&cobra.Command{
			Use:   "push",
			Short: "Upload the settings to the Sync Service",
			Args:  cobra.NoArgs,
			RunE:  runSettingsPush,
		},
		&cobra.Command{
			Use:   "pull",
			Short: "Replace the settings with the copy stored on the Sync Service",
			Args:  cobra.NoArgs,
			RunE:  runSettingsPull,
		},
	)
	return cmd
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	app, err := NewAppContext(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer app.Close()

	s, err := app.Repos.Settings.Get(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), s)
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]
	set, ok := settingSetters[key]
	if !ok {
		return fmt.Errorf("unknown setting %q, expected one of: %s", key, strings.Join(settingKeys(), ", "))
	}

	app, err := NewAppContext(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer app.Close()

	validate := validator.New(validator.WithRequiredStructEnabled())
	_, err = app.Repos.Settings.Update(cmd.Context(), func(s *domain.Settings) error {
		if err := set(s, value); err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		if err := validate.Struct(s); err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", key, value)
	return nil
}

func runSettingsPush(cmd *cobra.Command, args []string) error {
	app, err := NewAppContext(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.NewSyncClient(nil).PushSettings(cmd.Context()); err != nil {
		return fmt.Errorf("failed to push settings: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Settings pushed")
	return nil
}

func runSettingsPull(cmd *cobra.Command, args []string) error {
	app, err := NewAppContext(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer app.Close()

	_, found, err := app.NewSyncClient(nil).PullSettings(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to pull settings: %w", err)
	}
	if !found {
		fmt.Fprintln(cmd.OutOrStdout(), "No settings stored remotely, local settings kept")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Settings pulled")
	return nil
}
