package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/emiliopalmerini/ytdetox/internal/adapters/localstore"
	"github.com/emiliopalmerini/ytdetox/internal/adapters/notify"
	"github.com/emiliopalmerini/ytdetox/internal/adapters/otel"
	"github.com/emiliopalmerini/ytdetox/internal/domain"
	"github.com/emiliopalmerini/ytdetox/internal/infrastructure/config"
	"github.com/emiliopalmerini/ytdetox/internal/logger"
	"github.com/emiliopalmerini/ytdetox/internal/ports"
	"github.com/emiliopalmerini/ytdetox/internal/summary"
	"github.com/emiliopalmerini/ytdetox/internal/syncclient"
	"github.com/emiliopalmerini/ytdetox/internal/tracker"
)

// testAppOverride allows tests to inject an AppContext.
// When set, NewAppContext returns it instead of building one.
var testAppOverride *AppContext

// AppContext holds all shared dependencies for agent commands.
type AppContext struct {
	Config   *config.Agent
	Store    *localstore.Store
	Repos    *localstore.Repositories
	Location *time.Location
	Clock    quartz.Clock
	Logger   *slog.Logger
	Exporter ports.MetricsExporter
	Notifier ports.Notifier

	closers []func() error
}

// NewAppContext loads configuration and opens the local store. Commands
// started by the page observer pass logToFile so stdout stays clean.
func NewAppContext(ctx context.Context, logToFile bool) (*AppContext, error) {
	if testAppOverride != nil {
		return testAppOverride, nil
	}

	cfg, err := config.LoadAgent()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	app := &AppContext{Config: cfg, Clock: quartz.NewReal()}

	logOpts := logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format}
	if logToFile {
		if logOpts.File, err = cfg.LogFile(); err != nil {
			return nil, err
		}
	}
	log, closeLog, err := logger.New(logOpts)
	if err != nil {
		return nil, err
	}
	app.Logger = log
	app.closers = append(app.closers, closeLog)

	if app.Location, err = cfg.Location(); err != nil {
		_ = app.Close()
		return nil, err
	}

	if app.Store, err = localstore.Open(cfg.DataDir); err != nil {
		_ = app.Close()
		return nil, err
	}
	app.Repos = localstore.NewRepositories(app.Store, localstore.Limits{
		MaxWatchSessions:   cfg.MaxVideos,
		MaxBrowserSessions: cfg.MaxBrowserSessions,
	})

	app.Exporter = otel.NewNoOpExporter()
	if cfg.Otel.Enabled {
		exp, err := otel.NewExporter(ctx, cfg.Otel)
		if err != nil {
			log.Warn("metrics export disabled", "error", err)
		} else {
			app.Exporter = exp
		}
	}
	app.closers = append(app.closers, func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return app.Exporter.Close(shutdownCtx)
	})

	app.Notifier = notify.NoOp{}
	if cfg.Notify {
		app.Notifier = notify.NewDesktop()
	}

	if err := app.ensureUserID(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

// ensureUserID generates and persists a user id the first time settings are read.
func (a *AppContext) ensureUserID(ctx context.Context) error {
	s, err := a.Repos.Settings.Get(ctx)
	if err != nil {
		return err
	}
	if s.Sync.UserID != "" {
		return nil
	}
	_, err = a.Repos.Settings.Update(ctx, func(s *domain.Settings) error {
		s.EnsureUserID(uuid.NewString)
		return nil
	})
	return err
}

func (a *AppContext) NewManager() *tracker.Manager {
	return tracker.NewManager(tracker.Stores{
		Locker:          a.Repos.Locker,
		Settings:        a.Repos.Settings,
		Checkpoints:     a.Repos.Checkpoints,
		BrowserSessions: a.Repos.BrowserSessions,
		WatchSessions:   a.Repos.WatchSessions,
		DailyStats:      a.Repos.DailyStats,
	}, tracker.Options{
		Clock:      a.Clock,
		Location:   a.Location,
		Grace:      a.Config.GracePeriod,
		StaleAfter: a.Config.StaleAfter,
		Logger:     a.Logger,
		Exporter:   a.Exporter,
	})
}

func (a *AppContext) NewSyncClient(httpClient *http.Client) *syncclient.Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: a.Config.HTTPTimeout}
	}
	return syncclient.New(syncclient.Stores{
		Locker:          a.Repos.Locker,
		Settings:        a.Repos.Settings,
		SyncState:       a.Repos.SyncState,
		BrowserSessions: a.Repos.BrowserSessions,
		WatchSessions:   a.Repos.WatchSessions,
	}, syncclient.Options{
		HTTPClient: httpClient,
		Clock:      a.Clock,
		Logger:     a.Logger,
		Exporter:   a.Exporter,
	})
}

func (a *AppContext) NewCalculator() *summary.Calculator {
	return summary.NewCalculator(a.Repos.DailyStats, a.Repos.WatchSessions, a.Clock, a.Location)
}

// Close releases all resources held by the AppContext.
func (a *AppContext) Close() error {
	if a == testAppOverride {
		return nil
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}
