// Package tracker implements the session state machine that turns page
// observer signals into browser sessions, watch records and daily counters.
//
// The open session lives in a durable checkpoint that is rewritten on every
// transition, so the process hosting a Manager may be killed between any two
// signals. Timers are stored as start timestamps and flushed as deltas.
package tracker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"

	"github.com/emiliopalmerini/ytdetox/internal/domain"
	"github.com/emiliopalmerini/ytdetox/internal/ports"
)

const (
	DefaultGrace      = 30 * time.Second
	DefaultStaleAfter = 5 * time.Minute
)

// Stores groups the repositories a Manager reads and writes.
type Stores struct {
	Locker          ports.Locker
	Settings        ports.SettingsRepository
	Checkpoints     ports.CheckpointRepository
	BrowserSessions ports.BrowserSessionRepository
	WatchSessions   ports.WatchSessionRepository
	DailyStats      ports.DailyStatsRepository
}

// Options configures a Manager. Zero values select defaults.
type Options struct {
	Clock      quartz.Clock
	Location   *time.Location
	Grace      time.Duration
	StaleAfter time.Duration
	Logger     *slog.Logger
	Exporter   ports.MetricsExporter
	NewID      func() string
}

// Result describes what a dispatch did.
type Result struct {
	Signal    string                  `json:"signal"`
	State     domain.State            `json:"state"`
	SessionID string                  `json:"sessionId,omitempty"`
	Ignored   bool                    `json:"ignored,omitempty"`
	Closed    []domain.BrowserSession `json:"closed,omitempty"`
	Video     *domain.WatchSession    `json:"video,omitempty"`
}

// Manager owns the current session of one user.
type Manager struct {
	stores     Stores
	clock      quartz.Clock
	loc        *time.Location
	grace      time.Duration
	staleAfter time.Duration
	logger     *slog.Logger
	exporter   ports.MetricsExporter
	newID      func() string

	mu     sync.Mutex
	timer  *quartz.Timer
	closed bool
}

func NewManager(stores Stores, opts Options) *Manager {
	m := &Manager{
		stores:     stores,
		clock:      opts.Clock,
		loc:        opts.Location,
		grace:      opts.Grace,
		staleAfter: opts.StaleAfter,
		logger:     opts.Logger,
		exporter:   opts.Exporter,
		newID:      opts.NewID,
	}
	if m.clock == nil {
		m.clock = quartz.NewReal()
	}
	if m.loc == nil {
		m.loc = time.Local
	}
	if m.grace <= 0 {
		m.grace = DefaultGrace
	}
	if m.staleAfter == 0 {
		m.staleAfter = DefaultStaleAfter
	}
	if m.logger == nil {
		m.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if m.newID == nil {
		m.newID = func() string { return uuid.NewString() }
	}
	return m
}

// Dispatch applies one signal. Expired or stale checkpoints are closed first.
func (m *Manager) Dispatch(ctx context.Context, sig domain.Signal) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	res := Result{Signal: sig.SignalType()}
	var after *domain.OpenSession

	err := m.stores.Locker.Exclusive(ctx, func(ctx context.Context) error {
		now := m.clock.Now()

		open, err := m.stores.Checkpoints.Load(ctx)
		if err != nil {
			return err
		}
		if open, err = m.reconcile(ctx, open, now, &res); err != nil {
			return err
		}

		settings, err := m.stores.Settings.Get(ctx)
		if err != nil {
			m.logger.Warn("using default settings", "error", err)
		}

		if !settings.TrackingEnabled && domain.ObserverSignal(sig) {
			res.Ignored = true
		} else {
			if open, err = m.apply(ctx, open, sig, now, settings, &res); err != nil {
				return err
			}
			if open != nil {
				open.LastSeenAt = now
			}
		}

		if open != nil {
			res.SessionID = open.ID
		}
		res.State = open.State()
		after = open
		return m.checkpoint(ctx, open)
	})
	if err != nil {
		return res, fmt.Errorf("failed to dispatch %s: %w", sig.SignalType(), err)
	}

	m.armGraceTimer(after)
	return res, nil
}

// Reconcile closes the checkpointed session if its grace period has passed
// or it has gone stale. Hosts call it on start and periodically.
func (m *Manager) Reconcile(ctx context.Context) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	res := Result{Signal: "reconcile"}
	var after *domain.OpenSession

	err := m.stores.Locker.Exclusive(ctx, func(ctx context.Context) error {
		open, err := m.stores.Checkpoints.Load(ctx)
		if err != nil {
			return err
		}
		if open, err = m.reconcile(ctx, open, m.clock.Now(), &res); err != nil {
			return err
		}
		if open != nil {
			res.SessionID = open.ID
		}
		res.State = open.State()
		after = open
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("failed to reconcile open session: %w", err)
	}

	m.armGraceTimer(after)
	return res, nil
}

// Snapshot returns the checkpointed session without changing it.
func (m *Manager) Snapshot(ctx context.Context) (*domain.OpenSession, error) {
	return m.stores.Checkpoints.Load(ctx)
}

// Close stops the grace timer. The checkpoint is left in place for the next process.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Manager) reconcile(ctx context.Context, open *domain.OpenSession, now time.Time, res *Result) (*domain.OpenSession, error) {
	if open == nil {
		return nil, nil
	}

	var (
		at   time.Time
		exit domain.ExitType
	)
	switch {
	case open.GraceDeadline != nil && !now.Before(*open.GraceDeadline):
		at, exit = *open.GraceDeadline, domain.ExitGraceExpired
	case open.GraceDeadline == nil && m.staleAfter > 0 && now.Sub(open.LastSeenAt) > m.staleAfter:
		at, exit = open.LastSeenAt, domain.ExitStale
	default:
		return open, nil
	}

	closed, err := m.closeSession(ctx, open, at, exit)
	if err != nil {
		return open, err
	}
	res.Closed = append(res.Closed, closed)
	return nil, nil
}

func (m *Manager) checkpoint(ctx context.Context, open *domain.OpenSession) error {
	if open == nil {
		return m.stores.Checkpoints.Clear(ctx)
	}
	return m.stores.Checkpoints.Save(ctx, open)
}

// armGraceTimer keeps an in-process timer in line with the checkpoint.
// Short-lived hosts never see it fire; Reconcile covers them.
func (m *Manager) armGraceTimer(open *domain.OpenSession) {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.closed || open == nil || open.GraceDeadline == nil {
		return
	}

	d := open.GraceDeadline.Sub(m.clock.Now())
	if d < 0 {
		d = 0
	}
	m.timer = m.clock.AfterFunc(d, m.onGraceExpired, "tracker", "grace")
}

func (m *Manager) onGraceExpired() {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := m.Reconcile(ctx); err != nil {
		m.logger.Error("grace timer reconcile failed", "error", err)
	}
}
