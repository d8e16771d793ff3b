// Package scheduler runs the agent's periodic jobs.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/emiliopalmerini/ytdetox/internal/adapters/notify"
	"github.com/emiliopalmerini/ytdetox/internal/domain"
	"github.com/emiliopalmerini/ytdetox/internal/logger"
	"github.com/emiliopalmerini/ytdetox/internal/ports"
	"github.com/emiliopalmerini/ytdetox/internal/syncclient"
	"github.com/emiliopalmerini/ytdetox/internal/tracker"
)

type Syncer interface {
	Push(ctx context.Context) (syncclient.PushResult, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context) (tracker.Result, error)
}

type SummaryComputer interface {
	Compute(ctx context.Context) (domain.WeeklySummary, error)
}

// Schedules are cron expressions. Descriptors such as "@every 5m" are accepted.
type Schedules struct {
	Sync      string
	Weekly    string
	Reconcile string
}

// Jobs are the units the scheduler drives. A nil job is not scheduled.
type Jobs struct {
	Sync      Syncer
	Reconcile Reconciler
	Summary   SummaryComputer
	Summaries ports.SummaryRepository
	Notifier  ports.Notifier
}

type Scheduler struct {
	jobs      Jobs
	loc       *time.Location
	logger    *slog.Logger
	sync      cron.Schedule
	weekly    cron.Schedule
	reconcile cron.Schedule
}

func New(schedules Schedules, jobs Jobs, loc *time.Location, log *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{jobs: jobs, loc: loc, logger: logger.OrDiscard(log)}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.jobs.Notifier == nil {
		s.jobs.Notifier = notify.NoOp{}
	}

	var err error
	if s.sync, err = parse("sync", schedules.Sync); err != nil {
		return nil, err
	}
	if s.weekly, err = parse("weekly summary", schedules.Weekly); err != nil {
		return nil, err
	}
	if s.reconcile, err = parse("reconcile", schedules.Reconcile); err != nil {
		return nil, err
	}
	return s, nil
}

func parse(name, expr string) (cron.Schedule, error) {
	if expr == "" {
		return nil, nil
	}
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid %s schedule %q: %w", name, expr, err)
	}
	return sched, nil
}

// Run schedules the jobs and blocks until ctx is cancelled. Running jobs
// are waited for before it returns.
func (s *Scheduler) Run(ctx context.Context) error {
	cl := cronLogger{s.logger}
	c := cron.New(
		cron.WithLocation(s.loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	add := func(sched cron.Schedule, ok bool, run func(context.Context) error, name string) {
		if sched == nil || !ok {
			return
		}
		c.Schedule(sched, cron.FuncJob(func() {
			if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Warn("scheduled job failed", "job", name, "error", err)
			}
		}))
	}
	add(s.reconcile, s.jobs.Reconcile != nil, s.RunReconcile, "reconcile")
	add(s.sync, s.jobs.Sync != nil, s.RunSync, "sync")
	add(s.weekly, s.jobs.Summary != nil, s.RunWeekly, "weekly_summary")

	s.logger.Info("scheduler started", "jobs", len(c.Entries()))
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("scheduler stopped")
	return nil
}

// RunSync pushes unsynced records once.
func (s *Scheduler) RunSync(ctx context.Context) error {
	res, err := s.jobs.Sync.Push(ctx)
	if err != nil {
		return err
	}
	if !res.Skipped {
		s.logger.Info("sync pushed",
			"sessions", res.Sessions,
			"browser_sessions", res.BrowserSessions,
			"requests", res.Requests,
			"watermark", res.Watermark)
	}
	return nil
}

// RunReconcile closes an expired or stale open session.
func (s *Scheduler) RunReconcile(ctx context.Context) error {
	res, err := s.jobs.Reconcile.Reconcile(ctx)
	if err != nil {
		return err
	}
	for _, closed := range res.Closed {
		s.logger.Info("session closed by reconcile", "session_id", closed.ID, "exit_type", closed.ExitType)
	}
	return nil
}

// RunWeekly computes the weekly summary, caches it and notifies the user.
func (s *Scheduler) RunWeekly(ctx context.Context) error {
	summary, err := s.jobs.Summary.Compute(ctx)
	if err != nil {
		return fmt.Errorf("failed to compute weekly summary: %w", err)
	}
	if s.jobs.Summaries != nil {
		if err := s.jobs.Summaries.Save(ctx, summary); err != nil {
			return fmt.Errorf("failed to save weekly summary: %w", err)
		}
	}
	title, body := notify.WeeklySummary(summary)
	if err := s.jobs.Notifier.Notify(title, body); err != nil {
		s.logger.Warn("failed to send weekly summary notification", "error", err)
	}
	return nil
}

// cronLogger adapts slog to cron's logger.
type cronLogger struct {
	l *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
