package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/emiliopalmerini/ytdetox/internal/domain"
)

func (m *Manager) apply(ctx context.Context, open *domain.OpenSession, sig domain.Signal, now time.Time, settings domain.Settings, res *Result) (*domain.OpenSession, error) {
	switch s := sig.(type) {
	case domain.PageLoad:
		if open == nil {
			return m.openSession(ctx, s.TabID, now)
		}
		open.GraceDeadline = nil
	case domain.TabHidden, domain.PageUnload:
		m.hide(open, now)
	case domain.TabVisible:
		if open.State() == domain.StateBackgrounded {
			open.FlushBackground(now)
			open.ActiveSince = &now
			open.GraceDeadline = nil
		}
	case domain.TabRemoved:
		if open == nil || open.TabID != s.TabID {
			return open, nil
		}
		closed, err := m.closeSession(ctx, open, now, domain.ExitTabClosed)
		if err != nil {
			return open, err
		}
		res.Closed = append(res.Closed, closed)
		return nil, nil
	case domain.VideoWatched:
		w, err := m.recordVideo(ctx, open, s, now, settings)
		if err != nil {
			return open, err
		}
		res.Video = &w
	case domain.RateVideo:
		w, err := m.rateVideo(ctx, s, now)
		if err != nil {
			return open, err
		}
		res.Video = &w
	case domain.PromptShown:
		source := fmt.Sprintf("prompt:%s:%d", s.VideoID, now.UnixMilli())
		if _, err := m.stores.DailyStats.ApplyOnce(ctx, domain.DateKey(now, m.loc), source, domain.Counters{
			domain.CounterPromptsShown: 1,
		}); err != nil {
			return open, err
		}
	case domain.Search:
		if open != nil {
			open.SearchCount++
		}
	case domain.RecommendationClick:
		if open != nil {
			open.RecommendationClicks++
		}
	case domain.AutoplayPending:
		if open != nil {
			open.AutoplayCount++
		}
	case domain.Heartbeat:
	default:
		return open, fmt.Errorf("%w: %T", domain.ErrUnknownSignal, sig)
	}
	return open, nil
}

func (m *Manager) openSession(ctx context.Context, tabID int, now time.Time) (*domain.OpenSession, error) {
	open := &domain.OpenSession{
		ID:          m.newID(),
		TabID:       tabID,
		StartedAt:   now,
		LastSeenAt:  now,
		ActiveSince: &now,
	}

	date := domain.DateKey(now, m.loc)
	day, err := m.stores.DailyStats.Get(ctx, date)
	if err != nil {
		return nil, err
	}
	if day.FirstCheckTime == "" {
		if _, err := m.stores.DailyStats.MergeIncrement(ctx, date, domain.Counters{
			domain.CounterFirstCheckTime: now.In(m.loc).Format("15:04"),
		}); err != nil {
			return nil, err
		}
	}

	m.logger.Debug("session opened", "session_id", open.ID, "tab_id", tabID)
	return open, nil
}

// hide pauses the active timer and starts the grace period. Hiding a hidden
// session keeps its deadline, or re-arms one a PageLoad cancelled.
func (m *Manager) hide(open *domain.OpenSession, now time.Time) {
	switch open.State() {
	case domain.StateActive:
		open.FlushActive(now)
		open.BackgroundSince = &now
	case domain.StateBackgrounded:
		if open.GraceDeadline != nil {
			return
		}
	default:
		return
	}
	deadline := now.Add(m.grace)
	open.GraceDeadline = &deadline
}

// closeSession persists the closed session, folds it into its start date
// and clears the checkpoint. Replaying it after a crash is harmless: the
// session store upserts by id and the fold is applied once per session.
func (m *Manager) closeSession(ctx context.Context, open *domain.OpenSession, at time.Time, exit domain.ExitType) (domain.BrowserSession, error) {
	closed := open.Close(at, exit)
	closed.RecordedAt = m.clock.Now().UnixMilli()

	if err := m.stores.BrowserSessions.Append(ctx, closed); err != nil {
		return closed, err
	}
	date := domain.DateKey(open.StartedAt, m.loc)
	if _, err := m.stores.DailyStats.ApplyOnce(ctx, date, "session:"+closed.ID, domain.SessionContribution(closed)); err != nil {
		return closed, err
	}
	if err := m.stores.Checkpoints.Clear(ctx); err != nil {
		return closed, err
	}

	m.logger.Info("session closed",
		"session_id", closed.ID,
		"exit", exit,
		"active_seconds", closed.ActiveSeconds,
		"background_seconds", closed.BackgroundSeconds,
	)
	if m.exporter != nil {
		if err := m.exporter.ExportSessionClosed(ctx, closed); err != nil {
			m.logger.Warn("failed to export session metrics", "error", err)
		}
	}
	return closed, nil
}

func (m *Manager) recordVideo(ctx context.Context, open *domain.OpenSession, s domain.VideoWatched, now time.Time, settings domain.Settings) (domain.WatchSession, error) {
	ts := s.Timestamp
	if ts == 0 {
		ts = now.UnixMilli()
	}
	id := s.ID
	if id == "" {
		id = domain.WatchSessionID(settings.Sync.UserID, s.VideoID, ts)
	}
	speed := s.PlaybackSpeed
	if speed <= 0 {
		speed = 1
	}

	w := domain.WatchSession{
		ID:              id,
		VideoID:         s.VideoID,
		Title:           s.Title,
		Channel:         s.Channel,
		DurationSeconds: s.DurationSeconds,
		WatchedSeconds:  s.WatchedSeconds,
		WatchedPercent:  domain.WatchedPercent(s.WatchedSeconds, s.DurationSeconds),
		Source:          s.Source,
		IsShort:         s.IsShort,
		PlaybackSpeed:   speed,
		Timestamp:       ts,
		RecordedAt:      now.UnixMilli(),
	}
	if open != nil {
		w.BrowserSessionID = open.ID
	}

	added, err := m.stores.WatchSessions.Append(ctx, w)
	if err != nil {
		return w, err
	}
	date := domain.DateKey(time.UnixMilli(ts), m.loc)
	if _, err := m.stores.DailyStats.ApplyOnce(ctx, date, "video:"+w.ID, domain.VideoContribution(w)); err != nil {
		return w, err
	}

	if open != nil && added {
		open.VideoIDs = append(open.VideoIDs, s.VideoID)
		if s.IsShort {
			open.ShortsCount++
		}
	}

	if added && m.exporter != nil {
		if err := m.exporter.ExportVideoWatched(ctx, w); err != nil {
			m.logger.Warn("failed to export video metrics", "error", err)
		}
	}
	return w, nil
}

func (m *Manager) rateVideo(ctx context.Context, s domain.RateVideo, now time.Time) (domain.WatchSession, error) {
	w, err := m.stores.WatchSessions.Rate(ctx, s.VideoID, func(w *domain.WatchSession) error {
		return w.Rate(s.Rating, now)
	})
	if err != nil {
		return w, err
	}

	source := fmt.Sprintf("rating:%s:%d", w.ID, *w.RatedAt)
	if _, err := m.stores.DailyStats.ApplyOnce(ctx, domain.DateKey(now, m.loc), source, domain.Counters{
		domain.RatingCounter(s.Rating): 1,
		domain.CounterPromptsAnswered:  1,
	}); err != nil {
		return w, err
	}
	return w, nil
}
