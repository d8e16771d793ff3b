package domain

import (
	"math"
	"time"
)

// ExitType records why a browser session closed.
type ExitType string

const (
	ExitTabClosed    ExitType = "tab_closed"
	ExitGraceExpired ExitType = "grace_expired"
	ExitStale        ExitType = "stale"
)

// BrowserSession is one continuous, closed visit to the tracked site.
// Timestamps are Unix milliseconds.
type BrowserSession struct {
	ID                   string   `json:"id" validate:"required,max=64"`
	TabID                int      `json:"tabId,omitempty"`
	StartedAt            int64    `json:"startedAt" validate:"gt=0"`
	EndedAt              *int64   `json:"endedAt,omitempty"`
	DurationSeconds      int64    `json:"durationSeconds" validate:"gte=0"`
	ActiveSeconds        int64    `json:"activeSeconds" validate:"gte=0"`
	BackgroundSeconds    int64    `json:"backgroundSeconds" validate:"gte=0"`
	VideosWatched        int64    `json:"videosWatched" validate:"gte=0"`
	ShortsCount          int64    `json:"shortsCount" validate:"gte=0"`
	SearchCount          int64    `json:"searchCount" validate:"gte=0"`
	RecommendationClicks int64    `json:"recommendationClicks" validate:"gte=0"`
	AutoplayCount        int64    `json:"autoplayCount" validate:"gte=0"`
	VideoIDs             []string `json:"videoIds,omitempty"`
	ExitType             ExitType `json:"exitType,omitempty"`
	// RecordedAt is the local time the record was written. A session closed
	// retroactively ends before it is recorded.
	RecordedAt int64 `json:"recordedAt,omitempty"`
}

// SyncTimestamp is the time compared against the sync watermark.
func (s BrowserSession) SyncTimestamp() int64 {
	if s.RecordedAt > 0 {
		return s.RecordedAt
	}
	if s.EndedAt != nil {
		return *s.EndedAt
	}
	return s.StartedAt
}

// OpenSession is the durable checkpoint of the session currently being tracked.
// Running timers are stored as their start time, never as a counter,
// so a flush after a suspended process still yields the right delta.
type OpenSession struct {
	ID                   string        `json:"id"`
	TabID                int           `json:"tabId"`
	StartedAt            time.Time     `json:"startedAt"`
	LastSeenAt           time.Time     `json:"lastSeenAt"`
	Active               time.Duration `json:"active"`
	Background           time.Duration `json:"background"`
	ActiveSince          *time.Time    `json:"activeSince,omitempty"`
	BackgroundSince      *time.Time    `json:"backgroundSince,omitempty"`
	GraceDeadline        *time.Time    `json:"graceDeadline,omitempty"`
	ShortsCount          int64         `json:"shortsCount"`
	SearchCount          int64         `json:"searchCount"`
	RecommendationClicks int64         `json:"recommendationClicks"`
	AutoplayCount        int64         `json:"autoplayCount"`
	VideoIDs             []string      `json:"videoIds,omitempty"`
}

// State derives the state machine state from the checkpoint.
func (o *OpenSession) State() State {
	switch {
	case o == nil:
		return StateIdle
	case o.BackgroundSince != nil:
		return StateBackgrounded
	default:
		return StateActive
	}
}

// FlushActive moves the running active time into the counter and stops the timer.
func (o *OpenSession) FlushActive(now time.Time) {
	if o.ActiveSince == nil {
		return
	}
	if d := now.Sub(*o.ActiveSince); d > 0 {
		o.Active += d
	}
	o.ActiveSince = nil
}

// FlushBackground moves the running background time into the counter and stops the timer.
func (o *OpenSession) FlushBackground(now time.Time) {
	if o.BackgroundSince == nil {
		return
	}
	if d := now.Sub(*o.BackgroundSince); d > 0 {
		o.Background += d
	}
	o.BackgroundSince = nil
}

// Close flushes both timers at `at` and returns the immutable session record.
func (o *OpenSession) Close(at time.Time, exit ExitType) BrowserSession {
	o.FlushActive(at)
	o.FlushBackground(at)
	o.GraceDeadline = nil

	active := int64(math.Round(o.Active.Seconds()))
	background := int64(math.Round(o.Background.Seconds()))
	ended := at.UnixMilli()

	return BrowserSession{
		ID:                   o.ID,
		TabID:                o.TabID,
		StartedAt:            o.StartedAt.UnixMilli(),
		EndedAt:              &ended,
		DurationSeconds:      active + background,
		ActiveSeconds:        active,
		BackgroundSeconds:    background,
		VideosWatched:        int64(len(o.VideoIDs)),
		ShortsCount:          o.ShortsCount,
		SearchCount:          o.SearchCount,
		RecommendationClicks: o.RecommendationClicks,
		AutoplayCount:        o.AutoplayCount,
		VideoIDs:             append([]string(nil), o.VideoIDs...),
		ExitType:             exit,
	}
}

// State is a Session State Machine state.
type State string

const (
	StateIdle         State = "idle"
	StateActive       State = "active"
	StateBackgrounded State = "backgrounded"
)
