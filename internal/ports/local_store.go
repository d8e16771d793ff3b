package ports

import (
	"context"

	"github.com/emiliopalmerini/ytdetox/internal/domain"
)

// Locker serializes whole state-machine transitions across processes.
type Locker interface {
	Exclusive(ctx context.Context, fn func(ctx context.Context) error) error
}

// SettingsRepository persists the user settings.
type SettingsRepository interface {
	// Get returns the stored settings, or defaults when none were saved.
	Get(ctx context.Context) (domain.Settings, error)
	Save(ctx context.Context, s domain.Settings) error
	Update(ctx context.Context, fn func(*domain.Settings) error) (domain.Settings, error)
}

// CheckpointRepository holds the durable checkpoint of the open session.
type CheckpointRepository interface {
	// Load returns nil when no session is open.
	Load(ctx context.Context) (*domain.OpenSession, error)
	// Save writes the checkpoint; a nil session clears it.
	Save(ctx context.Context, s *domain.OpenSession) error
	Clear(ctx context.Context) error
}

// BrowserSessionRepository is the capped, append-only list of closed sessions.
type BrowserSessionRepository interface {
	// Append upserts by id.
	Append(ctx context.Context, s domain.BrowserSession) error
	List(ctx context.Context) ([]domain.BrowserSession, error)
	// Since returns the sessions recorded after the watermark.
	Since(ctx context.Context, watermark int64) ([]domain.BrowserSession, error)
}

// WatchSessionRepository is the capped, append-only list of watched videos.
type WatchSessionRepository interface {
	// Append reports false when a record with the same id already exists.
	Append(ctx context.Context, w domain.WatchSession) (bool, error)
	// Rate applies fn to the most recent record of videoID.
	Rate(ctx context.Context, videoID string, fn func(*domain.WatchSession) error) (domain.WatchSession, error)
	List(ctx context.Context) ([]domain.WatchSession, error)
	// Since returns the records written after the watermark.
	Since(ctx context.Context, watermark int64) ([]domain.WatchSession, error)
}

// DailyStatsRepository holds the per-date counters.
type DailyStatsRepository interface {
	// MergeIncrement folds partial into the record for date.
	MergeIncrement(ctx context.Context, date string, partial domain.Counters) (domain.Counters, error)
	// ApplyOnce folds partial unless sourceID was already applied to date.
	ApplyOnce(ctx context.Context, date, sourceID string, partial domain.Counters) (bool, error)
	Get(ctx context.Context, date string) (domain.DailyStats, error)
	Range(ctx context.Context, dates []string) (map[string]domain.DailyStats, error)
}

// SyncStateRepository persists the sync watermark.
type SyncStateRepository interface {
	Get(ctx context.Context) (domain.SyncState, error)
	Save(ctx context.Context, s domain.SyncState) error
}

// SummaryRepository caches the last computed weekly summary.
type SummaryRepository interface {
	// Latest returns nil when no summary was stored yet.
	Latest(ctx context.Context) (*domain.WeeklySummary, error)
	Save(ctx context.Context, s domain.WeeklySummary) error
}
