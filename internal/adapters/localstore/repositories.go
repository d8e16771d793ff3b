package localstore

import "github.com/emiliopalmerini/ytdetox/internal/ports"

const (
	keySettings        = "settings"
	keyOpenSession     = "open_session"
	keyBrowserSessions = "browser_sessions"
	keyWatchSessions   = "watch_sessions"
	keyDailyStats      = "daily_stats"
	keySyncState       = "sync_state"
	keyWeeklySummary   = "weekly_summary"
)

// Limits caps the append-only lists. Oldest records are evicted first.
type Limits struct {
	MaxWatchSessions   int
	MaxBrowserSessions int
}

// DefaultLimits returns the retention ceilings used when none are configured.
func DefaultLimits() Limits {
	return Limits{MaxWatchSessions: 1000, MaxBrowserSessions: 500}
}

// Repositories holds all local repository implementations as port interfaces.
type Repositories struct {
	Locker          ports.Locker
	Settings        ports.SettingsRepository
	Checkpoints     ports.CheckpointRepository
	BrowserSessions ports.BrowserSessionRepository
	WatchSessions   ports.WatchSessionRepository
	DailyStats      ports.DailyStatsRepository
	SyncState       ports.SyncStateRepository
	Summaries       ports.SummaryRepository
}

// NewRepositories creates all local repositories backed by one store.
func NewRepositories(s *Store, limits Limits) *Repositories {
	return &Repositories{
		Locker:          s,
		Settings:        NewSettingsRepository(s),
		Checkpoints:     NewCheckpointRepository(s),
		BrowserSessions: NewBrowserSessionRepository(s, limits.MaxBrowserSessions),
		WatchSessions:   NewWatchSessionRepository(s, limits.MaxWatchSessions),
		DailyStats:      NewDailyStatsRepository(s),
		SyncState:       NewSyncStateRepository(s),
		Summaries:       NewSummaryRepository(s),
	}
}
