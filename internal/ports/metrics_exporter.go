package ports

import (
	"context"

	"github.com/emiliopalmerini/ytdetox/internal/domain"
)

// MetricsExporter exports tracker metrics to an external observability system.
type MetricsExporter interface {
	ExportSessionClosed(ctx context.Context, s domain.BrowserSession) error
	ExportVideoWatched(ctx context.Context, w domain.WatchSession) error
	ExportSync(ctx context.Context, m SyncMetrics) error
	// Close shuts down the exporter and flushes any pending metrics.
	Close(ctx context.Context) error
}

// SyncMetrics describes one sync push attempt.
type SyncMetrics struct {
	Success         bool
	Sessions        int
	BrowserSessions int
	Requests        int
	DurationSeconds float64
}

// Notifier delivers a short message to the user.
type Notifier interface {
	Notify(title, body string) error
}
