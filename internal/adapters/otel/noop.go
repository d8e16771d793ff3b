package otel

import (
	"context"

	"github.com/emiliopalmerini/ytdetox/internal/domain"
	"github.com/emiliopalmerini/ytdetox/internal/ports"
)

// NoOpExporter is a metrics exporter that does nothing.
type NoOpExporter struct{}

var _ ports.MetricsExporter = NoOpExporter{}

// NewNoOpExporter creates a new no-op exporter for graceful degradation.
func NewNoOpExporter() NoOpExporter {
	return NoOpExporter{}
}

func (NoOpExporter) ExportSessionClosed(context.Context, domain.BrowserSession) error { return nil }
func (NoOpExporter) ExportVideoWatched(context.Context, domain.WatchSession) error    { return nil }
func (NoOpExporter) ExportSync(context.Context, ports.SyncMetrics) error              { return nil }
func (NoOpExporter) Close(context.Context) error                                      { return nil }
