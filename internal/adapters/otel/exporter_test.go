package otel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/emiliopalmerini/ytdetox/internal/domain"
	"github.com/emiliopalmerini/ytdetox/internal/ports"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumFor(t *testing.T, data metricdata.Aggregation, kv attribute.KeyValue) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	require.True(t, ok, "expected int64 sum, got %T", data)
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(kv.Key); ok && v == kv.Value {
			return dp.Value
		}
	}
	return 0
}

func TestNewExporter_Disabled(t *testing.T) {
	_, err := NewExporter(context.Background(), Config{Enabled: false, Endpoint: "localhost:4317"})
	assert.True(t, errors.Is(err, ErrDisabled))

	_, err = NewExporter(context.Background(), Config{Enabled: true})
	assert.True(t, errors.Is(err, ErrDisabled))
}

func TestExporter_Records(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	e, err := newExporter(ctx, reader)
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close(ctx) })

	require.NoError(t, e.ExportSessionClosed(ctx, domain.BrowserSession{
		ID:                "s1",
		DurationSeconds:   75,
		ActiveSeconds:     60,
		BackgroundSeconds: 15,
		ExitType:          domain.ExitTabClosed,
	}))
	require.NoError(t, e.ExportVideoWatched(ctx, domain.WatchSession{ID: "w1", WatchedSeconds: 30, IsShort: true, Source: "feed"}))
	require.NoError(t, e.ExportVideoWatched(ctx, domain.WatchSession{ID: "w2", WatchedSeconds: 300, Source: "search"}))
	require.NoError(t, e.ExportSync(ctx, ports.SyncMetrics{Success: true, Sessions: 2, BrowserSessions: 1, Requests: 1, DurationSeconds: 0.2}))
	require.NoError(t, e.ExportSync(ctx, ports.SyncMetrics{Success: false, Sessions: 5, DurationSeconds: 1}))

	got := collect(t, reader)

	assert.Equal(t, int64(60), sumFor(t, got["ytdetox_browser_seconds_total"], attribute.String("state", "active")))
	assert.Equal(t, int64(15), sumFor(t, got["ytdetox_browser_seconds_total"], attribute.String("state", "background")))
	assert.Equal(t, int64(1), sumFor(t, got["ytdetox_browser_sessions_total"], attribute.String("exit_type", "tab_closed")))
	assert.Equal(t, int64(1), sumFor(t, got["ytdetox_videos_watched_total"], attribute.Bool("short", true)))
	assert.Equal(t, int64(1), sumFor(t, got["ytdetox_sync_pushes_total"], attribute.Bool("success", false)))
	assert.Equal(t, int64(2), sumFor(t, got["ytdetox_sync_records_total"], attribute.String("kind", "watch_session")))

	hist, ok := got["ytdetox_sync_duration_seconds"].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(2), hist.DataPoints[0].Count)
}

func TestNoOpExporter(t *testing.T) {
	var e ports.MetricsExporter = NewNoOpExporter()
	ctx := context.Background()
	assert.NoError(t, e.ExportSessionClosed(ctx, domain.BrowserSession{}))
	assert.NoError(t, e.ExportVideoWatched(ctx, domain.WatchSession{}))
	assert.NoError(t, e.ExportSync(ctx, ports.SyncMetrics{}))
	assert.NoError(t, e.Close(ctx))
}
