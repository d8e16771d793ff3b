package otel

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/emiliopalmerini/ytdetox/internal/domain"
	"github.com/emiliopalmerini/ytdetox/internal/ports"
)

const (
	serviceName    = "ytdetox"
	serviceVersion = "1.0.0"
)

// ErrDisabled is returned by NewExporter when export is not configured.
var ErrDisabled = errors.New("OTEL exporter is disabled or endpoint not configured")

// Exporter exports tracker metrics to an OTEL Collector.
type Exporter struct {
	provider *sdkmetric.MeterProvider

	browserSeconds  metric.Int64Counter
	browserSessions metric.Int64Counter
	sessionDuration metric.Float64Histogram
	videosWatched   metric.Int64Counter
	videoSeconds    metric.Float64Histogram
	syncPushes      metric.Int64Counter
	syncRecords     metric.Int64Counter
	syncDuration    metric.Float64Histogram
}

var _ ports.MetricsExporter = (*Exporter)(nil)

// NewExporter creates an exporter that pushes to the configured OTLP endpoint.
func NewExporter(ctx context.Context, cfg Config) (*Exporter, error) {
	if !cfg.Enabled || cfg.Endpoint == "" {
		return nil, ErrDisabled
	}

	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	e, err := newExporter(ctx, sdkmetric.NewPeriodicReader(exp))
	if err != nil {
		return nil, err
	}
	otel.SetMeterProvider(e.provider)
	return e, nil
}

func newExporter(ctx context.Context, reader sdkmetric.Reader) (*Exporter, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)
	meter := provider.Meter(serviceName)
	e := &Exporter{provider: provider}

	if e.browserSeconds, err = meter.Int64Counter(
		"ytdetox_browser_seconds_total",
		metric.WithDescription("Seconds spent on the site, by tab state"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("creating browser seconds counter: %w", err)
	}

	if e.browserSessions, err = meter.Int64Counter(
		"ytdetox_browser_sessions_total",
		metric.WithDescription("Closed browser sessions"),
		metric.WithUnit("{session}"),
	); err != nil {
		return nil, fmt.Errorf("creating browser sessions counter: %w", err)
	}

	if e.sessionDuration, err = meter.Float64Histogram(
		"ytdetox_browser_session_duration_seconds",
		metric.WithDescription("Browser session duration"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("creating session duration histogram: %w", err)
	}

	if e.videosWatched, err = meter.Int64Counter(
		"ytdetox_videos_watched_total",
		metric.WithDescription("Watched videos"),
		metric.WithUnit("{video}"),
	); err != nil {
		return nil, fmt.Errorf("creating videos counter: %w", err)
	}

	if e.videoSeconds, err = meter.Float64Histogram(
		"ytdetox_video_watched_seconds",
		metric.WithDescription("Seconds watched per video"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("creating video seconds histogram: %w", err)
	}

	if e.syncPushes, err = meter.Int64Counter(
		"ytdetox_sync_pushes_total",
		metric.WithDescription("Sync push attempts"),
		metric.WithUnit("{push}"),
	); err != nil {
		return nil, fmt.Errorf("creating sync pushes counter: %w", err)
	}

	if e.syncRecords, err = meter.Int64Counter(
		"ytdetox_sync_records_total",
		metric.WithDescription("Records sent by successful pushes"),
		metric.WithUnit("{record}"),
	); err != nil {
		return nil, fmt.Errorf("creating sync records counter: %w", err)
	}

	if e.syncDuration, err = meter.Float64Histogram(
		"ytdetox_sync_duration_seconds",
		metric.WithDescription("Sync push duration"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, fmt.Errorf("creating sync duration histogram: %w", err)
	}

	return e, nil
}

// ExportSessionClosed records a closed browser session.
func (e *Exporter) ExportSessionClosed(ctx context.Context, s domain.BrowserSession) error {
	e.browserSeconds.Add(ctx, s.ActiveSeconds, metric.WithAttributes(attribute.String("state", "active")))
	e.browserSeconds.Add(ctx, s.BackgroundSeconds, metric.WithAttributes(attribute.String("state", "background")))

	opt := metric.WithAttributes(attribute.String("exit_type", string(s.ExitType)))
	e.browserSessions.Add(ctx, 1, opt)
	e.sessionDuration.Record(ctx, float64(s.DurationSeconds), opt)
	return nil
}

// ExportVideoWatched records a watched video.
func (e *Exporter) ExportVideoWatched(ctx context.Context, w domain.WatchSession) error {
	opt := metric.WithAttributes(
		attribute.Bool("short", w.IsShort),
		attribute.String("source", w.Source),
	)
	e.videosWatched.Add(ctx, 1, opt)
	e.videoSeconds.Record(ctx, float64(w.WatchedSeconds), opt)
	return nil
}

// ExportSync records one push attempt.
func (e *Exporter) ExportSync(ctx context.Context, m ports.SyncMetrics) error {
	e.syncPushes.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", m.Success)))
	e.syncDuration.Record(ctx, m.DurationSeconds)
	if m.Success {
		e.syncRecords.Add(ctx, int64(m.Sessions), metric.WithAttributes(attribute.String("kind", "watch_session")))
		e.syncRecords.Add(ctx, int64(m.BrowserSessions), metric.WithAttributes(attribute.String("kind", "browser_session")))
	}
	return nil
}

// Close shuts down the exporter and flushes any pending metrics.
func (e *Exporter) Close(ctx context.Context) error {
	return e.provider.Shutdown(ctx)
}
