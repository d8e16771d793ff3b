// Package syncserver is the HTTP surface of the Sync Service.
package syncserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/coder/quartz"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emiliopalmerini/ytdetox/internal/ports"
)

const headerUserID = "X-User-Id"

// Config holds the limits of the HTTP surface.
type Config struct {
	Port                      int
	SyncRateLimit             int
	APIRateLimit              int
	MaxBodyBytes              int64
	MaxSessionsPerSync        int
	MaxBrowserSessionsPerSync int
}

// DefaultConfig returns the limits used when none are configured.
func DefaultConfig() Config {
	return Config{
		Port:                      8080,
		SyncRateLimit:             20,
		APIRateLimit:              100,
		MaxBodyBytes:              5 << 20,
		MaxSessionsPerSync:        200,
		MaxBrowserSessionsPerSync: 100,
	}
}

// Stores groups the repositories the handlers use.
type Stores struct {
	Sync     ports.SyncRepository
	Settings ports.SettingsBlobRepository
	Stats    ports.StatsRepository
}

type Server struct {
	cfg      Config
	stores   Stores
	router   chi.Router
	logger   *slog.Logger
	clock    quartz.Clock
	validate *validator.Validate
	registry *prometheus.Registry
	metrics  *metrics
}

// Option customizes a Server.
type Option func(*Server)

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

func WithClock(c quartz.Clock) Option {
	return func(s *Server) { s.clock = c }
}

func NewServer(cfg Config, stores Stores, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		stores:   stores,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:    quartz.NewReal(),
		validate: newValidator(),
		registry: prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	s.metrics = newMetrics(s.registry)
	s.setupRoutes()
	return s
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names in validation errors.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Use(requireUserID)

		r.With(s.rateLimit(s.cfg.SyncRateLimit)).Post("/sync", s.handleSync)

		r.Group(func(r chi.Router) {
			r.Use(s.rateLimit(s.cfg.APIRateLimit))

			r.Get("/sync/sessions", s.handleSessionsSince)
			r.Get("/settings", s.handleGetSettings)
			r.Put("/settings", s.handlePutSettings)
			r.Get("/stats/overview", s.handleOverviewStats)
			r.Get("/stats/daily", s.handleDailyStats)
			r.Get("/stats/weekly", s.handleWeeklyStats)
			r.Get("/stats/channels", s.handleChannelStats)
		})
	})

	s.router = r
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("sync service listening", "addr", server.Addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("server shutdown error", "error", err)
		}
	}()

	err := server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
