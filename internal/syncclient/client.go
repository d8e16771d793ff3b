// Package syncclient pushes locally buffered records to the Sync Service.
//
// Delivery is at-least-once: the watermark only moves after every request of
// a push succeeded, so a failed push is retried in full on the next tick.
package syncclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/quartz"

	"github.com/emiliopalmerini/ytdetox/internal/domain"
	"github.com/emiliopalmerini/ytdetox/internal/ports"
)

// ErrRemoteRejected is returned when the server answers with a failure.
var ErrRemoteRejected = errors.New("sync rejected by remote")

const (
	DefaultMaxSessionsPerRequest        = 200
	DefaultMaxBrowserSessionsPerRequest = 100

	headerUserID = "X-User-Id"
)

// Stores groups the local repositories the client reads and updates.
type Stores struct {
	Locker          ports.Locker
	Settings        ports.SettingsRepository
	SyncState       ports.SyncStateRepository
	BrowserSessions ports.BrowserSessionRepository
	WatchSessions   ports.WatchSessionRepository
}

type Options struct {
	HTTPClient                   *http.Client
	Clock                        quartz.Clock
	Logger                       *slog.Logger
	Exporter                     ports.MetricsExporter
	MaxSessionsPerRequest        int
	MaxBrowserSessionsPerRequest int
}

type Client struct {
	stores      Stores
	http        *http.Client
	clock       quartz.Clock
	logger      *slog.Logger
	exporter    ports.MetricsExporter
	maxSessions int
	maxBrowser  int
}

func New(stores Stores, opts Options) *Client {
	c := &Client{
		stores:      stores,
		http:        opts.HTTPClient,
		clock:       opts.Clock,
		logger:      opts.Logger,
		exporter:    opts.Exporter,
		maxSessions: opts.MaxSessionsPerRequest,
		maxBrowser:  opts.MaxBrowserSessionsPerRequest,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 10 * time.Second}
	}
	if c.clock == nil {
		c.clock = quartz.NewReal()
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if c.maxSessions <= 0 {
		c.maxSessions = DefaultMaxSessionsPerRequest
	}
	if c.maxBrowser <= 0 {
		c.maxBrowser = DefaultMaxBrowserSessionsPerRequest
	}
	return c
}

// PushResult describes one push cycle.
type PushResult struct {
	Skipped         bool   `json:"skipped,omitempty"`
	Reason          string `json:"reason,omitempty"`
	Sessions        int    `json:"sessions"`
	BrowserSessions int    `json:"browserSessions"`
	Requests        int    `json:"requests"`
	Watermark       int64  `json:"watermark"`
}

// Push sends every record newer than the watermark. It is a no-op when sync
// is not configured or nothing changed.
func (c *Client) Push(ctx context.Context) (PushResult, error) {
	settings, err := c.stores.Settings.Get(ctx)
	if err != nil {
		return PushResult{}, err
	}
	if !settings.SyncConfigured() {
		return PushResult{Skipped: true, Reason: "sync not configured"}, nil
	}

	state, err := c.stores.SyncState.Get(ctx)
	if err != nil {
		return PushResult{}, err
	}

	var (
		now      int64
		sessions []domain.WatchSession
		browser  []domain.BrowserSession
	)
	// Selecting under the transition lock means nothing is half written.
	// Records written afterwards are stamped at now or later.
	err = c.stores.Locker.Exclusive(ctx, func(ctx context.Context) error {
		now = c.clock.Now().UnixMilli()
		var err error
		if sessions, err = c.stores.WatchSessions.Since(ctx, state.LastSync); err != nil {
			return err
		}
		browser, err = c.stores.BrowserSessions.Since(ctx, state.LastSync)
		return err
	})
	if err != nil {
		return PushResult{}, fmt.Errorf("failed to select unsynced records: %w", err)
	}

	res := PushResult{Watermark: state.LastSync, Sessions: len(sessions), BrowserSessions: len(browser)}
	if len(sessions) == 0 && len(browser) == 0 {
		res.Skipped, res.Reason = true, "nothing to sync"
		return res, nil
	}

	start := c.clock.Now()
	batches := Chunk(settings.Sync.UserID, sessions, browser, c.maxSessions, c.maxBrowser)
	for _, b := range batches {
		if _, err = c.send(ctx, settings.Sync.URL, b); err != nil {
			break
		}
		res.Requests++
	}
	c.export(ctx, err == nil, res, c.clock.Since(start))

	if err != nil {
		state.LastError = err.Error()
		state.LastAttempt = now
		state.OfflineQueue = pendingIDs(sessions, browser)
		if saveErr := c.stores.SyncState.Save(ctx, state); saveErr != nil {
			c.logger.Warn("failed to record sync failure", "error", saveErr)
		}
		c.logger.Warn("sync push failed", "error", err, "sessions", res.Sessions, "browser_sessions", res.BrowserSessions)
		return res, err
	}

	// A record stamped in the selection millisecond after the lock was
	// released must still be newer than the watermark.
	state.Advance(now - 1)
	state.LastError = ""
	state.LastAttempt = now
	state.OfflineQueue = nil
	if err := c.stores.SyncState.Save(ctx, state); err != nil {
		return res, fmt.Errorf("failed to save sync watermark: %w", err)
	}
	if _, err := c.stores.Settings.Update(ctx, func(s *domain.Settings) error {
		if state.LastSync > s.Sync.LastSync {
			s.Sync.LastSync = state.LastSync
		}
		return nil
	}); err != nil {
		c.logger.Warn("failed to mirror last sync into settings", "error", err)
	}

	res.Watermark = state.LastSync
	c.logger.Info("sync push complete",
		"sessions", res.Sessions,
		"browser_sessions", res.BrowserSessions,
		"requests", res.Requests,
	)
	return res, nil
}

// Chunk splits the records into batches no larger than the given ceilings.
func Chunk(userID string, sessions []domain.WatchSession, browser []domain.BrowserSession, maxSessions, maxBrowser int) []domain.SyncBatch {
	var out []domain.SyncBatch
	for len(sessions) > 0 || len(browser) > 0 {
		b := domain.SyncBatch{
			UserID:          userID,
			Sessions:        []domain.WatchSession{},
			BrowserSessions: []domain.BrowserSession{},
		}
		n := min(len(sessions), maxSessions)
		b.Sessions = append(b.Sessions, sessions[:n]...)
		sessions = sessions[n:]

		m := min(len(browser), maxBrowser)
		b.BrowserSessions = append(b.BrowserSessions, browser[:m]...)
		browser = browser[m:]

		out = append(out, b)
	}
	return out
}

func (c *Client) send(ctx context.Context, baseURL string, batch domain.SyncBatch) (domain.SyncResponse, error) {
	var resp domain.SyncResponse
	if err := c.do(ctx, http.MethodPost, baseURL, "/api/sync", batch.UserID, batch, &resp); err != nil {
		return resp, err
	}
	if !resp.Success {
		return resp, fmt.Errorf("%w: %s", ErrRemoteRejected, resp.Error)
	}
	return resp, nil
}

// PushSettings uploads the local settings blob.
func (c *Client) PushSettings(ctx context.Context) error {
	settings, err := c.stores.Settings.Get(ctx)
	if err != nil {
		return err
	}
	if settings.Sync.URL == "" || settings.Sync.UserID == "" {
		return fmt.Errorf("remote sync url and user id must be set")
	}

	blob, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	body := domain.SettingsEnvelope{UserID: settings.Sync.UserID, Settings: blob}
	return c.do(ctx, http.MethodPut, settings.Sync.URL, "/api/settings", settings.Sync.UserID, body, nil)
}

// PullSettings replaces the local settings with the remote blob. The remote
// connection fields are kept from the local copy. It reports false when the
// server has no settings stored.
func (c *Client) PullSettings(ctx context.Context) (domain.Settings, bool, error) {
	local, err := c.stores.Settings.Get(ctx)
	if err != nil {
		return local, false, err
	}
	if local.Sync.URL == "" || local.Sync.UserID == "" {
		return local, false, fmt.Errorf("remote sync url and user id must be set")
	}

	var env domain.SettingsEnvelope
	if err := c.do(ctx, http.MethodGet, local.Sync.URL, "/api/settings", local.Sync.UserID, nil, &env); err != nil {
		return local, false, err
	}
	if len(env.Settings) == 0 || string(env.Settings) == "null" {
		return local, false, nil
	}

	remote := domain.DefaultSettings()
	if err := json.Unmarshal(env.Settings, &remote); err != nil {
		return local, false, fmt.Errorf("failed to decode remote settings: %w", err)
	}
	remote.Sync = local.Sync

	if err := c.stores.Settings.Save(ctx, remote); err != nil {
		return local, false, err
	}
	return remote, true, nil
}

func (c *Client) do(ctx context.Context, method, baseURL, path, userID string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(baseURL, "/")+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set(headerUserID, userID)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach sync service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return fmt.Errorf("%w: %s %s: status %d: %s", ErrRemoteRejected, method, path, resp.StatusCode, msg)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) export(ctx context.Context, success bool, res PushResult, elapsed time.Duration) {
	if c.exporter == nil {
		return
	}
	err := c.exporter.ExportSync(ctx, ports.SyncMetrics{
		Success:         success,
		Sessions:        res.Sessions,
		BrowserSessions: res.BrowserSessions,
		Requests:        res.Requests,
		DurationSeconds: elapsed.Seconds(),
	})
	if err != nil {
		c.logger.Warn("failed to export sync metrics", "error", err)
	}
}

func pendingIDs(sessions []domain.WatchSession, browser []domain.BrowserSession) []string {
	ids := make([]string, 0, len(sessions)+len(browser))
	for _, s := range sessions {
		ids = append(ids, s.ID)
	}
	for _, b := range browser {
		ids = append(ids, b.ID)
	}
	return ids
}
