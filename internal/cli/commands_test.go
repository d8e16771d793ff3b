package cli

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emiliopalmerini/ytdetox/internal/domain"
	"github.com/emiliopalmerini/ytdetox/internal/ports"
	"github.com/emiliopalmerini/ytdetox/internal/syncserver"
)

const watchedInput = `{"type":"video_watched","videoId":"abc","title":"Go talk","channel":"GopherCon","durationSeconds":600,"watchedSeconds":300,"playbackSpeed":1,"source":"home"}`

func TestStats_Today(t *testing.T) {
	_, clock := testApp(t)
	ctx := context.Background()

	mustRun(t, `{"type":"page_load","tabId":3}`, "signal")
	mustRun(t, watchedInput, "signal")
	clock.Advance(90 * time.Second).MustWait(ctx)
	mustRun(t, `{"type":"tab_removed","tabId":3}`, "signal")

	out := mustRun(t, "", "stats", "today", "--json")
	var day domain.DailyStats
	require.NoError(t, json.Unmarshal([]byte(out), &day), out)
	assert.Equal(t, "2024-05-01", day.Date)
	assert.Equal(t, int64(90), day.TotalSeconds)
	assert.Equal(t, int64(90), day.ActiveSeconds)
	assert.Equal(t, int64(1), day.VideoCount)
	assert.Equal(t, int64(1), day.Sessions)
	assert.Equal(t, "10:00", day.FirstCheckTime)

	text := mustRun(t, "", "stats", "today")
	assert.Contains(t, text, "2024-05-01")
	assert.Contains(t, text, "first 10:00")
}

func TestStats_WeekAndDay(t *testing.T) {
	testApp(t)

	out := mustRun(t, "", "stats", "week", "--json")
	var days []domain.DailyStats
	require.NoError(t, json.Unmarshal([]byte(out), &days))
	require.Len(t, days, 7)
	assert.Equal(t, "2024-04-25", days[0].Date)
	assert.Equal(t, "2024-05-01", days[6].Date)

	out = mustRun(t, "", "stats", "day", "2024-04-30", "--json")
	var day domain.DailyStats
	require.NoError(t, json.Unmarshal([]byte(out), &day))
	assert.Equal(t, "2024-04-30", day.Date)

	_, err := run(t, "", "stats", "day", "30/04/2024")
	assert.Error(t, err)
}

func TestSummary_SavesLatest(t *testing.T) {
	app, _ := testApp(t)

	mustRun(t, watchedInput, "signal")
	out := mustRun(t, "", "summary", "--json")

	var s domain.WeeklySummary
	require.NoError(t, json.Unmarshal([]byte(out), &s), out)
	assert.Equal(t, int64(1), s.ThisWeek.VideoCount)
	require.Len(t, s.TopChannels, 1)
	assert.Equal(t, "GopherCon", s.TopChannels[0].Channel)
	assert.Equal(t, int64(5), s.TopChannels[0].Minutes)

	latest, err := app.Repos.Summaries.Latest(context.Background())
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, s, *latest)

	assert.Contains(t, mustRun(t, "", "summary"), "GopherCon")
}

func syncServer(t *testing.T, repo *syncserver.MockSyncRepository) string {
	t.Helper()
	srv := httptest.NewServer(syncserver.NewServer(syncserver.DefaultConfig(), syncserver.Stores{
		Sync:     repo,
		Settings: &syncserver.MockSettingsRepository{},
		Stats:    &syncserver.MockStatsRepository{},
	}).Handler())
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestSync_PushAdvancesWatermark(t *testing.T) {
	app, clock := testApp(t)
	ctx := context.Background()

	var received atomic.Int32
	url := syncServer(t, &syncserver.MockSyncRepository{
		ApplyBatchFunc: func(ctx context.Context, batch domain.SyncBatch) (ports.BatchResult, error) {
			received.Add(int32(len(batch.Sessions)))
			return ports.BatchResult{SessionsUpserted: len(batch.Sessions)}, nil
		},
	})

	out := mustRun(t, "", "sync")
	assert.Contains(t, out, "sync not configured")

	mustRun(t, "", "settings", "set", "sync.url", url)
	mustRun(t, "", "settings", "set", "sync.enabled", "true")
	mustRun(t, watchedInput, "signal")

	clock.Advance(time.Minute).MustWait(ctx)
	out = mustRun(t, "", "sync")
	assert.Contains(t, out, "Pushed 1 watch sessions")
	assert.Equal(t, int32(1), received.Load())

	state, err := app.Repos.SyncState.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Minute).UnixMilli()-1, state.LastSync)

	out = mustRun(t, "", "sync")
	assert.Contains(t, out, "nothing to sync")
}

func TestSync_FailureIsReported(t *testing.T) {
	app, _ := testApp(t)
	ctx := context.Background()

	url := syncServer(t, &syncserver.MockSyncRepository{
		ApplyBatchFunc: func(ctx context.Context, batch domain.SyncBatch) (ports.BatchResult, error) {
			return ports.BatchResult{}, errors.New("database is locked")
		},
	})
	mustRun(t, "", "settings", "set", "sync.url", url)
	mustRun(t, "", "settings", "set", "sync.enabled", "true")
	mustRun(t, watchedInput, "signal")

	_, err := run(t, "", "sync")
	require.Error(t, err)

	state, err := app.Repos.SyncState.Get(ctx)
	require.NoError(t, err)
	assert.Zero(t, state.LastSync)
	assert.Len(t, state.OfflineQueue, 1)

	out := mustRun(t, "", "sync", "status")
	assert.Contains(t, out, "Pending:      1")
	assert.Contains(t, out, "Last error:")
}

func TestStatus(t *testing.T) {
	testApp(t)

	mustRun(t, `{"type":"page_load","tabId":3}`, "signal")
	out := mustRun(t, "", "status")
	assert.Contains(t, out, "Tracking:  on (observation phase)")
	assert.Contains(t, out, "Session:   active since 10:00 (tab 3)")
	assert.Contains(t, out, "Sync:      disabled, last never")
}

func TestMigrate(t *testing.T) {
	t.Setenv("YTDETOX_DATABASE_URL", filepath.Join(t.TempDir(), "server.db"))

	out := mustRun(t, "", "migrate")
	assert.Contains(t, out, "Migrated to version 2")

	out = mustRun(t, "", "migrate", "0")
	assert.Contains(t, out, "Migrated to version 0")

	_, err := run(t, "", "migrate", "two")
	assert.Error(t, err)
}
