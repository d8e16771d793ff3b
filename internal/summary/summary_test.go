package summary

import (
	"context"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emiliopalmerini/ytdetox/internal/adapters/localstore"
	"github.com/emiliopalmerini/ytdetox/internal/domain"
)

var now = time.Date(2024, 5, 15, 18, 30, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

func TestWindowDates(t *testing.T) {
	dates := WindowDates(now, time.UTC, 14)

	require.Len(t, dates, 14)
	assert.Equal(t, "2024-05-15", dates[0])
	assert.Equal(t, "2024-05-09", dates[6])
	assert.Equal(t, "2024-05-08", dates[7])
	assert.Equal(t, "2024-05-02", dates[13])
}

func TestWindowDates_DSTTransition(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Rome")
	require.NoError(t, err)

	// Clocks go forward on 2024-03-31 in Rome.
	at := time.Date(2024, 4, 1, 0, 30, 0, 0, loc)
	dates := WindowDates(at, loc, 3)

	assert.Equal(t, []string{"2024-04-01", "2024-03-31", "2024-03-30"}, dates)
}

func TestChangePercent(t *testing.T) {
	tests := []struct {
		name       string
		this, prev int64
		want       int64
	}{
		{"no baseline", 120, 0, 0},
		{"no activity", 0, 0, 0},
		{"halved", 50, 100, -50},
		{"doubled", 200, 100, 100},
		{"rounds", 2, 3, -33},
		{"rounds up", 5, 3, 67},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ChangePercent(tt.this, tt.prev))
		})
	}
}

func TestBuild_SplitsWeeks(t *testing.T) {
	days := map[string]domain.DailyStats{
		"2024-05-15": {TotalSeconds: 1800, VideoCount: 3, ProductiveVideos: 1, Sessions: 2},
		"2024-05-09": {TotalSeconds: 1800, VideoCount: 1, UnproductiveVideos: 1, Sessions: 1},
		"2024-05-08": {TotalSeconds: 7200, VideoCount: 4, Sessions: 3},
		"2024-05-01": {TotalSeconds: 99999},
	}

	s := Build(now, time.UTC, days, nil)

	assert.Equal(t, int64(60), s.ThisWeek.Minutes)
	assert.Equal(t, int64(3600), s.ThisWeek.TotalSeconds)
	assert.Equal(t, int64(4), s.ThisWeek.VideoCount)
	assert.Equal(t, int64(1), s.ThisWeek.ProductiveVideos)
	assert.Equal(t, int64(1), s.ThisWeek.UnproductiveVideos)
	assert.Equal(t, int64(3), s.ThisWeek.Sessions)

	assert.Equal(t, int64(120), s.PrevWeek.Minutes)
	assert.Equal(t, int64(3), s.PrevWeek.Sessions)

	assert.Equal(t, int64(-50), s.ChangePercent)
	assert.Equal(t, now.UnixMilli(), s.GeneratedAt)
	assert.Empty(t, s.TopChannels)
}

func TestBuild_NoPreviousWeek(t *testing.T) {
	days := map[string]domain.DailyStats{
		"2024-05-14": {TotalSeconds: 5400},
	}

	s := Build(now, time.UTC, days, nil)

	assert.Equal(t, int64(90), s.ThisWeek.Minutes)
	assert.Equal(t, int64(0), s.ChangePercent)
}

func TestTopChannels(t *testing.T) {
	at := func(day int) int64 {
		return time.Date(2024, 5, day, 12, 0, 0, 0, time.UTC).UnixMilli()
	}
	videos := []domain.WatchSession{
		{VideoID: "a", Channel: strPtr("Alpha"), WatchedSeconds: 300, Timestamp: at(15)},
		{VideoID: "b", Channel: strPtr("Alpha"), WatchedSeconds: 330, Timestamp: at(14)},
		{VideoID: "c", Channel: strPtr("Beta"), WatchedSeconds: 900, Timestamp: at(10)},
		{VideoID: "d", Channel: strPtr("Gamma"), WatchedSeconds: 120, Timestamp: at(9)},
		{VideoID: "e", Channel: strPtr("Delta"), WatchedSeconds: 120, Timestamp: at(12)},
		{VideoID: "f", Channel: nil, WatchedSeconds: 5000, Timestamp: at(15)},
		{VideoID: "g", Channel: strPtr("Old"), WatchedSeconds: 5000, Timestamp: at(8)},
	}

	s := Build(now, time.UTC, nil, videos)

	require.Len(t, s.TopChannels, 3)
	assert.Equal(t, "Beta", s.TopChannels[0].Channel)
	assert.Equal(t, int64(15), s.TopChannels[0].Minutes)
	assert.Equal(t, "Alpha", s.TopChannels[1].Channel)
	assert.Equal(t, int64(11), s.TopChannels[1].Minutes)
	assert.Equal(t, int64(2), s.TopChannels[1].VideoCount)
	// Ties break by name.
	assert.Equal(t, "Delta", s.TopChannels[2].Channel)
	assert.Equal(t, int64(2), s.TopChannels[2].Minutes)
}

func TestCalculator_Compute(t *testing.T) {
	ctx := context.Background()
	store, err := localstore.Open(t.TempDir())
	require.NoError(t, err)
	repos := localstore.NewRepositories(store, localstore.DefaultLimits())

	_, err = repos.DailyStats.MergeIncrement(ctx, "2024-05-15", domain.Counters{domain.CounterTotalSeconds: 600})
	require.NoError(t, err)
	_, err = repos.DailyStats.MergeIncrement(ctx, "2024-05-07", domain.Counters{domain.CounterTotalSeconds: 300})
	require.NoError(t, err)
	_, err = repos.WatchSessions.Append(ctx, domain.WatchSession{
		ID: "w1", VideoID: "v1", Channel: strPtr("Alpha"), WatchedSeconds: 90, Timestamp: now.Add(-time.Hour).UnixMilli(),
	})
	require.NoError(t, err)

	clock := quartz.NewMock(t)
	clock.Set(now)

	s, err := NewCalculator(repos.DailyStats, repos.WatchSessions, clock, time.UTC).Compute(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(10), s.ThisWeek.Minutes)
	assert.Equal(t, int64(5), s.PrevWeek.Minutes)
	assert.Equal(t, int64(100), s.ChangePercent)
	require.Len(t, s.TopChannels, 1)
	assert.Equal(t, int64(2), s.TopChannels[0].Minutes)
}
