package tracker_test

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/coder/quartz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/emiliopalmerini/ytdetox/internal/adapters/localstore"
	"github.com/emiliopalmerini/ytdetox/internal/domain"
	"github.com/emiliopalmerini/ytdetox/internal/tracker"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

type fixture struct {
	t     *testing.T
	ctx   context.Context
	clock *quartz.Mock
	repos *localstore.Repositories
	mgr   *tracker.Manager
	ids   int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store, err := localstore.Open(t.TempDir())
	require.NoError(t, err)

	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		clock: quartz.NewMock(t),
		repos: localstore.NewRepositories(store, localstore.DefaultLimits()),
	}
	f.clock.Set(t0).MustWait(f.ctx)
	f.mgr = f.newManager()
	return f
}

func (f *fixture) newManager() *tracker.Manager {
	m := tracker.NewManager(tracker.Stores{
		Locker:          f.repos.Locker,
		Settings:        f.repos.Settings,
		Checkpoints:     f.repos.Checkpoints,
		BrowserSessions: f.repos.BrowserSessions,
		WatchSessions:   f.repos.WatchSessions,
		DailyStats:      f.repos.DailyStats,
	}, tracker.Options{
		Clock:    f.clock,
		Location: time.UTC,
		NewID: func() string {
			f.ids++
			return fmt.Sprintf("session-%d", f.ids)
		},
	})
	f.t.Cleanup(m.Close)
	return m
}

func (f *fixture) dispatch(sig domain.Signal) tracker.Result {
	f.t.Helper()
	res, err := f.mgr.Dispatch(f.ctx, sig)
	require.NoError(f.t, err)
	return res
}

func (f *fixture) advance(d time.Duration) {
	f.clock.Advance(d).MustWait(f.ctx)
}

func (f *fixture) sessions() []domain.BrowserSession {
	f.t.Helper()
	list, err := f.repos.BrowserSessions.List(f.ctx)
	require.NoError(f.t, err)
	return list
}

func (f *fixture) day(date string) domain.DailyStats {
	f.t.Helper()
	d, err := f.repos.DailyStats.Get(f.ctx, date)
	require.NoError(f.t, err)
	return d
}

func TestManager_HiddenThenVisibleThenClosed(t *testing.T) {
	f := newFixture(t)

	res := f.dispatch(domain.PageLoad{TabID: 7})
	assert.Equal(t, domain.StateActive, res.State)
	f.advance(10 * time.Second)
	res = f.dispatch(domain.TabHidden{TabID: 7})
	assert.Equal(t, domain.StateBackgrounded, res.State)
	f.advance(5 * time.Second)
	res = f.dispatch(domain.TabVisible{TabID: 7})
	assert.Equal(t, domain.StateActive, res.State)
	f.advance(25 * time.Second)
	res = f.dispatch(domain.TabRemoved{TabID: 7})

	assert.Equal(t, domain.StateIdle, res.State)
	require.Len(t, res.Closed, 1)
	s := res.Closed[0]
	assert.Equal(t, int64(35), s.ActiveSeconds)
	assert.Equal(t, int64(5), s.BackgroundSeconds)
	assert.Equal(t, int64(40), s.DurationSeconds)
	assert.Equal(t, domain.ExitTabClosed, s.ExitType)

	require.Len(t, f.sessions(), 1, "session persisted exactly once")
	day := f.day("2024-05-01")
	assert.Equal(t, int64(40), day.TotalSeconds)
	assert.Equal(t, int64(35), day.ActiveSeconds)
	assert.Equal(t, int64(1), day.Sessions)

	open, err := f.repos.Checkpoints.Load(f.ctx)
	require.NoError(t, err)
	assert.Nil(t, open)

	// Closing again is a no-op.
	res = f.dispatch(domain.TabRemoved{TabID: 7})
	assert.Empty(t, res.Closed)
	require.Len(t, f.sessions(), 1)
}

func TestManager_GraceTimerClosesSession(t *testing.T) {
	f := newFixture(t)

	f.dispatch(domain.PageLoad{TabID: 1})
	f.advance(10 * time.Second)
	f.dispatch(domain.TabHidden{TabID: 1})
	f.advance(30 * time.Second)

	require.Eventually(t, func() bool {
		return len(f.sessions()) == 1
	}, 5*time.Second, 10*time.Millisecond)

	s := f.sessions()[0]
	assert.Equal(t, int64(10), s.ActiveSeconds)
	assert.Equal(t, int64(30), s.BackgroundSeconds)
	assert.Equal(t, domain.ExitGraceExpired, s.ExitType)
	require.NotNil(t, s.EndedAt)
	assert.Equal(t, t0.Add(40*time.Second).UnixMilli(), *s.EndedAt)
}

func TestManager_RestartClosesExpiredCheckpointAtDeadline(t *testing.T) {
	f := newFixture(t)

	f.dispatch(domain.PageLoad{TabID: 1})
	f.advance(10 * time.Second)
	f.dispatch(domain.TabHidden{TabID: 1})
	// The host kills the process before the grace timer fires.
	f.mgr.Close()
	f.advance(100 * time.Second)

	f.mgr = f.newManager()
	res, err := f.mgr.Reconcile(f.ctx)
	require.NoError(t, err)

	require.Len(t, res.Closed, 1)
	s := res.Closed[0]
	assert.Equal(t, int64(10), s.ActiveSeconds)
	assert.Equal(t, int64(30), s.BackgroundSeconds)
	assert.Equal(t, t0.Add(40*time.Second).UnixMilli(), *s.EndedAt)
	assert.Equal(t, t0.Add(110*time.Second).UnixMilli(), s.RecordedAt, "recorded when closed, not when it ended")
	assert.Equal(t, domain.StateIdle, res.State)
}

func TestManager_RestartThenPageLoadOpensNewSession(t *testing.T) {
	f := newFixture(t)

	first := f.dispatch(domain.PageLoad{TabID: 1})
	f.dispatch(domain.TabHidden{TabID: 1})
	f.mgr.Close()
	f.advance(2 * time.Minute)

	f.mgr = f.newManager()
	res := f.dispatch(domain.PageLoad{TabID: 2})

	require.Len(t, res.Closed, 1)
	assert.Equal(t, first.SessionID, res.Closed[0].ID)
	assert.NotEqual(t, first.SessionID, res.SessionID)
	assert.Equal(t, domain.StateActive, res.State)
}

func TestManager_StaleActiveSessionClosesAtLastSeen(t *testing.T) {
	f := newFixture(t)

	f.dispatch(domain.PageLoad{TabID: 1})
	f.advance(time.Minute)
	f.dispatch(domain.Heartbeat{})
	f.advance(6 * time.Minute)

	res, err := f.mgr.Reconcile(f.ctx)
	require.NoError(t, err)
	require.Len(t, res.Closed, 1)
	s := res.Closed[0]
	assert.Equal(t, domain.ExitStale, s.ExitType)
	assert.Equal(t, int64(60), s.ActiveSeconds)
	assert.Equal(t, t0.Add(time.Minute).UnixMilli(), *s.EndedAt)
}

func TestManager_PageLoadContinuesOpenSession(t *testing.T) {
	f := newFixture(t)

	first := f.dispatch(domain.PageLoad{TabID: 1})
	f.advance(5 * time.Second)
	second := f.dispatch(domain.PageLoad{TabID: 1})

	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Empty(t, f.sessions())
}

func TestManager_PageLoadWhileBackgroundedCancelsGrace(t *testing.T) {
	f := newFixture(t)

	f.dispatch(domain.PageLoad{TabID: 1})
	f.advance(5 * time.Second)
	f.dispatch(domain.TabHidden{TabID: 1})
	f.advance(5 * time.Second)
	res := f.dispatch(domain.PageLoad{TabID: 1})
	assert.Equal(t, domain.StateBackgrounded, res.State)

	f.advance(40 * time.Second)
	res, err := f.mgr.Reconcile(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, res.Closed)

	open, err := f.repos.Checkpoints.Load(f.ctx)
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Nil(t, open.GraceDeadline)

	// Hiding again re-arms the grace period.
	f.dispatch(domain.TabHidden{TabID: 1})
	open, err = f.repos.Checkpoints.Load(f.ctx)
	require.NoError(t, err)
	require.NotNil(t, open.GraceDeadline)
	assert.True(t, open.GraceDeadline.Equal(t0.Add(80*time.Second)))

	f.advance(30 * time.Second)
	require.Eventually(t, func() bool {
		return len(f.sessions()) == 1
	}, 5*time.Second, 10*time.Millisecond)
	s := f.sessions()[0]
	assert.Equal(t, domain.ExitGraceExpired, s.ExitType)
	assert.Equal(t, int64(5), s.ActiveSeconds)
	assert.Equal(t, int64(75), s.BackgroundSeconds)
}

func TestManager_RepeatedHideKeepsFirstDeadline(t *testing.T) {
	f := newFixture(t)

	f.dispatch(domain.PageLoad{TabID: 1})
	f.dispatch(domain.TabHidden{TabID: 1})
	f.advance(10 * time.Second)
	f.dispatch(domain.PageUnload{TabID: 1})

	open, err := f.repos.Checkpoints.Load(f.ctx)
	require.NoError(t, err)
	require.NotNil(t, open.GraceDeadline)
	assert.True(t, open.GraceDeadline.Equal(t0.Add(30*time.Second)))
}

func TestManager_TabRemovedForOtherTabIsIgnored(t *testing.T) {
	f := newFixture(t)

	f.dispatch(domain.PageLoad{TabID: 1})
	res := f.dispatch(domain.TabRemoved{TabID: 2})

	assert.Empty(t, res.Closed)
	assert.Equal(t, domain.StateActive, res.State)
}

func TestManager_CountersFoldIntoDayAtClose(t *testing.T) {
	f := newFixture(t)

	f.dispatch(domain.PageLoad{TabID: 1})
	f.dispatch(domain.Search{})
	f.dispatch(domain.Search{})
	f.dispatch(domain.RecommendationClick{})
	f.dispatch(domain.AutoplayPending{})
	f.advance(20 * time.Second)
	res := f.dispatch(domain.TabRemoved{TabID: 1})

	require.Len(t, res.Closed, 1)
	assert.Equal(t, int64(2), res.Closed[0].SearchCount)

	day := f.day("2024-05-01")
	assert.Equal(t, int64(2), day.SearchCount)
	assert.Equal(t, int64(1), day.RecommendationClicks)
	assert.Equal(t, int64(1), day.AutoplayCount)
	assert.Equal(t, "10:00", day.FirstCheckTime)
}

func TestManager_FirstCheckTimeIsKept(t *testing.T) {
	f := newFixture(t)

	f.dispatch(domain.PageLoad{TabID: 1})
	f.dispatch(domain.TabRemoved{TabID: 1})
	f.advance(2 * time.Hour)
	f.dispatch(domain.PageLoad{TabID: 1})

	assert.Equal(t, "10:00", f.day("2024-05-01").FirstCheckTime)
}

func TestManager_VideoWatched(t *testing.T) {
	f := newFixture(t)
	_, err := f.repos.Settings.Update(f.ctx, func(s *domain.Settings) error {
		s.Sync.UserID = "user-1"
		return nil
	})
	require.NoError(t, err)

	open := f.dispatch(domain.PageLoad{TabID: 1})
	channel := "Numberphile"
	sig := domain.VideoWatched{
		VideoID:         "abc",
		Title:           "Primes",
		Channel:         &channel,
		DurationSeconds: 60,
		WatchedSeconds:  45,
		IsShort:         true,
		Source:          "shorts",
	}
	res := f.dispatch(sig)

	require.NotNil(t, res.Video)
	w := *res.Video
	assert.Equal(t, domain.WatchSessionID("user-1", "abc", t0.UnixMilli()), w.ID)
	assert.Equal(t, int64(75), w.WatchedPercent)
	assert.Equal(t, 1.0, w.PlaybackSpeed)
	assert.Nil(t, w.ProductivityRating)
	assert.Equal(t, open.SessionID, w.BrowserSessionID)

	// Redelivery of the same logical event.
	f.dispatch(sig)

	videos, err := f.repos.WatchSessions.List(f.ctx)
	require.NoError(t, err)
	require.Len(t, videos, 1)

	day := f.day("2024-05-01")
	assert.Equal(t, int64(1), day.VideoCount)
	assert.Equal(t, int64(1), day.ShortsCount)

	closed := f.dispatch(domain.TabRemoved{TabID: 1}).Closed
	require.Len(t, closed, 1)
	assert.Equal(t, int64(1), closed[0].VideosWatched)
	assert.Equal(t, int64(1), closed[0].ShortsCount)
	assert.Equal(t, []string{"abc"}, closed[0].VideoIDs)
}

func TestManager_VideoWatchedWithoutSession(t *testing.T) {
	f := newFixture(t)

	res := f.dispatch(domain.VideoWatched{VideoID: "abc", DurationSeconds: 0, WatchedSeconds: 10})

	assert.Equal(t, domain.StateIdle, res.State)
	require.NotNil(t, res.Video)
	assert.Equal(t, int64(0), res.Video.WatchedPercent)
	assert.Empty(t, res.Video.BrowserSessionID)
	assert.Equal(t, int64(1), f.day("2024-05-01").VideoCount)
	assert.Equal(t, int64(0), f.day("2024-05-01").ShortsCount)
}

func TestManager_RateVideo(t *testing.T) {
	f := newFixture(t)

	f.dispatch(domain.VideoWatched{VideoID: "abc", DurationSeconds: 100, WatchedSeconds: 100})
	f.advance(time.Minute)
	f.dispatch(domain.VideoWatched{VideoID: "abc", DurationSeconds: 100, WatchedSeconds: 50})
	f.dispatch(domain.PromptShown{VideoID: "abc"})
	f.advance(time.Second)

	res := f.dispatch(domain.RateVideo{VideoID: "abc", Rating: domain.RatingProductive})
	require.NotNil(t, res.Video)
	assert.Equal(t, t0.Add(time.Minute).UnixMilli(), res.Video.Timestamp, "newest record is rated")
	require.NotNil(t, res.Video.RatedAt)
	assert.Equal(t, t0.Add(61*time.Second).UnixMilli(), *res.Video.RatedAt)

	videos, err := f.repos.WatchSessions.List(f.ctx)
	require.NoError(t, err)
	assert.Nil(t, videos[0].ProductivityRating)
	require.NotNil(t, videos[1].ProductivityRating)
	assert.Equal(t, 1, *videos[1].ProductivityRating)

	day := f.day("2024-05-01")
	assert.Equal(t, int64(1), day.ProductiveVideos)
	assert.Equal(t, int64(0), day.UnproductiveVideos)
	assert.Equal(t, int64(1), day.PromptsShown)
	assert.Equal(t, int64(1), day.PromptsAnswered)

	_, err = f.mgr.Dispatch(f.ctx, domain.RateVideo{VideoID: "nope", Rating: 0})
	require.ErrorIs(t, err, domain.ErrVideoNotFound)
}

func TestManager_TrackingDisabledIgnoresObserverSignals(t *testing.T) {
	f := newFixture(t)
	f.dispatch(domain.VideoWatched{VideoID: "abc"})
	_, err := f.repos.Settings.Update(f.ctx, func(s *domain.Settings) error {
		s.TrackingEnabled = false
		return nil
	})
	require.NoError(t, err)

	res := f.dispatch(domain.PageLoad{TabID: 1})
	assert.True(t, res.Ignored)
	assert.Equal(t, domain.StateIdle, res.State)

	res = f.dispatch(domain.RateVideo{VideoID: "abc", Rating: domain.RatingUnproductive})
	assert.False(t, res.Ignored)
	assert.Equal(t, int64(1), f.day("2024-05-01").UnproductiveVideos)
}

// Random hide/show sequences must split the elapsed time exactly between
// the two counters, give or take rounding.
func TestManager_SplitMatchesElapsedTime(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 7))

	for run := 0; run < 15; run++ {
		steps := 2 + rng.IntN(8)
		delays := make([]time.Duration, 0, steps*2+1)
		for i := 0; i < steps*2+1; i++ {
			if i%2 == 1 {
				// Hidden intervals stay inside the grace period.
				delays = append(delays, time.Duration(1+rng.IntN(28_000))*time.Millisecond)
			} else {
				delays = append(delays, time.Duration(1+rng.IntN(120_000))*time.Millisecond)
			}
		}

		t.Run(fmt.Sprintf("run-%d", run), func(t *testing.T) {
			f := newFixture(t)
			var elapsed time.Duration

			f.dispatch(domain.PageLoad{TabID: 3})
			for i, d := range delays {
				f.advance(d)
				elapsed += d
				switch {
				case i == len(delays)-1:
				case i%2 == 0:
					f.dispatch(domain.TabHidden{TabID: 3})
				default:
					f.dispatch(domain.TabVisible{TabID: 3})
				}
			}
			res := f.dispatch(domain.TabRemoved{TabID: 3})

			require.Len(t, res.Closed, 1)
			s := res.Closed[0]
			want := int64(math.Round(elapsed.Seconds()))
			assert.InDelta(t, want, s.ActiveSeconds+s.BackgroundSeconds, 1)
			assert.Equal(t, s.ActiveSeconds+s.BackgroundSeconds, s.DurationSeconds)
		})
	}
}
