package domain

import (
	"math/rand/v2"
	"testing"
	"time"
)

func TestMergeIncrement(t *testing.T) {
	tests := []struct {
		name     string
		existing Counters
		partial  Counters
		want     DailyStats
	}{
		{
			name:     "empty day takes partial",
			existing: nil,
			partial:  Counters{CounterVideoCount: 1, CounterShortsCount: 1},
			want:     DailyStats{Date: "d", VideoCount: 1, ShortsCount: 1},
		},
		{
			name:     "numbers add",
			existing: Counters{CounterTotalSeconds: float64(40), CounterSessions: float64(1)},
			partial:  Counters{CounterTotalSeconds: int64(20), CounterSessions: 1},
			want:     DailyStats{Date: "d", TotalSeconds: 60, Sessions: 2},
		},
		{
			name:     "absent keys untouched",
			existing: Counters{CounterSearchCount: float64(3), CounterVideoCount: float64(2)},
			partial:  Counters{CounterVideoCount: 1},
			want:     DailyStats{Date: "d", SearchCount: 3, VideoCount: 3},
		},
		{
			name:     "non-numeric overwrites",
			existing: Counters{CounterFirstCheckTime: "08:15"},
			partial:  Counters{CounterFirstCheckTime: "09:00"},
			want:     DailyStats{Date: "d", FirstCheckTime: "09:00"},
		},
		{
			name:     "non-numeric existing replaced by number",
			existing: Counters{CounterVideoCount: "garbage"},
			partial:  Counters{CounterVideoCount: 1},
			want:     DailyStats{Date: "d", VideoCount: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DailyStatsFromCounters("d", MergeIncrement(tt.existing, tt.partial))
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestMergeIncrement_DoesNotModifyExisting(t *testing.T) {
	existing := Counters{CounterVideoCount: float64(1)}
	_ = MergeIncrement(existing, Counters{CounterVideoCount: 1})
	if existing[CounterVideoCount] != float64(1) {
		t.Errorf("existing was modified: %v", existing)
	}
}

func TestMergeIncrement_OrderIndependent(t *testing.T) {
	partials := []Counters{
		{CounterTotalSeconds: 40, CounterSessions: 1},
		{CounterVideoCount: 1, CounterShortsCount: 1},
		{CounterVideoCount: 1},
		{CounterProductiveVideos: 1, CounterPromptsAnswered: 1},
		{CounterTotalSeconds: 125, CounterSessions: 1, CounterSearchCount: 2},
		{CounterPromptsShown: 1},
	}

	reference := DailyStatsFromCounters("d", foldAll(nil, partials))

	rng := rand.New(rand.NewPCG(1, 2))
	for run := 0; run < 50; run++ {
		shuffled := append([]Counters(nil), partials...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		got := DailyStatsFromCounters("d", foldAll(nil, shuffled))
		if got != reference {
			t.Fatalf("run %d: got %+v, want %+v", run, got, reference)
		}
	}

	// Grouping: folding two halves separately then together gives the same totals.
	left := foldAll(nil, partials[:3])
	right := foldAll(nil, partials[3:])
	grouped := DailyStatsFromCounters("d", MergeIncrement(left, right))
	if grouped != reference {
		t.Errorf("grouped = %+v, want %+v", grouped, reference)
	}

	want := DailyStats{
		Date: "d", TotalSeconds: 165, Sessions: 2, VideoCount: 2, ShortsCount: 1,
		ProductiveVideos: 1, PromptsAnswered: 1, SearchCount: 2, PromptsShown: 1,
	}
	if reference != want {
		t.Errorf("reference = %+v, want %+v", reference, want)
	}
}

func foldAll(acc Counters, partials []Counters) Counters {
	for _, p := range partials {
		acc = MergeIncrement(acc, p)
	}
	return acc
}

func TestSessionContribution(t *testing.T) {
	ended := int64(40_000)
	s := BrowserSession{
		ID: "s1", StartedAt: 1, EndedAt: &ended,
		DurationSeconds: 40, ActiveSeconds: 35, BackgroundSeconds: 5,
		SearchCount: 2, RecommendationClicks: 1, AutoplayCount: 3,
	}
	got := DailyStatsFromCounters("d", MergeIncrement(nil, SessionContribution(s)))
	want := DailyStats{
		Date: "d", TotalSeconds: 40, ActiveSeconds: 35, BackgroundSeconds: 5, Sessions: 1,
		SearchCount: 2, RecommendationClicks: 1, AutoplayCount: 3,
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestVideoContribution(t *testing.T) {
	short := VideoContribution(WatchSession{IsShort: true})
	assertEqual(t, "short videoCount", 1, short[CounterVideoCount])
	assertEqual(t, "short shortsCount", 1, short[CounterShortsCount])

	long := VideoContribution(WatchSession{})
	if _, ok := long[CounterShortsCount]; ok {
		t.Error("long-form video should not touch shortsCount")
	}
}

func TestDateKey(t *testing.T) {
	ts := time.Date(2024, 5, 1, 23, 30, 0, 0, time.UTC)
	assertEqual(t, "UTC", "2024-05-01", DateKey(ts, time.UTC))

	east := time.FixedZone("UTC+2", 2*60*60)
	assertEqual(t, "UTC+2", "2024-05-02", DateKey(ts, east))
}
