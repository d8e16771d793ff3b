package domain

import (
	"time"

	"github.com/emiliopalmerini/ytdetox/internal/util"
)

// DateLayout is the calendar-date key format.
const DateLayout = "2006-01-02"

// Daily counter keys.
const (
	CounterTotalSeconds         = "totalSeconds"
	CounterActiveSeconds        = "activeSeconds"
	CounterBackgroundSeconds    = "backgroundSeconds"
	CounterSessions             = "sessions"
	CounterVideoCount           = "videoCount"
	CounterShortsCount          = "shortsCount"
	CounterSearchCount          = "searchCount"
	CounterRecommendationClicks = "recommendationClicks"
	CounterAutoplayCount        = "autoplayCount"
	CounterProductiveVideos     = "productiveVideos"
	CounterUnproductiveVideos   = "unproductiveVideos"
	CounterNeutralVideos        = "neutralVideos"
	CounterPromptsShown         = "promptsShown"
	CounterPromptsAnswered      = "promptsAnswered"
	CounterFirstCheckTime       = "firstCheckTime"
)

// Counters is a partial or complete day record.
type Counters map[string]any

// MergeIncrement folds partial into existing and returns the result.
// Numeric values add onto numeric values; anything else overwrites.
// Keys absent from partial are left untouched. existing is not modified.
func MergeIncrement(existing, partial Counters) Counters {
	out := make(Counters, len(existing)+len(partial))
	for k, v := range existing {
		out[k] = v
	}
	for k, delta := range partial {
		cur, ok := out[k]
		if ok {
			a, curNum := util.AsNumber(cur)
			b, deltaNum := util.AsNumber(delta)
			if curNum && deltaNum {
				out[k] = a + b
				continue
			}
		}
		out[k] = delta
	}
	return out
}

// DailyStats is the typed view of one day's counters.
type DailyStats struct {
	Date                 string `json:"date"`
	TotalSeconds         int64  `json:"totalSeconds"`
	ActiveSeconds        int64  `json:"activeSeconds"`
	BackgroundSeconds    int64  `json:"backgroundSeconds"`
	Sessions             int64  `json:"sessions"`
	VideoCount           int64  `json:"videoCount"`
	ShortsCount          int64  `json:"shortsCount"`
	SearchCount          int64  `json:"searchCount"`
	RecommendationClicks int64  `json:"recommendationClicks"`
	AutoplayCount        int64  `json:"autoplayCount"`
	ProductiveVideos     int64  `json:"productiveVideos"`
	UnproductiveVideos   int64  `json:"unproductiveVideos"`
	NeutralVideos        int64  `json:"neutralVideos"`
	PromptsShown         int64  `json:"promptsShown"`
	PromptsAnswered      int64  `json:"promptsAnswered"`
	FirstCheckTime       string `json:"firstCheckTime,omitempty"`
}

// DailyStatsFromCounters converts a stored day record.
func DailyStatsFromCounters(date string, c Counters) DailyStats {
	first, _ := c[CounterFirstCheckTime].(string)
	return DailyStats{
		Date:                 date,
		TotalSeconds:         util.ToInt64(c[CounterTotalSeconds]),
		ActiveSeconds:        util.ToInt64(c[CounterActiveSeconds]),
		BackgroundSeconds:    util.ToInt64(c[CounterBackgroundSeconds]),
		Sessions:             util.ToInt64(c[CounterSessions]),
		VideoCount:           util.ToInt64(c[CounterVideoCount]),
		ShortsCount:          util.ToInt64(c[CounterShortsCount]),
		SearchCount:          util.ToInt64(c[CounterSearchCount]),
		RecommendationClicks: util.ToInt64(c[CounterRecommendationClicks]),
		AutoplayCount:        util.ToInt64(c[CounterAutoplayCount]),
		ProductiveVideos:     util.ToInt64(c[CounterProductiveVideos]),
		UnproductiveVideos:   util.ToInt64(c[CounterUnproductiveVideos]),
		NeutralVideos:        util.ToInt64(c[CounterNeutralVideos]),
		PromptsShown:         util.ToInt64(c[CounterPromptsShown]),
		PromptsAnswered:      util.ToInt64(c[CounterPromptsAnswered]),
		FirstCheckTime:       first,
	}
}

// SessionContribution is what a closed session folds into its day.
func SessionContribution(s BrowserSession) Counters {
	return Counters{
		CounterTotalSeconds:         s.DurationSeconds,
		CounterActiveSeconds:        s.ActiveSeconds,
		CounterBackgroundSeconds:    s.BackgroundSeconds,
		CounterSessions:             1,
		CounterSearchCount:          s.SearchCount,
		CounterRecommendationClicks: s.RecommendationClicks,
		CounterAutoplayCount:        s.AutoplayCount,
	}
}

// VideoContribution is what a watched video folds into its day.
func VideoContribution(w WatchSession) Counters {
	c := Counters{CounterVideoCount: 1}
	if w.IsShort {
		c[CounterShortsCount] = 1
	}
	return c
}

// DateKey formats t as a calendar date in loc.
func DateKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(DateLayout)
}
