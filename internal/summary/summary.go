// Package summary computes the week-over-week comparison shown to the user.
package summary

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/coder/quartz"

	"github.com/emiliopalmerini/ytdetox/internal/domain"
	"github.com/emiliopalmerini/ytdetox/internal/ports"
)

const (
	windowDays     = 14
	weekDays       = 7
	topChannelsMax = 3
)

// Calculator builds weekly summaries from the local aggregation store.
type Calculator struct {
	stats  ports.DailyStatsRepository
	videos ports.WatchSessionRepository
	clock  quartz.Clock
	loc    *time.Location
}

func NewCalculator(stats ports.DailyStatsRepository, videos ports.WatchSessionRepository, clock quartz.Clock, loc *time.Location) *Calculator {
	if clock == nil {
		clock = quartz.NewReal()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Calculator{stats: stats, videos: videos, clock: clock, loc: loc}
}

// Compute returns the summary for the fourteen days ending today.
func (c *Calculator) Compute(ctx context.Context) (domain.WeeklySummary, error) {
	now := c.clock.Now()
	dates := WindowDates(now, c.loc, windowDays)

	days, err := c.stats.Range(ctx, dates)
	if err != nil {
		return domain.WeeklySummary{}, fmt.Errorf("failed to load daily stats: %w", err)
	}
	videos, err := c.videos.List(ctx)
	if err != nil {
		return domain.WeeklySummary{}, fmt.Errorf("failed to load watch sessions: %w", err)
	}
	return Build(now, c.loc, days, videos), nil
}

// WindowDates lists n date keys from today backwards: index 0 is today.
func WindowDates(now time.Time, loc *time.Location, n int) []string {
	local := now.In(loc)
	// Noon keeps the day arithmetic clear of DST transitions.
	noon := time.Date(local.Year(), local.Month(), local.Day(), 12, 0, 0, 0, loc)
	dates := make([]string, n)
	for i := range dates {
		dates[i] = noon.AddDate(0, 0, -i).Format(domain.DateLayout)
	}
	return dates
}

// Build is the pure part of Compute.
func Build(now time.Time, loc *time.Location, days map[string]domain.DailyStats, videos []domain.WatchSession) domain.WeeklySummary {
	dates := WindowDates(now, loc, windowDays)

	var this, prev domain.WeekTotals
	thisWeek := make(map[string]bool, weekDays)
	for i, date := range dates {
		target := &this
		if i >= weekDays {
			target = &prev
		} else {
			thisWeek[date] = true
		}
		d, ok := days[date]
		if !ok {
			continue
		}
		target.Add(d)
	}
	this.Minutes = Minutes(this.TotalSeconds)
	prev.Minutes = Minutes(prev.TotalSeconds)

	return domain.WeeklySummary{
		GeneratedAt:   now.UnixMilli(),
		ThisWeek:      this,
		PrevWeek:      prev,
		ChangePercent: ChangePercent(this.Minutes, prev.Minutes),
		TopChannels:   TopChannels(videos, loc, thisWeek, topChannelsMax),
	}
}

// ChangePercent is the rounded relative change, 0 when there is no baseline.
func ChangePercent(thisMinutes, prevMinutes int64) int64 {
	if prevMinutes == 0 {
		return 0
	}
	return int64(math.Round(float64(thisMinutes-prevMinutes) / float64(prevMinutes) * 100))
}

// Minutes rounds seconds to whole minutes.
func Minutes(seconds int64) int64 {
	return int64(math.Round(float64(seconds) / 60))
}

// TopChannels sums watched seconds per channel for videos whose local date
// is in dates and returns the largest n. Videos without a channel are skipped.
func TopChannels(videos []domain.WatchSession, loc *time.Location, dates map[string]bool, n int) []domain.ChannelMinutes {
	byChannel := make(map[string]*domain.ChannelMinutes)
	for _, v := range videos {
		if v.Channel == nil || *v.Channel == "" {
			continue
		}
		if !dates[domain.DateKey(time.UnixMilli(v.Timestamp), loc)] {
			continue
		}
		cm, ok := byChannel[*v.Channel]
		if !ok {
			cm = &domain.ChannelMinutes{Channel: *v.Channel}
			byChannel[*v.Channel] = cm
		}
		cm.WatchedSeconds += v.WatchedSeconds
		cm.VideoCount++
	}

	out := make([]domain.ChannelMinutes, 0, len(byChannel))
	for _, cm := range byChannel {
		cm.Minutes = Minutes(cm.WatchedSeconds)
		out = append(out, *cm)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].WatchedSeconds != out[j].WatchedSeconds {
			return out[i].WatchedSeconds > out[j].WatchedSeconds
		}
		return out[i].Channel < out[j].Channel
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
