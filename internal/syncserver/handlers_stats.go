package syncserver

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/emiliopalmerini/ytdetox/internal/domain"
	"github.com/emiliopalmerini/ytdetox/internal/summary"
	"github.com/emiliopalmerini/ytdetox/internal/util"
)

const (
	defaultChannelDays = 30
	maxChannelDays     = 90
	channelLimit       = 20
	weeklyDays         = 7
)

// WeeklyStats is the response of the weekly stats endpoint. Days is ordered
// oldest first.
type WeeklyStats struct {
	Days   []domain.DailyStats `json:"days"`
	Totals domain.WeekTotals   `json:"totals"`
}

// OverviewStats is the response of the overview endpoint. Last7Days holds
// only days with activity, newest first.
type OverviewStats struct {
	Today           *domain.DailyStats  `json:"today"`
	Last7Days       []domain.DailyStats `json:"last7Days"`
	TotalVideos     int64               `json:"totalVideos"`
	TotalHours      float64             `json:"totalHours"`
	AvgDailyMinutes float64             `json:"avgDailyMinutes"`
}

// ChannelStats is the response of the channel breakdown endpoint.
type ChannelStats struct {
	Days     int                     `json:"days"`
	Channels []domain.ChannelMinutes `json:"channels"`
}

func (s *Server) location(r *http.Request) (*time.Location, bool) {
	tz := r.URL.Query().Get("tz")
	if tz == "" {
		return time.UTC, true
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, false
	}
	return loc, true
}

func (s *Server) handleDailyStats(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(headerUserID)

	loc, ok := s.location(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown time zone")
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		date = domain.DateKey(s.clock.Now(), loc)
	}
	start, end, err := util.DayBounds(date, loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	stats, err := s.stores.Stats.Daily(r.Context(), userID, start, end)
	if err != nil {
		s.logger.Error("failed to query daily stats", "user_id", userID, "date", date, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to query stats")
		return
	}
	stats.Date = date
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleWeeklyStats(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(headerUserID)

	loc, ok := s.location(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown time zone")
		return
	}

	days, err := s.window(r.Context(), userID, loc)
	if err != nil {
		s.logger.Error("failed to query weekly stats", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to query stats")
		return
	}
	out := WeeklyStats{Days: days}
	for _, day := range days {
		out.Totals.Add(day)
	}
	out.Totals.Minutes = summary.Minutes(out.Totals.TotalSeconds)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleOverviewStats(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(headerUserID)

	loc, ok := s.location(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown time zone")
		return
	}

	days, err := s.window(r.Context(), userID, loc)
	if err != nil {
		s.logger.Error("failed to query overview stats", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to query stats")
		return
	}

	out := OverviewStats{Last7Days: []domain.DailyStats{}}
	var seconds int64
	for i := len(days) - 1; i >= 0; i-- {
		day := days[i]
		if !hasActivity(day) {
			continue
		}
		if i == len(days)-1 {
			out.Today = &day
		}
		out.Last7Days = append(out.Last7Days, day)
		out.TotalVideos += day.VideoCount
		seconds += day.TotalSeconds
	}
	out.TotalHours = round1(float64(seconds) / 3600)
	out.AvgDailyMinutes = round1(float64(seconds) / 60 / float64(max(len(out.Last7Days), 1)))
	writeJSON(w, http.StatusOK, out)
}

// window returns the trailing week in loc, oldest first.
func (s *Server) window(ctx context.Context, userID string, loc *time.Location) ([]domain.DailyStats, error) {
	dates := summary.WindowDates(s.clock.Now(), loc, weeklyDays)
	out := make([]domain.DailyStats, 0, len(dates))
	for i := len(dates) - 1; i >= 0; i-- {
		start, end, err := util.DayBounds(dates[i], loc)
		if err != nil {
			return nil, err
		}
		day, err := s.stores.Stats.Daily(ctx, userID, start, end)
		if err != nil {
			return nil, err
		}
		day.Date = dates[i]
		out = append(out, day)
	}
	return out, nil
}

func hasActivity(d domain.DailyStats) bool {
	return d.TotalSeconds > 0 || d.VideoCount > 0 || d.Sessions > 0
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func (s *Server) handleChannelStats(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get(headerUserID)

	days := defaultChannelDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxChannelDays {
			writeError(w, http.StatusBadRequest, "days must be between 1 and 90")
			return
		}
		days = n
	}

	start := s.clock.Now().Add(-time.Duration(days) * 24 * time.Hour)
	channels, err := s.stores.Stats.Channels(r.Context(), userID, start, channelLimit)
	if err != nil {
		s.logger.Error("failed to query channel stats", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to query stats")
		return
	}
	if channels == nil {
		channels = []domain.ChannelMinutes{}
	}
	writeJSON(w, http.StatusOK, ChannelStats{Days: days, Channels: channels})
}
