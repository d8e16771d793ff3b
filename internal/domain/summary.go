package domain

// WeekTotals sums one seven-day window.
type WeekTotals struct {
	Minutes            int64 `json:"minutes"`
	TotalSeconds       int64 `json:"totalSeconds"`
	VideoCount         int64 `json:"videoCount"`
	ProductiveVideos   int64 `json:"productiveVideos"`
	UnproductiveVideos int64 `json:"unproductiveVideos"`
	Sessions           int64 `json:"sessions"`
}

// ChannelMinutes is one entry of a channel breakdown.
type ChannelMinutes struct {
	Channel        string `json:"channel"`
	Minutes        int64  `json:"minutes"`
	WatchedSeconds int64  `json:"watchedSeconds"`
	VideoCount     int64  `json:"videoCount"`
}

// WeeklySummary compares the last seven days with the seven before.
type WeeklySummary struct {
	GeneratedAt   int64            `json:"generatedAt"`
	ThisWeek      WeekTotals       `json:"thisWeek"`
	PrevWeek      WeekTotals       `json:"prevWeek"`
	ChangePercent int64            `json:"changePercent"`
	TopChannels   []ChannelMinutes `json:"topChannels"`
}

// Add folds one day into the totals. Minutes is left to the caller.
func (w *WeekTotals) Add(d DailyStats) {
	w.TotalSeconds += d.TotalSeconds
	w.VideoCount += d.VideoCount
	w.ProductiveVideos += d.ProductiveVideos
	w.UnproductiveVideos += d.UnproductiveVideos
	w.Sessions += d.Sessions
}
