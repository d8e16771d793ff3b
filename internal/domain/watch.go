package domain

import (
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// watchNamespace scopes derived watch-session ids.
var watchNamespace = uuid.MustParse("6f1d8a5e-3c47-4b8e-9f0a-2d6c1e7b9a31")

// Productivity ratings a user can give a watched video.
const (
	RatingUnproductive = -1
	RatingNeutral      = 0
	RatingProductive   = 1
)

// WatchSession is one watched video. Timestamps are Unix milliseconds.
type WatchSession struct {
	ID                 string  `json:"id" validate:"required,max=64"`
	BrowserSessionID   string  `json:"browserSessionId,omitempty"`
	VideoID            string  `json:"videoId" validate:"required,max=64"`
	Title              string  `json:"title,omitempty" validate:"max=500"`
	Channel            *string `json:"channel,omitempty" validate:"omitempty,max=200"`
	DurationSeconds    int64   `json:"durationSeconds" validate:"gte=0"`
	WatchedSeconds     int64   `json:"watchedSeconds" validate:"gte=0"`
	WatchedPercent     int64   `json:"watchedPercent" validate:"gte=0,lte=100"`
	Source             string  `json:"source,omitempty" validate:"max=50"`
	IsShort            bool    `json:"isShort"`
	PlaybackSpeed      float64 `json:"playbackSpeed" validate:"gte=0,lte=16"`
	ProductivityRating *int    `json:"productivityRating" validate:"omitempty,gte=-1,lte=1"`
	RatedAt            *int64  `json:"ratedAt"`
	Timestamp          int64   `json:"timestamp" validate:"gt=0"`
	// RecordedAt is the local time of the last write: creation or rating.
	RecordedAt int64 `json:"recordedAt,omitempty"`
}

// SyncedAfter reports whether the record changed after the watermark.
// A rating given after a sync makes the record unsynced again.
func (w WatchSession) SyncedAfter(watermark int64) bool {
	if w.RecordedAt > 0 {
		return w.RecordedAt > watermark
	}
	if w.Timestamp > watermark {
		return true
	}
	return w.RatedAt != nil && *w.RatedAt > watermark
}

// Rate sets the rating and rated-at together.
func (w *WatchSession) Rate(rating int, at time.Time) error {
	if !ValidRating(rating) {
		return ErrInvalidRating
	}
	ratedAt := at.UnixMilli()
	w.ProductivityRating = &rating
	w.RatedAt = &ratedAt
	w.RecordedAt = ratedAt
	return nil
}

// ValidRating reports whether r is a known rating.
func ValidRating(r int) bool {
	return r >= RatingUnproductive && r <= RatingProductive
}

// RatingCounter names the daily counter a rating folds into.
func RatingCounter(r int) string {
	switch r {
	case RatingProductive:
		return CounterProductiveVideos
	case RatingUnproductive:
		return CounterUnproductiveVideos
	default:
		return CounterNeutralVideos
	}
}

// WatchSessionID derives a stable id from the user, video and event time,
// so redelivery of one logical event maps to one row.
func WatchSessionID(userID, videoID string, timestamp int64) string {
	name := userID + "|" + videoID + "|" + strconv.FormatInt(timestamp, 10)
	return uuid.NewSHA1(watchNamespace, []byte(name)).String()
}

// WatchedPercent returns watched/duration as a whole percentage capped at 100.
func WatchedPercent(watched, duration int64) int64 {
	if duration <= 0 || watched <= 0 {
		return 0
	}
	p := int64(math.Round(float64(watched) / float64(duration) * 100))
	if p > 100 {
		return 100
	}
	return p
}
