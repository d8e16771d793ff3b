package ports

import (
	"context"
	"time"

	"github.com/emiliopalmerini/ytdetox/internal/domain"
)

// StatsRepository answers the server-side stats queries. Results are derived
// from stored rows, so redelivered records never count twice.
type StatsRepository interface {
	// Daily aggregates records in [start, end). FirstCheckTime is formatted
	// in start's location.
	Daily(ctx context.Context, userID string, start, end time.Time) (domain.DailyStats, error)
	// Channels returns the top channels by watched seconds since start.
	Channels(ctx context.Context, userID string, start time.Time, limit int) ([]domain.ChannelMinutes, error)
}
