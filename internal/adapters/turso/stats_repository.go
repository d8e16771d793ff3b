package turso

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/emiliopalmerini/ytdetox/internal/domain"
)

type StatsRepository struct {
	db *sql.DB
}

func NewStatsRepository(db *sql.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

func (r *StatsRepository) Daily(ctx context.Context, userID string, start, end time.Time) (domain.DailyStats, error) {
	d := domain.DailyStats{Date: start.Format(domain.DateLayout)}
	from, to := start.UnixMilli(), end.UnixMilli()

	var firstStart sql.NullInt64
	err := r.db.QueryRowContext(ctx, selectDailyBrowserTotals, userID, from, to).Scan(
		&d.Sessions, &d.TotalSeconds, &d.ActiveSeconds, &d.BackgroundSeconds,
		&d.SearchCount, &d.RecommendationClicks, &d.AutoplayCount, &firstStart,
	)
	if err != nil {
		return d, fmt.Errorf("failed to aggregate browser sessions: %w", err)
	}
	if firstStart.Valid {
		d.FirstCheckTime = time.UnixMilli(firstStart.Int64).In(start.Location()).Format("15:04")
	}

	err = r.db.QueryRowContext(ctx, selectDailyWatchTotals, userID, from, to).Scan(
		&d.VideoCount, &d.ShortsCount, &d.ProductiveVideos, &d.UnproductiveVideos,
		&d.NeutralVideos, &d.PromptsAnswered,
	)
	if err != nil {
		return d, fmt.Errorf("failed to aggregate watch sessions: %w", err)
	}
	return d, nil
}

func (r *StatsRepository) Channels(ctx context.Context, userID string, start time.Time, limit int) ([]domain.ChannelMinutes, error) {
	rows, err := r.db.QueryContext(ctx, selectTopChannels, userID, start.UnixMilli(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query channels: %w", err)
	}
	defer rows.Close()

	out := []domain.ChannelMinutes{}
	for rows.Next() {
		var c domain.ChannelMinutes
		if err := rows.Scan(&c.Channel, &c.WatchedSeconds, &c.VideoCount); err != nil {
			return nil, fmt.Errorf("failed to scan channel: %w", err)
		}
		c.Minutes = (c.WatchedSeconds + 30) / 60
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read channels: %w", err)
	}
	return out, nil
}
