package localstore

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/emiliopalmerini/ytdetox/internal/domain"
)

type dayRecord struct {
	Counters domain.Counters `json:"counters"`
	Applied  []string        `json:"applied,omitempty"`
}

type DailyStatsRepository struct {
	store *Store
}

func NewDailyStatsRepository(s *Store) *DailyStatsRepository {
	return &DailyStatsRepository{store: s}
}

func (r *DailyStatsRepository) MergeIncrement(ctx context.Context, date string, partial domain.Counters) (domain.Counters, error) {
	var merged domain.Counters
	_, err := Update(ctx, r.store, keyDailyStats, func(days *map[string]dayRecord, _ bool) error {
		if *days == nil {
			*days = make(map[string]dayRecord)
		}
		rec := (*days)[date]
		rec.Counters = domain.MergeIncrement(rec.Counters, partial)
		(*days)[date] = rec
		merged = rec.Counters
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to merge stats for %s: %w", date, err)
	}
	return merged, nil
}

func (r *DailyStatsRepository) ApplyOnce(ctx context.Context, date, sourceID string, partial domain.Counters) (bool, error) {
	applied := false
	_, err := Update(ctx, r.store, keyDailyStats, func(days *map[string]dayRecord, _ bool) error {
		if *days == nil {
			*days = make(map[string]dayRecord)
		}
		rec := (*days)[date]
		if slices.Contains(rec.Applied, sourceID) {
			return nil
		}
		rec.Counters = domain.MergeIncrement(rec.Counters, partial)
		rec.Applied = append(rec.Applied, sourceID)
		(*days)[date] = rec
		applied = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to apply stats for %s: %w", date, err)
	}
	return applied, nil
}

func (r *DailyStatsRepository) Get(ctx context.Context, date string) (domain.DailyStats, error) {
	days, err := r.Range(ctx, []string{date})
	if err != nil {
		return domain.DailyStats{}, err
	}
	return days[date], nil
}

// Range returns the stats for each requested date; missing dates are zero.
func (r *DailyStatsRepository) Range(ctx context.Context, dates []string) (map[string]domain.DailyStats, error) {
	days, err := Get[map[string]dayRecord](ctx, r.store, keyDailyStats)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("failed to load stats: %w", err)
	}
	out := make(map[string]domain.DailyStats, len(dates))
	for _, d := range dates {
		out[d] = domain.DailyStatsFromCounters(d, days[d].Counters)
	}
	return out, nil
}
