package localstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/emiliopalmerini/ytdetox/internal/domain"
)

type SettingsRepository struct {
	store *Store
}

func NewSettingsRepository(s *Store) *SettingsRepository {
	return &SettingsRepository{store: s}
}

func (r *SettingsRepository) Get(ctx context.Context) (domain.Settings, error) {
	s, err := Get[domain.Settings](ctx, r.store, keySettings)
	if errors.Is(err, ErrNotFound) {
		return domain.DefaultSettings(), nil
	}
	if err != nil {
		return domain.DefaultSettings(), fmt.Errorf("failed to load settings: %w", err)
	}
	return s, nil
}

func (r *SettingsRepository) Save(ctx context.Context, s domain.Settings) error {
	if err := Put(ctx, r.store, keySettings, s); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

func (r *SettingsRepository) Update(ctx context.Context, fn func(*domain.Settings) error) (domain.Settings, error) {
	return Update(ctx, r.store, keySettings, func(s *domain.Settings, found bool) error {
		if !found {
			*s = domain.DefaultSettings()
		}
		return fn(s)
	})
}

type SyncStateRepository struct {
	store *Store
}

func NewSyncStateRepository(s *Store) *SyncStateRepository {
	return &SyncStateRepository{store: s}
}

func (r *SyncStateRepository) Get(ctx context.Context) (domain.SyncState, error) {
	st, err := Get[domain.SyncState](ctx, r.store, keySyncState)
	if errors.Is(err, ErrNotFound) {
		return domain.SyncState{}, nil
	}
	if err != nil {
		return domain.SyncState{}, fmt.Errorf("failed to load sync state: %w", err)
	}
	return st, nil
}

// Save stores st. The watermark is merged with the stored one and never
// moves backwards, even if two pushes race.
func (r *SyncStateRepository) Save(ctx context.Context, st domain.SyncState) error {
	_, err := Update(ctx, r.store, keySyncState, func(cur *domain.SyncState, _ bool) error {
		prev := cur.LastSync
		*cur = st
		cur.Advance(prev)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save sync state: %w", err)
	}
	return nil
}

type SummaryRepository struct {
	store *Store
}

func NewSummaryRepository(s *Store) *SummaryRepository {
	return &SummaryRepository{store: s}
}

func (r *SummaryRepository) Latest(ctx context.Context) (*domain.WeeklySummary, error) {
	ws, err := Get[domain.WeeklySummary](ctx, r.store, keyWeeklySummary)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load weekly summary: %w", err)
	}
	return &ws, nil
}

func (r *SummaryRepository) Save(ctx context.Context, ws domain.WeeklySummary) error {
	return Put(ctx, r.store, keyWeeklySummary, ws)
}
