package localstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/emiliopalmerini/ytdetox/internal/domain"
)

type CheckpointRepository struct {
	store *Store
}

func NewCheckpointRepository(s *Store) *CheckpointRepository {
	return &CheckpointRepository{store: s}
}

func (r *CheckpointRepository) Load(ctx context.Context) (*domain.OpenSession, error) {
	open, err := Get[domain.OpenSession](ctx, r.store, keyOpenSession)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load open session: %w", err)
	}
	return &open, nil
}

func (r *CheckpointRepository) Save(ctx context.Context, s *domain.OpenSession) error {
	if s == nil {
		return r.Clear(ctx)
	}
	if err := Put(ctx, r.store, keyOpenSession, s); err != nil {
		return fmt.Errorf("failed to checkpoint open session: %w", err)
	}
	return nil
}

func (r *CheckpointRepository) Clear(ctx context.Context) error {
	return Delete(ctx, r.store, keyOpenSession)
}

type BrowserSessionRepository struct {
	store *Store
	limit int
}

func NewBrowserSessionRepository(s *Store, limit int) *BrowserSessionRepository {
	return &BrowserSessionRepository{store: s, limit: limit}
}

func (r *BrowserSessionRepository) Append(ctx context.Context, s domain.BrowserSession) error {
	_, err := Update(ctx, r.store, keyBrowserSessions, func(list *[]domain.BrowserSession, _ bool) error {
		for i := range *list {
			if (*list)[i].ID == s.ID {
				(*list)[i] = s
				return nil
			}
		}
		*list = capOldest(append(*list, s), r.limit)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append browser session: %w", err)
	}
	return nil
}

func (r *BrowserSessionRepository) List(ctx context.Context) ([]domain.BrowserSession, error) {
	list, err := Get[[]domain.BrowserSession](ctx, r.store, keyBrowserSessions)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return list, err
}

func (r *BrowserSessionRepository) Since(ctx context.Context, watermark int64) ([]domain.BrowserSession, error) {
	list, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []domain.BrowserSession
	for _, s := range list {
		if s.SyncTimestamp() > watermark {
			out = append(out, s)
		}
	}
	return out, nil
}

type WatchSessionRepository struct {
	store *Store
	limit int
}

func NewWatchSessionRepository(s *Store, limit int) *WatchSessionRepository {
	return &WatchSessionRepository{store: s, limit: limit}
}

func (r *WatchSessionRepository) Append(ctx context.Context, w domain.WatchSession) (bool, error) {
	added := false
	_, err := Update(ctx, r.store, keyWatchSessions, func(list *[]domain.WatchSession, _ bool) error {
		for _, existing := range *list {
			if existing.ID == w.ID {
				return nil
			}
		}
		*list = capOldest(append(*list, w), r.limit)
		added = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to append watch session: %w", err)
	}
	return added, nil
}

// Rate applies fn to the most recent record for videoID.
func (r *WatchSessionRepository) Rate(ctx context.Context, videoID string, fn func(*domain.WatchSession) error) (domain.WatchSession, error) {
	var rated domain.WatchSession
	_, err := Update(ctx, r.store, keyWatchSessions, func(list *[]domain.WatchSession, _ bool) error {
		for i := len(*list) - 1; i >= 0; i-- {
			if (*list)[i].VideoID != videoID {
				continue
			}
			if err := fn(&(*list)[i]); err != nil {
				return err
			}
			rated = (*list)[i]
			return nil
		}
		return domain.ErrVideoNotFound
	})
	return rated, err
}

func (r *WatchSessionRepository) List(ctx context.Context) ([]domain.WatchSession, error) {
	list, err := Get[[]domain.WatchSession](ctx, r.store, keyWatchSessions)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return list, err
}

func (r *WatchSessionRepository) Since(ctx context.Context, watermark int64) ([]domain.WatchSession, error) {
	list, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []domain.WatchSession
	for _, w := range list {
		if w.SyncedAfter(watermark) {
			out = append(out, w)
		}
	}
	return out, nil
}

func capOldest[T any](list []T, limit int) []T {
	if limit <= 0 || len(list) <= limit {
		return list
	}
	return append([]T(nil), list[len(list)-limit:]...)
}
