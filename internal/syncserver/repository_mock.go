package syncserver

import (
	"context"
	"time"

	"github.com/emiliopalmerini/ytdetox/internal/domain"
	"github.com/emiliopalmerini/ytdetox/internal/ports"
)

// MockSyncRepository is a mock implementation of ports.SyncRepository for testing.
type MockSyncRepository struct {
	ApplyBatchFunc func(ctx context.Context, batch domain.SyncBatch) (ports.BatchResult, error)
	SinceFunc      func(ctx context.Context, userID string, since int64) (domain.SessionsSince, error)
}

func (m *MockSyncRepository) ApplyBatch(ctx context.Context, batch domain.SyncBatch) (ports.BatchResult, error) {
	if m.ApplyBatchFunc != nil {
		return m.ApplyBatchFunc(ctx, batch)
	}
	return ports.BatchResult{
		SessionsUpserted:        len(batch.Sessions),
		BrowserSessionsUpserted: len(batch.BrowserSessions),
	}, nil
}

func (m *MockSyncRepository) Since(ctx context.Context, userID string, since int64) (domain.SessionsSince, error) {
	if m.SinceFunc != nil {
		return m.SinceFunc(ctx, userID, since)
	}
	return domain.SessionsSince{}, nil
}

// MockSettingsRepository is a mock implementation of ports.SettingsBlobRepository for testing.
type MockSettingsRepository struct {
	GetFunc func(ctx context.Context, userID string) (*domain.SettingsEnvelope, error)
	PutFunc func(ctx context.Context, env domain.SettingsEnvelope) error
}

func (m *MockSettingsRepository) Get(ctx context.Context, userID string) (*domain.SettingsEnvelope, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockSettingsRepository) Put(ctx context.Context, env domain.SettingsEnvelope) error {
	if m.PutFunc != nil {
		return m.PutFunc(ctx, env)
	}
	return nil
}

// MockStatsRepository is a mock implementation of ports.StatsRepository for testing.
type MockStatsRepository struct {
	DailyFunc    func(ctx context.Context, userID string, start, end time.Time) (domain.DailyStats, error)
	ChannelsFunc func(ctx context.Context, userID string, start time.Time, limit int) ([]domain.ChannelMinutes, error)
}

func (m *MockStatsRepository) Daily(ctx context.Context, userID string, start, end time.Time) (domain.DailyStats, error) {
	if m.DailyFunc != nil {
		return m.DailyFunc(ctx, userID, start, end)
	}
	return domain.DailyStats{}, nil
}

func (m *MockStatsRepository) Channels(ctx context.Context, userID string, start time.Time, limit int) ([]domain.ChannelMinutes, error) {
	if m.ChannelsFunc != nil {
		return m.ChannelsFunc(ctx, userID, start, limit)
	}
	return nil, nil
}
