package ports

import (
	"context"

	"github.com/emiliopalmerini/ytdetox/internal/domain"
)

// BatchResult counts the records written by one sync batch.
type BatchResult struct {
	SessionsUpserted        int
	BrowserSessionsUpserted int
}

// SyncRepository is the server-side store behind the Sync Service.
type SyncRepository interface {
	// ApplyBatch upserts the batch in one transaction.
	ApplyBatch(ctx context.Context, batch domain.SyncBatch) (BatchResult, error)
	// Since returns records newer than the watermark, ordered ascending.
	Since(ctx context.Context, userID string, since int64) (domain.SessionsSince, error)
}

// SettingsBlobRepository stores the settings JSON per user, last write wins.
type SettingsBlobRepository interface {
	// Get returns nil when the user has no stored settings.
	Get(ctx context.Context, userID string) (*domain.SettingsEnvelope, error)
	Put(ctx context.Context, env domain.SettingsEnvelope) error
}
