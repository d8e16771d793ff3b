package turso

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/coder/quartz"

	"github.com/emiliopalmerini/ytdetox/internal/domain"
)

type SettingsRepository struct {
	db    *sql.DB
	clock quartz.Clock
}

func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db, clock: quartz.NewReal()}
}

func (r *SettingsRepository) Get(ctx context.Context, userID string) (*domain.SettingsEnvelope, error) {
	var (
		blob      sql.NullString
		updatedAt sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, selectSettings, userID).Scan(&blob, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	if !blob.Valid {
		return nil, nil
	}
	return &domain.SettingsEnvelope{
		UserID:    userID,
		Settings:  json.RawMessage(blob.String),
		UpdatedAt: updatedAt.Int64,
	}, nil
}

// Put replaces the stored blob. UpdatedAt defaults to the current time.
func (r *SettingsRepository) Put(ctx context.Context, env domain.SettingsEnvelope) error {
	now := r.clock.Now().UnixMilli()
	if env.UpdatedAt == 0 {
		env.UpdatedAt = now
	}
	if _, err := r.db.ExecContext(ctx, upsertSettings, env.UserID, now, string(env.Settings), env.UpdatedAt); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
