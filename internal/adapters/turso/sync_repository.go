package turso

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/coder/quartz"

	"github.com/emiliopalmerini/ytdetox/internal/database"
	"github.com/emiliopalmerini/ytdetox/internal/domain"
	"github.com/emiliopalmerini/ytdetox/internal/ports"
	"github.com/emiliopalmerini/ytdetox/internal/util"
)

const maxStreamRetries = 2

type SyncRepository struct {
	db    *sql.DB
	clock quartz.Clock
}

func NewSyncRepository(db *sql.DB) *SyncRepository {
	return &SyncRepository{db: db, clock: quartz.NewReal()}
}

// ApplyBatch ensures the user exists, upserts both record kinds and logs the
// batch, all in one transaction. A failed batch leaves no trace.
func (r *SyncRepository) ApplyBatch(ctx context.Context, batch domain.SyncBatch) (ports.BatchResult, error) {
	return database.WithRetry(ctx, maxStreamRetries, func() (ports.BatchResult, error) {
		return r.applyBatch(ctx, batch)
	})
}

func (r *SyncRepository) applyBatch(ctx context.Context, batch domain.SyncBatch) (ports.BatchResult, error) {
	var res ports.BatchResult
	now := r.clock.Now().UnixMilli()

	err := withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, insertUserIfAbsent, batch.UserID, now); err != nil {
			return fmt.Errorf("failed to ensure user: %w", err)
		}

		if len(batch.Sessions) > 0 {
			stmt, err := tx.PrepareContext(ctx, upsertWatchSession)
			if err != nil {
				return fmt.Errorf("failed to prepare watch session upsert: %w", err)
			}
			defer stmt.Close()

			for _, w := range batch.Sessions {
				if _, err := stmt.ExecContext(ctx,
					batch.UserID, w.ID, util.NullString(w.BrowserSessionID), w.VideoID,
					util.NullString(w.Title), util.NullStringPtr(w.Channel),
					w.DurationSeconds, w.WatchedSeconds, w.WatchedPercent,
					util.NullString(w.Source), util.BoolToInt64(w.IsShort), w.PlaybackSpeed,
					util.NullIntPtr(w.ProductivityRating), util.NullInt64(w.RatedAt),
					w.Timestamp, now,
				); err != nil {
					return fmt.Errorf("failed to upsert watch session %s: %w", w.ID, err)
				}
				res.SessionsUpserted++
			}
		}

		if len(batch.BrowserSessions) > 0 {
			stmt, err := tx.PrepareContext(ctx, upsertBrowserSession)
			if err != nil {
				return fmt.Errorf("failed to prepare browser session upsert: %w", err)
			}
			defer stmt.Close()

			for _, s := range batch.BrowserSessions {
				videoIDs, err := encodeVideoIDs(s.VideoIDs)
				if err != nil {
					return err
				}
				if _, err := stmt.ExecContext(ctx,
					batch.UserID, s.ID, s.TabID, s.StartedAt, util.NullInt64(s.EndedAt),
					s.DurationSeconds, s.ActiveSeconds, s.BackgroundSeconds,
					s.VideosWatched, s.ShortsCount, s.SearchCount,
					s.RecommendationClicks, s.AutoplayCount, videoIDs,
					util.NullString(string(s.ExitType)), now,
				); err != nil {
					return fmt.Errorf("failed to upsert browser session %s: %w", s.ID, err)
				}
				res.BrowserSessionsUpserted++
			}
		}

		if _, err := tx.ExecContext(ctx, insertSyncLog,
			batch.UserID, now, len(batch.Sessions), len(batch.BrowserSessions),
		); err != nil {
			return fmt.Errorf("failed to write sync log: %w", err)
		}
		return nil
	})
	if err != nil {
		return ports.BatchResult{}, err
	}
	return res, nil
}

// Since returns the user's records newer than since, oldest first.
func (r *SyncRepository) Since(ctx context.Context, userID string, since int64) (domain.SessionsSince, error) {
	out := domain.SessionsSince{
		Sessions:        []domain.WatchSession{},
		BrowserSessions: []domain.BrowserSession{},
	}

	rows, err := r.db.QueryContext(ctx, selectWatchSessionsSince, userID, since)
	if err != nil {
		return out, fmt.Errorf("failed to query watch sessions: %w", err)
	}
	for rows.Next() {
		w, err := scanWatchSession(rows)
		if err != nil {
			rows.Close()
			return out, err
		}
		out.Sessions = append(out.Sessions, w)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return out, fmt.Errorf("failed to read watch sessions: %w", err)
	}
	rows.Close()

	rows, err = r.db.QueryContext(ctx, selectBrowserSessionsSince, userID, since)
	if err != nil {
		return out, fmt.Errorf("failed to query browser sessions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		s, err := scanBrowserSession(rows)
		if err != nil {
			return out, err
		}
		out.BrowserSessions = append(out.BrowserSessions, s)
	}
	if err := rows.Err(); err != nil {
		return out, fmt.Errorf("failed to read browser sessions: %w", err)
	}
	return out, nil
}

func scanWatchSession(rows *sql.Rows) (domain.WatchSession, error) {
	var (
		w                        domain.WatchSession
		browserID, title, source sql.NullString
		channel                  sql.NullString
		isShort                  int64
		rating, ratedAt          sql.NullInt64
	)
	if err := rows.Scan(
		&w.ID, &browserID, &w.VideoID, &title, &channel, &w.DurationSeconds,
		&w.WatchedSeconds, &w.WatchedPercent, &source, &isShort, &w.PlaybackSpeed,
		&rating, &ratedAt, &w.Timestamp,
	); err != nil {
		return w, fmt.Errorf("failed to scan watch session: %w", err)
	}
	w.BrowserSessionID = browserID.String
	w.Title = title.String
	w.Source = source.String
	w.Channel = util.NullStringToPtr(channel)
	w.IsShort = isShort != 0
	w.ProductivityRating = util.NullInt64ToIntPtr(rating)
	w.RatedAt = util.NullInt64ToPtr(ratedAt)
	return w, nil
}

func scanBrowserSession(rows *sql.Rows) (domain.BrowserSession, error) {
	var (
		s              domain.BrowserSession
		tabID          sql.NullInt64
		endedAt        sql.NullInt64
		videoIDs, exit sql.NullString
	)
	if err := rows.Scan(
		&s.ID, &tabID, &s.StartedAt, &endedAt, &s.DurationSeconds, &s.ActiveSeconds,
		&s.BackgroundSeconds, &s.VideosWatched, &s.ShortsCount, &s.SearchCount,
		&s.RecommendationClicks, &s.AutoplayCount, &videoIDs, &exit,
	); err != nil {
		return s, fmt.Errorf("failed to scan browser session: %w", err)
	}
	s.TabID = int(tabID.Int64)
	s.EndedAt = util.NullInt64ToPtr(endedAt)
	s.ExitType = domain.ExitType(exit.String)
	if videoIDs.Valid && videoIDs.String != "" {
		if err := json.Unmarshal([]byte(videoIDs.String), &s.VideoIDs); err != nil {
			return s, fmt.Errorf("failed to decode video ids of %s: %w", s.ID, err)
		}
	}
	return s, nil
}

func encodeVideoIDs(ids []string) (sql.NullString, error) {
	if len(ids) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode video ids: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
