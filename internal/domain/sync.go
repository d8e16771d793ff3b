package domain

import "encoding/json"

// SyncState is the client-side sync bookkeeping.
// LastSync is a watermark in Unix milliseconds: records newer than it are unsynced.
type SyncState struct {
	LastSync     int64    `json:"lastSync"`
	OfflineQueue []string `json:"offlineQueue,omitempty"`
	LastError    string   `json:"lastError,omitempty"`
	LastAttempt  int64    `json:"lastAttempt,omitempty"`
}

// Advance moves the watermark forward. It never moves it back.
func (s *SyncState) Advance(to int64) {
	if to > s.LastSync {
		s.LastSync = to
	}
}

// SyncBatch is the push request body.
type SyncBatch struct {
	UserID          string           `json:"userId" validate:"required,max=128"`
	Sessions        []WatchSession   `json:"sessions" validate:"dive"`
	BrowserSessions []BrowserSession `json:"browserSessions" validate:"dive"`
}

// Empty reports whether the batch carries no records.
func (b SyncBatch) Empty() bool {
	return len(b.Sessions) == 0 && len(b.BrowserSessions) == 0
}

// SyncResponse is the push response body.
type SyncResponse struct {
	Success                 bool   `json:"success"`
	SessionsUpserted        int    `json:"sessionsUpserted"`
	BrowserSessionsUpserted int    `json:"browserSessionsUpserted"`
	Error                   string `json:"error,omitempty"`
}

// SessionsSince is the response of the query-since-watermark endpoint.
type SessionsSince struct {
	Sessions        []WatchSession   `json:"sessions"`
	BrowserSessions []BrowserSession `json:"browserSessions"`
}

// SettingsEnvelope carries a user's settings blob between client and server.
// Settings is null when the server has none stored.
type SettingsEnvelope struct {
	UserID    string          `json:"userId"`
	Settings  json.RawMessage `json:"settings"`
	UpdatedAt int64           `json:"updatedAt,omitempty"`
}
