package turso

import (
	"database/sql"

	"github.com/emiliopalmerini/ytdetox/internal/ports"
)

// Repositories holds all turso repository implementations as port interfaces.
type Repositories struct {
	Sync     ports.SyncRepository
	Settings ports.SettingsBlobRepository
	Stats    ports.StatsRepository
}

// NewRepositories creates all turso repository implementations from a database connection.
func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Sync:     NewSyncRepository(db),
		Settings: NewSettingsRepository(db),
		Stats:    NewStatsRepository(db),
	}
}
