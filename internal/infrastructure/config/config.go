package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/emiliopalmerini/ytdetox/internal/adapters/otel"
	"github.com/emiliopalmerini/ytdetox/internal/util"
)

const prefix = "YTDETOX"

// Log holds logging configuration.
type Log struct {
	Level  string `envconfig:"LOG_LEVEL" default:"info"`
	Format string `envconfig:"LOG_FORMAT" default:"text"`
}

// Agent holds configuration for the local tracker and its scheduler.
type Agent struct {
	DataDir            string        `envconfig:"DATA_DIR"`
	GracePeriod        time.Duration `envconfig:"GRACE_PERIOD" default:"30s"`
	StaleAfter         time.Duration `envconfig:"STALE_AFTER" default:"5m"`
	SyncInterval       string        `envconfig:"SYNC_INTERVAL" default:"@every 5m"`
	WeeklySchedule     string        `envconfig:"WEEKLY_SCHEDULE" default:"0 9 * * 1"`
	ReconcileInterval  string        `envconfig:"RECONCILE_INTERVAL" default:"@every 30s"`
	Timezone           string        `envconfig:"TIMEZONE"`
	MaxVideos          int           `envconfig:"MAX_VIDEOS" default:"1000"`
	MaxBrowserSessions int           `envconfig:"MAX_BROWSER_SESSIONS" default:"500"`
	HTTPTimeout        time.Duration `envconfig:"HTTP_TIMEOUT" default:"10s"`
	Notify             bool          `envconfig:"NOTIFY" default:"true"`
	Log                Log           `ignored:"true"`
	Otel               otel.Config   `ignored:"true"`
}

// Location resolves the configured time zone, the local zone when unset.
func (a *Agent) Location() (*time.Location, error) {
	if a.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid %s_TIMEZONE: %w", prefix, err)
	}
	return loc, nil
}

// LogFile is where short-lived commands write their logs.
func (a *Agent) LogFile() (string, error) {
	dir, err := util.GetXDGStateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "ytdetox.log"), nil
}

// Server holds configuration for the Sync Service.
type Server struct {
	DatabaseURL               string `envconfig:"DATABASE_URL" required:"true"`
	AuthToken                 string `envconfig:"AUTH_TOKEN"`
	Port                      int    `envconfig:"PORT" default:"8080"`
	SyncRateLimit             int    `envconfig:"SYNC_RATE_LIMIT" default:"20"`
	APIRateLimit              int    `envconfig:"API_RATE_LIMIT" default:"100"`
	MaxBodyBytes              int64  `envconfig:"MAX_BODY_BYTES" default:"5242880"`
	MaxSessionsPerSync        int    `envconfig:"MAX_SESSIONS_PER_SYNC" default:"200"`
	MaxBrowserSessionsPerSync int    `envconfig:"MAX_BROWSER_SESSIONS_PER_SYNC" default:"100"`
	Log                       Log    `ignored:"true"`
}

// LoadDotEnv loads the first .env file found in the working directory or
// the data directory. Variables already set are not overridden.
func LoadDotEnv() {
	paths := []string{".env"}
	if dir, err := util.GetXDGDataDir(); err == nil {
		paths = append(paths, filepath.Join(dir, ".env"))
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

// LoadAgent loads agent configuration from environment variables.
func LoadAgent() (*Agent, error) {
	var cfg Agent
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return nil, err
	}
	if err := envconfig.Process(prefix, &cfg.Log); err != nil {
		return nil, err
	}
	if err := envconfig.Process(prefix, &cfg.Otel); err != nil {
		return nil, err
	}
	if cfg.DataDir == "" {
		dir, err := util.GetXDGDataDir()
		if err != nil {
			return nil, err
		}
		cfg.DataDir = dir
	}
	return &cfg, nil
}

// LoadServer loads Sync Service configuration from environment variables.
// Unprefixed names such as PORT are accepted as fallbacks.
func LoadServer() (*Server, error) {
	var cfg Server
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return nil, err
	}
	if err := envconfig.Process(prefix, &cfg.Log); err != nil {
		return nil, err
	}
	return &cfg, nil
}
