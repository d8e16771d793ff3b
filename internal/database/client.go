// Package database opens the Sync Service database.
//
// Remote Turso/libsql URLs go through the libsql driver. File paths use the
// pure-Go sqlite driver, which is also what the tests run against.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/tursodatabase/go-libsql"
	_ "modernc.org/sqlite"
)

const (
	DriverLibsql = "libsql"
	DriverSqlite = "sqlite"
)

var remoteSchemes = []string{"libsql://", "http://", "https://", "ws://", "wss://"}

// Client wraps a SQL connection pool and remembers which driver backs it.
type Client struct {
	*sql.DB
	Driver string
}

// Options configures Open.
type Options struct {
	AuthToken string
	Ping      bool
}

// Open connects to databaseURL, picking the driver from its form.
func Open(ctx context.Context, databaseURL string, opts Options) (*Client, error) {
	driver, dsn := DSN(databaseURL, opts.AuthToken)

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	switch driver {
	case DriverLibsql:
		// Turso closes idle Hrana streams aggressively, so stale pooled
		// connections fail with "stream not found".
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(0)
		db.SetConnMaxLifetime(5 * time.Minute)
		db.SetConnMaxIdleTime(0)
	case DriverSqlite:
		// One writer at a time; busy_timeout covers other processes.
		db.SetMaxOpenConns(1)
	}

	if opts.Ping {
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ping %s database: %w", driver, err)
		}
	}
	return &Client{DB: db, Driver: driver}, nil
}

// DSN returns the driver name and data source name for databaseURL.
func DSN(databaseURL, authToken string) (string, string) {
	for _, scheme := range remoteSchemes {
		if strings.HasPrefix(databaseURL, scheme) {
			if authToken == "" {
				return DriverLibsql, databaseURL
			}
			return DriverLibsql, databaseURL + separator(databaseURL) + "authToken=" + authToken
		}
	}

	dsn := databaseURL
	if !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
		dsn = "file:" + dsn
	}
	return DriverSqlite, dsn + separator(dsn) +
		"_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_txlock=immediate"
}

func separator(u string) string {
	if strings.Contains(u, "?") {
		return "&"
	}
	return "?"
}

// IsStreamError checks if an error is a Turso "stream not found" error.
func IsStreamError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "stream not found")
}

// WithRetry runs fn, retrying up to maxRetries times on stream errors.
// Any other error is returned at once.
func WithRetry[T any](ctx context.Context, maxRetries int, fn func() (T, error)) (T, error) {
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(10*time.Millisecond), uint64(maxRetries)),
		ctx,
	)
	return backoff.RetryWithData(func() (T, error) {
		v, err := fn()
		if err != nil && !IsStreamError(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, b)
}
