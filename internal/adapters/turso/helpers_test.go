package turso_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/emiliopalmerini/ytdetox/internal/database"
	"github.com/emiliopalmerini/ytdetox/internal/migrate"
)

// testDB opens a file-backed SQLite database with all migrations applied.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	ctx := context.Background()
	c, err := database.Open(ctx, filepath.Join(t.TempDir(), "sync.db"), database.Options{Ping: true})
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	if err := migrate.RunAll(ctx, c.DB); err != nil {
		_ = c.Close()
		t.Fatalf("Failed to run migrations: %v", err)
	}

	t.Cleanup(func() { _ = c.Close() })
	return c.DB
}

// testTursoDB starts a libsql-server container. It is slow and needs Docker,
// so it only runs with YTDETOX_INTEGRATION=1.
func testTursoDB(t *testing.T) *sql.DB {
	t.Helper()
	if os.Getenv("YTDETOX_INTEGRATION") != "1" {
		t.Skip("set YTDETOX_INTEGRATION=1 to run against a libsql server")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "ghcr.io/tursodatabase/libsql-server:latest",
			ExposedPorts: []string{"8080/tcp"},
			WaitingFor:   wait.ForHTTP("/health").WithPort("8080/tcp").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start libsql container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	port, err := container.MappedPort(ctx, "8080")
	if err != nil {
		t.Fatalf("Failed to get mapped port: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	c, err := database.Open(ctx, fmt.Sprintf("http://%s:%s", host, port.Port()), database.Options{Ping: true})
	if err != nil {
		t.Fatalf("Failed to connect to libsql: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	if err := migrate.RunAll(ctx, c.DB); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return c.DB
}

func intPtr(i int) *int       { return &i }
func int64Ptr(i int64) *int64 { return &i }
func strPtr(s string) *string { return &s }
