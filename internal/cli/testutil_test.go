package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/coder/quartz"

	"github.com/emiliopalmerini/ytdetox/internal/adapters/localstore"
	"github.com/emiliopalmerini/ytdetox/internal/adapters/notify"
	"github.com/emiliopalmerini/ytdetox/internal/adapters/otel"
	"github.com/emiliopalmerini/ytdetox/internal/infrastructure/config"
	"github.com/emiliopalmerini/ytdetox/internal/logger"
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

// testApp creates an AppContext over a temporary store with a mock clock
// set to t0, and installs it for the duration of the test.
func testApp(t *testing.T) (*AppContext, *quartz.Mock) {
	t.Helper()

	clock := quartz.NewMock(t)
	clock.Set(t0).MustWait(context.Background())

	dir := t.TempDir()
	store, err := localstore.Open(dir)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}

	app := &AppContext{
		Config: &config.Agent{
			DataDir:     dir,
			GracePeriod: 30 * time.Second,
			StaleAfter:  5 * time.Minute,
			HTTPTimeout: 5 * time.Second,
		},
		Store:    store,
		Repos:    localstore.NewRepositories(store, localstore.DefaultLimits()),
		Location: time.UTC,
		Clock:    clock,
		Logger:   logger.Discard(),
		Exporter: otel.NewNoOpExporter(),
		Notifier: notify.NoOp{},
	}
	if err := app.ensureUserID(context.Background()); err != nil {
		t.Fatalf("Failed to bootstrap user id: %v", err)
	}

	testAppOverride = app
	t.Cleanup(func() { testAppOverride = nil })
	return app, clock
}

// run executes the command tree with args and returns what it printed.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(io.Discard)

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// mustRun is run that fails the test on error.
func mustRun(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	out, err := run(t, stdin, args...)
	if err != nil {
		t.Fatalf("ytdetox %s: %v", strings.Join(args, " "), err)
	}
	return out
}
