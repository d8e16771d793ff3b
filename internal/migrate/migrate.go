// Package migrate applies the embedded, versioned schema migrations.
package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/emiliopalmerini/ytdetox/migrations"
)

// Migration is one numbered schema change with its up and down SQL.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
	DownSQL string
}

var upPattern = regexp.MustCompile(`^(\d+)_(.+)\.up\.sql$`)

// Runner applies migrations to one database and reports progress to out.
type Runner struct {
	db  *sql.DB
	out io.Writer
}

func NewRunner(db *sql.DB, out io.Writer) *Runner {
	if out == nil {
		out = io.Discard
	}
	return &Runner{db: db, out: out}
}

// EnsureMigrationsTable creates the schema_migrations table if it doesn't exist.
func EnsureMigrationsTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			dirty INTEGER NOT NULL DEFAULT 0
		)
	`)
	return err
}

// CurrentVersion returns the applied version and whether the last run failed midway.
func CurrentVersion(ctx context.Context, db *sql.DB) (int, bool, error) {
	var version, dirty int
	err := db.QueryRowContext(ctx, `SELECT version, dirty FROM schema_migrations ORDER BY version DESC LIMIT 1`).Scan(&version, &dirty)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return version, dirty == 1, nil
}

func setVersion(ctx context.Context, db *sql.DB, version int, dirty bool) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM schema_migrations`); err != nil {
		return err
	}
	if version <= 0 {
		return nil
	}
	d := 0
	if dirty {
		d = 1
	}
	_, err := db.ExecContext(ctx, `INSERT INTO schema_migrations (version, dirty) VALUES (?, ?)`, version, d)
	return err
}

// Load reads all embedded migrations sorted by version.
func Load() ([]Migration, error) {
	return LoadFS(migrations.FS)
}

// LoadFS reads NNN_name.up.sql files and their optional .down.sql pair from fsys.
func LoadFS(fsys fs.FS) ([]Migration, error) {
	var result []Migration

	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		matches := upPattern.FindStringSubmatch(path.Base(p))
		if matches == nil {
			return nil
		}
		version, err := strconv.Atoi(matches[1])
		if err != nil {
			return fmt.Errorf("invalid migration version in %s: %w", p, err)
		}

		up, err := fs.ReadFile(fsys, p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p, err)
		}
		down, err := fs.ReadFile(fsys, path.Join(path.Dir(p), matches[1]+"_"+matches[2]+".down.sql"))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to read down migration for %s: %w", p, err)
		}

		result = append(result, Migration{
			Version: version,
			Name:    matches[2],
			UpSQL:   string(up),
			DownSQL: string(down),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Version < result[j].Version
	})
	for i := 1; i < len(result); i++ {
		if result[i].Version == result[i-1].Version {
			return nil, fmt.Errorf("duplicate migration version %d", result[i].Version)
		}
	}
	return result, nil
}

// SplitSQL splits a script into statements on semicolons, dropping
// comment-only and empty chunks.
func SplitSQL(script string) []string {
	var out []string
	for _, chunk := range strings.Split(script, ";") {
		var lines []string
		for _, line := range strings.Split(chunk, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, "--") {
				continue
			}
			lines = append(lines, line)
		}
		if stmt := strings.TrimSpace(strings.Join(lines, "\n")); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// Run applies one migration in the given direction. The version is marked
// dirty while its statements execute.
func (r *Runner) Run(ctx context.Context, m Migration, up bool) error {
	direction, script, target := "up", m.UpSQL, m.Version
	if !up {
		direction, script, target = "down", m.DownSQL, m.Version-1
	}

	fmt.Fprintf(r.out, "  %s %03d_%s\n", direction, m.Version, m.Name)

	if err := setVersion(ctx, r.db, m.Version, true); err != nil {
		return fmt.Errorf("failed to set dirty flag: %w", err)
	}
	for _, stmt := range SplitSQL(script) {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute migration %d %s: %w\nSQL: %s", m.Version, direction, err, stmt)
		}
	}
	if err := setVersion(ctx, r.db, target, false); err != nil {
		return fmt.Errorf("failed to clear dirty flag: %w", err)
	}
	return nil
}

// Migrate moves the schema to target. A negative target means the latest version.
func (r *Runner) Migrate(ctx context.Context, all []Migration, target int) error {
	if err := EnsureMigrationsTable(ctx, r.db); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	current, dirty, err := CurrentVersion(ctx, r.db)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}
	if dirty {
		return fmt.Errorf("database is in dirty state at version %d", current)
	}

	if target < 0 {
		target = 0
		if len(all) > 0 {
			target = all[len(all)-1].Version
		}
	}

	switch {
	case target > current:
		return r.up(ctx, all, current, target)
	case target < current:
		return r.down(ctx, all, current, target)
	default:
		fmt.Fprintf(r.out, "Already at version %d\n", current)
		return nil
	}
}

func (r *Runner) up(ctx context.Context, all []Migration, current, target int) error {
	count := 0
	for _, m := range all {
		if m.Version <= current {
			continue
		}
		if m.Version > target {
			break
		}
		if err := r.Run(ctx, m, true); err != nil {
			return err
		}
		count++
	}
	version, _, err := CurrentVersion(ctx, r.db)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "Migrated to version %d (%d applied)\n", version, count)
	return nil
}

func (r *Runner) down(ctx context.Context, all []Migration, current, target int) error {
	for i := len(all) - 1; i >= 0; i-- {
		m := all[i]
		if m.Version > current {
			continue
		}
		if m.Version <= target {
			break
		}
		if m.DownSQL == "" {
			return fmt.Errorf("no down migration for version %d", m.Version)
		}
		if err := r.Run(ctx, m, false); err != nil {
			return err
		}
	}
	fmt.Fprintf(r.out, "Migrated to version %d\n", target)
	return nil
}

// RunAll silently applies every pending embedded migration.
func RunAll(ctx context.Context, db *sql.DB) error {
	all, err := Load()
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	return NewRunner(db, io.Discard).Migrate(ctx, all, -1)
}
