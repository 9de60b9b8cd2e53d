// Package migrations embeds and applies the schema for both backends.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"time"
)

//go:embed sqlite/*.sql
var sqliteFS embed.FS

//go:embed postgres/*.sql
var postgresFS embed.FS

// RunSQLiteMigrations applies all pending SQLite migrations in order.
func RunSQLiteMigrations(ctx context.Context, db *sql.DB) error {
	return run(ctx, db, sqliteFS, "sqlite", dialect{
		createTable: `CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)`,
		selectApplied: `SELECT version FROM schema_migrations`,
		insertApplied: `INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`,
		appliedAt:     func(t time.Time) any { return t.UTC().Format(time.RFC3339) },
	})
}

// RunPostgresMigrations applies all pending PostgreSQL migrations in order.
func RunPostgresMigrations(ctx context.Context, db *sql.DB) error {
	return run(ctx, db, postgresFS, "postgres", dialect{
		createTable: `CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL
		)`,
		selectApplied: `SELECT version FROM schema_migrations`,
		insertApplied: `INSERT INTO schema_migrations (version, applied_at) VALUES ($1, $2)`,
		appliedAt:     func(t time.Time) any { return t.UTC() },
	})
}

// Pending lists migration files not yet recorded in schema_migrations.
// Used by `screenpass migrate --dry-run`.
func Pending(ctx context.Context, db *sql.DB, driver string) ([]string, error) {
	fsys, dir, err := source(driver)
	if err != nil {
		return nil, err
	}
	files, err := upFiles(fsys, dir)
	if err != nil {
		return nil, err
	}
	applied, err := appliedVersions(ctx, db, `SELECT version FROM schema_migrations`)
	if err != nil {
		// No bookkeeping table yet: everything is pending.
		return files, nil
	}
	var pending []string
	for _, f := range files {
		if !applied[f] {
			pending = append(pending, f)
		}
	}
	return pending, nil
}

type dialect struct {
	createTable   string
	selectApplied string
	insertApplied string
	appliedAt     func(time.Time) any
}

func source(driver string) (fs.FS, string, error) {
	switch driver {
	case "sqlite":
		return sqliteFS, "sqlite", nil
	case "postgres":
		return postgresFS, "postgres", nil
	default:
		return nil, "", fmt.Errorf("no migrations for driver %q", driver)
	}
}

func run(ctx context.Context, db *sql.DB, fsys fs.FS, dir string, d dialect) error {
	if _, err := db.ExecContext(ctx, d.createTable); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	applied, err := appliedVersions(ctx, db, d.selectApplied)
	if err != nil {
		return err
	}

	files, err := upFiles(fsys, dir)
	if err != nil {
		return err
	}

	for _, file := range files {
		if applied[file] {
			continue
		}
		migration, err := fs.ReadFile(fsys, dir+"/"+file)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", file, err)
		}
		if err := apply(ctx, db, file, string(migration), d); err != nil {
			return err
		}
	}

	return nil
}

func apply(ctx context.Context, db *sql.DB, file, migration string, d dialect) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration %s: %w", file, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, migration); err != nil {
		return fmt.Errorf("failed to execute migration %s: %w", file, err)
	}
	if _, err := tx.ExecContext(ctx, d.insertApplied, file, d.appliedAt(time.Now())); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", file, err)
	}
	return tx.Commit()
}

func upFiles(fsys fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func appliedVersions(ctx context.Context, db *sql.DB, query string) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}
