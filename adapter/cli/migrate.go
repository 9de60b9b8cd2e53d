package cli

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/felixgeelhaar/screenpass/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/screenpass/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/screenpass/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/screenpass/pkg/config"
	_ "github.com/lib/pq" // database/sql driver for PostgreSQL migrations
	"github.com/spf13/cobra"
)

var migrateDryRun bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	Long: `Apply the embedded schema migrations to the configured database.

PostgreSQL is selected by DATABASE_URL; otherwise the local SQLite file
at SQLITE_PATH is migrated.

Examples:
  screenpass migrate             # Apply pending migrations
  screenpass migrate --dry-run   # List pending migrations only`,
	Annotations: map[string]string{annotationNoApp: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFile(cfgFile)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		db, driver, closeDB, err := openMigrationDB(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeDB()

		pending, err := migrations.Pending(ctx, db, driver)
		if err != nil {
			return fmt.Errorf("failed to list pending migrations: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(pending) == 0 {
			fmt.Fprintf(out, "%s schema is up to date\n", driver)
			return nil
		}
		for _, file := range pending {
			fmt.Fprintf(out, "  pending  %s\n", file)
		}
		if migrateDryRun {
			return nil
		}

		if driver == string(database.DriverPostgres) {
			err = migrations.RunPostgresMigrations(ctx, db)
		} else {
			err = migrations.RunSQLiteMigrations(ctx, db)
		}
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		fmt.Fprintf(out, "applied %d %s migration(s)\n", len(pending), driver)
		return nil
	},
}

// openMigrationDB opens a plain *sql.DB for the configured backend.
func openMigrationDB(ctx context.Context, cfg *config.Config) (*sql.DB, string, func(), error) {
	if cfg.UsesSQLite() {
		conn, err := sqlite.NewConnection(ctx, database.Config{SQLitePath: cfg.SQLitePath})
		if err != nil {
			return nil, "", nil, err
		}
		db := conn.(interface{ DB() *sql.DB }).DB()
		return db, string(database.DriverSQLite), func() { _ = conn.Close() }, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, "", nil, fmt.Errorf("failed to open PostgreSQL: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, "", nil, fmt.Errorf("failed to reach PostgreSQL: %w", err)
	}
	return db, string(database.DriverPostgres), func() { _ = db.Close() }, nil
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "list pending migrations without applying them")
	rootCmd.AddCommand(migrateCmd)
}
