// Package clitest runs the screenpass command tree against a throwaway
// SQLite store.
package clitest

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/felixgeelhaar/screenpass/adapter/cli"
	"github.com/felixgeelhaar/screenpass/internal/app"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/infrastructure/sqlitetest"
	"github.com/felixgeelhaar/screenpass/pkg/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

// Env is a container wired to a temporary database plus seed helpers.
type Env struct {
	Container *app.Container
	Seed      *sqlitetest.Harness
}

// New builds an Env and installs it as the CLI app with no principal.
func New(t testing.TB) *Env {
	t.Helper()
	cfg := &config.Config{
		AppEnv:                   "development",
		SQLitePath:               filepath.Join(t.TempDir(), "screenpass.db"),
		SubscriptionBaseLifetime: time.Minute,
		ReconcileInterval:        time.Second,
		OutboxPollInterval:       10 * time.Millisecond,
		OutboxBatchSize:          100,
		OutboxMaxRetries:         5,
		OutboxRetentionDays:      14,
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	c, err := app.NewContainer(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	cli.SetAppFactory(nil)
	cli.SetApp(cli.NewApp(c, nil))
	t.Cleanup(func() { cli.SetApp(nil) })

	return &Env{Container: c, Seed: &sqlitetest.Harness{Conn: c.DBConn}}
}

// User seeds an active user with role and returns the --user/--role args.
func (e *Env) User(t testing.TB, role domain.Role) (domain.Principal, []string) {
	t.Helper()
	id := e.Seed.SeedUserWithRole(t, true, role)
	return domain.Principal{UserID: id, Role: role}, []string{"--user", id.String(), "--role", string(role)}
}

// Run executes the root command with args and returns combined output.
func Run(t testing.TB, args ...string) (string, error) {
	t.Helper()
	root := cli.Root()
	resetFlags(root)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// resetFlags restores every flag to its default. Cobra keeps parsed
// values between executions of the same command tree.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, child := range cmd.Commands() {
		resetFlags(child)
	}
}
