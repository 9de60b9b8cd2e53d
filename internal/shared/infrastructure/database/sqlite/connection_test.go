package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/screenpass/internal/shared/infrastructure/database"
)

func openTestConnection(t *testing.T) database.Connection {
	t.Helper()
	conn, err := database.NewConnection(context.Background(), database.Config{
		Driver:     database.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "screenpass.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestNewConnection(t *testing.T) {
	conn := openTestConnection(t)

	assert.NoError(t, conn.Ping(context.Background()))
	assert.Equal(t, database.DriverSQLite, conn.Driver())
}

func TestNewConnection_RejectsUnsafePath(t *testing.T) {
	_, err := NewConnection(context.Background(), database.Config{SQLitePath: "/tmp/screenpass.db; rm -rf /"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid SQLite path")
}

func TestNewConnection_InMemory(t *testing.T) {
	ctx := context.Background()
	conn, err := NewConnection(ctx, database.Config{SQLitePath: database.MemoryPath})
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Exec(ctx, `CREATE TABLE plans (id TEXT PRIMARY KEY)`)
	require.NoError(t, err)

	var count int
	require.NoError(t, conn.QueryRow(ctx, `SELECT COUNT(*) FROM plans`).Scan(&count))
	assert.Zero(t, count)
}

func TestUnitOfWork_CommitAndRollback(t *testing.T) {
	ctx := context.Background()
	conn := openTestConnection(t)
	uow := database.NewUnitOfWork(conn)

	_, err := conn.Exec(ctx, `CREATE TABLE payments (id TEXT PRIMARY KEY, amount TEXT NOT NULL)`)
	require.NoError(t, err)

	txCtx, err := uow.Begin(ctx)
	require.NoError(t, err)
	_, err = database.ExecutorFromContext(txCtx, conn).Exec(txCtx, `INSERT INTO payments VALUES (?, ?)`, "p1", "9.99")
	require.NoError(t, err)
	require.NoError(t, uow.Commit(txCtx))

	txCtx, err = uow.Begin(ctx)
	require.NoError(t, err)
	_, err = database.ExecutorFromContext(txCtx, conn).Exec(txCtx, `INSERT INTO payments VALUES (?, ?)`, "p2", "19.99")
	require.NoError(t, err)
	require.NoError(t, uow.Rollback(txCtx))

	var count int
	require.NoError(t, conn.QueryRow(ctx, `SELECT COUNT(*) FROM payments`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestUnitOfWork_NestedBeginJoinsOuter(t *testing.T) {
	ctx := context.Background()
	conn := openTestConnection(t)
	uow := database.NewUnitOfWork(conn)

	outer, err := uow.Begin(ctx)
	require.NoError(t, err)
	inner, err := uow.Begin(outer)
	require.NoError(t, err)

	innerInfo, ok := database.TxInfoFromContext(inner)
	require.True(t, ok)
	assert.False(t, innerInfo.Owned)

	// Inner commit is a no-op; the outer owner still holds the transaction.
	require.NoError(t, uow.Commit(inner))
	require.NoError(t, uow.Rollback(outer))
}

func TestUnitOfWork_CommitWithoutTransaction(t *testing.T) {
	uow := database.NewUnitOfWork(openTestConnection(t))

	err := uow.Commit(context.Background())
	assert.Error(t, err)
}

func TestChanged(t *testing.T) {
	ctx := context.Background()
	conn := openTestConnection(t)
	_, err := conn.Exec(ctx, `CREATE TABLE subscriptions (id TEXT PRIMARY KEY, status TEXT)`)
	require.NoError(t, err)
	_, err = conn.Exec(ctx, `INSERT INTO subscriptions VALUES ('s1', 'ACTIVE')`)
	require.NoError(t, err)

	res, err := conn.Exec(ctx, `UPDATE subscriptions SET status = 'EXPIRED' WHERE id = 's1' AND status = 'ACTIVE'`)
	require.NoError(t, err)
	changed, err := database.Changed(res)
	require.NoError(t, err)
	assert.True(t, changed)

	res, err = conn.Exec(ctx, `UPDATE subscriptions SET status = 'EXPIRED' WHERE id = 's1' AND status = 'ACTIVE'`)
	require.NoError(t, err)
	changed, err = database.Changed(res)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestIsUniqueViolation_SQLite(t *testing.T) {
	ctx := context.Background()
	conn := openTestConnection(t)
	_, err := conn.Exec(ctx, `CREATE TABLE users (id TEXT PRIMARY KEY)`)
	require.NoError(t, err)
	_, err = conn.Exec(ctx, `INSERT INTO users VALUES ('u1')`)
	require.NoError(t, err)

	_, err = conn.Exec(ctx, `INSERT INTO users VALUES ('u1')`)
	require.Error(t, err)
	assert.True(t, database.IsUniqueViolation(err), "got %v", errors.Unwrap(err))
}
