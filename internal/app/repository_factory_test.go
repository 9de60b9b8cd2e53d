package app

import (
	"testing"

	"github.com/felixgeelhaar/screenpass/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/screenpass/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/infrastructure/catalog"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/infrastructure/persistence"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/infrastructure/sqlitetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// driverConn reports a fixed driver and is never queried.
type driverConn struct {
	database.Connection
	driver database.Driver
}

func (c driverConn) Driver() database.Driver { return c.driver }

func TestRepositoryFactory_SQLite(t *testing.T) {
	f := NewRepositoryFactory(sqlitetest.New(t).Conn, nil)

	subs, err := f.SubscriptionRepository()
	require.NoError(t, err)
	assert.IsType(t, &persistence.SQLiteSubscriptionRepository{}, subs)

	payments, err := f.PaymentRepository()
	require.NoError(t, err)
	assert.IsType(t, &persistence.SQLitePaymentRepository{}, payments)

	history, err := f.HistoryRepository()
	require.NoError(t, err)
	assert.IsType(t, &persistence.SQLiteHistoryRepository{}, history)

	users, err := f.UserDirectory()
	require.NoError(t, err)
	assert.IsType(t, &catalog.SQLiteUserDirectory{}, users)

	plans, err := f.PlanCatalog()
	require.NoError(t, err)
	assert.IsType(t, &catalog.SQLitePlanCatalog{}, plans)

	contents, err := f.ContentCatalog()
	require.NoError(t, err)
	assert.IsType(t, &catalog.SQLiteContentCatalog{}, contents)

	ob, err := f.OutboxRepository()
	require.NoError(t, err)
	assert.IsType(t, &outbox.SQLiteRepository{}, ob)
}

func TestRepositoryFactory_Postgres(t *testing.T) {
	f := NewRepositoryFactory(driverConn{driver: database.DriverPostgres}, nil)

	subs, err := f.SubscriptionRepository()
	require.NoError(t, err)
	assert.IsType(t, &persistence.PostgresSubscriptionRepository{}, subs)

	payments, err := f.PaymentRepository()
	require.NoError(t, err)
	assert.IsType(t, &persistence.PostgresPaymentRepository{}, payments)

	plans, err := f.PlanCatalog()
	require.NoError(t, err)
	assert.IsType(t, &catalog.PostgresPlanCatalog{}, plans)

	ob, err := f.OutboxRepository()
	require.NoError(t, err)
	assert.IsType(t, &outbox.PostgresRepository{}, ob)
}

func TestRepositoryFactory_UnsupportedDriver(t *testing.T) {
	f := NewRepositoryFactory(driverConn{driver: "mysql"}, nil)

	_, err := f.SubscriptionRepository()
	require.EqualError(t, err, "unsupported driver: mysql")
	_, err = f.ContentCatalog()
	require.Error(t, err)
	_, err = f.OutboxRepository()
	require.Error(t, err)
}
