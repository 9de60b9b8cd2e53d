// Package apptest wires the SQLite-backed stores of the subscriptions
// context for application tests.
package apptest

import (
	"context"
	"testing"
	"time"

	sharedApplication "github.com/felixgeelhaar/screenpass/internal/shared/application"
	"github.com/felixgeelhaar/screenpass/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/screenpass/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/infrastructure/catalog"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/infrastructure/persistence"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/infrastructure/sqlitetest"
	"github.com/felixgeelhaar/screenpass/pkg/observability"
	"github.com/stretchr/testify/require"
)

// Start is the instant every Env clock starts at.
var Start = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

// Env holds the stores and the controllable clock of one test.
type Env struct {
	*sqlitetest.Harness
	Subs     *persistence.SQLiteSubscriptionRepository
	Payments *persistence.SQLitePaymentRepository
	History  *persistence.SQLiteHistoryRepository
	Users    *catalog.SQLiteUserDirectory
	Plans    *catalog.SQLitePlanCatalog
	Contents *catalog.SQLiteContentCatalog
	Outbox   *outbox.SQLiteRepository
	UoW      *database.UnitOfWork
	Clock    *sharedApplication.FixedClock
	Metrics  *observability.InMemoryMetrics
}

// New builds an Env over a fresh in-memory database.
func New(t testing.TB) *Env {
	t.Helper()
	h := sqlitetest.New(t)
	return &Env{
		Harness:  h,
		Subs:     persistence.NewSQLiteSubscriptionRepository(h.Conn),
		Payments: persistence.NewSQLitePaymentRepository(h.Conn, nil),
		History:  persistence.NewSQLiteHistoryRepository(h.Conn),
		Users:    catalog.NewSQLiteUserDirectory(h.Conn),
		Plans:    catalog.NewSQLitePlanCatalog(h.Conn),
		Contents: catalog.NewSQLiteContentCatalog(h.Conn),
		Outbox:   outbox.NewSQLiteRepository(h.Conn),
		UoW:      database.NewUnitOfWork(h.Conn),
		Clock:    &sharedApplication.FixedClock{At: Start},
		Metrics:  observability.NewInMemoryMetrics(),
	}
}

// RoutingKeys returns the routing keys waiting in the outbox, oldest first.
func (e *Env) RoutingKeys(t testing.TB) []string {
	t.Helper()
	msgs, err := e.Outbox.GetUnpublished(context.Background(), 1000)
	require.NoError(t, err)
	keys := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		keys = append(keys, msg.RoutingKey)
	}
	return keys
}
