// Package sqlitetest opens a migrated in-memory SQLite database and seeds
// collaborator rows for tests.
//
//	func TestSomething(t *testing.T) {
//		h := sqlitetest.New(t)
//		userID := h.SeedUser(t, true)
//		planID := h.SeedPlan(t, 30, true)
//		repo := persistence.NewSQLiteSubscriptionRepository(h.Conn)
//		...
//	}
package sqlitetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/felixgeelhaar/screenpass/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/screenpass/internal/shared/infrastructure/database/sqlite"
	"github.com/felixgeelhaar/screenpass/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// Harness owns a migrated database for one test.
type Harness struct {
	Conn database.Connection
	seq  int
}

// New opens the database and closes it when t finishes.
func New(t testing.TB) *Harness {
	t.Helper()
	ctx := context.Background()

	conn, err := sqlite.NewConnection(ctx, database.Config{SQLitePath: database.MemoryPath})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, migrations.RunSQLiteMigrations(ctx, conn.(*sqlite.Connection).DB()))
	return &Harness{Conn: conn}
}

func (h *Harness) exec(t testing.TB, query string, args ...any) {
	t.Helper()
	_, err := h.Conn.Exec(context.Background(), query, args...)
	require.NoError(t, err)
}

func (h *Harness) next() int {
	h.seq++
	return h.seq
}

// SeedUser inserts a USER.
func (h *Harness) SeedUser(t testing.TB, active bool) uuid.UUID {
	t.Helper()
	return h.SeedUserWithRole(t, active, domain.RoleUser)
}

// SeedUserWithRole inserts a user with the given role.
func (h *Harness) SeedUserWithRole(t testing.TB, active bool, role domain.Role) uuid.UUID {
	t.Helper()
	id := uuid.New()
	now := database.FormatTime(time.Now())
	n := h.next()
	h.exec(t, `INSERT INTO users (id, email, name, role, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id.String(), fmt.Sprintf("user%d@example.com", n), fmt.Sprintf("User %d", n),
		string(role), boolInt(active), now, now)
	return id
}

// SeedPlan inserts a plan priced at 9.99.
func (h *Harness) SeedPlan(t testing.TB, durationDays int, active bool) uuid.UUID {
	t.Helper()
	id := uuid.New()
	now := database.FormatTime(time.Now())
	h.exec(t, `INSERT INTO subscription_plans
		(id, name, description, price, duration_days, features, is_active, created_at, updated_at)
		VALUES (?, ?, '', '9.99', ?, '["hd","offline"]', ?, ?, ?)`,
		id.String(), fmt.Sprintf("Plan %d", h.next()), durationDays, boolInt(active), now, now)
	return id
}

// SetPlanActive toggles a plan.
func (h *Harness) SetPlanActive(t testing.TB, planID uuid.UUID, active bool) {
	t.Helper()
	h.exec(t, `UPDATE subscription_plans SET is_active = ? WHERE id = ?`, boolInt(active), planID.String())
}

// SetUserActive toggles a user.
func (h *Harness) SetUserActive(t testing.TB, userID uuid.UUID, active bool) {
	t.Helper()
	h.exec(t, `UPDATE users SET is_active = ? WHERE id = ?`, boolInt(active), userID.String())
}

// SeedContent inserts a content item.
func (h *Harness) SeedContent(t testing.TB, kind domain.SubscriptionType) uuid.UUID {
	t.Helper()
	id := uuid.New()
	now := database.FormatTime(time.Now())
	h.exec(t, `INSERT INTO contents (id, title, subscription_type, view_count, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, ?)`,
		id.String(), fmt.Sprintf("Title %d", h.next()), string(kind), now, now)
	return id
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
