package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/screenpass/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
	"github.com/google/uuid"
)

const sqliteSubscriptionColumns = `id, user_id, plan_id, status, start_date, end_date, auto_renew, created_at, updated_at`

// SQLiteSubscriptionRepository implements domain.SubscriptionRepository using SQLite.
type SQLiteSubscriptionRepository struct {
	conn database.Connection
}

// NewSQLiteSubscriptionRepository creates a new SQLite subscription repository.
func NewSQLiteSubscriptionRepository(conn database.Connection) *SQLiteSubscriptionRepository {
	return &SQLiteSubscriptionRepository{conn: conn}
}

// Create inserts a new subscription. A second live subscription for the
// same user is rejected by the one-live index and reported as a conflict.
func (r *SQLiteSubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) error {
	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, `
		INSERT INTO subscriptions (`+sqliteSubscriptionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID().String(),
		sub.UserID().String(),
		sub.PlanID().String(),
		string(sub.Status()),
		database.FormatTime(sub.StartDate()),
		database.FormatTime(sub.EndDate()),
		boolToInt(sub.AutoRenew()),
		database.FormatTime(sub.CreatedAt()),
		database.FormatTime(sub.UpdatedAt()),
	)
	if database.IsUniqueViolation(err) {
		return domain.ErrUserHasLiveSub
	}
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	sub.MarkPersisted()
	return nil
}

// Update writes sub guarded by the status and end date it was loaded with.
func (r *SQLiteSubscriptionRepository) Update(ctx context.Context, sub *domain.Subscription) (bool, error) {
	loadedStatus, loadedEnd := sub.Loaded()
	exec := database.ExecutorFromContext(ctx, r.conn)
	result, err := exec.Exec(ctx, `
		UPDATE subscriptions
		SET user_id = ?, plan_id = ?, status = ?, start_date = ?, end_date = ?,
		    auto_renew = ?, updated_at = ?
		WHERE id = ? AND status = ? AND end_date = ?`,
		sub.UserID().String(),
		sub.PlanID().String(),
		string(sub.Status()),
		database.FormatTime(sub.StartDate()),
		database.FormatTime(sub.EndDate()),
		boolToInt(sub.AutoRenew()),
		database.FormatTime(sub.UpdatedAt()),
		sub.ID().String(),
		string(loadedStatus),
		database.FormatTime(loadedEnd),
	)
	if database.IsUniqueViolation(err) {
		return false, domain.ErrUserHasLiveSub
	}
	if err != nil {
		return false, fmt.Errorf("update subscription: %w", err)
	}
	changed, err := database.Changed(result)
	if err != nil {
		return false, err
	}
	if changed {
		sub.MarkPersisted()
	}
	return changed, nil
}

// FindByID retrieves a subscription by its ID.
func (r *SQLiteSubscriptionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	return r.one(ctx, `SELECT `+sqliteSubscriptionColumns+` FROM subscriptions WHERE id = ?`, id.String())
}

// FindLatestByUser retrieves the user's most recent subscription in any status.
func (r *SQLiteSubscriptionRepository) FindLatestByUser(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	return r.one(ctx, `SELECT `+sqliteSubscriptionColumns+` FROM subscriptions
		WHERE user_id = ? `+latestFirst+` LIMIT 1`, userID.String())
}

// FindLatestLiveByUser retrieves the user's PENDING or ACTIVE subscription.
func (r *SQLiteSubscriptionRepository) FindLatestLiveByUser(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	return r.one(ctx, `SELECT `+sqliteSubscriptionColumns+` FROM subscriptions
		WHERE user_id = ? AND status IN ('PENDING', 'ACTIVE') `+latestFirst+` LIMIT 1`, userID.String())
}

// FindByUser lists the user's subscriptions, optionally filtered by status.
func (r *SQLiteSubscriptionRepository) FindByUser(ctx context.Context, userID uuid.UUID, statuses ...domain.Status) ([]*domain.Subscription, error) {
	query := `SELECT ` + sqliteSubscriptionColumns + ` FROM subscriptions WHERE user_id = ?`
	args := []any{userID.String()}
	if len(statuses) > 0 {
		query += ` AND status IN (` + sqliteIn(len(statuses)) + `)`
		args = append(args, statusArgs(statuses)...)
	}
	return r.many(ctx, query+` `+latestFirst, args...)
}

// FindDue lists ACTIVE or EXPIRED subscriptions whose end date has passed.
func (r *SQLiteSubscriptionRepository) FindDue(ctx context.Context, now time.Time, userID *uuid.UUID) ([]*domain.Subscription, error) {
	query := `SELECT ` + sqliteSubscriptionColumns + ` FROM subscriptions
		WHERE end_date <= ? AND status IN ('ACTIVE', 'EXPIRED')`
	args := []any{database.FormatTime(now)}
	if userID != nil {
		query += ` AND user_id = ?`
		args = append(args, userID.String())
	}
	return r.many(ctx, query+` ORDER BY end_date, id`, args...)
}

// List returns subscriptions of active users.
func (r *SQLiteSubscriptionRepository) List(ctx context.Context, statuses ...domain.Status) ([]*domain.Subscription, error) {
	query := `SELECT s.id, s.user_id, s.plan_id, s.status, s.start_date, s.end_date,
		       s.auto_renew, s.created_at, s.updated_at
		FROM subscriptions s
		JOIN users u ON u.id = s.user_id
		WHERE u.is_active = 1`
	var args []any
	if len(statuses) > 0 {
		query += ` AND s.status IN (` + sqliteIn(len(statuses)) + `)`
		args = statusArgs(statuses)
	}
	return r.many(ctx, query+` ORDER BY s.created_at DESC, s.id DESC`, args...)
}

func (r *SQLiteSubscriptionRepository) one(ctx context.Context, query string, args ...any) (*domain.Subscription, error) {
	row := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx, query, args...)
	sub, err := scanSQLiteSubscription(row)
	if database.IsNoRows(err) {
		return nil, nil
	}
	return sub, err
}

func (r *SQLiteSubscriptionRepository) many(ctx context.Context, query string, args ...any) ([]*domain.Subscription, error) {
	rows, err := database.ExecutorFromContext(ctx, r.conn).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*domain.Subscription
	for rows.Next() {
		sub, err := scanSQLiteSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func scanSQLiteSubscription(row database.Row) (*domain.Subscription, error) {
	var (
		id, userID, planID, status   string
		start, end, created, updated string
		autoRenew                    int64
	)
	if err := row.Scan(&id, &userID, &planID, &status, &start, &end, &autoRenew, &created, &updated); err != nil {
		return nil, err
	}

	ids, err := parseUUIDs(id, userID, planID)
	if err != nil {
		return nil, err
	}
	times, err := parseTimes(start, end, created, updated)
	if err != nil {
		return nil, err
	}

	return domain.RehydrateSubscription(
		ids[0], ids[1], ids[2],
		domain.Status(status),
		times[0], times[1],
		autoRenew != 0,
		times[2], times[3],
	), nil
}

func parseUUIDs(values ...string) ([]uuid.UUID, error) {
	out := make([]uuid.UUID, len(values))
	for i, v := range values {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("parse uuid %q: %w", v, err)
		}
		out[i] = id
	}
	return out, nil
}

func parseTimes(values ...string) ([]time.Time, error) {
	out := make([]time.Time, len(values))
	for i, v := range values {
		ts, err := database.ParseTime(v)
		if err != nil {
			return nil, err
		}
		out[i] = ts
	}
	return out, nil
}
