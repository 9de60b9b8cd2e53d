package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/screenpass/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
	"github.com/google/uuid"
)

const postgresSubscriptionColumns = `id, user_id, plan_id, status, start_date, end_date, auto_renew, created_at, updated_at`

// PostgresSubscriptionRepository implements domain.SubscriptionRepository using PostgreSQL.
type PostgresSubscriptionRepository struct {
	conn database.Connection
}

// NewPostgresSubscriptionRepository creates a new PostgreSQL subscription repository.
func NewPostgresSubscriptionRepository(conn database.Connection) *PostgresSubscriptionRepository {
	return &PostgresSubscriptionRepository{conn: conn}
}

// Create inserts a new subscription.
func (r *PostgresSubscriptionRepository) Create(ctx context.Context, sub *domain.Subscription) error {
	exec := database.ExecutorFromContext(ctx, r.conn)
	_, err := exec.Exec(ctx, `
		INSERT INTO subscriptions (`+postgresSubscriptionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sub.ID(),
		sub.UserID(),
		sub.PlanID(),
		string(sub.Status()),
		sub.StartDate(),
		sub.EndDate(),
		sub.AutoRenew(),
		sub.CreatedAt(),
		sub.UpdatedAt(),
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
func (r *PostgresSubscriptionRepository) Update(ctx context.Context, sub *domain.Subscription) (bool, error) {
	loadedStatus, loadedEnd := sub.Loaded()
	exec := database.ExecutorFromContext(ctx, r.conn)
	result, err := exec.Exec(ctx, `
		UPDATE subscriptions
		SET user_id = $1, plan_id = $2, status = $3, start_date = $4, end_date = $5,
		    auto_renew = $6, updated_at = $7
		WHERE id = $8 AND status = $9 AND end_date = $10`,
		sub.UserID(),
		sub.PlanID(),
		string(sub.Status()),
		sub.StartDate(),
		sub.EndDate(),
		sub.AutoRenew(),
		sub.UpdatedAt(),
		sub.ID(),
		string(loadedStatus),
		loadedEnd,
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
func (r *PostgresSubscriptionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	return r.one(ctx, `SELECT `+postgresSubscriptionColumns+` FROM subscriptions WHERE id = $1`, id)
}

// FindLatestByUser retrieves the user's most recent subscription in any status.
func (r *PostgresSubscriptionRepository) FindLatestByUser(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	return r.one(ctx, `SELECT `+postgresSubscriptionColumns+` FROM subscriptions
		WHERE user_id = $1 `+latestFirst+` LIMIT 1`, userID)
}

// FindLatestLiveByUser retrieves the user's PENDING or ACTIVE subscription.
func (r *PostgresSubscriptionRepository) FindLatestLiveByUser(ctx context.Context, userID uuid.UUID) (*domain.Subscription, error) {
	return r.one(ctx, `SELECT `+postgresSubscriptionColumns+` FROM subscriptions
		WHERE user_id = $1 AND status IN ('PENDING', 'ACTIVE') `+latestFirst+` LIMIT 1`, userID)
}

// FindByUser lists the user's subscriptions, optionally filtered by status.
func (r *PostgresSubscriptionRepository) FindByUser(ctx context.Context, userID uuid.UUID, statuses ...domain.Status) ([]*domain.Subscription, error) {
	query := `SELECT ` + postgresSubscriptionColumns + ` FROM subscriptions WHERE user_id = $1`
	args := []any{userID}
	if len(statuses) > 0 {
		query += ` AND status IN (` + postgresIn(2, len(statuses)) + `)`
		args = append(args, statusArgs(statuses)...)
	}
	return r.many(ctx, query+` `+latestFirst, args...)
}

// FindDue lists ACTIVE or EXPIRED subscriptions whose end date has passed.
func (r *PostgresSubscriptionRepository) FindDue(ctx context.Context, now time.Time, userID *uuid.UUID) ([]*domain.Subscription, error) {
	query := `SELECT ` + postgresSubscriptionColumns + ` FROM subscriptions
		WHERE end_date <= $1 AND status IN ('ACTIVE', 'EXPIRED')`
	args := []any{now}
	if userID != nil {
		query += ` AND user_id = $2`
		args = append(args, *userID)
	}
	return r.many(ctx, query+` ORDER BY end_date, id`, args...)
}

// List returns subscriptions of active users.
func (r *PostgresSubscriptionRepository) List(ctx context.Context, statuses ...domain.Status) ([]*domain.Subscription, error) {
	query := `SELECT s.id, s.user_id, s.plan_id, s.status, s.start_date, s.end_date,
		       s.auto_renew, s.created_at, s.updated_at
		FROM subscriptions s
		JOIN users u ON u.id = s.user_id
		WHERE u.is_active`
	var args []any
	if len(statuses) > 0 {
		query += ` AND s.status IN (` + postgresIn(1, len(statuses)) + `)`
		args = statusArgs(statuses)
	}
	return r.many(ctx, query+` ORDER BY s.created_at DESC, s.id DESC`, args...)
}

func (r *PostgresSubscriptionRepository) one(ctx context.Context, query string, args ...any) (*domain.Subscription, error) {
	row := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx, query, args...)
	sub, err := scanPostgresSubscription(row)
	if database.IsNoRows(err) {
		return nil, nil
	}
	return sub, err
}

func (r *PostgresSubscriptionRepository) many(ctx context.Context, query string, args ...any) ([]*domain.Subscription, error) {
	rows, err := database.ExecutorFromContext(ctx, r.conn).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*domain.Subscription
	for rows.Next() {
		sub, err := scanPostgresSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func scanPostgresSubscription(row database.Row) (*domain.Subscription, error) {
	var (
		id, userID, planID uuid.UUID
		status             string
		start, end         time.Time
		autoRenew          bool
		created, updated   time.Time
	)
	if err := row.Scan(&id, &userID, &planID, &status, &start, &end, &autoRenew, &created, &updated); err != nil {
		return nil, err
	}
	return domain.RehydrateSubscription(id, userID, planID, domain.Status(status), start, end, autoRenew, created, updated), nil
}
