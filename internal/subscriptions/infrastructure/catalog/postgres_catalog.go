package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/screenpass/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
	"github.com/google/uuid"
)

// PostgresUserDirectory implements domain.UserDirectory using PostgreSQL.
type PostgresUserDirectory struct {
	conn database.Connection
}

// NewPostgresUserDirectory creates a user directory over conn.
func NewPostgresUserDirectory(conn database.Connection) *PostgresUserDirectory {
	return &PostgresUserDirectory{conn: conn}
}

// ExistsAndActive reports whether the user exists and is enabled.
func (c *PostgresUserDirectory) ExistsAndActive(ctx context.Context, userID uuid.UUID) (bool, error) {
	var active bool
	err := database.ExecutorFromContext(ctx, c.conn).
		QueryRow(ctx, `SELECT is_active FROM users WHERE id = $1`, userID).
		Scan(&active)
	if database.IsNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup user: %w", err)
	}
	return active, nil
}

// Exists reports whether the user exists, enabled or not.
func (c *PostgresUserDirectory) Exists(ctx context.Context, userID uuid.UUID) (bool, error) {
	var exists bool
	err := database.ExecutorFromContext(ctx, c.conn).
		QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).
		Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("lookup user: %w", err)
	}
	return exists, nil
}

// Get loads the user summary, or nil when absent.
func (c *PostgresUserDirectory) Get(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	var (
		user domain.User
		role string
	)
	err := database.ExecutorFromContext(ctx, c.conn).
		QueryRow(ctx, `SELECT id, email, name, role, is_active FROM users WHERE id = $1`, userID).
		Scan(&user.ID, &user.Email, &user.Name, &role, &user.IsActive)
	if database.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	user.Role = domain.Role(role)
	return &user, nil
}

// PostgresPlanCatalog implements domain.PlanCatalog using PostgreSQL.
type PostgresPlanCatalog struct {
	conn database.Connection
}

// NewPostgresPlanCatalog creates a plan catalog over conn.
func NewPostgresPlanCatalog(conn database.Connection) *PostgresPlanCatalog {
	return &PostgresPlanCatalog{conn: conn}
}

const postgresPlanColumns = `id, name, description, price::text, duration_days, features::text, is_active`

// Get returns the plan, or nil when it does not exist.
func (c *PostgresPlanCatalog) Get(ctx context.Context, planID uuid.UUID) (*domain.Plan, error) {
	row := database.ExecutorFromContext(ctx, c.conn).
		QueryRow(ctx, `SELECT `+postgresPlanColumns+` FROM subscription_plans WHERE id = $1`, planID)
	plan, err := scanPostgresPlan(row)
	if database.IsNoRows(err) {
		return nil, nil
	}
	return plan, err
}

// ListActive returns active plans, shortest first.
func (c *PostgresPlanCatalog) ListActive(ctx context.Context) ([]domain.Plan, error) {
	rows, err := database.ExecutorFromContext(ctx, c.conn).Query(ctx,
		`SELECT `+postgresPlanColumns+` FROM subscription_plans WHERE is_active ORDER BY duration_days, name`)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var plans []domain.Plan
	for rows.Next() {
		plan, err := scanPostgresPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *plan)
	}
	return plans, rows.Err()
}

func scanPostgresPlan(row database.Row) (*domain.Plan, error) {
	var (
		id                                 uuid.UUID
		name, description, price, features string
		durationDays                       int32
		active                             bool
	)
	if err := row.Scan(&id, &name, &description, &price, &durationDays, &features, &active); err != nil {
		return nil, err
	}
	return buildPlan(id, name, description, price, int(durationDays), features, active)
}

// PostgresContentCatalog implements domain.ContentCatalog using PostgreSQL.
type PostgresContentCatalog struct {
	conn database.Connection
}

// NewPostgresContentCatalog creates a content catalog over conn.
func NewPostgresContentCatalog(conn database.Connection) *PostgresContentCatalog {
	return &PostgresContentCatalog{conn: conn}
}

// Get returns the content, or nil when it does not exist.
func (c *PostgresContentCatalog) Get(ctx context.Context, contentID uuid.UUID) (*domain.Content, error) {
	var (
		title, kind string
		views       int64
	)
	err := database.ExecutorFromContext(ctx, c.conn).QueryRow(ctx,
		`SELECT title, subscription_type, view_count FROM contents WHERE id = $1`, contentID).
		Scan(&title, &kind, &views)
	if database.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lookup content: %w", err)
	}
	return &domain.Content{
		ID:               contentID,
		Title:            title,
		SubscriptionType: domain.SubscriptionType(kind),
		ViewCount:        views,
	}, nil
}

// IncrementViewCount adds one view.
func (c *PostgresContentCatalog) IncrementViewCount(ctx context.Context, contentID uuid.UUID) error {
	result, err := database.ExecutorFromContext(ctx, c.conn).Exec(ctx,
		`UPDATE contents SET view_count = view_count + 1, updated_at = $1 WHERE id = $2`,
		time.Now().UTC(), contentID)
	if err != nil {
		return fmt.Errorf("increment view count: %w", err)
	}
	changed, err := database.Changed(result)
	if err != nil {
		return err
	}
	if !changed {
		return domain.ErrContentNotFound
	}
	return nil
}
