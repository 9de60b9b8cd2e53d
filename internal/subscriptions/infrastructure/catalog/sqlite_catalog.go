// Package catalog adapts the collaborator tables (users, plans, contents)
// to the subscriptions ports, and caches plans in Redis.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/felixgeelhaar/screenpass/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SQLiteUserDirectory implements domain.UserDirectory over the users table.
type SQLiteUserDirectory struct {
	conn database.Connection
}

// NewSQLiteUserDirectory creates a user directory over conn.
func NewSQLiteUserDirectory(conn database.Connection) *SQLiteUserDirectory {
	return &SQLiteUserDirectory{conn: conn}
}

// ExistsAndActive reports whether the user exists and is enabled.
func (c *SQLiteUserDirectory) ExistsAndActive(ctx context.Context, userID uuid.UUID) (bool, error) {
	var active int64
	err := database.ExecutorFromContext(ctx, c.conn).
		QueryRow(ctx, `SELECT is_active FROM users WHERE id = ?`, userID.String()).
		Scan(&active)
	if database.IsNoRows(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup user: %w", err)
	}
	return active != 0, nil
}

// Exists reports whether the user exists, enabled or not.
func (c *SQLiteUserDirectory) Exists(ctx context.Context, userID uuid.UUID) (bool, error) {
	var n int64
	err := database.ExecutorFromContext(ctx, c.conn).
		QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE id = ?`, userID.String()).
		Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup user: %w", err)
	}
	return n > 0, nil
}

// Get loads the user summary, or nil when absent.
func (c *SQLiteUserDirectory) Get(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	var (
		id, email, name, role string
		active                int64
	)
	err := database.ExecutorFromContext(ctx, c.conn).
		QueryRow(ctx, `SELECT id, email, name, role, is_active FROM users WHERE id = ?`, userID.String()).
		Scan(&id, &email, &name, &role, &active)
	if database.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return &domain.User{
		ID:       parsed,
		Email:    email,
		Name:     name,
		Role:     domain.Role(role),
		IsActive: active != 0,
	}, nil
}

// SQLitePlanCatalog implements domain.PlanCatalog over subscription_plans.
type SQLitePlanCatalog struct {
	conn database.Connection
}

// NewSQLitePlanCatalog creates a plan catalog over conn.
func NewSQLitePlanCatalog(conn database.Connection) *SQLitePlanCatalog {
	return &SQLitePlanCatalog{conn: conn}
}

const sqlitePlanColumns = `id, name, description, price, duration_days, features, is_active`

// Get returns the plan, or nil when it does not exist.
func (c *SQLitePlanCatalog) Get(ctx context.Context, planID uuid.UUID) (*domain.Plan, error) {
	row := database.ExecutorFromContext(ctx, c.conn).
		QueryRow(ctx, `SELECT `+sqlitePlanColumns+` FROM subscription_plans WHERE id = ?`, planID.String())
	plan, err := scanSQLitePlan(row)
	if database.IsNoRows(err) {
		return nil, nil
	}
	return plan, err
}

// ListActive returns active plans, shortest first.
func (c *SQLitePlanCatalog) ListActive(ctx context.Context) ([]domain.Plan, error) {
	rows, err := database.ExecutorFromContext(ctx, c.conn).Query(ctx,
		`SELECT `+sqlitePlanColumns+` FROM subscription_plans WHERE is_active = 1 ORDER BY duration_days, name`)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var plans []domain.Plan
	for rows.Next() {
		plan, err := scanSQLitePlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *plan)
	}
	return plans, rows.Err()
}

func scanSQLitePlan(row database.Row) (*domain.Plan, error) {
	var (
		id, name, description, price, features string
		durationDays, active                   int64
	)
	if err := row.Scan(&id, &name, &description, &price, &durationDays, &features, &active); err != nil {
		return nil, err
	}
	planID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse plan id: %w", err)
	}
	return buildPlan(planID, name, description, price, int(durationDays), features, active != 0)
}

func buildPlan(id uuid.UUID, name, description, price string, durationDays int, features string, active bool) (*domain.Plan, error) {
	amount, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("parse plan price %q: %w", price, err)
	}
	list := []string{}
	if features != "" {
		if err := json.Unmarshal([]byte(features), &list); err != nil {
			return nil, fmt.Errorf("parse plan features: %w", err)
		}
	}
	return &domain.Plan{
		ID:           id,
		Name:         name,
		Description:  description,
		Price:        amount,
		DurationDays: durationDays,
		Features:     list,
		IsActive:     active,
	}, nil
}

// SQLiteContentCatalog implements domain.ContentCatalog over contents.
type SQLiteContentCatalog struct {
	conn database.Connection
}

// NewSQLiteContentCatalog creates a content catalog over conn.
func NewSQLiteContentCatalog(conn database.Connection) *SQLiteContentCatalog {
	return &SQLiteContentCatalog{conn: conn}
}

// Get returns the content, or nil when it does not exist.
func (c *SQLiteContentCatalog) Get(ctx context.Context, contentID uuid.UUID) (*domain.Content, error) {
	var (
		title, kind string
		views       int64
	)
	err := database.ExecutorFromContext(ctx, c.conn).QueryRow(ctx,
		`SELECT title, subscription_type, view_count FROM contents WHERE id = ?`, contentID.String()).
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
func (c *SQLiteContentCatalog) IncrementViewCount(ctx context.Context, contentID uuid.UUID) error {
	result, err := database.ExecutorFromContext(ctx, c.conn).Exec(ctx,
		`UPDATE contents SET view_count = view_count + 1, updated_at = ? WHERE id = ?`,
		database.FormatTime(time.Now()), contentID.String())
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
