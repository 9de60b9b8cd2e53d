package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/screenpass/internal/shared/infrastructure/crypto"
	"github.com/felixgeelhaar/screenpass/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
	"github.com/google/uuid"
)

// amount is read as text so decimal parses it without float rounding.
const postgresPaymentColumns = `p.id, p.subscription_id, p.amount::text, p.method, p.status, p.details, p.created_at, p.updated_at`

// PostgresPaymentRepository implements domain.PaymentRepository using PostgreSQL.
type PostgresPaymentRepository struct {
	conn   database.Connection
	cipher *crypto.FieldCipher
}

// NewPostgresPaymentRepository creates a new PostgreSQL payment repository.
func NewPostgresPaymentRepository(conn database.Connection, cipher *crypto.FieldCipher) *PostgresPaymentRepository {
	return &PostgresPaymentRepository{conn: conn, cipher: cipher}
}

// Create inserts a payment.
func (r *PostgresPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	details, err := r.cipher.Seal(payment.Details())
	if err != nil {
		return fmt.Errorf("seal payment details: %w", err)
	}
	_, err = database.ExecutorFromContext(ctx, r.conn).Exec(ctx, `
		INSERT INTO payments (id, subscription_id, amount, method, status, details, created_at, updated_at)
		VALUES ($1, $2, $3::numeric, $4, $5, $6, $7, $8)`,
		payment.ID(),
		payment.SubscriptionID(),
		payment.Amount().String(),
		string(payment.Method()),
		string(payment.Status()),
		details,
		payment.CreatedAt(),
		payment.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// Update writes the payment status.
func (r *PostgresPaymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	_, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx,
		`UPDATE payments SET status = $1, updated_at = $2 WHERE id = $3`,
		string(payment.Status()), payment.UpdatedAt(), payment.ID())
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	return nil
}

// FindByID retrieves a payment by its ID.
func (r *PostgresPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	row := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx,
		`SELECT `+postgresPaymentColumns+` FROM payments p WHERE p.id = $1`, id)
	payment, err := r.scan(row)
	if database.IsNoRows(err) {
		return nil, nil
	}
	return payment, err
}

// FindBySubscription lists a subscription's payments, newest first.
func (r *PostgresPaymentRepository) FindBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]*domain.Payment, error) {
	return r.many(ctx, `SELECT `+postgresPaymentColumns+` FROM payments p
		WHERE p.subscription_id = $1 ORDER BY p.created_at DESC`, subscriptionID)
}

// FindByUser lists payments for all of a user's subscriptions, newest first.
func (r *PostgresPaymentRepository) FindByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Payment, error) {
	return r.many(ctx, `SELECT `+postgresPaymentColumns+` FROM payments p
		JOIN subscriptions s ON s.id = p.subscription_id
		WHERE s.user_id = $1 ORDER BY p.created_at DESC`, userID)
}

// List returns every payment, newest first.
func (r *PostgresPaymentRepository) List(ctx context.Context) ([]*domain.Payment, error) {
	return r.many(ctx, `SELECT `+postgresPaymentColumns+` FROM payments p ORDER BY p.created_at DESC`)
}

func (r *PostgresPaymentRepository) many(ctx context.Context, query string, args ...any) ([]*domain.Payment, error) {
	rows, err := database.ExecutorFromContext(ctx, r.conn).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query payments: %w", err)
	}
	defer rows.Close()

	var payments []*domain.Payment
	for rows.Next() {
		payment, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	return payments, rows.Err()
}

func (r *PostgresPaymentRepository) scan(row database.Row) (*domain.Payment, error) {
	var (
		id, subscriptionID              uuid.UUID
		amount, method, status, details string
		created, updated                time.Time
	)
	if err := row.Scan(&id, &subscriptionID, &amount, &method, &status, &details, &created, &updated); err != nil {
		return nil, err
	}
	return rehydratePayment(r.cipher, id, subscriptionID, amount, method, status, details, created, updated)
}
