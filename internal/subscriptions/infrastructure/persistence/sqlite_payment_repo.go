package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/felixgeelhaar/screenpass/internal/shared/infrastructure/crypto"
	"github.com/felixgeelhaar/screenpass/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const sqlitePaymentColumns = `p.id, p.subscription_id, p.amount, p.method, p.status, p.details, p.created_at, p.updated_at`

// SQLitePaymentRepository implements domain.PaymentRepository using SQLite.
// Payment details are sealed with the cipher before they are written.
type SQLitePaymentRepository struct {
	conn   database.Connection
	cipher *crypto.FieldCipher
}

// NewSQLitePaymentRepository creates a new SQLite payment repository. A nil
// cipher stores details as plaintext.
func NewSQLitePaymentRepository(conn database.Connection, cipher *crypto.FieldCipher) *SQLitePaymentRepository {
	return &SQLitePaymentRepository{conn: conn, cipher: cipher}
}

// Create inserts a payment.
func (r *SQLitePaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	details, err := r.cipher.Seal(payment.Details())
	if err != nil {
		return fmt.Errorf("seal payment details: %w", err)
	}
	_, err = database.ExecutorFromContext(ctx, r.conn).Exec(ctx, `
		INSERT INTO payments (id, subscription_id, amount, method, status, details, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID().String(),
		payment.SubscriptionID().String(),
		payment.Amount().String(),
		string(payment.Method()),
		string(payment.Status()),
		details,
		database.FormatTime(payment.CreatedAt()),
		database.FormatTime(payment.UpdatedAt()),
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// Update writes the payment status.
func (r *SQLitePaymentRepository) Update(ctx context.Context, payment *domain.Payment) error {
	_, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx, `
		UPDATE payments SET status = ?, updated_at = ? WHERE id = ?`,
		string(payment.Status()),
		database.FormatTime(payment.UpdatedAt()),
		payment.ID().String(),
	)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	return nil
}

// FindByID retrieves a payment by its ID.
func (r *SQLitePaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	row := database.ExecutorFromContext(ctx, r.conn).QueryRow(ctx,
		`SELECT `+sqlitePaymentColumns+` FROM payments p WHERE p.id = ?`, id.String())
	payment, err := r.scan(row)
	if database.IsNoRows(err) {
		return nil, nil
	}
	return payment, err
}

// FindBySubscription lists a subscription's payments, newest first.
func (r *SQLitePaymentRepository) FindBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]*domain.Payment, error) {
	return r.many(ctx, `SELECT `+sqlitePaymentColumns+` FROM payments p
		WHERE p.subscription_id = ? ORDER BY p.created_at DESC`, subscriptionID.String())
}

// FindByUser lists payments for all of a user's subscriptions, newest first.
func (r *SQLitePaymentRepository) FindByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Payment, error) {
	return r.many(ctx, `SELECT `+sqlitePaymentColumns+` FROM payments p
		JOIN subscriptions s ON s.id = p.subscription_id
		WHERE s.user_id = ? ORDER BY p.created_at DESC`, userID.String())
}

// List returns every payment, newest first.
func (r *SQLitePaymentRepository) List(ctx context.Context) ([]*domain.Payment, error) {
	return r.many(ctx, `SELECT `+sqlitePaymentColumns+` FROM payments p ORDER BY p.created_at DESC`)
}

func (r *SQLitePaymentRepository) many(ctx context.Context, query string, args ...any) ([]*domain.Payment, error) {
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

func (r *SQLitePaymentRepository) scan(row database.Row) (*domain.Payment, error) {
	var (
		id, subscriptionID, amount, method, status, details string
		created, updated                                    string
	)
	if err := row.Scan(&id, &subscriptionID, &amount, &method, &status, &details, &created, &updated); err != nil {
		return nil, err
	}
	ids, err := parseUUIDs(id, subscriptionID)
	if err != nil {
		return nil, err
	}
	times, err := parseTimes(created, updated)
	if err != nil {
		return nil, err
	}
	return rehydratePayment(r.cipher, ids[0], ids[1], amount, method, status, details, times[0], times[1])
}

func rehydratePayment(
	cipher *crypto.FieldCipher,
	id, subscriptionID uuid.UUID,
	amount, method, status, details string,
	createdAt, updatedAt time.Time,
) (*domain.Payment, error) {
	value, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse payment amount %q: %w", amount, err)
	}
	plain, err := cipher.Open(details)
	if err != nil {
		return nil, fmt.Errorf("open payment details: %w", err)
	}
	return domain.RehydratePayment(
		id, subscriptionID, value,
		domain.PaymentMethod(method), domain.PaymentStatus(status),
		json.RawMessage(plain), createdAt, updatedAt,
	), nil
}
