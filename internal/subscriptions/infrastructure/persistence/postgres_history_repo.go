package persistence

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/screenpass/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
	"github.com/google/uuid"
)

// PostgresHistoryRepository implements domain.HistoryRepository using PostgreSQL.
type PostgresHistoryRepository struct {
	conn database.Connection
}

// NewPostgresHistoryRepository creates a new PostgreSQL history repository.
func NewPostgresHistoryRepository(conn database.Connection) *PostgresHistoryRepository {
	return &PostgresHistoryRepository{conn: conn}
}

// Append stores entry once per event id.
func (r *PostgresHistoryRepository) Append(ctx context.Context, entry domain.HistoryEntry) (bool, error) {
	result, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx, `
		INSERT INTO subscription_history
			(id, event_id, subscription_id, user_id, event_type, status, occurred_at, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (event_id) DO NOTHING`,
		entry.ID, entry.EventID, entry.SubscriptionID, entry.UserID,
		entry.EventType, string(entry.Status), entry.OccurredAt, entry.RecordedAt,
	)
	if err != nil {
		return false, fmt.Errorf("append subscription history: %w", err)
	}
	return database.Changed(result)
}

// FindBySubscription lists entries in the order they occurred.
func (r *PostgresHistoryRepository) FindBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]domain.HistoryEntry, error) {
	rows, err := database.ExecutorFromContext(ctx, r.conn).Query(ctx, `
		SELECT id, event_id, subscription_id, user_id, event_type, status, occurred_at, recorded_at
		FROM subscription_history
		WHERE subscription_id = $1
		ORDER BY occurred_at, recorded_at`, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("query subscription history: %w", err)
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var (
			e      domain.HistoryEntry
			status string
		)
		if err := rows.Scan(&e.ID, &e.EventID, &e.SubscriptionID, &e.UserID, &e.EventType, &status, &e.OccurredAt, &e.RecordedAt); err != nil {
			return nil, err
		}
		e.Status = domain.Status(status)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
