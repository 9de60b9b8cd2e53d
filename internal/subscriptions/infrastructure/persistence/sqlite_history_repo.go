package persistence

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/screenpass/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
	"github.com/google/uuid"
)

// SQLiteHistoryRepository implements domain.HistoryRepository using SQLite.
type SQLiteHistoryRepository struct {
	conn database.Connection
}

// NewSQLiteHistoryRepository creates a new SQLite history repository.
func NewSQLiteHistoryRepository(conn database.Connection) *SQLiteHistoryRepository {
	return &SQLiteHistoryRepository{conn: conn}
}

// Append stores entry once per event id.
func (r *SQLiteHistoryRepository) Append(ctx context.Context, entry domain.HistoryEntry) (bool, error) {
	result, err := database.ExecutorFromContext(ctx, r.conn).Exec(ctx, `
		INSERT INTO subscription_history
			(id, event_id, subscription_id, user_id, event_type, status, occurred_at, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (event_id) DO NOTHING`,
		entry.ID.String(),
		entry.EventID.String(),
		entry.SubscriptionID.String(),
		entry.UserID.String(),
		entry.EventType,
		string(entry.Status),
		database.FormatTime(entry.OccurredAt),
		database.FormatTime(entry.RecordedAt),
	)
	if err != nil {
		return false, fmt.Errorf("append subscription history: %w", err)
	}
	return database.Changed(result)
}

// FindBySubscription lists entries in the order they occurred.
func (r *SQLiteHistoryRepository) FindBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]domain.HistoryEntry, error) {
	rows, err := database.ExecutorFromContext(ctx, r.conn).Query(ctx, `
		SELECT id, event_id, subscription_id, user_id, event_type, status, occurred_at, recorded_at
		FROM subscription_history
		WHERE subscription_id = ?
		ORDER BY occurred_at, recorded_at`, subscriptionID.String())
	if err != nil {
		return nil, fmt.Errorf("query subscription history: %w", err)
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var id, eventID, subID, userID, eventType, status, occurred, recorded string
		if err := rows.Scan(&id, &eventID, &subID, &userID, &eventType, &status, &occurred, &recorded); err != nil {
			return nil, err
		}
		ids, err := parseUUIDs(id, eventID, subID, userID)
		if err != nil {
			return nil, err
		}
		times, err := parseTimes(occurred, recorded)
		if err != nil {
			return nil, err
		}
		entries = append(entries, domain.HistoryEntry{
			ID:             ids[0],
			EventID:        ids[1],
			SubscriptionID: ids[2],
			UserID:         ids[3],
			EventType:      eventType,
			Status:         domain.Status(status),
			OccurredAt:     times[0],
			RecordedAt:     times[1],
		})
	}
	return entries, rows.Err()
}
