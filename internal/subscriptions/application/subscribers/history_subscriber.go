package subscribers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/screenpass/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/screenpass/internal/subscriptions/domain"
	"github.com/felixgeelhaar/screenpass/pkg/observability"
	"github.com/google/uuid"
)

// HistorySubscriber records subscription lifecycle events into the audit
// trail. Redelivered events are recorded once.
type HistorySubscriber struct {
	history domain.HistoryRepository
	metrics observability.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewHistorySubscriber creates a new history subscriber.
func NewHistorySubscriber(history domain.HistoryRepository, metrics observability.Metrics, logger *slog.Logger) *HistorySubscriber {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &HistorySubscriber{
		history: history,
		metrics: metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// EventTypes returns the event types this subscriber handles.
func (s *HistorySubscriber) EventTypes() []string {
	return domain.SubscriptionRoutingKeys
}

// Handle appends the event to the subscription's history.
func (s *HistorySubscriber) Handle(ctx context.Context, event *eventbus.ConsumedEvent) error {
	var state domain.SubscriptionState
	if err := event.DecodePayload(&state); err != nil {
		return fmt.Errorf("decode %s payload: %w", event.RoutingKey, err)
	}

	subscriptionID := state.SubscriptionID
	if subscriptionID == uuid.Nil {
		subscriptionID = event.AggregateID
	}

	stored, err := s.history.Append(ctx, domain.HistoryEntry{
		ID:             uuid.New(),
		EventID:        event.EventID,
		SubscriptionID: subscriptionID,
		UserID:         state.UserID,
		EventType:      event.RoutingKey,
		Status:         state.Status,
		OccurredAt:     event.OccurredAt,
		RecordedAt:     s.now(),
	})
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}

	result := "recorded"
	if !stored {
		result = "duplicate"
		s.logger.Debug("history entry already recorded", "event_id", event.EventID)
	}
	s.metrics.Counter(observability.MetricEventsConsumed, 1,
		observability.T("routing_key", event.RoutingKey),
		observability.T(observability.ResultKey, result))
	return nil
}
