package domain_test

import (
	"testing"
	"time"

	"github.com/felixgeelhaar/screenpass/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewBaseEvent(t *testing.T) {
	aggregateID := uuid.New()
	occurred := time.Date(2026, time.May, 4, 9, 30, 0, 0, time.UTC)

	event := domain.NewBaseEvent(aggregateID, "Subscription", "subscriptions.subscription.created", occurred)

	assert.NotEqual(t, uuid.Nil, event.EventID())
	assert.Equal(t, aggregateID, event.AggregateID())
	assert.Equal(t, "Subscription", event.AggregateType())
	assert.Equal(t, "subscriptions.subscription.created", event.RoutingKey())
	assert.Equal(t, occurred, event.OccurredAt())
}

func TestBaseEvent_SetMetadata(t *testing.T) {
	event := domain.NewBaseEvent(uuid.New(), "Payment", "subscriptions.payment.recorded", time.Now())
	metadata := domain.EventMetadata{
		CorrelationID: uuid.New(),
		CausationID:   uuid.New(),
		UserID:        uuid.New(),
	}

	event.SetMetadata(metadata)

	assert.Equal(t, metadata, event.Metadata())
}
