package outbox

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/felixgeelhaar/screenpass/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type planChanged struct {
	domain.BaseEvent
	PlanID uuid.UUID `json:"plan_id"`
}

func newPlanChanged(subscriptionID uuid.UUID) *planChanged {
	occurred := time.Date(2026, time.June, 1, 8, 0, 0, 0, time.UTC)
	return &planChanged{
		BaseEvent: domain.NewBaseEvent(subscriptionID, "Subscription", "subscriptions.subscription.updated", occurred),
		PlanID:    uuid.New(),
	}
}

func TestNewMessage(t *testing.T) {
	subscriptionID := uuid.New()
	event := newPlanChanged(subscriptionID)
	event.SetMetadata(domain.EventMetadata{CorrelationID: uuid.New(), UserID: uuid.New()})

	msg, err := NewMessage(event)
	require.NoError(t, err)

	assert.Zero(t, msg.ID, "IDs are assigned on save")
	assert.Equal(t, event.EventID(), msg.EventID)
	assert.Equal(t, subscriptionID, msg.AggregateID)
	assert.Equal(t, "Subscription", msg.AggregateType)
	assert.Equal(t, "subscriptions.subscription.updated", msg.RoutingKey)
	assert.Equal(t, msg.RoutingKey, msg.EventType)
	assert.Equal(t, event.OccurredAt(), msg.CreatedAt)
	assert.JSONEq(t, `{"plan_id":"`+event.PlanID.String()+`"}`, string(msg.Payload))
	assert.Contains(t, string(msg.Metadata), event.Metadata().CorrelationID.String())

	assert.False(t, msg.IsPublished())
	assert.Zero(t, msg.RetryCount)
	assert.Nil(t, msg.NextRetryAt)
	assert.Nil(t, msg.DeadLetteredAt)
}

func TestNewMessages(t *testing.T) {
	events := []domain.DomainEvent{newPlanChanged(uuid.New()), newPlanChanged(uuid.New())}

	msgs, err := NewMessages(events)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, events[1].EventID(), msgs[1].EventID)
}

func TestMessage_CanRetry(t *testing.T) {
	tests := []struct {
		retries, max int
		want         bool
	}{
		{retries: 0, max: 3, want: true},
		{retries: 2, max: 5, want: true},
		{retries: 0, max: 1, want: true},
		{retries: 5, max: 5, want: false},
		{retries: 10, max: 5, want: false},
		{retries: 0, max: 0, want: false},
	}
	for _, tt := range tests {
		msg := &Message{RetryCount: tt.retries}
		assert.Equal(t, tt.want, msg.CanRetry(tt.max), "retries=%d max=%d", tt.retries, tt.max)
	}
}

func TestMessage_Body(t *testing.T) {
	event := newPlanChanged(uuid.New())
	event.SetMetadata(domain.EventMetadata{UserID: uuid.New()})
	msg, err := NewMessage(event)
	require.NoError(t, err)

	body, err := msg.Body()
	require.NoError(t, err)

	var envelope Envelope
	require.NoError(t, json.Unmarshal(body, &envelope))
	assert.Equal(t, event.EventID(), envelope.EventID)
	assert.Equal(t, event.AggregateID(), envelope.AggregateID)
	assert.Equal(t, "subscriptions.subscription.updated", envelope.RoutingKey)
	assert.True(t, event.OccurredAt().Equal(envelope.OccurredAt))
	assert.JSONEq(t, string(msg.Payload), string(envelope.Payload))
	assert.Contains(t, string(envelope.Metadata), event.Metadata().UserID.String())
}
