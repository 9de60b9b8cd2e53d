package domain_test

import (
	"testing"
	"time"

	"github.com/felixgeelhaar/screenpass/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type testAggregate struct {
	domain.BaseAggregateRoot
}

type testAggregateEvent struct {
	domain.BaseEvent
}

func newTestAggregateEvent(aggregateID uuid.UUID) *testAggregateEvent {
	return &testAggregateEvent{
		BaseEvent: domain.NewBaseEvent(aggregateID, "Test", "test.aggregate.changed", time.Now()),
	}
}

func TestBaseAggregateRoot_RecordsEvents(t *testing.T) {
	agg := &testAggregate{BaseAggregateRoot: domain.NewBaseAggregateRoot(time.Now())}
	assert.Empty(t, agg.DomainEvents())

	first := newTestAggregateEvent(agg.ID())
	agg.AddDomainEvent(first)
	agg.AddDomainEvent(newTestAggregateEvent(agg.ID()))

	events := agg.DomainEvents()
	assert.Len(t, events, 2)
	assert.Equal(t, first.EventID(), events[0].EventID())

	agg.ClearDomainEvents()
	assert.Empty(t, agg.DomainEvents())
}

func TestRehydrateBaseAggregateRoot(t *testing.T) {
	now := time.Now()
	entity := domain.RehydrateBaseEntity(uuid.New(), now, now)

	agg := domain.RehydrateBaseAggregateRoot(entity)

	assert.Equal(t, entity.ID(), agg.ID())
	assert.Empty(t, agg.DomainEvents())
}
