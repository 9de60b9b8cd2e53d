package services

import (
	"context"

	sharedApplication "github.com/felixgeelhaar/screenpass/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/screenpass/internal/shared/domain"
	"github.com/felixgeelhaar/screenpass/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/screenpass/pkg/observability"
	"github.com/google/uuid"
)

// EventSource is an aggregate that records domain events.
type EventSource interface {
	DomainEvents() []sharedDomain.DomainEvent
	ClearDomainEvents()
}

// RecordEvents stamps the pending events of every source with the actor and
// the request correlation id, writes them to the outbox through the unit of
// work open in ctx, and clears them.
func RecordEvents(ctx context.Context, repo outbox.Repository, actorID uuid.UUID, sources ...EventSource) error {
	var events []sharedDomain.DomainEvent
	for _, source := range sources {
		events = append(events, source.DomainEvents()...)
	}
	if len(events) == 0 {
		return nil
	}

	sharedApplication.ApplyEventMetadata(events,
		sharedApplication.NewEventMetadata(actorID, observability.CorrelationUUID(ctx)))

	msgs, err := outbox.NewMessages(events)
	if err != nil {
		return err
	}
	if err := repo.SaveBatch(ctx, msgs); err != nil {
		return err
	}

	for _, source := range sources {
		source.ClearDomainEvents()
	}
	return nil
}
