package domain

import (
	"time"

	"github.com/google/uuid"
)

// Entity is a domain object identified by its ID rather than its attributes.
type Entity interface {
	ID() uuid.UUID
	CreatedAt() time.Time
	UpdatedAt() time.Time
}

// BaseEntity carries identity and audit timestamps.
// Timestamps are always supplied by the caller so that domain behaviour
// stays deterministic under a controlled clock.
type BaseEntity struct {
	id        uuid.UUID
	createdAt time.Time
	updatedAt time.Time
}

// NewBaseEntity creates an entity with a generated ID created at the given instant.
func NewBaseEntity(now time.Time) BaseEntity {
	now = now.UTC()
	return BaseEntity{
		id:        uuid.New(),
		createdAt: now,
		updatedAt: now,
	}
}

// RehydrateBaseEntity recreates an entity from persisted state.
func RehydrateBaseEntity(id uuid.UUID, createdAt, updatedAt time.Time) BaseEntity {
	return BaseEntity{
		id:        id,
		createdAt: createdAt.UTC(),
		updatedAt: updatedAt.UTC(),
	}
}

func (e BaseEntity) ID() uuid.UUID        { return e.id }
func (e BaseEntity) CreatedAt() time.Time { return e.createdAt }
func (e BaseEntity) UpdatedAt() time.Time { return e.updatedAt }

// Touch records a modification at the given instant.
func (e *BaseEntity) Touch(now time.Time) {
	e.updatedAt = now.UTC()
}

// SameIdentity reports whether two entities share an ID.
func (e BaseEntity) SameIdentity(other Entity) bool {
	if other == nil {
		return false
	}
	return e.id == other.ID()
}
