package domain_test

import (
	"testing"
	"time"

	"github.com/felixgeelhaar/screenpass/internal/shared/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewBaseEntity(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.FixedZone("UTC+3", 3*3600))
	entity := domain.NewBaseEntity(now)

	assert.NotEqual(t, uuid.Nil, entity.ID())
	assert.True(t, entity.CreatedAt().Equal(now))
	assert.Equal(t, time.UTC, entity.CreatedAt().Location())
	assert.Equal(t, entity.CreatedAt(), entity.UpdatedAt())
}

func TestBaseEntity_Touch(t *testing.T) {
	now := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
	entity := domain.NewBaseEntity(now)

	entity.Touch(now.Add(time.Hour))

	assert.Equal(t, now, entity.CreatedAt())
	assert.Equal(t, now.Add(time.Hour), entity.UpdatedAt())
}

func TestRehydrateBaseEntity(t *testing.T) {
	id := uuid.New()
	created := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	updated := created.Add(48 * time.Hour)

	entity := domain.RehydrateBaseEntity(id, created, updated)

	assert.Equal(t, id, entity.ID())
	assert.Equal(t, created, entity.CreatedAt())
	assert.Equal(t, updated, entity.UpdatedAt())
}

func TestBaseEntity_SameIdentity(t *testing.T) {
	now := time.Now()
	a := domain.NewBaseEntity(now)
	b := domain.RehydrateBaseEntity(a.ID(), now, now)
	c := domain.NewBaseEntity(now)

	assert.True(t, a.SameIdentity(b))
	assert.False(t, a.SameIdentity(c))
	assert.False(t, a.SameIdentity(nil))
}
