// Package shared holds the domain kernel: entity and aggregate scaffolding,
// domain events, sentinel errors, and the pagination types every module's
// repository speaks.
package shared

import (
	"time"

	"github.com/google/uuid"
)

// Entity is anything with identity and lifecycle timestamps.
type Entity interface {
	GetID() uuid.UUID
	GetCreatedAt() time.Time
	GetUpdatedAt() time.Time
}

// BaseEntity carries the identity fields shared by every domain type.
type BaseEntity struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewBaseEntity mints a new identity with both timestamps set to now.
func NewBaseEntity() BaseEntity {
	now := time.Now()
	return BaseEntity{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
}

func (e *BaseEntity) GetID() uuid.UUID        { return e.ID }
func (e *BaseEntity) GetCreatedAt() time.Time { return e.CreatedAt }
func (e *BaseEntity) GetUpdatedAt() time.Time { return e.UpdatedAt }

// Touch bumps UpdatedAt; mutating methods call it after a state change.
func (e *BaseEntity) Touch() {
	e.UpdatedAt = time.Now()
}
