// Package types provides common types used across the loyalty engine.
package types

import "time"

// Entity is the base type for stored loyalty records.
// CreatedAt is immutable once set; UpdatedAt moves with every write.
type Entity struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewEntityAt creates an Entity stamped with the given time.
// The engine passes its injected clock here so tests can pin timestamps.
func NewEntityAt(now time.Time) Entity {
	return Entity{
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Touch updates the UpdatedAt timestamp.
func (e *Entity) Touch(now time.Time) {
	e.UpdatedAt = now
}

// Age returns how long ago the entity was created.
func (e Entity) Age() time.Duration {
	return time.Since(e.CreatedAt)
}
