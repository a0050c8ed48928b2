package shared

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is something that happened to a grid session and is worth
// telling the rest of the process about
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	// SourceID identifies the session that raised the event
	SourceID() uuid.UUID
	SourceType() string
}

// BaseDomainEvent carries the fields every event shares
type BaseDomainEvent struct {
	ID     uuid.UUID `json:"id"`
	Type   string    `json:"type"`
	At     time.Time `json:"occurred_at"`
	Source uuid.UUID `json:"source_id"`
	Kind   string    `json:"source_type"`
}

func (e *BaseDomainEvent) EventID() uuid.UUID    { return e.ID }
func (e *BaseDomainEvent) EventType() string     { return e.Type }
func (e *BaseDomainEvent) OccurredAt() time.Time { return e.At }
func (e *BaseDomainEvent) SourceID() uuid.UUID   { return e.Source }
func (e *BaseDomainEvent) SourceType() string    { return e.Kind }

// NewBaseDomainEvent stamps a new event raised by source at the given time.
// A zero time means now.
func NewBaseDomainEvent(eventType, sourceType string, source uuid.UUID, at time.Time) BaseDomainEvent {
	if at.IsZero() {
		at = time.Now()
	}
	return BaseDomainEvent{
		ID:     uuid.New(),
		Type:   eventType,
		At:     at,
		Source: source,
		Kind:   sourceType,
	}
}
