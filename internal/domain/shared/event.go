package shared

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is a fact recorded by an aggregate and relayed through the outbox
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
	AggregateType() string
	TenantID() uuid.UUID
}

// AggregateRef names the aggregate an event belongs to
type AggregateRef struct {
	ID   uuid.UUID `json:"id"`
	Type string    `json:"type"`
}

// BaseDomainEvent is the envelope embedded by concrete events. It serializes as
// {"event_id", "event_type", "occurred_at", "aggregate", "tenant_id"} next to the payload fields.
type BaseDomainEvent struct {
	ID        uuid.UUID    `json:"event_id"`
	Type      string       `json:"event_type"`
	At        time.Time    `json:"occurred_at"`
	Aggregate AggregateRef `json:"aggregate"`
	Tenant    uuid.UUID    `json:"tenant_id"`
}

// NewBaseDomainEvent stamps an envelope with a fresh ID and the current time
func NewBaseDomainEvent(eventType, aggType string, aggID, tenantID uuid.UUID) BaseDomainEvent {
	return BaseDomainEvent{
		ID:        uuid.New(),
		Type:      eventType,
		At:        time.Now(),
		Aggregate: AggregateRef{ID: aggID, Type: aggType},
		Tenant:    tenantID,
	}
}

func (e *BaseDomainEvent) EventID() uuid.UUID     { return e.ID }
func (e *BaseDomainEvent) EventType() string      { return e.Type }
func (e *BaseDomainEvent) OccurredAt() time.Time  { return e.At }
func (e *BaseDomainEvent) AggregateID() uuid.UUID { return e.Aggregate.ID }
func (e *BaseDomainEvent) AggregateType() string  { return e.Aggregate.Type }
func (e *BaseDomainEvent) TenantID() uuid.UUID    { return e.Tenant }
