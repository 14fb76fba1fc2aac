package shared

import (
	"time"

	"github.com/google/uuid"
)

// TenantAggregateRoot is the header of an aggregate owned by one tenant (store).
// Version starts at 1 and is compared on every save; repositories bump it on success.
type TenantAggregateRoot struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	CreatedBy *uuid.UUID
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time

	pending []DomainEvent
}

// NewTenantAggregateRoot starts a new aggregate at version 1
func NewTenantAggregateRoot(tenantID uuid.UUID) TenantAggregateRoot {
	now := time.Now()
	return TenantAggregateRoot{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetCreatedBy records the cashier that opened the aggregate
func (a *TenantAggregateRoot) SetCreatedBy(userID uuid.UUID) {
	a.CreatedBy = &userID
}

// IncrementVersion is called by repositories after a successful save
func (a *TenantAggregateRoot) IncrementVersion() {
	a.Version++
}

// RecordEvent queues an event to be written to the outbox with the next save
func (a *TenantAggregateRoot) RecordEvent(event DomainEvent) {
	a.pending = append(a.pending, event)
}

// PendingEvents returns the queued events in the order they were recorded
func (a *TenantAggregateRoot) PendingEvents() []DomainEvent {
	return a.pending
}

// ClearPendingEvents drops the queue once the events are stored
func (a *TenantAggregateRoot) ClearPendingEvents() {
	a.pending = nil
}
