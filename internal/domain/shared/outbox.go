package shared

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OutboxStatus is the delivery state of an outbox entry
type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "PENDING"
	OutboxStatusProcessing OutboxStatus = "PROCESSING"
	OutboxStatusSent       OutboxStatus = "SENT"
	OutboxStatusFailed     OutboxStatus = "FAILED"
	OutboxStatusDead       OutboxStatus = "DEAD"
)

const (
	DefaultMaxRetries  = 5
	DefaultBaseBackoff = time.Second
	// MaxBackoff caps the delay between two attempts of one entry
	MaxBackoff = 5 * time.Minute
)

// OutboxEntry is a sale event written in the same transaction as the sale.
// The processor publishes it afterwards and records the outcome here.
type OutboxEntry struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	EventID       uuid.UUID
	EventType     string
	AggregateID   uuid.UUID
	AggregateType string
	Payload       []byte
	Status        OutboxStatus
	RetryCount    int
	MaxRetries    int
	LastError     string
	NextRetryAt   *time.Time
	ProcessedAt   *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// NewOutboxEntry wraps a serialized event in a PENDING entry
func NewOutboxEntry(event DomainEvent, payload []byte) *OutboxEntry {
	now := time.Now()
	return &OutboxEntry{
		ID:            uuid.New(),
		TenantID:      event.TenantID(),
		EventID:       event.EventID(),
		EventType:     event.EventType(),
		AggregateID:   event.AggregateID(),
		AggregateType: event.AggregateType(),
		Payload:       payload,
		Status:        OutboxStatusPending,
		MaxRetries:    DefaultMaxRetries,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// RetryBackoff is the delay before attempt n+1 after n failures: 1s, 2s, 4s and so on up to MaxBackoff
func RetryBackoff(failures int) time.Duration {
	if failures < 1 {
		return 0
	}
	d := DefaultBaseBackoff
	for i := 1; i < failures; i++ {
		d *= 2
		if d >= MaxBackoff {
			return MaxBackoff
		}
	}
	return d
}

func (e *OutboxEntry) transition(to OutboxStatus, allowed ...OutboxStatus) error {
	for _, from := range allowed {
		if e.Status == from {
			e.Status = to
			e.UpdatedAt = time.Now()
			return nil
		}
	}
	return fmt.Errorf("outbox entry %s: cannot move from %s to %s", e.ID, e.Status, to)
}

// CanRetry reports whether a failed entry still has attempts left
func (e *OutboxEntry) CanRetry() bool {
	return e.Status == OutboxStatusFailed && e.RetryCount < e.MaxRetries
}

// IsDead reports whether the entry ran out of attempts
func (e *OutboxEntry) IsDead() bool { return e.Status == OutboxStatusDead }

// MarkProcessing claims a pending or failed entry
func (e *OutboxEntry) MarkProcessing() error {
	return e.transition(OutboxStatusProcessing, OutboxStatusPending, OutboxStatusFailed)
}

// MarkSent records a successful publish
func (e *OutboxEntry) MarkSent() {
	e.Status = OutboxStatusSent
	e.UpdatedAt = time.Now()
	processed := e.UpdatedAt
	e.ProcessedAt = &processed
}

// MarkFailed records a failed attempt and schedules the next one.
// The entry is dead once RetryCount reaches MaxRetries.
func (e *OutboxEntry) MarkFailed(errMsg string) {
	e.RetryCount++
	e.LastError = errMsg
	e.UpdatedAt = time.Now()
	e.NextRetryAt = nil

	if e.RetryCount >= e.MaxRetries {
		e.Status = OutboxStatusDead
		return
	}
	e.Status = OutboxStatusFailed
	next := e.UpdatedAt.Add(RetryBackoff(e.RetryCount))
	e.NextRetryAt = &next
}

// ResetForRetry requeues a dead entry with a fresh attempt budget
func (e *OutboxEntry) ResetForRetry() error {
	if err := e.transition(OutboxStatusPending, OutboxStatusDead); err != nil {
		return err
	}
	e.RetryCount = 0
	e.LastError = ""
	e.NextRetryAt = nil
	return nil
}

// OutboxRepository stores outbox entries for the processor
type OutboxRepository interface {
	Save(ctx context.Context, entries ...*OutboxEntry) error
	FindPending(ctx context.Context, limit int) ([]*OutboxEntry, error)
	FindRetryable(ctx context.Context, before time.Time, limit int) ([]*OutboxEntry, error)
	// MarkProcessing claims entries atomically; entries claimed by another worker are skipped
	MarkProcessing(ctx context.Context, ids []uuid.UUID) ([]*OutboxEntry, error)
	Update(ctx context.Context, entry *OutboxEntry) error
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
	CountByStatus(ctx context.Context) (map[OutboxStatus]int64, error)
}
