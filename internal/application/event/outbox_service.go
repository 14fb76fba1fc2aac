// Package event exposes the outbox to operators: queue depth per status and
// the dead letter entries that need a manual retry.
package event

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/pos/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DeadLetterStore is the part of the outbox repository the service reads and updates
type DeadLetterStore interface {
	FindDead(ctx context.Context, page, pageSize int) ([]*shared.OutboxEntry, int64, error)
	FindByID(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error)
	Update(ctx context.Context, entry *shared.OutboxEntry) error
	CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error)
}

type OutboxService struct {
	store  DeadLetterStore
	logger *zap.Logger
}

func NewOutboxService(store DeadLetterStore, logger *zap.Logger) *OutboxService {
	return &OutboxService{store: store, logger: logger.Named("outbox-ops")}
}

// OutboxEntryResponse is an outbox entry without its payload.
// AggregateID is the sale ID for every sale event.
type OutboxEntryResponse struct {
	ID            uuid.UUID  `json:"id"`
	TenantID      uuid.UUID  `json:"tenant_id"`
	EventID       uuid.UUID  `json:"event_id"`
	EventType     string     `json:"event_type"`
	AggregateID   uuid.UUID  `json:"aggregate_id"`
	AggregateType string     `json:"aggregate_type"`
	Status        string     `json:"status"`
	RetryCount    int        `json:"retry_count"`
	MaxRetries    int        `json:"max_retries"`
	LastError     string     `json:"last_error,omitempty"`
	NextRetryAt   *time.Time `json:"next_retry_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func newOutboxEntryResponse(e *shared.OutboxEntry) OutboxEntryResponse {
	return OutboxEntryResponse{
		ID:            e.ID,
		TenantID:      e.TenantID,
		EventID:       e.EventID,
		EventType:     e.EventType,
		AggregateID:   e.AggregateID,
		AggregateType: e.AggregateType,
		Status:        string(e.Status),
		RetryCount:    e.RetryCount,
		MaxRetries:    e.MaxRetries,
		LastError:     e.LastError,
		NextRetryAt:   e.NextRetryAt,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

// DeadLetterFilter is the query string of the dead letter listing
type DeadLetterFilter struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// Paging fills in the default page and page size
func (f DeadLetterFilter) Paging() shared.Filter {
	return shared.DefaultFilter().Paged(f.Page, f.PageSize)
}

// OutboxStatsResponse counts entries per status
type OutboxStatsResponse struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Sent       int64 `json:"sent"`
	Failed     int64 `json:"failed"`
	Dead       int64 `json:"dead"`
	Total      int64 `json:"total"`
}

// ListDead returns a page of dead letter entries, most recently failed first
func (s *OutboxService) ListDead(ctx context.Context, filter DeadLetterFilter) ([]OutboxEntryResponse, int64, error) {
	paging := filter.Paging()
	entries, total, err := s.store.FindDead(ctx, paging.Page, paging.PageSize)
	if err != nil {
		return nil, 0, fmt.Errorf("list dead letters: %w", err)
	}

	out := make([]OutboxEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, newOutboxEntryResponse(e))
	}
	return out, total, nil
}

// Retry puts one dead entry back into the queue
func (s *OutboxService) Retry(ctx context.Context, id uuid.UUID) (*OutboxEntryResponse, error) {
	entry, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry.Status != shared.OutboxStatusDead {
		return nil, shared.NewInvalidStateError("Outbox entry %s is %s, only DEAD entries can be retried", id, entry.Status)
	}
	if err := s.requeue(ctx, entry); err != nil {
		return nil, err
	}
	resp := newOutboxEntryResponse(entry)
	return &resp, nil
}

// RetryAll requeues every dead entry and returns how many went back to PENDING.
// Entries that fail to update are logged and skipped.
func (s *OutboxService) RetryAll(ctx context.Context) (int64, error) {
	const batch = shared.MaxPageSize
	var requeued int64

	for {
		// requeued entries leave the dead set, so page 1 is always the next batch
		entries, _, err := s.store.FindDead(ctx, 1, batch)
		if err != nil {
			return requeued, fmt.Errorf("list dead letters: %w", err)
		}

		progress := false
		for _, entry := range entries {
			if s.requeue(ctx, entry) == nil {
				requeued++
				progress = true
			}
		}
		if len(entries) < batch || !progress {
			break
		}
	}

	s.logger.Info("Dead letter entries requeued", zap.Int64("count", requeued))
	return requeued, nil
}

func (s *OutboxService) requeue(ctx context.Context, entry *shared.OutboxEntry) error {
	if err := entry.ResetForRetry(); err != nil {
		return err
	}
	if err := s.store.Update(ctx, entry); err != nil {
		s.logger.Error("Requeue failed", zap.Error(err), zap.Stringer("id", entry.ID))
		return err
	}
	s.logger.Info("Dead letter entry requeued",
		zap.Stringer("id", entry.ID),
		zap.String("event_type", entry.EventType),
		zap.Stringer("aggregate_id", entry.AggregateID),
	)
	return nil
}

// Stats returns the number of entries per status
func (s *OutboxService) Stats(ctx context.Context) (*OutboxStatsResponse, error) {
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("count outbox entries: %w", err)
	}

	stats := &OutboxStatsResponse{}
	for status, n := range counts {
		stats.Total += n
		switch status {
		case shared.OutboxStatusPending:
			stats.Pending = n
		case shared.OutboxStatusProcessing:
			stats.Processing = n
		case shared.OutboxStatusSent:
			stats.Sent = n
		case shared.OutboxStatusFailed:
			stats.Failed = n
		case shared.OutboxStatusDead:
			stats.Dead = n
		}
	}
	return stats, nil
}
