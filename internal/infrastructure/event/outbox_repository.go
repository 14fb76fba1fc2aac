package event

import (
	"context"
	"errors"
	"time"

	"github.com/erp/pos/internal/domain/shared"
	"github.com/erp/pos/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// claimable are the statuses the processor may pick up
var claimable = []shared.OutboxStatus{shared.OutboxStatusPending, shared.OutboxStatusFailed}

// GormOutboxRepository stores outbox entries in outbox_events
type GormOutboxRepository struct {
	db *gorm.DB
}

// NewGormOutboxRepository creates a repository on db, which may be a transaction
func NewGormOutboxRepository(db *gorm.DB) *GormOutboxRepository {
	return &GormOutboxRepository{db: db}
}

func (r *GormOutboxRepository) table(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.OutboxEntryModel{})
}

// Save inserts entries. A second entry for the same event ID violates the unique index.
func (r *GormOutboxRepository) Save(ctx context.Context, entries ...*shared.OutboxEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]*models.OutboxEntryModel, len(entries))
	for i, e := range entries {
		rows[i] = models.OutboxEntryModelFromDomain(e)
	}
	return r.db.WithContext(ctx).Create(rows).Error
}

// FindPending returns up to limit pending entries, oldest first
func (r *GormOutboxRepository) FindPending(ctx context.Context, limit int) ([]*shared.OutboxEntry, error) {
	return r.find(r.db.WithContext(ctx).
		Where("status = ?", shared.OutboxStatusPending).
		Order("created_at ASC").
		Limit(limit))
}

// FindRetryable returns up to limit failed entries whose next attempt is due at before
func (r *GormOutboxRepository) FindRetryable(ctx context.Context, before time.Time, limit int) ([]*shared.OutboxEntry, error) {
	return r.find(r.db.WithContext(ctx).
		Where("status = ? AND next_retry_at <= ?", shared.OutboxStatusFailed, before).
		Order("next_retry_at ASC").
		Limit(limit))
}

// MarkProcessing claims the claimable entries among ids. Rows locked by another
// processor are skipped on PostgreSQL, and rows already claimed never match.
func (r *GormOutboxRepository) MarkProcessing(ctx context.Context, ids []uuid.UUID) ([]*shared.OutboxEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var claimed []*shared.OutboxEntry
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := r.find(tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("id IN ? AND status IN ?", ids, claimable))
		if err != nil || len(locked) == 0 {
			return err
		}

		now := time.Now()
		lockedIDs := make([]uuid.UUID, len(locked))
		for i, e := range locked {
			lockedIDs[i] = e.ID
			e.Status = shared.OutboxStatusProcessing
			e.UpdatedAt = now
		}
		if err := tx.Model(&models.OutboxEntryModel{}).
			Where("id IN ? AND status IN ?", lockedIDs, claimable).
			Updates(map[string]any{"status": shared.OutboxStatusProcessing, "updated_at": now}).Error; err != nil {
			return err
		}
		claimed = locked
		return nil
	})
	return claimed, err
}

// Update writes the whole entry back and stamps UpdatedAt
func (r *GormOutboxRepository) Update(ctx context.Context, entry *shared.OutboxEntry) error {
	entry.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Save(models.OutboxEntryModelFromDomain(entry)).Error
}

// DeleteOlderThan removes sent entries processed before the cutoff
func (r *GormOutboxRepository) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status = ? AND processed_at < ?", shared.OutboxStatusSent, before).
		Delete(&models.OutboxEntryModel{})
	return res.RowsAffected, res.Error
}

// FindDead returns one page of dead entries, most recently failed first, and the dead total
func (r *GormOutboxRepository) FindDead(ctx context.Context, page, pageSize int) ([]*shared.OutboxEntry, int64, error) {
	var total int64
	if err := r.table(ctx).Where("status = ?", shared.OutboxStatusDead).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	offset := shared.Filter{Page: page, PageSize: pageSize}.Offset()
	entries, err := r.find(r.db.WithContext(ctx).
		Where("status = ?", shared.OutboxStatusDead).
		Order("updated_at DESC").
		Offset(offset).
		Limit(pageSize))
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// FindByID loads one entry, NOT_FOUND when there is none
func (r *GormOutboxRepository) FindByID(ctx context.Context, id uuid.UUID) (*shared.OutboxEntry, error) {
	var row models.OutboxEntryModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shared.NewDomainError(shared.CodeNotFound, "Outbox entry not found")
	}
	if err != nil {
		return nil, err
	}
	return row.ToDomain(), nil
}

// CountByStatus returns the number of entries per status. Statuses with no entries are absent.
func (r *GormOutboxRepository) CountByStatus(ctx context.Context) (map[shared.OutboxStatus]int64, error) {
	var rows []struct {
		Status shared.OutboxStatus
		Count  int64
	}
	if err := r.table(ctx).Select("status, count(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[shared.OutboxStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *GormOutboxRepository) find(query *gorm.DB) ([]*shared.OutboxEntry, error) {
	var rows []models.OutboxEntryModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	entries := make([]*shared.OutboxEntry, len(rows))
	for i := range rows {
		entries[i] = rows[i].ToDomain()
	}
	return entries, nil
}

var _ shared.OutboxRepository = (*GormOutboxRepository)(nil)
