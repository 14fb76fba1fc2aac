package models

import (
	"time"

	"github.com/erp/pos/internal/domain/shared"
	"github.com/google/uuid"
)

// Row holds the identity and audit columns of every table with a UUID key
type Row struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// AggregateRow adds the tenant and the optimistic-locking version of an aggregate root
type AggregateRow struct {
	Row
	Version   int        `gorm:"not null;default:1"`
	TenantID  uuid.UUID  `gorm:"type:uuid;not null;index"`
	CreatedBy *uuid.UUID `gorm:"type:uuid"`
}

func (m *AggregateRow) setAggregate(a shared.TenantAggregateRoot) {
	m.Row = Row{ID: a.ID, CreatedAt: a.CreatedAt, UpdatedAt: a.UpdatedAt}
	m.Version = a.Version
	m.TenantID = a.TenantID
	m.CreatedBy = a.CreatedBy
}

func (m *AggregateRow) aggregate() shared.TenantAggregateRoot {
	return shared.TenantAggregateRoot{
		ID:        m.ID,
		TenantID:  m.TenantID,
		CreatedBy: m.CreatedBy,
		Version:   m.Version,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
