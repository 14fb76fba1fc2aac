package persistence

import (
	"context"
	"errors"

	appsales "github.com/erp/pos/internal/application/sales"
	"github.com/erp/pos/internal/domain/sales"
	"github.com/erp/pos/internal/domain/shared"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// The sale, its stock changes and its outbox events commit or roll back together.
type GormTransactionScope struct {
	db     *gorm.DB
	outbox shared.OutboxEventSaver
}

// NewGormTransactionScope creates a new GormTransactionScope.
// outbox receives the recorded events together with the transaction handle.
func NewGormTransactionScope(db *gorm.DB, outbox shared.OutboxEventSaver) *GormTransactionScope {
	return &GormTransactionScope{db: db, outbox: outbox}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(ctx context.Context, stores appsales.TransactionalStores) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &gormTransactionalStores{tx: tx, outbox: s.outbox})
	})
}

// gormTransactionalStores provides access to all stores within a transaction.
type gormTransactionalStores struct {
	tx     *gorm.DB
	outbox shared.OutboxEventSaver
}

// SaleRepo returns the sale repository scoped to the current transaction.
func (r *gormTransactionalStores) SaleRepo() sales.SaleRepository {
	return NewGormSaleRepository(r.tx)
}

// StockLedger returns the stock ledger scoped to the current transaction.
func (r *gormTransactionalStores) StockLedger() sales.StockLedger {
	return NewGormStockLedger(r.tx)
}

// Events returns a recorder that writes to the outbox in the current transaction.
func (r *gormTransactionalStores) Events() appsales.EventRecorder {
	return &outboxRecorder{tx: r.tx, outbox: r.outbox}
}

type outboxRecorder struct {
	tx     *gorm.DB
	outbox shared.OutboxEventSaver
}

func (r *outboxRecorder) Record(ctx context.Context, events ...shared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}
	if r.outbox == nil {
		return errors.New("transaction scope has no outbox configured")
	}
	return r.outbox.SaveEvents(ctx, r.tx, events...)
}

// Ensure GormTransactionScope implements TransactionScope
var _ appsales.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalStores implements TransactionalStores
var _ appsales.TransactionalStores = (*gormTransactionalStores)(nil)
