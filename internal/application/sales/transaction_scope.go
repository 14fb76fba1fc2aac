package sales

import (
	"context"

	"github.com/erp/pos/internal/domain/sales"
	"github.com/erp/pos/internal/domain/shared"
)

// TransactionScope runs a unit of work against stores that share one transaction.
// If fn returns an error every write made through the stores is rolled back,
// including stock commits and recorded events.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(ctx context.Context, stores TransactionalStores) error) error
}

// TransactionalStores gives access to the stores bound to the current transaction.
//
// The sale, its stock commits and its outbox events are written together,
// so a version conflict on the sale also undoes the stock it committed.
type TransactionalStores interface {
	SaleRepo() sales.SaleRepository
	StockLedger() sales.StockLedger
	Events() EventRecorder
}

// EventRecorder persists domain events in the current transaction for later publishing
type EventRecorder interface {
	Record(ctx context.Context, events ...shared.DomainEvent) error
}
