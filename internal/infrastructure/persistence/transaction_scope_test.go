package persistence

import (
	"context"
	"testing"

	appsales "github.com/erp/pos/internal/application/sales"
	"github.com/erp/pos/internal/domain/sales"
	"github.com/erp/pos/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// recordingSaver captures events handed to the outbox and can fail on demand
type recordingSaver struct {
	events []shared.DomainEvent
	sawTx  bool
	err    error
}

func (s *recordingSaver) SaveEvents(_ context.Context, txProvider any, events ...shared.DomainEvent) error {
	_, s.sawTx = txProvider.(*gorm.DB)
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, events...)
	return nil
}

func TestGormTransactionScope_Execute(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()

	t.Run("commits sale, stock and events together", func(t *testing.T) {
		db := newSQLiteDB(t)
		saver := &recordingSaver{}
		scope := NewGormTransactionScope(db, saver)
		p := seedProduct(t, db, tenantID, "p", "5.00", 4)
		sale := newTestSale(t, tenantID, "POS-20260101-00001", p)

		err := scope.Execute(ctx, func(ctx context.Context, stores appsales.TransactionalStores) error {
			if err := stores.SaleRepo().Create(ctx, sale); err != nil {
				return err
			}
			if _, err := stores.StockLedger().CommitBatch(ctx, sale.ID, sale.Lines.StockDeltas()); err != nil {
				return err
			}
			return stores.Events().Record(ctx, sales.NewSaleCompletedEvent(sale))
		})
		require.NoError(t, err)

		_, err = NewGormSaleRepository(db).FindByIDForTenant(ctx, tenantID, sale.ID)
		require.NoError(t, err)
		q, err := NewGormStockLedger(db).QuantityOnHand(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), q)
		assert.True(t, saver.sawTx)
		assert.Len(t, saver.events, 1)
	})

	t.Run("error after stock commit rolls everything back", func(t *testing.T) {
		db := newSQLiteDB(t)
		scope := NewGormTransactionScope(db, &recordingSaver{})
		p := seedProduct(t, db, tenantID, "p", "5.00", 4)
		sale := newTestSale(t, tenantID, "POS-20260101-00001", p)

		err := scope.Execute(ctx, func(ctx context.Context, stores appsales.TransactionalStores) error {
			if err := stores.SaleRepo().Create(ctx, sale); err != nil {
				return err
			}
			if _, err := stores.StockLedger().CommitBatch(ctx, sale.ID, sale.Lines.StockDeltas()); err != nil {
				return err
			}
			return shared.ErrConcurrencyConflict
		})
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)

		_, err = NewGormSaleRepository(db).FindByIDForTenant(ctx, tenantID, sale.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
		q, err := NewGormStockLedger(db).QuantityOnHand(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(4), q)
		reservations, err := NewGormStockLedger(db).Reservations(ctx, sale.ID)
		require.NoError(t, err)
		assert.Empty(t, reservations)
	})

	t.Run("outbox failure rolls back the stock commit", func(t *testing.T) {
		db := newSQLiteDB(t)
		scope := NewGormTransactionScope(db, &recordingSaver{err: assert.AnError})
		p := seedProduct(t, db, tenantID, "p", "5.00", 4)
		sale := newTestSale(t, tenantID, "POS-20260101-00001", p)

		err := scope.Execute(ctx, func(ctx context.Context, stores appsales.TransactionalStores) error {
			if _, err := stores.StockLedger().CommitBatch(ctx, sale.ID, sale.Lines.StockDeltas()); err != nil {
				return err
			}
			return stores.Events().Record(ctx, sales.NewSaleCompletedEvent(sale))
		})
		assert.ErrorIs(t, err, assert.AnError)

		q, err := NewGormStockLedger(db).QuantityOnHand(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(4), q)
	})

	t.Run("recording without an outbox fails", func(t *testing.T) {
		db := newSQLiteDB(t)
		scope := NewGormTransactionScope(db, nil)
		sale := newTestSale(t, tenantID, "POS-20260101-00001")

		err := scope.Execute(ctx, func(ctx context.Context, stores appsales.TransactionalStores) error {
			if err := stores.Events().Record(ctx); err != nil {
				return err
			}
			return stores.Events().Record(ctx, sales.NewSaleCompletedEvent(sale))
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no outbox")
	})
}

func TestGormProductCatalog_GetProduct(t *testing.T) {
	db := newSQLiteDB(t)
	catalog := NewGormProductCatalog(db)
	ctx := context.Background()
	tenantID := uuid.New()

	p := seedProduct(t, db, tenantID, "latte", "4.75", 12)

	got, err := catalog.GetProduct(ctx, tenantID, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "latte", got.Name)
	assert.Equal(t, "4.75", got.ListPrice.StringFixed(2))
	assert.Equal(t, int64(12), got.QuantityOnHand)

	_, err = catalog.GetProduct(ctx, uuid.New(), p.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	t.Run("save updates price and quantity", func(t *testing.T) {
		p.Name = "large latte"
		p.QuantityOnHand = 3
		require.NoError(t, catalog.Save(ctx, p))

		got, err := catalog.GetProduct(ctx, tenantID, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "large latte", got.Name)
		assert.Equal(t, int64(3), got.QuantityOnHand)
	})

	t.Run("save rejects negative quantity", func(t *testing.T) {
		p.QuantityOnHand = -1
		assert.ErrorIs(t, catalog.Save(ctx, p), shared.ErrValidation)
	})
}
