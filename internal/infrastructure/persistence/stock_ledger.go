package persistence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/erp/pos/internal/domain/sales"
	"github.com/erp/pos/internal/domain/shared"
	"github.com/erp/pos/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormStockLedger implements StockLedger on the stock_levels table.
//
// Every change is a single conditional UPDATE that only matches while the
// result stays non-negative, so two terminals racing for the last unit are
// serialized by the row lock and exactly one of them succeeds.
type GormStockLedger struct {
	db *gorm.DB
}

// NewGormStockLedger creates a new GormStockLedger
func NewGormStockLedger(db *gorm.DB) *GormStockLedger {
	return &GormStockLedger{db: db}
}

// WithTx returns a new ledger bound to the given transaction
func (l *GormStockLedger) WithTx(tx *gorm.DB) *GormStockLedger {
	return &GormStockLedger{db: tx}
}

// Commit applies one signed delta to a product
func (l *GormStockLedger) Commit(ctx context.Context, productID uuid.UUID, delta int64) error {
	if delta == 0 {
		return nil
	}
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return applyDelta(tx, productID, delta)
	})
}

// CommitBatch applies all deltas of a sale inside one transaction and records a reservation per product
func (l *GormStockLedger) CommitBatch(ctx context.Context, saleID uuid.UUID, deltas []sales.StockDelta) ([]sales.StockReservation, error) {
	merged := mergeDeltas(deltas)
	if len(merged) == 0 {
		return nil, nil
	}

	var reservations []sales.StockReservation
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var open int64
		if err := tx.Model(&models.StockReservationModel{}).
			Where("sale_id = ? AND reversed_at IS NULL", saleID).
			Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			return shared.NewInvalidStateError("Stock for sale %s is already committed", saleID)
		}

		now := time.Now()
		rows := make([]models.StockReservationModel, 0, len(merged))
		for _, d := range merged {
			if err := applyDelta(tx, d.ProductID, d.Delta); err != nil {
				return err
			}
			rows = append(rows, *models.StockReservationModelFromDomain(sales.StockReservation{
				ID:          uuid.New(),
				SaleID:      saleID,
				ProductID:   d.ProductID,
				Delta:       d.Delta,
				CommittedAt: now,
			}))
		}
		if err := tx.Create(&rows).Error; err != nil {
			return err
		}

		reservations = make([]sales.StockReservation, len(rows))
		for i := range rows {
			reservations[i] = rows[i].ToDomain()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reservations, nil
}

// ReverseBatch puts back every unreversed reservation of a sale and marks them reversed
func (l *GormStockLedger) ReverseBatch(ctx context.Context, saleID uuid.UUID) ([]sales.StockReservation, error) {
	var reversed []sales.StockReservation
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rows []models.StockReservationModel
		if err := tx.Where("sale_id = ? AND reversed_at IS NULL", saleID).
			Order("product_id ASC").
			Find(&rows).Error; err != nil {
			return err
		}

		now := time.Now()
		for i := range rows {
			if err := applyDelta(tx, rows[i].ProductID, -rows[i].Delta); err != nil {
				return err
			}
			if err := tx.Model(&models.StockReservationModel{}).
				Where("id = ?", rows[i].ID).
				Update("reversed_at", now).Error; err != nil {
				return err
			}
			rows[i].ReversedAt = &now
		}

		reversed = make([]sales.StockReservation, len(rows))
		for i := range rows {
			reversed[i] = rows[i].ToDomain()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return reversed, nil
}

// Reservations lists what a sale has committed, reversed or not
func (l *GormStockLedger) Reservations(ctx context.Context, saleID uuid.UUID) ([]sales.StockReservation, error) {
	var rows []models.StockReservationModel
	if err := l.db.WithContext(ctx).
		Where("sale_id = ?", saleID).
		Order("committed_at ASC, product_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]sales.StockReservation, len(rows))
	for i := range rows {
		result[i] = rows[i].ToDomain()
	}
	return result, nil
}

// QuantityOnHand returns the current quantity of a product
func (l *GormStockLedger) QuantityOnHand(ctx context.Context, productID uuid.UUID) (int64, error) {
	var level models.StockLevelModel
	if err := l.db.WithContext(ctx).Where("product_id = ?", productID).First(&level).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, shared.NewDomainError(shared.CodeNotFound, "Stock level not found")
		}
		return 0, err
	}
	return level.QuantityOnHand, nil
}

// applyDelta runs the conditional update for one product
func applyDelta(tx *gorm.DB, productID uuid.UUID, delta int64) error {
	result := tx.Model(&models.StockLevelModel{}).
		Where("product_id = ? AND quantity_on_hand + ? >= 0", productID, delta).
		Updates(map[string]any{
			"quantity_on_hand": gorm.Expr("quantity_on_hand + ?", delta),
			"version":          gorm.Expr("version + 1"),
			"updated_at":       time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("update stock of product %s: %w", productID, result.Error)
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var level models.StockLevelModel
	err := tx.Select("quantity_on_hand").Where("product_id = ?", productID).First(&level).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if delta < 0 {
			return sales.NewInsufficientStockError(productID, delta, 0)
		}
		return shared.NewDomainError(shared.CodeNotFound, fmt.Sprintf("Product %s has no stock level", productID))
	}
	if err != nil {
		return err
	}
	return sales.NewInsufficientStockError(productID, delta, level.QuantityOnHand)
}

// mergeDeltas sums deltas per product, drops zeros and orders by product ID
// so concurrent batches lock rows in the same order.
func mergeDeltas(deltas []sales.StockDelta) []sales.StockDelta {
	totals := make(map[uuid.UUID]int64, len(deltas))
	for _, d := range deltas {
		totals[d.ProductID] += d.Delta
	}
	merged := make([]sales.StockDelta, 0, len(totals))
	for productID, delta := range totals {
		if delta != 0 {
			merged = append(merged, sales.StockDelta{ProductID: productID, Delta: delta})
		}
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].ProductID.String() < merged[j].ProductID.String()
	})
	return merged
}

// Ensure GormStockLedger implements StockLedger
var _ sales.StockLedger = (*GormStockLedger)(nil)
