package persistence

import (
	"context"
	"errors"

	"github.com/erp/pos/internal/domain/sales"
	"github.com/erp/pos/internal/domain/shared"
	"github.com/erp/pos/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormProductCatalog implements ProductCatalog using GORM
type GormProductCatalog struct {
	db *gorm.DB
}

// NewGormProductCatalog creates a new GormProductCatalog
func NewGormProductCatalog(db *gorm.DB) *GormProductCatalog {
	return &GormProductCatalog{db: db}
}

// GetProduct returns a product of the tenant with its quantity on hand
func (c *GormProductCatalog) GetProduct(ctx context.Context, tenantID, productID uuid.UUID) (*sales.Product, error) {
	var model models.ProductModel
	if err := c.db.WithContext(ctx).
		Preload("Stock").
		Where("tenant_id = ? AND id = ?", tenantID, productID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewDomainError(shared.CodeNotFound, "Product not found")
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save upserts a product and sets its quantity on hand
func (c *GormProductCatalog) Save(ctx context.Context, product *sales.Product) error {
	if product.QuantityOnHand < 0 {
		return shared.NewValidationError("Quantity on hand cannot be negative")
	}
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := models.ProductModelFromDomain(product)
		if err := tx.Omit("Stock").Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"sku", "name", "unit", "list_price", "updated_at"}),
		}).Create(model).Error; err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"quantity_on_hand", "updated_at"}),
		}).Create(model.Stock).Error
	})
}

// Ensure GormProductCatalog implements ProductCatalog
var _ sales.ProductCatalog = (*GormProductCatalog)(nil)
