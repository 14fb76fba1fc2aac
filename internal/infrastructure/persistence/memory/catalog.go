package memory

import (
	"context"

	"github.com/erp/pos/internal/domain/sales"
	"github.com/erp/pos/internal/domain/shared"
	"github.com/google/uuid"
)

// ProductCatalog implements ProductCatalog on the Store
type ProductCatalog struct {
	store *Store
}

// NewProductCatalog creates a new ProductCatalog
func NewProductCatalog(store *Store) *ProductCatalog {
	return &ProductCatalog{store: store}
}

// GetProduct returns a product of the tenant with its current quantity on hand
func (c *ProductCatalog) GetProduct(ctx context.Context, tenantID, productID uuid.UUID) (*sales.Product, error) {
	c.store.mu.RLock()
	product, ok := c.store.products[productID]
	level := c.store.levels[productID]
	c.store.mu.RUnlock()

	if !ok || product.TenantID != tenantID {
		return nil, shared.NewDomainError(shared.CodeNotFound, "Product not found")
	}
	if level != nil {
		level.mu.Lock()
		product.QuantityOnHand = level.qty
		level.mu.Unlock()
	}
	return &product, nil
}

// Save upserts a product and sets its quantity on hand
func (c *ProductCatalog) Save(ctx context.Context, product *sales.Product) error {
	if product.QuantityOnHand < 0 {
		return shared.NewValidationError("Quantity on hand cannot be negative")
	}

	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	c.store.products[product.ID] = *product
	if level, ok := c.store.levels[product.ID]; ok {
		level.mu.Lock()
		level.qty = product.QuantityOnHand
		level.mu.Unlock()
		return nil
	}
	c.store.levels[product.ID] = &stockLevel{qty: product.QuantityOnHand}
	return nil
}

// Ensure ProductCatalog implements ProductCatalog
var _ sales.ProductCatalog = (*ProductCatalog)(nil)
