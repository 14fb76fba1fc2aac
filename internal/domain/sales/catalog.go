package sales

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is the catalog view a terminal needs to ring up an item
type Product struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	SKU            string
	Name           string
	Unit           string
	ListPrice      decimal.Decimal
	QuantityOnHand int64
}

// ProductCatalog is the read-only product lookup used to price new lines
type ProductCatalog interface {
	GetProduct(ctx context.Context, tenantID, productID uuid.UUID) (*Product, error)
}
