package sales

import (
	"context"
	"testing"

	"github.com/erp/pos/internal/domain/sales"
	"github.com/erp/pos/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapCatalog struct {
	products map[uuid.UUID]sales.Product
	lookup   error
	saved    int
}

func (c *mapCatalog) GetProduct(_ context.Context, tenantID, productID uuid.UUID) (*sales.Product, error) {
	if c.lookup != nil {
		return nil, c.lookup
	}
	p, ok := c.products[productID]
	if !ok || p.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	return &p, nil
}

func (c *mapCatalog) Save(_ context.Context, product *sales.Product) error {
	c.products[product.ID] = *product
	c.saved++
	return nil
}

func TestSeedCatalog(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	existing := sales.Product{ID: uuid.New(), TenantID: tenantID, Name: "Espresso", ListPrice: decimal.RequireFromString("3.00"), QuantityOnHand: 2}
	fresh := sales.Product{ID: uuid.New(), TenantID: tenantID, Name: "Latte", ListPrice: decimal.RequireFromString("4.50"), QuantityOnHand: 40}

	t.Run("adds only missing products", func(t *testing.T) {
		catalog := &mapCatalog{products: map[uuid.UUID]sales.Product{existing.ID: existing}}
		reseeded := existing
		reseeded.QuantityOnHand = 99

		added, err := SeedCatalog(ctx, catalog, []sales.Product{reseeded, fresh})
		require.NoError(t, err)
		assert.Equal(t, 1, added)
		assert.Equal(t, int64(2), catalog.products[existing.ID].QuantityOnHand)
		assert.Equal(t, "Latte", catalog.products[fresh.ID].Name)

		added, err = SeedCatalog(ctx, catalog, []sales.Product{fresh})
		require.NoError(t, err)
		assert.Zero(t, added)
		assert.Equal(t, 1, catalog.saved)
	})

	t.Run("lookup failures stop seeding", func(t *testing.T) {
		catalog := &mapCatalog{products: map[uuid.UUID]sales.Product{}, lookup: assert.AnError}
		_, err := SeedCatalog(ctx, catalog, []sales.Product{fresh})
		assert.ErrorIs(t, err, assert.AnError)
		assert.Zero(t, catalog.saved)
	})
}
