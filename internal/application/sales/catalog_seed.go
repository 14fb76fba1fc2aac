package sales

import (
	"context"
	"fmt"

	"github.com/erp/pos/internal/domain/sales"
	"github.com/erp/pos/internal/domain/shared"
)

// CatalogWriter is a ProductCatalog that can also store products
type CatalogWriter interface {
	sales.ProductCatalog
	Save(ctx context.Context, product *sales.Product) error
}

// SeedCatalog saves the products the catalog does not have yet and returns how many it added.
// Existing products keep their price and stock.
func SeedCatalog(ctx context.Context, catalog CatalogWriter, products []sales.Product) (int, error) {
	added := 0
	for i := range products {
		p := products[i]
		_, err := catalog.GetProduct(ctx, p.TenantID, p.ID)
		if err == nil {
			continue
		}
		if shared.CodeOf(err) != shared.CodeNotFound {
			return added, fmt.Errorf("look up seed product %s: %w", p.ID, err)
		}
		if err := catalog.Save(ctx, &p); err != nil {
			return added, fmt.Errorf("seed product %s: %w", p.ID, err)
		}
		added++
	}
	return added, nil
}
