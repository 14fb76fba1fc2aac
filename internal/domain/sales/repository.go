package sales

import (
	"context"

	"github.com/erp/pos/internal/domain/shared"
	"github.com/google/uuid"
)

// SaleFilter narrows a sale listing
type SaleFilter struct {
	shared.Filter
	Status SaleStatus
}

// SaleRepository defines the interface for sale persistence
type SaleRepository interface {
	// FindByIDForTenant loads a sale with its lines and payments
	FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*Sale, error)

	// FindAllForTenant lists sales for a tenant, newest first by default
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter SaleFilter) ([]Sale, int64, error)

	// Create inserts a new sale
	Create(ctx context.Context, sale *Sale) error

	// SaveWithLock persists a loaded sale if its stored version still matches,
	// then increments the version. A mismatch returns a CONCURRENCY_CONFLICT error.
	SaveWithLock(ctx context.Context, sale *Sale) error

	// GenerateSaleNumber returns the next sale number for a tenant
	GenerateSaleNumber(ctx context.Context, tenantID uuid.UUID) (string, error)
}
