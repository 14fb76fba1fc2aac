package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/erp/pos/internal/domain/sales"
	"github.com/erp/pos/internal/domain/shared"
	"github.com/google/uuid"
)

// SaleRepository implements SaleRepository on the Store
type SaleRepository struct {
	store   *Store
	journal *journal
}

// NewSaleRepository creates a repository whose writes are applied immediately
func NewSaleRepository(store *Store) *SaleRepository {
	return &SaleRepository{store: store}
}

// FindByIDForTenant returns a copy of the stored sale.
// Inside a unit of work the sale stays locked until the unit ends.
func (r *SaleRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*sales.Sale, error) {
	r.journal.lockSale(id)

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	sale, ok := r.store.sales[id]
	if !ok || sale.TenantID != tenantID {
		return nil, shared.NewDomainError(shared.CodeNotFound, "Sale not found")
	}
	return cloneSale(sale), nil
}

// FindAllForTenant lists sales of a tenant with filtering, sorting and pagination
func (r *SaleRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter sales.SaleFilter) ([]sales.Sale, int64, error) {
	r.store.mu.RLock()
	matched := make([]*sales.Sale, 0)
	for _, sale := range r.store.sales {
		if sale.TenantID != tenantID {
			continue
		}
		if filter.Status != "" && sale.Status != filter.Status {
			continue
		}
		matched = append(matched, cloneSale(sale))
	}
	r.store.mu.RUnlock()

	less := saleLess(filter.OrderBy)
	desc := !strings.EqualFold(strings.TrimSpace(filter.OrderDir), "asc")
	sort.SliceStable(matched, func(i, j int) bool {
		if desc {
			return less(matched[j], matched[i])
		}
		return less(matched[i], matched[j])
	})

	total := int64(len(matched))
	start, end := filter.Window(len(matched))
	matched = matched[start:end]

	result := make([]sales.Sale, len(matched))
	for i, sale := range matched {
		result[i] = *sale
	}
	return result, total, nil
}

// saleLess returns the ordering for a sort field, falling back to created_at
func saleLess(field string) func(a, b *sales.Sale) bool {
	byID := func(a, b *sales.Sale) bool { return a.ID.String() < b.ID.String() }
	byTime := func(get func(s *sales.Sale) time.Time) func(a, b *sales.Sale) bool {
		return func(a, b *sales.Sale) bool {
			ta, tb := get(a), get(b)
			if ta.Equal(tb) {
				return byID(a, b)
			}
			return ta.Before(tb)
		}
	}

	switch strings.TrimSpace(field) {
	case "updated_at":
		return byTime(func(s *sales.Sale) time.Time { return s.UpdatedAt })
	case "completed_at":
		return byTime(func(s *sales.Sale) time.Time {
			if s.CompletedAt == nil {
				return time.Time{}
			}
			return *s.CompletedAt
		})
	case "sale_number":
		return func(a, b *sales.Sale) bool { return a.SaleNumber < b.SaleNumber }
	case "status":
		return func(a, b *sales.Sale) bool {
			if a.Status == b.Status {
				return byID(a, b)
			}
			return a.Status < b.Status
		}
	case "total":
		return func(a, b *sales.Sale) bool {
			if a.Total.Equal(b.Total) {
				return byID(a, b)
			}
			return a.Total.LessThan(b.Total)
		}
	default:
		return byTime(func(s *sales.Sale) time.Time { return s.CreatedAt })
	}
}

// Create stores a new sale
func (r *SaleRepository) Create(ctx context.Context, sale *sales.Sale) error {
	r.journal.lockSale(sale.ID)

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.sales[sale.ID]; exists {
		return shared.NewDomainError(shared.CodeAlreadyExists, "Sale already exists")
	}
	for _, existing := range r.store.sales {
		if existing.TenantID == sale.TenantID && existing.SaleNumber == sale.SaleNumber {
			return shared.NewDomainError(shared.CodeAlreadyExists,
				fmt.Sprintf("Sale number %s already exists", sale.SaleNumber))
		}
	}

	r.store.sales[sale.ID] = cloneSale(sale)
	r.journal.add(func() {
		r.store.mu.Lock()
		delete(r.store.sales, sale.ID)
		r.store.mu.Unlock()
	})
	return nil
}

// SaveWithLock replaces the stored sale if its version still matches
func (r *SaleRepository) SaveWithLock(ctx context.Context, sale *sales.Sale) error {
	r.journal.lockSale(sale.ID)

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, ok := r.store.sales[sale.ID]
	if !ok || current.TenantID != sale.TenantID {
		return shared.NewDomainError(shared.CodeNotFound, "Sale not found")
	}
	if current.Version != sale.Version {
		return shared.NewDomainError(shared.CodeConcurrencyConflict,
			fmt.Sprintf("Sale %s was modified by another terminal", sale.SaleNumber))
	}

	next := cloneSale(sale)
	next.Version = sale.Version + 1
	r.store.sales[sale.ID] = next
	sale.IncrementVersion()

	r.journal.add(func() {
		r.store.mu.Lock()
		r.store.sales[sale.ID] = current
		r.store.mu.Unlock()
	})
	return nil
}

// GenerateSaleNumber returns the next POS-YYYYMMDD-NNNNN number of the tenant
func (r *SaleRepository) GenerateSaleNumber(ctx context.Context, tenantID uuid.UUID) (string, error) {
	prefix := fmt.Sprintf("POS-%s-", time.Now().Format("20060102"))

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var last int64
	for _, sale := range r.store.sales {
		if sale.TenantID != tenantID || !strings.HasPrefix(sale.SaleNumber, prefix) {
			continue
		}
		var num int64
		if _, err := fmt.Sscanf(strings.TrimPrefix(sale.SaleNumber, prefix), "%d", &num); err == nil && num > last {
			last = num
		}
	}
	return fmt.Sprintf("%s%05d", prefix, last+1), nil
}

// Ensure SaleRepository implements SaleRepository
var _ sales.SaleRepository = (*SaleRepository)(nil)
