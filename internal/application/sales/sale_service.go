package sales

import (
	"context"
	"errors"
	"strings"

	"github.com/erp/pos/internal/domain/sales"
	"github.com/erp/pos/internal/domain/shared"
	"github.com/erp/pos/internal/domain/shared/valueobject"
	"github.com/erp/pos/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// SaleMetrics receives business outcomes of sale operations
type SaleMetrics interface {
	RecordSaleCompleted(ctx context.Context, tenantID uuid.UUID, total decimal.Decimal, lineCount int, forDelivery bool)
	RecordSaleVoided(ctx context.Context, tenantID uuid.UUID)
	RecordStockRejected(ctx context.Context, tenantID uuid.UUID)
	RecordConcurrencyConflict(ctx context.Context, operation string)
}

// SaleService runs every checkout operation as load, validate, persist.
// Each call reloads the sale inside a transaction and saves it with a version check.
type SaleService struct {
	scope    TransactionScope
	saleRepo sales.SaleRepository
	catalog  sales.ProductCatalog
	currency valueobject.Currency
	metrics  SaleMetrics
	logger   *zap.Logger
}

// SaleServiceOption configures a SaleService
type SaleServiceOption func(*SaleService)

// WithCurrency sets the currency new sales are opened in
func WithCurrency(currency valueobject.Currency) SaleServiceOption {
	return func(s *SaleService) {
		if currency != "" {
			s.currency = currency
		}
	}
}

// WithSaleMetrics attaches a metrics recorder
func WithSaleMetrics(metrics SaleMetrics) SaleServiceOption {
	return func(s *SaleService) {
		s.metrics = metrics
	}
}

// NewSaleService creates a new SaleService.
// saleRepo serves reads and creation outside a transaction.
func NewSaleService(
	scope TransactionScope,
	saleRepo sales.SaleRepository,
	catalog sales.ProductCatalog,
	logger *zap.Logger,
	opts ...SaleServiceOption,
) *SaleService {
	s := &SaleService{
		scope:    scope,
		saleRepo: saleRepo,
		catalog:  catalog,
		currency: valueobject.DefaultCurrency,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// createAttempts bounds retries when another terminal takes the generated sale number first
const createAttempts = 3

// Create opens an empty draft sale
func (s *SaleService) Create(ctx context.Context, tenantID uuid.UUID, req CreateSaleRequest) (*SaleResponse, error) {
	var err error
	for attempt := 1; attempt <= createAttempts; attempt++ {
		var sale *sales.Sale
		sale, err = s.create(ctx, tenantID, req)
		if err == nil {
			response := ToSaleResponse(sale)
			return &response, nil
		}
		if shared.CodeOf(err) != shared.CodeAlreadyExists {
			return nil, err
		}
		s.logger.Debug("sale number taken, retrying",
			zap.String("tenant_id", tenantID.String()),
			zap.Int("attempt", attempt))
	}
	return nil, err
}

func (s *SaleService) create(ctx context.Context, tenantID uuid.UUID, req CreateSaleRequest) (*sales.Sale, error) {
	saleNumber, err := s.saleRepo.GenerateSaleNumber(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	sale, err := sales.NewSale(tenantID, saleNumber, s.currency)
	if err != nil {
		return nil, err
	}
	if req.CashierID != nil {
		sale.SetCreatedBy(*req.CashierID)
	}

	if err := s.saleRepo.Create(ctx, sale); err != nil {
		return nil, err
	}
	return sale, nil
}

// GetByID retrieves a sale by ID
func (s *SaleService) GetByID(ctx context.Context, tenantID, saleID uuid.UUID) (*SaleResponse, error) {
	sale, err := s.saleRepo.FindByIDForTenant(ctx, tenantID, saleID)
	if err != nil {
		return nil, err
	}
	response := ToSaleResponse(sale)
	return &response, nil
}

// List retrieves sales with filtering and pagination
func (s *SaleService) List(ctx context.Context, tenantID uuid.UUID, filter SaleListFilter) ([]SaleListItemResponse, int64, error) {
	domainFilter := sales.SaleFilter{
		Filter: shared.DefaultFilter().
			Paged(filter.Page, filter.PageSize).
			Ordered(filter.OrderBy, filter.OrderDir),
	}
	if filter.Status != "" {
		status := sales.SaleStatus(strings.ToUpper(filter.Status))
		if !status.IsValid() {
			return nil, 0, shared.NewValidationError("Unknown sale status %q", filter.Status)
		}
		domainFilter.Status = status
	}

	list, total, err := s.saleRepo.FindAllForTenant(ctx, tenantID, domainFilter)
	if err != nil {
		return nil, 0, err
	}

	items := make([]SaleListItemResponse, len(list))
	for i := range list {
		items[i] = ToSaleListItemResponse(&list[i])
	}
	return items, total, nil
}

// GetProduct looks up the catalog entry used to price a line
func (s *SaleService) GetProduct(ctx context.Context, tenantID, productID uuid.UUID) (*ProductResponse, error) {
	product, err := s.catalog.GetProduct(ctx, tenantID, productID)
	if err != nil {
		return nil, err
	}
	response := ToProductResponse(product)
	return &response, nil
}

// AddLine adds a product to a draft sale, pricing it from the catalog unless
// the request carries a unit price
func (s *SaleService) AddLine(ctx context.Context, tenantID, saleID uuid.UUID, req AddLineRequest) (*SaleResponse, error) {
	product, err := s.catalog.GetProduct(ctx, tenantID, req.ProductID)
	if err != nil {
		return nil, err
	}

	in := sales.LineInput{
		ProductID:   product.ID,
		ProductName: product.Name,
		Unit:        product.Unit,
		Quantity:    req.Quantity,
		UnitPrice:   product.ListPrice,
	}
	if req.UnitPrice != nil {
		in.UnitPrice = *req.UnitPrice
	}
	if req.LineDiscount != nil {
		in.DiscountAmount = *req.LineDiscount
	}

	return s.mutate(ctx, "add_line", tenantID, saleID, req.ExpectedVersion, func(_ context.Context, sale *sales.Sale, _ TransactionalStores) error {
		_, err := sale.AddLine(in)
		return err
	})
}

// UpdateLine changes a line quantity; zero or less removes the line
func (s *SaleService) UpdateLine(ctx context.Context, tenantID, saleID, lineID uuid.UUID, req UpdateLineRequest) (*SaleResponse, error) {
	return s.mutate(ctx, "update_line", tenantID, saleID, req.ExpectedVersion, func(_ context.Context, sale *sales.Sale, _ TransactionalStores) error {
		return sale.UpdateLineQuantity(lineID, req.Quantity)
	})
}

// RemoveLine removes a line from a draft sale
func (s *SaleService) RemoveLine(ctx context.Context, tenantID, saleID, lineID uuid.UUID, guard VersionGuard) (*SaleResponse, error) {
	return s.mutate(ctx, "remove_line", tenantID, saleID, guard.ExpectedVersion, func(_ context.Context, sale *sales.Sale, _ TransactionalStores) error {
		return sale.RemoveLine(lineID)
	})
}

// SetLineDiscount sets the discount on a single line
func (s *SaleService) SetLineDiscount(ctx context.Context, tenantID, saleID, lineID uuid.UUID, req SetLineDiscountRequest) (*SaleResponse, error) {
	return s.mutate(ctx, "set_line_discount", tenantID, saleID, req.ExpectedVersion, func(_ context.Context, sale *sales.Sale, _ TransactionalStores) error {
		return sale.SetLineDiscount(lineID, req.Amount)
	})
}

// ApplyDiscount sets the sale-level discount
func (s *SaleService) ApplyDiscount(ctx context.Context, tenantID, saleID uuid.UUID, req ApplyDiscountRequest) (*SaleResponse, error) {
	discountType := sales.DiscountType(strings.ToUpper(req.Type))
	return s.mutate(ctx, "apply_discount", tenantID, saleID, req.ExpectedVersion, func(_ context.Context, sale *sales.Sale, _ TransactionalStores) error {
		return sale.ApplyDiscount(req.Amount, discountType)
	})
}

// AddPayment records a tender against a draft sale
func (s *SaleService) AddPayment(ctx context.Context, tenantID, saleID uuid.UUID, req AddPaymentRequest) (*SaleResponse, error) {
	method := sales.PaymentMethod(strings.ToUpper(req.Method))
	return s.mutate(ctx, "add_payment", tenantID, saleID, req.ExpectedVersion, func(_ context.Context, sale *sales.Sale, _ TransactionalStores) error {
		_, err := sale.AddPayment(method, req.Amount, req.Reference)
		return err
	})
}

// Hold parks a draft sale
func (s *SaleService) Hold(ctx context.Context, tenantID, saleID uuid.UUID, guard VersionGuard) (*SaleResponse, error) {
	return s.mutate(ctx, "hold", tenantID, saleID, guard.ExpectedVersion, func(_ context.Context, sale *sales.Sale, _ TransactionalStores) error {
		return sale.Hold()
	})
}

// Retrieve resumes a held sale
func (s *SaleService) Retrieve(ctx context.Context, tenantID, saleID uuid.UUID, guard VersionGuard) (*SaleResponse, error) {
	return s.mutate(ctx, "retrieve", tenantID, saleID, guard.ExpectedVersion, func(_ context.Context, sale *sales.Sale, _ TransactionalStores) error {
		return sale.Retrieve()
	})
}

// Complete commits stock for every line and closes the sale. Stock commits,
// the sale update and the outbox events share one transaction.
func (s *SaleService) Complete(ctx context.Context, tenantID, saleID uuid.UUID, req CompleteSaleRequest) (*CompleteSaleResponse, error) {
	var deliveryID uuid.UUID
	response, err := s.mutate(ctx, "complete", tenantID, saleID, req.ExpectedVersion, func(ctx context.Context, sale *sales.Sale, stores TransactionalStores) error {
		id, err := sale.Complete(ctx, stores.StockLedger(), req.ForDelivery)
		if err != nil {
			return err
		}
		deliveryID = id
		return nil
	})
	if err != nil {
		if errors.Is(err, shared.ErrInsufficientStock) && s.metrics != nil {
			s.metrics.RecordStockRejected(ctx, tenantID)
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordSaleCompleted(ctx, tenantID, response.Total, len(response.Lines), req.ForDelivery)
	}
	s.logger.Info("sale completed",
		zap.String("sale_id", saleID.String()),
		zap.String("sale_number", response.SaleNumber),
		zap.String("total", response.Total.StringFixed(valueobject.TotalPlaces)),
		zap.Bool("for_delivery", req.ForDelivery),
	)

	result := &CompleteSaleResponse{Sale: *response}
	if deliveryID != uuid.Nil {
		result.DeliveryID = &deliveryID
	}
	return result, nil
}

// Void reverses the stock of a completed sale
func (s *SaleService) Void(ctx context.Context, tenantID, saleID uuid.UUID, guard VersionGuard) (*SaleResponse, error) {
	response, err := s.mutate(ctx, "void", tenantID, saleID, guard.ExpectedVersion, func(ctx context.Context, sale *sales.Sale, stores TransactionalStores) error {
		return sale.Void(ctx, stores.StockLedger())
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordSaleVoided(ctx, tenantID)
	}
	s.logger.Info("sale voided",
		zap.String("sale_id", saleID.String()),
		zap.String("sale_number", response.SaleNumber),
	)
	return response, nil
}

type saleMutation func(ctx context.Context, sale *sales.Sale, stores TransactionalStores) error

// mutate loads the sale inside a transaction, applies fn, and persists the sale
// together with its pending events. Nothing is written when fn fails.
func (s *SaleService) mutate(
	ctx context.Context,
	operation string,
	tenantID, saleID uuid.UUID,
	expectedVersion *int,
	fn saleMutation,
) (*SaleResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "sale", operation,
		attribute.String("sale_id", saleID.String()),
		attribute.String("tenant_id", tenantID.String()),
	)
	defer span.End()

	var response SaleResponse

	err := s.scope.Execute(ctx, func(ctx context.Context, stores TransactionalStores) error {
		repo := stores.SaleRepo()
		sale, err := repo.FindByIDForTenant(ctx, tenantID, saleID)
		if err != nil {
			return err
		}
		if expectedVersion != nil && *expectedVersion != sale.Version {
			return shared.NewDomainError(shared.CodeConcurrencyConflict,
				"The sale has been modified since it was loaded, reload and retry")
		}

		if err := fn(ctx, sale, stores); err != nil {
			return err
		}

		if err := repo.SaveWithLock(ctx, sale); err != nil {
			return err
		}
		if events := sale.PendingEvents(); len(events) > 0 {
			if err := stores.Events().Record(ctx, events...); err != nil {
				return err
			}
			sale.ClearPendingEvents()
		}

		response = ToSaleResponse(sale)
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			if s.metrics != nil {
				s.metrics.RecordConcurrencyConflict(ctx, operation)
			}
			s.logger.Warn("sale modified concurrently",
				zap.String("operation", operation),
				zap.String("sale_id", saleID.String()),
			)
		}
		return nil, err
	}
	return &response, nil
}
