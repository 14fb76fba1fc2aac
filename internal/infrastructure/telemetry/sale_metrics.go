package telemetry

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Attribute keys on sale instruments
var (
	AttrTenantID    = attribute.Key("tenant_id")
	AttrOperation   = attribute.Key("operation")
	AttrForDelivery = attribute.Key("for_delivery")
)

// lineCountBuckets spans a coffee order up to a large basket
var lineCountBuckets = []float64{1, 2, 3, 5, 8, 13, 21, 34, 55}

// SaleMetrics records checkout outcomes as OpenTelemetry instruments
type SaleMetrics struct {
	completed     metric.Int64Counter
	voided        metric.Int64Counter
	stockRejected metric.Int64Counter
	conflicts     metric.Int64Counter
	revenue       metric.Float64Counter
	linesPerSale  metric.Float64Histogram
}

// NewSaleMetrics creates the sale instruments on meter
func NewSaleMetrics(meter metric.Meter) (*SaleMetrics, error) {
	var errs []error
	counter := func(name, desc, unit string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
		errs = append(errs, err)
		return c
	}

	m := &SaleMetrics{
		completed:     counter("pos.sales.completed", "Sales completed", "{sale}"),
		voided:        counter("pos.sales.voided", "Completed sales voided", "{sale}"),
		stockRejected: counter("pos.sales.stock_rejected", "Completions rejected for insufficient stock", "{sale}"),
		conflicts:     counter("pos.sales.concurrency_conflicts", "Sale writes lost to a concurrent update", "{conflict}"),
	}

	var err error
	m.revenue, err = meter.Float64Counter("pos.sales.revenue",
		metric.WithDescription("Grand total of completed sales"),
		metric.WithUnit("{currency}"),
	)
	errs = append(errs, err)
	m.linesPerSale, err = meter.Float64Histogram("pos.sales.lines",
		metric.WithDescription("Line count of completed sales"),
		metric.WithUnit("{line}"),
		metric.WithExplicitBucketBoundaries(lineCountBuckets...),
	)
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return m, nil
}

func tenantAttr(id uuid.UUID) metric.MeasurementOption {
	return metric.WithAttributes(AttrTenantID.String(id.String()))
}

// RecordSaleCompleted counts the sale, its revenue and its basket size
func (m *SaleMetrics) RecordSaleCompleted(ctx context.Context, tenantID uuid.UUID, total decimal.Decimal, lineCount int, forDelivery bool) {
	tenant := tenantAttr(tenantID)
	m.completed.Add(ctx, 1, tenant, metric.WithAttributes(AttrForDelivery.Bool(forDelivery)))
	m.revenue.Add(ctx, total.InexactFloat64(), tenant)
	m.linesPerSale.Record(ctx, float64(lineCount), tenant)
}

func (m *SaleMetrics) RecordSaleVoided(ctx context.Context, tenantID uuid.UUID) {
	m.voided.Add(ctx, 1, tenantAttr(tenantID))
}

// RecordStockRejected counts a completion refused by the stock ledger
func (m *SaleMetrics) RecordStockRejected(ctx context.Context, tenantID uuid.UUID) {
	m.stockRejected.Add(ctx, 1, tenantAttr(tenantID))
}

// RecordConcurrencyConflict counts a stale write by operation
func (m *SaleMetrics) RecordConcurrencyConflict(ctx context.Context, operation string) {
	m.conflicts.Add(ctx, 1, metric.WithAttributes(AttrOperation.String(operation)))
}
