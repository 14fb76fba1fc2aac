package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erp/pos/internal/domain/sales"
	"github.com/erp/pos/internal/domain/shared"
	"github.com/erp/pos/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSaleRepository implements SaleRepository using GORM
type GormSaleRepository struct {
	db *gorm.DB
}

// NewGormSaleRepository creates a new GormSaleRepository
func NewGormSaleRepository(db *gorm.DB) *GormSaleRepository {
	return &GormSaleRepository{db: db}
}

// WithTx returns a new repository bound to the given transaction
func (r *GormSaleRepository) WithTx(tx *gorm.DB) *GormSaleRepository {
	return &GormSaleRepository{db: tx}
}

func preloadSale(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Lines", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Payments", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		})
}

// FindByIDForTenant finds a sale by ID within a tenant
func (r *GormSaleRepository) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*sales.Sale, error) {
	var model models.SaleModel
	if err := preloadSale(r.db.WithContext(ctx)).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewDomainError(shared.CodeNotFound, "Sale not found")
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAllForTenant lists sales for a tenant with filtering and pagination
func (r *GormSaleRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID, filter sales.SaleFilter) ([]sales.Sale, int64, error) {
	scoped := func() *gorm.DB {
		query := r.db.WithContext(ctx).Model(&models.SaleModel{}).Where("tenant_id = ?", tenantID)
		if filter.Status != "" {
			query = query.Where("status = ?", filter.Status)
		}
		return query
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := saleSortColumns.apply(preloadSale(scoped()), filter.OrderBy, filter.OrderDir)
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}

	var rows []models.SaleModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}

	result := make([]sales.Sale, len(rows))
	for i := range rows {
		result[i] = *rows[i].ToDomain()
	}
	return result, total, nil
}

// Create inserts a new sale with its lines and payments
func (r *GormSaleRepository) Create(ctx context.Context, sale *sales.Sale) error {
	model := models.SaleModelFromDomain(sale)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.NewDomainError(shared.CodeAlreadyExists,
				fmt.Sprintf("Sale number %s already exists", sale.SaleNumber))
		}
		return err
	}
	return nil
}

// SaveWithLock updates the sale only if its stored version matches the loaded one.
// Lines are replaced by the current set; payments are insert-only.
func (r *GormSaleRepository) SaveWithLock(ctx context.Context, sale *sales.Sale) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		loadedVersion := sale.Version
		model := models.SaleModelFromDomain(sale)

		result := tx.Model(&models.SaleModel{}).
			Where("id = ? AND tenant_id = ? AND version = ?", sale.ID, sale.TenantID, loadedVersion).
			Updates(map[string]any{
				"status":             model.Status,
				"discount_amount":    model.DiscountAmount,
				"discount_type":      model.DiscountType,
				"subtotal":           model.Subtotal,
				"effective_discount": model.EffectiveDiscount,
				"total":              model.Total,
				"payment_total":      model.PaymentTotal,
				"held_at":            model.HeldAt,
				"completed_at":       model.CompletedAt,
				"voided_at":          model.VoidedAt,
				"delivery_id":        model.DeliveryID,
				"version":            loadedVersion + 1,
				"updated_at":         model.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.SaleModel{}).
				Where("id = ? AND tenant_id = ?", sale.ID, sale.TenantID).
				Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return shared.NewDomainError(shared.CodeNotFound, "Sale not found")
			}
			return shared.NewDomainError(shared.CodeConcurrencyConflict,
				fmt.Sprintf("Sale %s was modified by another terminal", sale.SaleNumber))
		}

		lineIDs := make([]uuid.UUID, len(model.Lines))
		for i, line := range model.Lines {
			lineIDs[i] = line.ID
		}
		deleteLines := tx.Where("sale_id = ?", sale.ID)
		if len(lineIDs) > 0 {
			deleteLines = deleteLines.Where("id NOT IN ?", lineIDs)
		}
		if err := deleteLines.Delete(&models.SaleLineModel{}).Error; err != nil {
			return err
		}
		for i := range model.Lines {
			if err := tx.Save(&model.Lines[i]).Error; err != nil {
				return err
			}
		}

		if len(model.Payments) > 0 {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
				Create(&model.Payments).Error; err != nil {
				return err
			}
		}

		sale.IncrementVersion()
		return nil
	})
}

// GenerateSaleNumber generates the next sale number for a tenant.
// Format: POS-YYYYMMDD-NNNNN (e.g., POS-20260115-00001)
func (r *GormSaleRepository) GenerateSaleNumber(ctx context.Context, tenantID uuid.UUID) (string, error) {
	prefix := fmt.Sprintf("POS-%s-", time.Now().Format("20060102"))

	var last models.SaleModel
	err := r.db.WithContext(ctx).
		Model(&models.SaleModel{}).
		Select("sale_number").
		Where("tenant_id = ? AND sale_number LIKE ?", tenantID, prefix+"%").
		Order("sale_number DESC").
		First(&last).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	var nextNum int64 = 1
	if err == nil {
		parts := strings.Split(last.SaleNumber, "-")
		if len(parts) == 3 {
			var num int64
			if _, parseErr := fmt.Sscanf(parts[2], "%d", &num); parseErr == nil {
				nextNum = num + 1
			}
		}
	}

	return fmt.Sprintf("%s%05d", prefix, nextNum), nil
}

// Ensure GormSaleRepository implements SaleRepository
var _ sales.SaleRepository = (*GormSaleRepository)(nil)
