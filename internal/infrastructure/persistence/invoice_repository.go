package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/ledger"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/ledger/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormInvoiceRepository implements ledger.InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *Database
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *Database) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// FindByID finds an invoice by ID
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Invoice, error) {
	var model models.InvoiceModel
	if err := r.db.handle(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindOpenBySellerCustomer returns open and partially paid invoices for the
// pair, ordered by due date, then creation time.
func (r *GormInvoiceRepository) FindOpenBySellerCustomer(ctx context.Context, sellerCode, customerCode string) ([]ledger.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	if err := r.db.handle(ctx).
		Where("seller_code = ? AND customer_code = ? AND status IN ?",
			sellerCode, customerCode, []ledger.InvoiceStatus{ledger.InvoiceStatusOpen, ledger.InvoiceStatusPartial}).
		Order("due_date ASC, created_at ASC, id ASC").
		Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	invoices := make([]ledger.Invoice, len(invoiceModels))
	for i, model := range invoiceModels {
		invoices[i] = *model.ToDomain()
	}
	return invoices, nil
}

// ListBySourceBatch returns every invoice created by an import batch
func (r *GormInvoiceRepository) ListBySourceBatch(ctx context.Context, batchID uuid.UUID) ([]ledger.Invoice, error) {
	var invoiceModels []models.InvoiceModel
	if err := r.db.handle(ctx).
		Where("source_batch_id = ?", batchID).
		Order("created_at ASC").
		Find(&invoiceModels).Error; err != nil {
		return nil, err
	}
	invoices := make([]ledger.Invoice, len(invoiceModels))
	for i, model := range invoiceModels {
		invoices[i] = *model.ToDomain()
	}
	return invoices, nil
}

// Create inserts a new invoice
func (r *GormInvoiceRepository) Create(ctx context.Context, invoice *ledger.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	return r.db.handle(ctx).Create(model).Error
}

// Save creates or updates an invoice without a version check
func (r *GormInvoiceRepository) Save(ctx context.Context, invoice *ledger.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	return r.db.handle(ctx).Save(model).Error
}

// SaveWithLock saves the invoice guarded by its version, advancing it by one
func (r *GormInvoiceRepository) SaveWithLock(ctx context.Context, invoice *ledger.Invoice) error {
	loadedVersion := invoice.Version
	invoice.Version++
	model := models.InvoiceModelFromDomain(invoice)
	result := r.db.handle(ctx).
		Model(&models.InvoiceModel{}).
		Where("id = ? AND version = ?", invoice.ID, loadedVersion).
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewConflictError("CONCURRENT_MODIFICATION", "The invoice has been modified by another operation")
	}
	return nil
}

// SoftDelete hides the invoice from active queries
func (r *GormInvoiceRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return r.db.handle(ctx).Delete(&models.InvoiceModel{}, "id = ?", id).Error
}

// ExistsByDedupKey reports whether a live invoice with the same document
// identity already exists.
func (r *GormInvoiceRepository) ExistsByDedupKey(ctx context.Context, sellerCode, customerCode, series, number string, issueDate time.Time) (bool, error) {
	var count int64
	if err := r.db.handle(ctx).
		Model(&models.InvoiceModel{}).
		Where("seller_code = ? AND customer_code = ? AND series = ? AND number = ? AND issue_date = ?",
			sellerCode, customerCode, series, number, issueDate).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// SumTotalsByCustomer sums non-void invoice totals grouped by customer code
func (r *GormInvoiceRepository) SumTotalsByCustomer(ctx context.Context) (map[string]decimal.Decimal, error) {
	return sumByCustomer(r.db.handle(ctx).
		Model(&models.InvoiceModel{}).
		Select("customer_code, COALESCE(SUM(total_amount), 0) AS total").
		Where("status <> ?", ledger.InvoiceStatusVoid).
		Group("customer_code"))
}

// DistinctOpenPairs lists every pair that still has open invoices
func (r *GormInvoiceRepository) DistinctOpenPairs(ctx context.Context) ([]ledger.PairKey, error) {
	var pairs []ledger.PairKey
	if err := r.db.handle(ctx).
		Model(&models.InvoiceModel{}).
		Select("DISTINCT seller_code, customer_code").
		Where("status IN ?", []ledger.InvoiceStatus{ledger.InvoiceStatusOpen, ledger.InvoiceStatusPartial}).
		Order("seller_code, customer_code").
		Scan(&pairs).Error; err != nil {
		return nil, err
	}
	return pairs, nil
}

var _ ledger.InvoiceRepository = (*GormInvoiceRepository)(nil)

// customerSumRow is the scan target for per-customer aggregate queries
type customerSumRow struct {
	CustomerCode string
	Total        decimal.Decimal
}

// sumByCustomer runs a grouped sum query and folds it into a map
func sumByCustomer(query *gorm.DB) (map[string]decimal.Decimal, error) {
	var rows []customerSumRow
	if err := query.Scan(&rows).Error; err != nil {
		return nil, err
	}
	sums := make(map[string]decimal.Decimal, len(rows))
	for _, row := range rows {
		sums[row.CustomerCode] = row.Total
	}
	return sums, nil
}
