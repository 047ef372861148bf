package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/ledger"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/ledger/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormReceiptRepository implements ledger.ReceiptRepository using GORM
type GormReceiptRepository struct {
	db *Database
}

// NewGormReceiptRepository creates a new GormReceiptRepository
func NewGormReceiptRepository(db *Database) *GormReceiptRepository {
	return &GormReceiptRepository{db: db}
}

// FindByID finds a receipt by ID
func (r *GormReceiptRepository) FindByID(ctx context.Context, id uuid.UUID) (*ledger.Receipt, error) {
	var model models.ReceiptModel
	if err := r.db.handle(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindApprovedWithCredit returns approved receipts with unallocated funds
// for the pair, oldest receipt date first.
func (r *GormReceiptRepository) FindApprovedWithCredit(ctx context.Context, sellerCode, customerCode string) ([]ledger.Receipt, error) {
	var receiptModels []models.ReceiptModel
	if err := r.db.handle(ctx).
		Where("seller_code = ? AND customer_code = ? AND status = ? AND unallocated_amount > 0",
			sellerCode, customerCode, ledger.ReceiptStatusApproved).
		Order("receipt_date ASC, created_at ASC, id ASC").
		Find(&receiptModels).Error; err != nil {
		return nil, err
	}
	receipts := make([]ledger.Receipt, len(receiptModels))
	for i, model := range receiptModels {
		receipts[i] = *model.ToDomain()
	}
	return receipts, nil
}

// ListBySourceBatch returns every receipt created by an import batch
func (r *GormReceiptRepository) ListBySourceBatch(ctx context.Context, batchID uuid.UUID) ([]ledger.Receipt, error) {
	var receiptModels []models.ReceiptModel
	if err := r.db.handle(ctx).
		Where("source_batch_id = ?", batchID).
		Order("created_at ASC").
		Find(&receiptModels).Error; err != nil {
		return nil, err
	}
	receipts := make([]ledger.Receipt, len(receiptModels))
	for i, model := range receiptModels {
		receipts[i] = *model.ToDomain()
	}
	return receipts, nil
}

// AnyApprovedInBatch reports whether any receipt of the batch left draft
func (r *GormReceiptRepository) AnyApprovedInBatch(ctx context.Context, batchID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.handle(ctx).
		Model(&models.ReceiptModel{}).
		Where("source_batch_id = ? AND status <> ?", batchID, ledger.ReceiptStatusDraft).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create inserts a new receipt
func (r *GormReceiptRepository) Create(ctx context.Context, receipt *ledger.Receipt) error {
	model := models.ReceiptModelFromDomain(receipt)
	return r.db.handle(ctx).Create(model).Error
}

// Save creates or updates a receipt without a version check
func (r *GormReceiptRepository) Save(ctx context.Context, receipt *ledger.Receipt) error {
	model := models.ReceiptModelFromDomain(receipt)
	return r.db.handle(ctx).Save(model).Error
}

// SaveWithLock saves the receipt guarded by its version, advancing it by one
func (r *GormReceiptRepository) SaveWithLock(ctx context.Context, receipt *ledger.Receipt) error {
	loadedVersion := receipt.Version
	receipt.Version++
	model := models.ReceiptModelFromDomain(receipt)
	result := r.db.handle(ctx).
		Model(&models.ReceiptModel{}).
		Where("id = ? AND version = ?", receipt.ID, loadedVersion).
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.NewConflictError("CONCURRENT_MODIFICATION", "The receipt has been modified by another operation")
	}
	return nil
}

// SoftDelete hides the receipt from active queries
func (r *GormReceiptRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	return r.db.handle(ctx).Delete(&models.ReceiptModel{}, "id = ?", id).Error
}

// SumApprovedAmountsByCustomer sums approved receipt amounts grouped by
// customer code
func (r *GormReceiptRepository) SumApprovedAmountsByCustomer(ctx context.Context) (map[string]decimal.Decimal, error) {
	return sumByCustomer(r.db.handle(ctx).
		Model(&models.ReceiptModel{}).
		Select("customer_code, COALESCE(SUM(amount), 0) AS total").
		Where("status = ?", ledger.ReceiptStatusApproved).
		Group("customer_code"))
}

var _ ledger.ReceiptRepository = (*GormReceiptRepository)(nil)
