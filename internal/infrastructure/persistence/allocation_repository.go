package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/ledger"
	"github.com/ledger/backend/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
)

// GormAllocationRepository implements ledger.AllocationRepository using GORM
type GormAllocationRepository struct {
	db *Database
}

// NewGormAllocationRepository creates a new GormAllocationRepository
func NewGormAllocationRepository(db *Database) *GormAllocationRepository {
	return &GormAllocationRepository{db: db}
}

// Create inserts a new allocation row
func (r *GormAllocationRepository) Create(ctx context.Context, allocation *ledger.ReceiptAllocation) error {
	model := models.ReceiptAllocationModelFromDomain(allocation)
	return r.db.handle(ctx).Create(model).Error
}

// ListByReceipt returns the allocations of a receipt, oldest first
func (r *GormAllocationRepository) ListByReceipt(ctx context.Context, receiptID uuid.UUID) ([]ledger.ReceiptAllocation, error) {
	var allocationModels []models.ReceiptAllocationModel
	if err := r.db.handle(ctx).
		Where("receipt_id = ?", receiptID).
		Order("created_at ASC").
		Find(&allocationModels).Error; err != nil {
		return nil, err
	}
	allocations := make([]ledger.ReceiptAllocation, len(allocationModels))
	for i, model := range allocationModels {
		allocations[i] = *model.ToDomain()
	}
	return allocations, nil
}

// ListByInvoice returns the allocations bound to an invoice
func (r *GormAllocationRepository) ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]ledger.ReceiptAllocation, error) {
	var allocationModels []models.ReceiptAllocationModel
	if err := r.db.handle(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("created_at ASC").
		Find(&allocationModels).Error; err != nil {
		return nil, err
	}
	allocations := make([]ledger.ReceiptAllocation, len(allocationModels))
	for i, model := range allocationModels {
		allocations[i] = *model.ToDomain()
	}
	return allocations, nil
}

// DeleteByReceipt hard deletes all allocation rows of a receipt
func (r *GormAllocationRepository) DeleteByReceipt(ctx context.Context, receiptID uuid.UUID) (int64, error) {
	result := r.db.handle(ctx).
		Where("receipt_id = ?", receiptID).
		Delete(&models.ReceiptAllocationModel{})
	return result.RowsAffected, result.Error
}

// ReassignInvoice repoints every allocation from one invoice to another
func (r *GormAllocationRepository) ReassignInvoice(ctx context.Context, fromInvoiceID, toInvoiceID uuid.UUID) (int64, error) {
	result := r.db.handle(ctx).
		Model(&models.ReceiptAllocationModel{}).
		Where("invoice_id = ?", fromInvoiceID).
		Update("invoice_id", toInvoiceID)
	return result.RowsAffected, result.Error
}

// SumByInvoice sums the allocation amounts bound to an invoice
func (r *GormAllocationRepository) SumByInvoice(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	if err := r.db.handle(ctx).
		Model(&models.ReceiptAllocationModel{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("invoice_id = ?", invoiceID).
		Scan(&total).Error; err != nil {
		return decimal.Zero, err
	}
	return total, nil
}

// AnyForBatchRows reports whether any document created by the batch
// participates in an allocation. Soft deleted documents still count.
func (r *GormAllocationRepository) AnyForBatchRows(ctx context.Context, batchID uuid.UUID) (bool, error) {
	var count int64
	if err := r.db.handle(ctx).
		Model(&models.ReceiptAllocationModel{}).
		Where(`receipt_id IN (SELECT id FROM receipts WHERE source_batch_id = @batch)
			OR invoice_id IN (SELECT id FROM invoices WHERE source_batch_id = @batch)
			OR advance_id IN (SELECT id FROM advances WHERE source_batch_id = @batch)`,
			map[string]interface{}{"batch": batchID}).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

var _ ledger.AllocationRepository = (*GormAllocationRepository)(nil)
