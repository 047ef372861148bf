package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceRepository persists invoices
type InvoiceRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	// FindOpenBySellerCustomer returns OPEN and PARTIAL invoices for the
	// pair, ordered by due date asc, then creation time asc.
	FindOpenBySellerCustomer(ctx context.Context, sellerCode, customerCode string) ([]Invoice, error)
	ListBySourceBatch(ctx context.Context, batchID uuid.UUID) ([]Invoice, error)
	Create(ctx context.Context, invoice *Invoice) error
	Save(ctx context.Context, invoice *Invoice) error
	SaveWithLock(ctx context.Context, invoice *Invoice) error
	// SoftDelete excludes the invoice from active computations while
	// retaining the row for audit and rollback bookkeeping.
	SoftDelete(ctx context.Context, id uuid.UUID) error
	ExistsByDedupKey(ctx context.Context, sellerCode, customerCode, series, number string, issueDate time.Time) (bool, error)
	// SumTotalsByCustomer sums non-void invoice totals grouped by customer code
	SumTotalsByCustomer(ctx context.Context) (map[string]decimal.Decimal, error)
	// DistinctOpenPairs lists every (seller, customer) pair that has at
	// least one open invoice.
	DistinctOpenPairs(ctx context.Context) ([]PairKey, error)
}

// AdvanceRepository persists advances
type AdvanceRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Advance, error)
	// FindOpenBySellerCustomer returns APPROVED advances with outstanding
	// amounts for the pair, ordered by due date asc, then creation time asc.
	FindOpenBySellerCustomer(ctx context.Context, sellerCode, customerCode string) ([]Advance, error)
	ListBySourceBatch(ctx context.Context, batchID uuid.UUID) ([]Advance, error)
	Create(ctx context.Context, advance *Advance) error
	Save(ctx context.Context, advance *Advance) error
	SaveWithLock(ctx context.Context, advance *Advance) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	ExistsByDedupKey(ctx context.Context, sellerCode, customerCode, series, number string, issueDate time.Time) (bool, error)
	// SumAmountsByCustomer sums approved and paid advance amounts grouped
	// by customer code
	SumAmountsByCustomer(ctx context.Context) (map[string]decimal.Decimal, error)
}

// ReceiptRepository persists receipts
type ReceiptRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Receipt, error)
	// FindApprovedWithCredit returns APPROVED receipts with unallocated
	// funds for the pair, ordered by receipt date asc, then creation time asc.
	FindApprovedWithCredit(ctx context.Context, sellerCode, customerCode string) ([]Receipt, error)
	ListBySourceBatch(ctx context.Context, batchID uuid.UUID) ([]Receipt, error)
	// AnyApprovedInBatch reports whether any batch-sourced receipt has been
	// approved; such batches cannot be rolled back.
	AnyApprovedInBatch(ctx context.Context, batchID uuid.UUID) (bool, error)
	Create(ctx context.Context, receipt *Receipt) error
	Save(ctx context.Context, receipt *Receipt) error
	SaveWithLock(ctx context.Context, receipt *Receipt) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
	// SumApprovedAmountsByCustomer sums approved receipt amounts grouped by
	// customer code
	SumApprovedAmountsByCustomer(ctx context.Context) (map[string]decimal.Decimal, error)
}

// AllocationRepository persists receipt allocations
type AllocationRepository interface {
	Create(ctx context.Context, allocation *ReceiptAllocation) error
	ListByReceipt(ctx context.Context, receiptID uuid.UUID) ([]ReceiptAllocation, error)
	ListByInvoice(ctx context.Context, invoiceID uuid.UUID) ([]ReceiptAllocation, error)
	// DeleteByReceipt removes all allocation rows of a receipt; returns the
	// number of rows deleted. Used only by reversal.
	DeleteByReceipt(ctx context.Context, receiptID uuid.UUID) (int64, error)
	// ReassignInvoice moves every allocation pointing at one invoice to
	// another; returns the number of rows moved.
	ReassignInvoice(ctx context.Context, fromInvoiceID, toInvoiceID uuid.UUID) (int64, error)
	// SumByInvoice sums the allocation amounts bound to an invoice
	SumByInvoice(ctx context.Context, invoiceID uuid.UUID) (decimal.Decimal, error)
	// AnyForBatchRows reports whether any invoice, advance or receipt
	// sourced from the batch participates in an allocation.
	AnyForBatchRows(ctx context.Context, batchID uuid.UUID) (bool, error)
}
