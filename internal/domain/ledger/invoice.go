package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// InvoiceStatus represents the status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusOpen    InvoiceStatus = "OPEN"    // Nothing allocated yet
	InvoiceStatusPartial InvoiceStatus = "PARTIAL" // 0 < outstanding < total
	InvoiceStatusPaid    InvoiceStatus = "PAID"    // Fully settled, outstanding = 0
	InvoiceStatusVoid    InvoiceStatus = "VOID"    // Voided, excluded from the ledger
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusOpen, InvoiceStatusPartial, InvoiceStatusPaid, InvoiceStatusVoid:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// CanReceiveAllocation returns true if receipt funds may be allocated to an
// invoice in this status
func (s InvoiceStatus) CanReceiveAllocation() bool {
	return s == InvoiceStatusOpen || s == InvoiceStatusPartial
}

// Invoice represents an invoice issued by a seller to a customer.
// Outstanding always equals total minus the sum of allocations against it,
// clamped to [0, total].
type Invoice struct {
	shared.BaseAggregateRoot
	SellerCode        string
	CustomerCode      string
	Series            string
	Number            string
	IssueDate         time.Time
	DueDate           time.Time
	TotalAmount       decimal.Decimal
	OutstandingAmount decimal.Decimal
	Status            InvoiceStatus
	SourceBatchID     *uuid.UUID
	VoidedAt          *time.Time
	VoidReason        string
}

// NewInvoice creates a new open invoice
func NewInvoice(sellerCode, customerCode, series, number string, issueDate, dueDate time.Time, total decimal.Decimal) (*Invoice, error) {
	if strings.TrimSpace(sellerCode) == "" {
		return nil, shared.NewValidationError("INVALID_SELLER_CODE", "Seller code cannot be empty")
	}
	if strings.TrimSpace(customerCode) == "" {
		return nil, shared.NewValidationError("INVALID_CUSTOMER_CODE", "Customer code cannot be empty")
	}
	if number == "" {
		return nil, shared.NewValidationError("INVALID_INVOICE_NUMBER", "Invoice number cannot be empty")
	}
	if issueDate.IsZero() {
		return nil, shared.NewValidationError("INVALID_ISSUE_DATE", "Issue date is required")
	}
	if total.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Invoice total must be positive")
	}
	if dueDate.IsZero() {
		dueDate = issueDate
	}
	return &Invoice{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		SellerCode:        sellerCode,
		CustomerCode:      customerCode,
		Series:            series,
		Number:            number,
		IssueDate:         shared.DateOnly(issueDate),
		DueDate:           shared.DateOnly(dueDate),
		TotalAmount:       total,
		OutstandingAmount: total,
		Status:            InvoiceStatusOpen,
	}, nil
}

// TagSourceBatch marks the invoice as created by an import batch
func (inv *Invoice) TagSourceBatch(batchID uuid.UUID) {
	inv.SourceBatchID = &batchID
}

// ApplyAllocation reduces outstanding by the allocated amount and recomputes
// the status from the remaining outstanding.
func (inv *Invoice) ApplyAllocation(amount decimal.Decimal) error {
	if !inv.Status.CanReceiveAllocation() {
		return shared.NewValidationError("INVALID_STATE", fmt.Sprintf("Cannot allocate to invoice in %s status", inv.Status))
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewValidationError("INVALID_AMOUNT", "Allocation amount must be positive")
	}
	if amount.GreaterThan(inv.OutstandingAmount) {
		return shared.NewValidationError("EXCEEDS_OUTSTANDING", fmt.Sprintf("Allocation %s exceeds outstanding %s", amount, inv.OutstandingAmount))
	}
	inv.OutstandingAmount = inv.OutstandingAmount.Sub(amount)
	inv.recomputeStatus()
	inv.touch()
	return nil
}

// RestoreAllocation gives back a previously allocated amount, clamping
// outstanding to the total, and recomputes the status. Reversal never
// restores a stored prior status; the status is always derived from the
// restored amount.
func (inv *Invoice) RestoreAllocation(amount decimal.Decimal) error {
	if inv.Status == InvoiceStatusVoid {
		return shared.NewValidationError("INVALID_STATE", "Cannot restore allocation on a void invoice")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewValidationError("INVALID_AMOUNT", "Restore amount must be positive")
	}
	restored := inv.OutstandingAmount.Add(amount)
	if restored.GreaterThan(inv.TotalAmount) {
		restored = inv.TotalAmount
	}
	inv.OutstandingAmount = restored
	inv.recomputeStatus()
	inv.touch()
	return nil
}

// Void voids the invoice, zeroing its outstanding
func (inv *Invoice) Void(reason string) error {
	if inv.Status == InvoiceStatusVoid {
		return shared.NewValidationError("ALREADY_VOID", "Invoice is already void")
	}
	if strings.TrimSpace(reason) == "" {
		return shared.NewValidationError("INVALID_REASON", "Void reason is required")
	}
	now := time.Now().UTC()
	inv.Status = InvoiceStatusVoid
	inv.OutstandingAmount = decimal.Zero
	inv.VoidedAt = &now
	inv.VoidReason = reason
	inv.touch()
	return nil
}

// DedupKey returns the composite natural key used for import deduplication
func (inv *Invoice) DedupKey() string {
	return DedupKey(inv.SellerCode, inv.CustomerCode, inv.Series, inv.Number, inv.IssueDate)
}

// IsFullySettled returns true when nothing remains outstanding
func (inv *Invoice) IsFullySettled() bool {
	return inv.OutstandingAmount.IsZero()
}

func (inv *Invoice) recomputeStatus() {
	switch {
	case inv.OutstandingAmount.IsZero():
		inv.Status = InvoiceStatusPaid
	case inv.OutstandingAmount.Equal(inv.TotalAmount):
		inv.Status = InvoiceStatusOpen
	default:
		inv.Status = InvoiceStatusPartial
	}
}

func (inv *Invoice) touch() {
	inv.UpdatedAt = time.Now().UTC()
}

// DedupKey builds the composite natural key (seller, customer, series,
// number, date) used for intra-file and cross-database deduplication.
func DedupKey(sellerCode, customerCode, series, number string, date time.Time) string {
	return strings.Join([]string{
		sellerCode, customerCode, series, number, shared.DateOnly(date).Format("2006-01-02"),
	}, "|")
}
