package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ReceiptStatus represents the status of a receipt
type ReceiptStatus string

const (
	ReceiptStatusDraft    ReceiptStatus = "DRAFT"    // Editable, not yet posted
	ReceiptStatusApproved ReceiptStatus = "APPROVED" // Posted, funds allocated
	ReceiptStatusVoid     ReceiptStatus = "VOID"     // Reversed
)

// IsValid checks if the status is a valid ReceiptStatus
func (s ReceiptStatus) IsValid() bool {
	switch s {
	case ReceiptStatusDraft, ReceiptStatusApproved, ReceiptStatusVoid:
		return true
	}
	return false
}

// String returns the string representation of ReceiptStatus
func (s ReceiptStatus) String() string {
	return string(s)
}

// AllocationMode determines how receipt funds are matched to open items
type AllocationMode string

const (
	AllocationModeFIFO     AllocationMode = "FIFO"      // Oldest due open items first
	AllocationModeByPeriod AllocationMode = "BY_PERIOD" // FIFO within a caller-given period
	AllocationModeManual   AllocationMode = "MANUAL"    // Caller-ordered explicit targets
)

// IsValid checks if the allocation mode is valid
func (m AllocationMode) IsValid() bool {
	switch m {
	case AllocationModeFIFO, AllocationModeByPeriod, AllocationModeManual:
		return true
	}
	return false
}

// String returns the string representation of AllocationMode
func (m AllocationMode) String() string {
	return string(m)
}

// ReceiptAllocationStatus tracks how far the receipt's funds have been applied
type ReceiptAllocationStatus string

const (
	AllocationStatusUnallocated ReceiptAllocationStatus = "UNALLOCATED" // No allocations yet
	AllocationStatusSelected    ReceiptAllocationStatus = "SELECTED"    // Manual targets chosen, not yet posted
	AllocationStatusPartial     ReceiptAllocationStatus = "PARTIAL"     // Some funds remain unallocated
	AllocationStatusAllocated   ReceiptAllocationStatus = "ALLOCATED"   // All funds applied
	AllocationStatusVoid        ReceiptAllocationStatus = "VOID"        // Receipt reversed
)

// IsValid checks if the allocation status is valid
func (s ReceiptAllocationStatus) IsValid() bool {
	switch s {
	case AllocationStatusUnallocated, AllocationStatusSelected, AllocationStatusPartial,
		AllocationStatusAllocated, AllocationStatusVoid:
		return true
	}
	return false
}

// Receipt represents money received from a customer. Unallocated always
// equals amount minus the sum of allocations from it, clamped to [0, amount].
type Receipt struct {
	shared.BaseAggregateRoot
	SellerCode        string
	CustomerCode      string
	Amount            decimal.Decimal
	UnallocatedAmount decimal.Decimal
	Status            ReceiptStatus
	Mode              AllocationMode
	AllocationStatus  ReceiptAllocationStatus
	ReceiptDate       time.Time
	// AppliedPeriodKey restricts BY_PERIOD allocation to open items whose
	// due date falls within this month key ("2006-01"). Empty otherwise.
	AppliedPeriodKey string
	SourceBatchID    *uuid.UUID
	VoidedAt         *time.Time
	VoidReason       string
}

// NewReceipt creates a new draft receipt
func NewReceipt(sellerCode, customerCode string, amount decimal.Decimal, receiptDate time.Time, mode AllocationMode) (*Receipt, error) {
	if strings.TrimSpace(sellerCode) == "" {
		return nil, shared.NewValidationError("INVALID_SELLER_CODE", "Seller code cannot be empty")
	}
	if strings.TrimSpace(customerCode) == "" {
		return nil, shared.NewValidationError("INVALID_CUSTOMER_CODE", "Customer code cannot be empty")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Receipt amount must be positive")
	}
	if receiptDate.IsZero() {
		return nil, shared.NewValidationError("INVALID_RECEIPT_DATE", "Receipt date is required")
	}
	if !mode.IsValid() {
		return nil, shared.NewValidationError("INVALID_ALLOCATION_MODE", fmt.Sprintf("Invalid allocation mode: %s", mode))
	}
	return &Receipt{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		SellerCode:        sellerCode,
		CustomerCode:      customerCode,
		Amount:            amount,
		UnallocatedAmount: amount,
		Status:            ReceiptStatusDraft,
		Mode:              mode,
		AllocationStatus:  AllocationStatusUnallocated,
		ReceiptDate:       shared.DateOnly(receiptDate),
	}, nil
}

// TagSourceBatch marks the receipt as created by an import batch
func (r *Receipt) TagSourceBatch(batchID uuid.UUID) {
	r.SourceBatchID = &batchID
}

// IsDraft returns true if the receipt is still editable
func (r *Receipt) IsDraft() bool {
	return r.Status == ReceiptStatusDraft
}

// UpdateDraft edits a draft receipt. Approved and void receipts are frozen.
func (r *Receipt) UpdateDraft(amount decimal.Decimal, receiptDate time.Time, mode AllocationMode, appliedPeriodKey string) error {
	if !r.IsDraft() {
		return shared.NewValidationError("INVALID_STATE", fmt.Sprintf("Cannot edit receipt in %s status", r.Status))
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewValidationError("INVALID_AMOUNT", "Receipt amount must be positive")
	}
	if receiptDate.IsZero() {
		return shared.NewValidationError("INVALID_RECEIPT_DATE", "Receipt date is required")
	}
	if !mode.IsValid() {
		return shared.NewValidationError("INVALID_ALLOCATION_MODE", fmt.Sprintf("Invalid allocation mode: %s", mode))
	}
	if mode == AllocationModeByPeriod && appliedPeriodKey == "" {
		return shared.NewValidationError("INVALID_APPLIED_PERIOD", "BY_PERIOD mode requires an applied period")
	}
	r.Amount = amount
	r.UnallocatedAmount = amount
	r.ReceiptDate = shared.DateOnly(receiptDate)
	r.Mode = mode
	r.AppliedPeriodKey = appliedPeriodKey
	r.touch()
	return nil
}

// MarkTargetsSelected records that manual targets were chosen for a draft
func (r *Receipt) MarkTargetsSelected() error {
	if !r.IsDraft() {
		return shared.NewValidationError("INVALID_STATE", "Targets can only be selected on a draft receipt")
	}
	r.Mode = AllocationModeManual
	r.AllocationStatus = AllocationStatusSelected
	r.touch()
	return nil
}

// Consume applies part of the receipt's funds to a target
func (r *Receipt) Consume(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewValidationError("INVALID_AMOUNT", "Consumed amount must be positive")
	}
	if amount.GreaterThan(r.UnallocatedAmount) {
		return shared.NewValidationError("EXCEEDS_UNALLOCATED", fmt.Sprintf("Consumed %s exceeds unallocated %s", amount, r.UnallocatedAmount))
	}
	r.UnallocatedAmount = r.UnallocatedAmount.Sub(amount)
	return nil
}

// FinalizeApproval posts the receipt. The remainder is never silently
// discarded: a non-zero unallocated amount leaves the receipt PARTIAL.
func (r *Receipt) FinalizeApproval() error {
	if !r.IsDraft() {
		return shared.NewValidationError("INVALID_STATE", fmt.Sprintf("Cannot approve receipt in %s status", r.Status))
	}
	r.Status = ReceiptStatusApproved
	if r.UnallocatedAmount.IsZero() {
		r.AllocationStatus = AllocationStatusAllocated
	} else {
		r.AllocationStatus = AllocationStatusPartial
	}
	r.touch()
	return nil
}

// RestoreCredit gives back allocated funds to an approved receipt. The
// credit reconciliation job and reversal bookkeeping use this.
func (r *Receipt) RestoreCredit(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewValidationError("INVALID_AMOUNT", "Restored amount must be positive")
	}
	restored := r.UnallocatedAmount.Add(amount)
	if restored.GreaterThan(r.Amount) {
		restored = r.Amount
	}
	r.UnallocatedAmount = restored
	return nil
}

// RecomputeAllocationStatus rederives the allocation status of an approved
// receipt from its unallocated amount.
func (r *Receipt) RecomputeAllocationStatus() {
	if r.Status != ReceiptStatusApproved {
		return
	}
	if r.UnallocatedAmount.IsZero() {
		r.AllocationStatus = AllocationStatusAllocated
	} else if r.UnallocatedAmount.Equal(r.Amount) {
		r.AllocationStatus = AllocationStatusUnallocated
	} else {
		r.AllocationStatus = AllocationStatusPartial
	}
}

// HasIdleCredit reports whether an approved receipt still has unallocated funds
func (r *Receipt) HasIdleCredit() bool {
	return r.Status == ReceiptStatusApproved && r.UnallocatedAmount.GreaterThan(decimal.Zero)
}

// Void reverses the receipt. The caller is responsible for restoring the
// targets of its allocations first; afterwards the receipt carries no funds.
func (r *Receipt) Void(reason string) error {
	if r.Status == ReceiptStatusVoid {
		return shared.NewValidationError("ALREADY_VOID", "Receipt is already void")
	}
	if strings.TrimSpace(reason) == "" {
		return shared.NewValidationError("INVALID_REASON", "Void reason is required")
	}
	now := time.Now().UTC()
	r.Status = ReceiptStatusVoid
	r.AllocationStatus = AllocationStatusVoid
	r.UnallocatedAmount = decimal.Zero
	r.VoidedAt = &now
	r.VoidReason = reason
	r.touch()
	return nil
}

func (r *Receipt) touch() {
	r.UpdatedAt = time.Now().UTC()
}
