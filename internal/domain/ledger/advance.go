package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// AdvanceStatus represents the status of an advance
type AdvanceStatus string

const (
	AdvanceStatusApproved AdvanceStatus = "APPROVED" // Open, allocation target
	AdvanceStatusPaid     AdvanceStatus = "PAID"     // Fully settled
	AdvanceStatusVoid     AdvanceStatus = "VOID"     // Voided
)

// IsValid checks if the status is a valid AdvanceStatus
func (s AdvanceStatus) IsValid() bool {
	switch s {
	case AdvanceStatusApproved, AdvanceStatusPaid, AdvanceStatusVoid:
		return true
	}
	return false
}

// String returns the string representation of AdvanceStatus
func (s AdvanceStatus) String() string {
	return string(s)
}

// CanReceiveAllocation returns true if receipt funds may be allocated to an
// advance in this status
func (s AdvanceStatus) CanReceiveAllocation() bool {
	return s == AdvanceStatusApproved
}

// Advance represents an advance billing document. It is treated as an open
// item like an invoice for allocation purposes, but its status set has no
// PARTIAL member: a partially settled advance stays APPROVED.
type Advance struct {
	shared.BaseAggregateRoot
	SellerCode        string
	CustomerCode      string
	Series            string
	Number            string
	IssueDate         time.Time
	DueDate           time.Time
	TotalAmount       decimal.Decimal
	OutstandingAmount decimal.Decimal
	Status            AdvanceStatus
	SourceBatchID     *uuid.UUID
	VoidedAt          *time.Time
	VoidReason        string
}

// NewAdvance creates a new approved advance
func NewAdvance(sellerCode, customerCode, series, number string, issueDate, dueDate time.Time, total decimal.Decimal) (*Advance, error) {
	if strings.TrimSpace(sellerCode) == "" {
		return nil, shared.NewValidationError("INVALID_SELLER_CODE", "Seller code cannot be empty")
	}
	if strings.TrimSpace(customerCode) == "" {
		return nil, shared.NewValidationError("INVALID_CUSTOMER_CODE", "Customer code cannot be empty")
	}
	if number == "" {
		return nil, shared.NewValidationError("INVALID_ADVANCE_NUMBER", "Advance number cannot be empty")
	}
	if issueDate.IsZero() {
		return nil, shared.NewValidationError("INVALID_ISSUE_DATE", "Issue date is required")
	}
	if total.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Advance total must be positive")
	}
	if dueDate.IsZero() {
		dueDate = issueDate
	}
	return &Advance{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		SellerCode:        sellerCode,
		CustomerCode:      customerCode,
		Series:            series,
		Number:            number,
		IssueDate:         shared.DateOnly(issueDate),
		DueDate:           shared.DateOnly(dueDate),
		TotalAmount:       total,
		OutstandingAmount: total,
		Status:            AdvanceStatusApproved,
	}, nil
}

// TagSourceBatch marks the advance as created by an import batch
func (a *Advance) TagSourceBatch(batchID uuid.UUID) {
	a.SourceBatchID = &batchID
}

// ApplyAllocation reduces outstanding by the allocated amount
func (a *Advance) ApplyAllocation(amount decimal.Decimal) error {
	if !a.Status.CanReceiveAllocation() {
		return shared.NewValidationError("INVALID_STATE", fmt.Sprintf("Cannot allocate to advance in %s status", a.Status))
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewValidationError("INVALID_AMOUNT", "Allocation amount must be positive")
	}
	if amount.GreaterThan(a.OutstandingAmount) {
		return shared.NewValidationError("EXCEEDS_OUTSTANDING", fmt.Sprintf("Allocation %s exceeds outstanding %s", amount, a.OutstandingAmount))
	}
	a.OutstandingAmount = a.OutstandingAmount.Sub(amount)
	a.recomputeStatus()
	a.touch()
	return nil
}

// RestoreAllocation gives back a previously allocated amount, clamped to the
// total, and recomputes the status from the restored amount.
func (a *Advance) RestoreAllocation(amount decimal.Decimal) error {
	if a.Status == AdvanceStatusVoid {
		return shared.NewValidationError("INVALID_STATE", "Cannot restore allocation on a void advance")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return shared.NewValidationError("INVALID_AMOUNT", "Restore amount must be positive")
	}
	restored := a.OutstandingAmount.Add(amount)
	if restored.GreaterThan(a.TotalAmount) {
		restored = a.TotalAmount
	}
	a.OutstandingAmount = restored
	a.recomputeStatus()
	a.touch()
	return nil
}

// Void voids the advance, zeroing its outstanding
func (a *Advance) Void(reason string) error {
	if a.Status == AdvanceStatusVoid {
		return shared.NewValidationError("ALREADY_VOID", "Advance is already void")
	}
	if strings.TrimSpace(reason) == "" {
		return shared.NewValidationError("INVALID_REASON", "Void reason is required")
	}
	now := time.Now().UTC()
	a.Status = AdvanceStatusVoid
	a.OutstandingAmount = decimal.Zero
	a.VoidedAt = &now
	a.VoidReason = reason
	a.touch()
	return nil
}

// DedupKey returns the composite natural key used for import deduplication
func (a *Advance) DedupKey() string {
	return DedupKey(a.SellerCode, a.CustomerCode, a.Series, a.Number, a.IssueDate)
}

// IsFullySettled returns true when nothing remains outstanding
func (a *Advance) IsFullySettled() bool {
	return a.OutstandingAmount.IsZero()
}

func (a *Advance) recomputeStatus() {
	if a.Status == AdvanceStatusVoid {
		return
	}
	if a.OutstandingAmount.IsZero() {
		a.Status = AdvanceStatusPaid
	} else {
		a.Status = AdvanceStatusApproved
	}
}

func (a *Advance) touch() {
	a.UpdatedAt = time.Now().UTC()
}
