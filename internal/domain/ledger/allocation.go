package ledger

import (
	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// TargetKind identifies the kind of open item an allocation points at
type TargetKind string

const (
	TargetKindInvoice TargetKind = "INVOICE"
	TargetKindAdvance TargetKind = "ADVANCE"
)

// IsValid checks if the target kind is valid
func (k TargetKind) IsValid() bool {
	return k == TargetKindInvoice || k == TargetKindAdvance
}

// String returns the string representation of TargetKind
func (k TargetKind) String() string {
	return string(k)
}

// TargetRef identifies one allocation target
type TargetRef struct {
	Kind TargetKind
	ID   uuid.UUID
}

// ReceiptAllocation binds part of a receipt's funds to exactly one open item:
// an invoice or an advance, never both. Rows are immutable once created and
// are deleted only when the receipt is reversed.
type ReceiptAllocation struct {
	shared.BaseEntity
	ReceiptID uuid.UUID
	InvoiceID *uuid.UUID
	AdvanceID *uuid.UUID
	Amount    decimal.Decimal
}

// NewReceiptAllocation creates an allocation for the given target
func NewReceiptAllocation(receiptID uuid.UUID, target TargetRef, amount decimal.Decimal) (*ReceiptAllocation, error) {
	if receiptID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_RECEIPT", "Receipt ID cannot be empty")
	}
	if !target.Kind.IsValid() {
		return nil, shared.NewValidationError("INVALID_TARGET_KIND", "Allocation target must be an invoice or an advance")
	}
	if target.ID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_TARGET", "Allocation target ID cannot be empty")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Allocation amount must be positive")
	}
	alloc := &ReceiptAllocation{
		BaseEntity: shared.NewBaseEntity(),
		ReceiptID:  receiptID,
		Amount:     amount,
	}
	id := target.ID
	switch target.Kind {
	case TargetKindInvoice:
		alloc.InvoiceID = &id
	case TargetKindAdvance:
		alloc.AdvanceID = &id
	}
	return alloc, nil
}

// Target returns the single target this allocation points at
func (a *ReceiptAllocation) Target() TargetRef {
	if a.InvoiceID != nil {
		return TargetRef{Kind: TargetKindInvoice, ID: *a.InvoiceID}
	}
	return TargetRef{Kind: TargetKindAdvance, ID: *a.AdvanceID}
}
