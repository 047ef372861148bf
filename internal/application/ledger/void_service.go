package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ledger/backend/internal/application/period"
	"github.com/ledger/backend/internal/domain/ledger"
	"github.com/ledger/backend/internal/domain/partner"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/ledger/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// VoidService reverses receipts and invoices, restoring every side effect
// their posting had.
type VoidService struct {
	receiptRepo    ledger.ReceiptRepository
	invoiceRepo    ledger.InvoiceRepository
	advanceRepo    ledger.AdvanceRepository
	allocationRepo ledger.AllocationRepository
	customerRepo   partner.CustomerRepository
	lockService    *period.LockService
	tx             shared.TransactionManager
	audit          shared.AuditSink
	logger         *zap.Logger
}

// NewVoidService creates a new VoidService
func NewVoidService(
	receiptRepo ledger.ReceiptRepository,
	invoiceRepo ledger.InvoiceRepository,
	advanceRepo ledger.AdvanceRepository,
	allocationRepo ledger.AllocationRepository,
	customerRepo partner.CustomerRepository,
	lockService *period.LockService,
	tx shared.TransactionManager,
	audit shared.AuditSink,
	logger *zap.Logger,
) *VoidService {
	return &VoidService{
		receiptRepo:    receiptRepo,
		invoiceRepo:    invoiceRepo,
		advanceRepo:    advanceRepo,
		allocationRepo: allocationRepo,
		customerRepo:   customerRepo,
		lockService:    lockService,
		tx:             tx,
		audit:          audit,
		logger:         logger,
	}
}

// VoidReceiptRequest asks to reverse a receipt
type VoidReceiptRequest struct {
	ReceiptID       uuid.UUID
	Reason          string
	ExpectedVersion int
	Actor           shared.Actor
	OverrideReason  string
}

// VoidReceipt reverses a receipt: every allocation is unwound, restoring its
// target's outstanding and status, the allocation rows are deleted, and the
// customer's cached balance gets the receipt amount back when the receipt
// had been approved. All of it commits atomically.
func (s *VoidService) VoidReceipt(ctx context.Context, req VoidReceiptRequest) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "void", "receipt")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrReceiptID, req.ReceiptID.String())

	receipt, err := s.receiptRepo.FindByID(ctx, req.ReceiptID)
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("failed to load receipt: %w", err)
	}
	if receipt == nil {
		return shared.ErrNotFound
	}
	if receipt.Status == ledger.ReceiptStatusVoid {
		return shared.NewValidationError("ALREADY_VOID", "Receipt is already void")
	}
	if err := receipt.CheckVersion(req.ExpectedVersion); err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	gateDates := []time.Time{receipt.ReceiptDate}
	if receipt.AppliedPeriodKey != "" {
		if periodStart, err := time.Parse("2006-01", receipt.AppliedPeriodKey); err == nil {
			gateDates = append(gateDates, periodStart)
		}
	}
	if err := s.lockService.Gate(ctx, period.GateRequest{
		Dates:          gateDates,
		Actor:          req.Actor,
		OverrideReason: req.OverrideReason,
		Action:         "RECEIPT_VOID",
		EntityType:     "Receipt",
		EntityID:       receipt.ID.String(),
	}); err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	before := receiptSnapshot(receipt)
	wasApproved := receipt.Status == ledger.ReceiptStatusApproved

	err = s.tx.Transaction(ctx, func(ctx context.Context) error {
		allocations, err := s.allocationRepo.ListByReceipt(ctx, receipt.ID)
		if err != nil {
			return fmt.Errorf("failed to load allocations: %w", err)
		}
		for i := range allocations {
			if err := s.restoreTarget(ctx, &allocations[i]); err != nil {
				return err
			}
		}
		if _, err := s.allocationRepo.DeleteByReceipt(ctx, receipt.ID); err != nil {
			return fmt.Errorf("failed to delete allocations: %w", err)
		}

		if wasApproved {
			customer, err := s.customerRepo.FindByTaxCode(ctx, receipt.CustomerCode)
			if err != nil {
				return fmt.Errorf("failed to load customer: %w", err)
			}
			if customer != nil {
				customer.AdjustBalance(receipt.Amount)
				if err := s.customerRepo.SaveWithLock(ctx, customer); err != nil {
					return fmt.Errorf("failed to save customer balance: %w", err)
				}
			}
		}

		if err := receipt.Void(req.Reason); err != nil {
			return err
		}
		if err := s.receiptRepo.SaveWithLock(ctx, receipt); err != nil {
			return fmt.Errorf("failed to save receipt: %w", err)
		}
		if err := s.receiptRepo.SoftDelete(ctx, receipt.ID); err != nil {
			return fmt.Errorf("failed to soft delete receipt: %w", err)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	s.audit.Record(ctx, shared.AuditEntry{
		Action:     "RECEIPT_VOIDED",
		EntityType: "Receipt",
		EntityID:   receipt.ID.String(),
		Before:     before,
		After:      receiptSnapshot(receipt),
		ActorID:    req.Actor.ID,
		OccurredAt: time.Now().UTC(),
	})
	s.logger.Info("receipt voided",
		zap.String("receipt_id", receipt.ID.String()),
		zap.String("reason", req.Reason))
	return nil
}

// restoreTarget gives an allocation's amount back to its target and saves it
func (s *VoidService) restoreTarget(ctx context.Context, allocation *ledger.ReceiptAllocation) error {
	target := allocation.Target()
	switch target.Kind {
	case ledger.TargetKindInvoice:
		invoice, err := s.invoiceRepo.FindByID(ctx, target.ID)
		if err != nil {
			return fmt.Errorf("failed to load invoice: %w", err)
		}
		if invoice == nil {
			return shared.ErrNotFound
		}
		if err := invoice.RestoreAllocation(allocation.Amount); err != nil {
			return err
		}
		if err := s.invoiceRepo.SaveWithLock(ctx, invoice); err != nil {
			return fmt.Errorf("failed to save invoice: %w", err)
		}
	case ledger.TargetKindAdvance:
		advance, err := s.advanceRepo.FindByID(ctx, target.ID)
		if err != nil {
			return fmt.Errorf("failed to load advance: %w", err)
		}
		if advance == nil {
			return shared.ErrNotFound
		}
		if err := advance.RestoreAllocation(allocation.Amount); err != nil {
			return err
		}
		if err := s.advanceRepo.SaveWithLock(ctx, advance); err != nil {
			return fmt.Errorf("failed to save advance: %w", err)
		}
	}
	return nil
}

// VoidInvoiceRequest asks to void an invoice
type VoidInvoiceRequest struct {
	InvoiceID       uuid.UUID
	Reason          string
	ExpectedVersion int
	// Force permits voiding an invoice that already has allocations; the
	// allocations move to the replacement invoice.
	Force                bool
	ReplacementInvoiceID *uuid.UUID
	Actor                shared.Actor
}

// VoidInvoice voids an invoice. Invoices with existing allocations require
// force plus an open replacement invoice of the same pair with enough
// remaining capacity; every allocation row is repointed at the replacement.
// The customer's cached balance drops by the invoice total. Reassignment and
// voiding commit together or not at all.
func (s *VoidService) VoidInvoice(ctx context.Context, req VoidInvoiceRequest) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "void", "invoice")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrInvoiceID, req.InvoiceID.String())

	if !req.Actor.HasAnyRole(shared.RoleAdmin, shared.RoleSupervisor) {
		return shared.NewAuthorizationError("VOID_FORBIDDEN", "Only admins and supervisors may void invoices")
	}

	invoice, err := s.invoiceRepo.FindByID(ctx, req.InvoiceID)
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("failed to load invoice: %w", err)
	}
	if invoice == nil {
		return shared.ErrNotFound
	}
	if invoice.Status == ledger.InvoiceStatusVoid {
		return shared.NewValidationError("ALREADY_VOID", "Invoice is already void")
	}
	if err := invoice.CheckVersion(req.ExpectedVersion); err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	allocations, err := s.allocationRepo.ListByInvoice(ctx, invoice.ID)
	if err != nil {
		telemetry.RecordError(span, err)
		return fmt.Errorf("failed to load allocations: %w", err)
	}

	var replacement *ledger.Invoice
	if len(allocations) > 0 {
		if !req.Force || req.ReplacementInvoiceID == nil {
			return shared.NewValidationError("HAS_ALLOCATIONS",
				"Invoice has allocations; voiding requires force and a replacement invoice")
		}
		replacement, err = s.invoiceRepo.FindByID(ctx, *req.ReplacementInvoiceID)
		if err != nil {
			telemetry.RecordError(span, err)
			return fmt.Errorf("failed to load replacement invoice: %w", err)
		}
		if replacement == nil {
			return shared.ErrNotFound
		}
		if !replacement.Status.CanReceiveAllocation() {
			return shared.NewValidationError("REPLACEMENT_NOT_OPEN", "Replacement invoice is not open")
		}
		if replacement.SellerCode != invoice.SellerCode || replacement.CustomerCode != invoice.CustomerCode {
			return shared.NewValidationError("REPLACEMENT_PAIR_MISMATCH",
				"Replacement invoice must belong to the same seller and customer")
		}
	}

	before := invoiceSnapshot(invoice)

	err = s.tx.Transaction(ctx, func(ctx context.Context) error {
		if replacement != nil {
			moved := decimalSum(allocations)
			// Capacity check: existing replacement allocations plus the
			// moved ones must fit within the replacement's total.
			if err := replacement.ApplyAllocation(moved); err != nil {
				return shared.NewValidationError("REPLACEMENT_OVER_CAPACITY",
					fmt.Sprintf("Moved allocations (%s) exceed replacement capacity (%s)", moved, replacement.OutstandingAmount))
			}
			if _, err := s.allocationRepo.ReassignInvoice(ctx, invoice.ID, replacement.ID); err != nil {
				return fmt.Errorf("failed to reassign allocations: %w", err)
			}
			if err := s.invoiceRepo.SaveWithLock(ctx, replacement); err != nil {
				return fmt.Errorf("failed to save replacement invoice: %w", err)
			}
		}

		if err := invoice.Void(req.Reason); err != nil {
			return err
		}
		if err := s.invoiceRepo.SaveWithLock(ctx, invoice); err != nil {
			return fmt.Errorf("failed to save invoice: %w", err)
		}

		customer, err := s.customerRepo.FindByTaxCode(ctx, invoice.CustomerCode)
		if err != nil {
			return fmt.Errorf("failed to load customer: %w", err)
		}
		if customer != nil {
			customer.AdjustBalance(invoice.TotalAmount.Neg())
			if err := s.customerRepo.SaveWithLock(ctx, customer); err != nil {
				return fmt.Errorf("failed to save customer balance: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	s.audit.Record(ctx, shared.AuditEntry{
		Action:     "INVOICE_VOIDED",
		EntityType: "Invoice",
		EntityID:   invoice.ID.String(),
		Before:     before,
		After:      invoiceSnapshot(invoice),
		ActorID:    req.Actor.ID,
		OccurredAt: time.Now().UTC(),
	})
	s.logger.Info("invoice voided",
		zap.String("invoice_id", invoice.ID.String()),
		zap.Int("moved_allocations", len(allocations)),
		zap.String("reason", req.Reason))
	return nil
}

func decimalSum(allocations []ledger.ReceiptAllocation) decimal.Decimal {
	total := decimal.Zero
	for _, a := range allocations {
		total = total.Add(a.Amount)
	}
	return total
}

func invoiceSnapshot(invoice *ledger.Invoice) string {
	data, _ := json.Marshal(map[string]interface{}{
		"status":      invoice.Status,
		"total":       invoice.TotalAmount,
		"outstanding": invoice.OutstandingAmount,
		"version":     invoice.Version,
	})
	return string(data)
}
