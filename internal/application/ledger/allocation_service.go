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

// AllocationService posts draft receipts, binding their funds to open
// invoices and advances.
type AllocationService struct {
	receiptRepo    ledger.ReceiptRepository
	invoiceRepo    ledger.InvoiceRepository
	advanceRepo    ledger.AdvanceRepository
	allocationRepo ledger.AllocationRepository
	customerRepo   partner.CustomerRepository
	lockService    *period.LockService
	tx             shared.TransactionManager
	audit          shared.AuditSink
	notifier       shared.Notifier
	logger         *zap.Logger
}

// NewAllocationService creates a new AllocationService
func NewAllocationService(
	receiptRepo ledger.ReceiptRepository,
	invoiceRepo ledger.InvoiceRepository,
	advanceRepo ledger.AdvanceRepository,
	allocationRepo ledger.AllocationRepository,
	customerRepo partner.CustomerRepository,
	lockService *period.LockService,
	tx shared.TransactionManager,
	audit shared.AuditSink,
	notifier shared.Notifier,
	logger *zap.Logger,
) *AllocationService {
	return &AllocationService{
		receiptRepo:    receiptRepo,
		invoiceRepo:    invoiceRepo,
		advanceRepo:    advanceRepo,
		allocationRepo: allocationRepo,
		customerRepo:   customerRepo,
		lockService:    lockService,
		tx:             tx,
		audit:          audit,
		notifier:       notifier,
		logger:         logger,
	}
}

// ApproveRequest asks to post a draft receipt
type ApproveRequest struct {
	ReceiptID uuid.UUID
	// SelectedTargets switches the receipt into manual allocation; funds are
	// spent against these targets in the given order.
	SelectedTargets []ledger.TargetRef
	ExpectedVersion int
	Actor           shared.Actor
	// OverrideReason lifts a period-lock refusal; requires admin/supervisor
	OverrideReason string
}

// ApproveResult reports the outcome of posting a receipt
type ApproveResult struct {
	ReceiptID        uuid.UUID                      `json:"receipt_id"`
	AllocationStatus ledger.ReceiptAllocationStatus `json:"allocation_status"`
	AllocatedAmount  string                         `json:"allocated_amount"`
	UnallocatedLeft  string                         `json:"unallocated_left"`
	AllocationCount  int                            `json:"allocation_count"`
}

// Approve posts a draft receipt: it plans an allocation with the receipt's
// strategy, gates the implicated dates on period locks, then atomically
// creates allocation rows, updates every target and approves the receipt.
func (s *AllocationService) Approve(ctx context.Context, req ApproveRequest) (*ApproveResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "allocation", "approve")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrReceiptID, req.ReceiptID.String())

	receipt, err := s.receiptRepo.FindByID(ctx, req.ReceiptID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load receipt: %w", err)
	}
	if receipt == nil {
		return nil, shared.ErrNotFound
	}
	if !receipt.IsDraft() {
		return nil, shared.NewValidationError("INVALID_STATE",
			fmt.Sprintf("Cannot approve receipt in %s status", receipt.Status))
	}
	if err := receipt.CheckVersion(req.ExpectedVersion); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	before := receiptSnapshot(receipt)

	items, err := s.loadOpenItems(ctx, receipt.SellerCode, receipt.CustomerCode)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	strategy, err := ledger.StrategyForReceipt(receipt, req.SelectedTargets)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	plan, err := strategy.Plan(receipt.UnallocatedAmount, items)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if len(req.SelectedTargets) > 0 {
		if err := receipt.MarkTargetsSelected(); err != nil {
			return nil, err
		}
	}

	// Lock gate covers the receipt date plus the due date of every target
	// the plan touches, before any write.
	gateDates := []time.Time{receipt.ReceiptDate}
	for _, planned := range plan.Allocations {
		gateDates = append(gateDates, planned.Target.DueDate)
	}
	if err := s.lockService.Gate(ctx, period.GateRequest{
		Dates:          gateDates,
		Actor:          req.Actor,
		OverrideReason: req.OverrideReason,
		Action:         "RECEIPT_APPROVE",
		EntityType:     "Receipt",
		EntityID:       receipt.ID.String(),
	}); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	err = s.tx.Transaction(ctx, func(ctx context.Context) error {
		for _, planned := range plan.Allocations {
			allocation, err := ledger.NewReceiptAllocation(receipt.ID, planned.Target.Ref(), planned.Amount)
			if err != nil {
				return err
			}
			if err := s.allocationRepo.Create(ctx, allocation); err != nil {
				return fmt.Errorf("failed to create allocation: %w", err)
			}
			if err := s.applyToTarget(ctx, planned.Target, planned.Amount); err != nil {
				return err
			}
			if err := receipt.Consume(planned.Amount); err != nil {
				return err
			}
		}
		if err := receipt.FinalizeApproval(); err != nil {
			return err
		}
		if err := s.receiptRepo.SaveWithLock(ctx, receipt); err != nil {
			return fmt.Errorf("failed to save receipt: %w", err)
		}

		// The cached customer balance counts the full receipt amount once
		// approved, regardless of how much of it found a target.
		customer, err := s.customerRepo.FindByTaxCode(ctx, receipt.CustomerCode)
		if err != nil {
			return fmt.Errorf("failed to load customer: %w", err)
		}
		if customer != nil {
			customer.AdjustBalance(receipt.Amount.Neg())
			if err := s.customerRepo.SaveWithLock(ctx, customer); err != nil {
				return fmt.Errorf("failed to save customer balance: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.audit.Record(ctx, shared.AuditEntry{
		Action:     "RECEIPT_APPROVED",
		EntityType: "Receipt",
		EntityID:   receipt.ID.String(),
		Before:     before,
		After:      receiptSnapshot(receipt),
		ActorID:    req.Actor.ID,
		OccurredAt: time.Now().UTC(),
	})

	if receipt.AllocationStatus == ledger.AllocationStatusPartial {
		s.notifyPartial(ctx, receipt, req.Actor)
	}

	s.logger.Info("receipt approved",
		zap.String("receipt_id", receipt.ID.String()),
		zap.String("allocation_status", string(receipt.AllocationStatus)),
		zap.String("allocated", plan.TotalAllocated.String()),
		zap.Int("allocations", len(plan.Allocations)))

	return &ApproveResult{
		ReceiptID:        receipt.ID,
		AllocationStatus: receipt.AllocationStatus,
		AllocatedAmount:  plan.TotalAllocated.String(),
		UnallocatedLeft:  receipt.UnallocatedAmount.String(),
		AllocationCount:  len(plan.Allocations),
	}, nil
}

// loadOpenItems projects the pair's open invoices and advances into the
// allocation candidate list.
func (s *AllocationService) loadOpenItems(ctx context.Context, sellerCode, customerCode string) ([]ledger.OpenItem, error) {
	invoices, err := s.invoiceRepo.FindOpenBySellerCustomer(ctx, sellerCode, customerCode)
	if err != nil {
		return nil, fmt.Errorf("failed to load open invoices: %w", err)
	}
	advances, err := s.advanceRepo.FindOpenBySellerCustomer(ctx, sellerCode, customerCode)
	if err != nil {
		return nil, fmt.Errorf("failed to load open advances: %w", err)
	}
	items := make([]ledger.OpenItem, 0, len(invoices)+len(advances))
	for i := range invoices {
		items = append(items, ledger.OpenItemFromInvoice(&invoices[i]))
	}
	for i := range advances {
		items = append(items, ledger.OpenItemFromAdvance(&advances[i]))
	}
	return items, nil
}

// applyToTarget applies an allocated amount to the backing aggregate and
// saves it version-guarded.
func (s *AllocationService) applyToTarget(ctx context.Context, target ledger.OpenItem, amount decimal.Decimal) error {
	switch target.Kind {
	case ledger.TargetKindInvoice:
		invoice, err := s.invoiceRepo.FindByID(ctx, target.ID)
		if err != nil {
			return fmt.Errorf("failed to load invoice: %w", err)
		}
		if invoice == nil {
			return shared.ErrNotFound
		}
		if err := invoice.ApplyAllocation(amount); err != nil {
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
		if err := advance.ApplyAllocation(amount); err != nil {
			return err
		}
		if err := s.advanceRepo.SaveWithLock(ctx, advance); err != nil {
			return fmt.Errorf("failed to save advance: %w", err)
		}
	}
	return nil
}

func (s *AllocationService) notifyPartial(ctx context.Context, receipt *ledger.Receipt, actor shared.Actor) {
	err := s.notifier.Notify(ctx, shared.Notification{
		Recipients: []uuid.UUID{actor.ID},
		Title:      "Receipt partially allocated",
		Body:       fmt.Sprintf("Receipt %s has %s unallocated after approval", receipt.ID, receipt.UnallocatedAmount),
		Severity:   shared.SeverityWarning,
		SourceTag:  "allocation",
		Metadata: map[string]string{
			"receipt_id":  receipt.ID.String(),
			"unallocated": receipt.UnallocatedAmount.String(),
		},
	})
	if err != nil {
		s.logger.Warn("failed to send partial allocation notification",
			zap.String("receipt_id", receipt.ID.String()), zap.Error(err))
	}
}

func receiptSnapshot(receipt *ledger.Receipt) string {
	data, _ := json.Marshal(map[string]interface{}{
		"status":            receipt.Status,
		"allocation_status": receipt.AllocationStatus,
		"amount":            receipt.Amount,
		"unallocated":       receipt.UnallocatedAmount,
		"version":           receipt.Version,
	})
	return string(data)
}
