package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/ledger"
	"github.com/ledger/backend/internal/domain/partner"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/ledger/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ReceiptService manages draft receipts before they enter allocation
type ReceiptService struct {
	receiptRepo  ledger.ReceiptRepository
	customerRepo partner.CustomerRepository
	sellerRepo   partner.SellerRepository
	audit        shared.AuditSink
	logger       *zap.Logger
}

// NewReceiptService creates a new ReceiptService
func NewReceiptService(
	receiptRepo ledger.ReceiptRepository,
	customerRepo partner.CustomerRepository,
	sellerRepo partner.SellerRepository,
	audit shared.AuditSink,
	logger *zap.Logger,
) *ReceiptService {
	return &ReceiptService{
		receiptRepo:  receiptRepo,
		customerRepo: customerRepo,
		sellerRepo:   sellerRepo,
		audit:        audit,
		logger:       logger,
	}
}

// CreateReceiptRequest registers money received from a customer
type CreateReceiptRequest struct {
	SellerCode       string
	CustomerCode     string
	Amount           decimal.Decimal
	ReceiptDate      time.Time
	Mode             ledger.AllocationMode
	AppliedPeriodKey string
	Actor            shared.Actor
}

// CreateReceipt registers a draft receipt. Drafts carry no ledger effect
// until approved.
func (s *ReceiptService) CreateReceipt(ctx context.Context, req CreateReceiptRequest) (*ledger.Receipt, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "receipt", "create")
	defer span.End()

	known, err := s.sellerRepo.ExistsByCode(ctx, req.SellerCode)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to check seller: %w", err)
	}
	if !known {
		return nil, shared.NewValidationError("UNKNOWN_SELLER",
			fmt.Sprintf("Seller %s does not exist", req.SellerCode))
	}
	customer, err := s.customerRepo.FindByTaxCode(ctx, req.CustomerCode)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to check customer: %w", err)
	}
	if customer == nil {
		return nil, shared.NewValidationError("UNKNOWN_CUSTOMER",
			fmt.Sprintf("Customer %s does not exist", req.CustomerCode))
	}

	receipt, err := ledger.NewReceipt(req.SellerCode, req.CustomerCode, req.Amount, req.ReceiptDate, req.Mode)
	if err != nil {
		return nil, err
	}
	if req.AppliedPeriodKey != "" || req.Mode == ledger.AllocationModeByPeriod {
		if err := receipt.UpdateDraft(req.Amount, req.ReceiptDate, req.Mode, req.AppliedPeriodKey); err != nil {
			return nil, err
		}
	}
	if err := s.receiptRepo.Create(ctx, receipt); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to create receipt: %w", err)
	}

	telemetry.SetAttributes(span, telemetry.SpanAttrReceiptID, receipt.ID.String())
	s.audit.Record(ctx, shared.AuditEntry{
		Action:     "RECEIPT_CREATED",
		EntityType: "Receipt",
		EntityID:   receipt.ID.String(),
		After:      receiptSnapshot(receipt),
		ActorID:    req.Actor.ID,
		OccurredAt: time.Now().UTC(),
	})
	s.logger.Info("receipt created",
		zap.String("receipt_id", receipt.ID.String()),
		zap.String("seller_code", receipt.SellerCode),
		zap.String("customer_code", receipt.CustomerCode),
		zap.String("amount", receipt.Amount.String()))
	return receipt, nil
}

// UpdateDraftRequest edits a draft receipt
type UpdateDraftRequest struct {
	ReceiptID        uuid.UUID
	Amount           decimal.Decimal
	ReceiptDate      time.Time
	Mode             ledger.AllocationMode
	AppliedPeriodKey string
	ExpectedVersion  int
	Actor            shared.Actor
}

// UpdateDraft edits a receipt that has not been approved yet
func (s *ReceiptService) UpdateDraft(ctx context.Context, req UpdateDraftRequest) (*ledger.Receipt, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "receipt", "update_draft")
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
	if err := receipt.CheckVersion(req.ExpectedVersion); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	before := receiptSnapshot(receipt)
	if err := receipt.UpdateDraft(req.Amount, req.ReceiptDate, req.Mode, req.AppliedPeriodKey); err != nil {
		return nil, err
	}
	if err := s.receiptRepo.SaveWithLock(ctx, receipt); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.audit.Record(ctx, shared.AuditEntry{
		Action:     "RECEIPT_UPDATED",
		EntityType: "Receipt",
		EntityID:   receipt.ID.String(),
		Before:     before,
		After:      receiptSnapshot(receipt),
		ActorID:    req.Actor.ID,
		OccurredAt: time.Now().UTC(),
	})
	return receipt, nil
}

// GetReceipt loads one receipt with its allocations
func (s *ReceiptService) GetReceipt(ctx context.Context, id uuid.UUID) (*ledger.Receipt, error) {
	receipt, err := s.receiptRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load receipt: %w", err)
	}
	if receipt == nil {
		return nil, shared.ErrNotFound
	}
	return receipt, nil
}
