package ledger

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/period"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// PlannedAllocation is one planned binding of receipt funds to an open item
type PlannedAllocation struct {
	Target OpenItem
	Amount decimal.Decimal
}

// AllocationPlan is the complete result of an allocation strategy run
type AllocationPlan struct {
	Allocations     []PlannedAllocation
	TotalAllocated  decimal.Decimal
	RemainingFunds  decimal.Decimal
	FullySpent      bool
	TargetsSettled  []uuid.UUID // Targets the plan pays off completely
	TargetsPartial  []uuid.UUID // Targets the plan pays only partially
}

// AllocationStrategy plans how receipt funds are spread over open items.
// Planning is pure: no aggregate is mutated until the plan is applied.
type AllocationStrategy interface {
	Mode() AllocationMode
	Plan(funds decimal.Decimal, items []OpenItem) (*AllocationPlan, error)
}

// sortFIFO orders items by due date ascending, then creation time ascending,
// then id lexicographically so the order is fully deterministic.
func sortFIFO(items []OpenItem) []OpenItem {
	sorted := make([]OpenItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].DueDate.Equal(sorted[j].DueDate) {
			return sorted[i].DueDate.Before(sorted[j].DueDate)
		}
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID.String() < sorted[j].ID.String()
	})
	return sorted
}

// greedyConsume spends funds over the given (already ordered) items
func greedyConsume(funds decimal.Decimal, items []OpenItem) *AllocationPlan {
	plan := &AllocationPlan{
		Allocations:    make([]PlannedAllocation, 0),
		TotalAllocated: decimal.Zero,
		RemainingFunds: funds,
		TargetsSettled: make([]uuid.UUID, 0),
		TargetsPartial: make([]uuid.UUID, 0),
	}
	for _, item := range items {
		if plan.RemainingFunds.IsZero() {
			break
		}
		if item.OutstandingAmount.LessThanOrEqual(decimal.Zero) {
			continue
		}
		amount := decimal.Min(plan.RemainingFunds, item.OutstandingAmount)
		plan.Allocations = append(plan.Allocations, PlannedAllocation{Target: item, Amount: amount})
		plan.TotalAllocated = plan.TotalAllocated.Add(amount)
		plan.RemainingFunds = plan.RemainingFunds.Sub(amount)
		if amount.GreaterThanOrEqual(item.OutstandingAmount) {
			plan.TargetsSettled = append(plan.TargetsSettled, item.ID)
		} else {
			plan.TargetsPartial = append(plan.TargetsPartial, item.ID)
		}
	}
	plan.FullySpent = plan.RemainingFunds.IsZero()
	return plan
}

// FIFOStrategy spends funds against the oldest-due open items first
type FIFOStrategy struct{}

// NewFIFOStrategy creates a FIFO allocation strategy
func NewFIFOStrategy() *FIFOStrategy {
	return &FIFOStrategy{}
}

// Mode returns the allocation mode this strategy implements
func (s *FIFOStrategy) Mode() AllocationMode {
	return AllocationModeFIFO
}

// Plan allocates funds over items in FIFO order
func (s *FIFOStrategy) Plan(funds decimal.Decimal, items []OpenItem) (*AllocationPlan, error) {
	if funds.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Allocation funds must be positive")
	}
	return greedyConsume(funds, sortFIFO(items)), nil
}

// PeriodStrategy restricts candidates to items due within an applied period,
// then behaves exactly like FIFO.
type PeriodStrategy struct {
	periodKey string // month key, "2006-01"
}

// NewPeriodStrategy creates a BY_PERIOD allocation strategy
func NewPeriodStrategy(periodKey string) (*PeriodStrategy, error) {
	if periodKey == "" {
		return nil, shared.NewValidationError("INVALID_APPLIED_PERIOD", "BY_PERIOD allocation requires an applied period")
	}
	return &PeriodStrategy{periodKey: periodKey}, nil
}

// Mode returns the allocation mode this strategy implements
func (s *PeriodStrategy) Mode() AllocationMode {
	return AllocationModeByPeriod
}

// Plan allocates funds over the period's items in FIFO order
func (s *PeriodStrategy) Plan(funds decimal.Decimal, items []OpenItem) (*AllocationPlan, error) {
	if funds.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Allocation funds must be positive")
	}
	inPeriod := make([]OpenItem, 0, len(items))
	for _, item := range items {
		if period.MonthKey(item.DueDate) == s.periodKey {
			inPeriod = append(inPeriod, item)
		}
	}
	return greedyConsume(funds, sortFIFO(inPeriod)), nil
}

// ManualStrategy allocates the full remaining outstanding of each
// caller-specified target, in the caller's order, capped by remaining funds.
type ManualStrategy struct {
	targets []TargetRef
}

// NewManualStrategy creates a MANUAL allocation strategy
func NewManualStrategy(targets []TargetRef) (*ManualStrategy, error) {
	if len(targets) == 0 {
		return nil, shared.NewValidationError("INVALID_TARGETS", "Manual allocation requires at least one target")
	}
	return &ManualStrategy{targets: targets}, nil
}

// Mode returns the allocation mode this strategy implements
func (s *ManualStrategy) Mode() AllocationMode {
	return AllocationModeManual
}

// Plan validates every selected target and spends funds in selection order.
// Unlike FIFO, an unknown or already-settled target is an error rather than
// something to silently skip: the caller chose it explicitly.
func (s *ManualStrategy) Plan(funds decimal.Decimal, items []OpenItem) (*AllocationPlan, error) {
	if funds.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewValidationError("INVALID_AMOUNT", "Allocation funds must be positive")
	}
	itemsByID := make(map[uuid.UUID]OpenItem, len(items))
	for _, item := range items {
		itemsByID[item.ID] = item
	}

	ordered := make([]OpenItem, 0, len(s.targets))
	for _, target := range s.targets {
		item, ok := itemsByID[target.ID]
		if !ok || item.Kind != target.Kind {
			return nil, shared.NewValidationError("TARGET_NOT_OPEN",
				fmt.Sprintf("Selected %s %s is not an open item for this receipt", target.Kind, target.ID))
		}
		if item.OutstandingAmount.LessThanOrEqual(decimal.Zero) {
			return nil, shared.NewValidationError("TARGET_SETTLED",
				fmt.Sprintf("Selected %s %s is already fully satisfied", target.Kind, target.ID))
		}
		ordered = append(ordered, item)
	}
	return greedyConsume(funds, ordered), nil
}

// StrategyForReceipt builds the allocation strategy matching the receipt's
// mode. Manual targets switch the receipt into MANUAL mode regardless of the
// stored mode.
func StrategyForReceipt(r *Receipt, manualTargets []TargetRef) (AllocationStrategy, error) {
	if len(manualTargets) > 0 {
		return NewManualStrategy(manualTargets)
	}
	switch r.Mode {
	case AllocationModeFIFO, AllocationModeManual:
		// A manual-mode receipt approved without explicit targets falls
		// back to FIFO rather than failing.
		return NewFIFOStrategy(), nil
	case AllocationModeByPeriod:
		return NewPeriodStrategy(r.AppliedPeriodKey)
	default:
		return nil, shared.NewValidationError("INVALID_ALLOCATION_MODE", fmt.Sprintf("Invalid allocation mode: %s", r.Mode))
	}
}
