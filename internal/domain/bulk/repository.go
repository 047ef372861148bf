package bulk

import (
	"context"

	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/shared"
)

// BatchRepository persists import batches
type BatchRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*ImportBatch, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*ImportBatch, error)
	Create(ctx context.Context, batch *ImportBatch) error
	Save(ctx context.Context, batch *ImportBatch) error
	SaveWithLock(ctx context.Context, batch *ImportBatch) error
	List(ctx context.Context, filter shared.Filter) (*shared.Paginated[ImportBatch], error)
}

// StagingRowRepository persists staged rows
type StagingRowRepository interface {
	CreateAll(ctx context.Context, rows []*StagingRow) error
	ListByBatch(ctx context.Context, batchID uuid.UUID, filter shared.Filter) (*shared.Paginated[StagingRow], error)
	// ListCommittableByBatch returns every row a commit would insert,
	// ordered by line number.
	ListCommittableByBatch(ctx context.Context, batchID uuid.UUID) ([]StagingRow, error)
	CountByStatus(ctx context.Context, batchID uuid.UUID) (map[RowValidationStatus]int, error)
	DeleteByBatch(ctx context.Context, batchID uuid.UUID) error
}
