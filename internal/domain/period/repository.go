package period

import (
	"context"

	"github.com/google/uuid"
)

// LockRepository persists period locks
type LockRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Lock, error)
	FindByTypeAndKey(ctx context.Context, lockType LockType, key string) (*Lock, error)
	// FindMatching returns the locks whose typed keys appear in the given set
	FindMatching(ctx context.Context, keys []Key) ([]Lock, error)
	FindAll(ctx context.Context) ([]Lock, error)
	Create(ctx context.Context, lock *Lock) error
	// Delete hard-deletes the lock; unlocking is not a soft state transition
	Delete(ctx context.Context, id uuid.UUID) error
}
