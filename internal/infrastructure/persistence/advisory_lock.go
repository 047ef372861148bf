package persistence

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/ledger/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// AdvisoryLocker implements storage-level mutual exclusion with PostgreSQL
// session advisory locks. Each acquired lock pins a dedicated connection;
// the lock lives exactly as long as that connection session.
type AdvisoryLocker struct {
	db *gorm.DB
}

// NewAdvisoryLocker creates a new AdvisoryLocker on the given connection pool
func NewAdvisoryLocker(db *Database) *AdvisoryLocker {
	return &AdvisoryLocker{db: db.DB}
}

// lockKey hashes a lock name into the bigint key space pg_advisory_lock uses
func lockKey(name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return int64(h.Sum64())
}

// TryAcquire attempts to take the named lock without blocking. On success it
// returns a release function that must be called exactly once; on contention
// it returns acquired=false and no release function.
func (l *AdvisoryLocker) TryAcquire(ctx context.Context, name string) (func(), bool, error) {
	sqlDB, err := l.db.DB()
	if err != nil {
		return nil, false, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// The lock is session scoped, so it must live on one pinned connection
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to obtain connection for advisory lock: %w", err)
	}

	key := lockKey(name)
	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", key).Scan(&acquired); err != nil {
		_ = conn.Close()
		return nil, false, fmt.Errorf("failed to acquire advisory lock %q: %w", name, err)
	}
	if !acquired {
		_ = conn.Close()
		return nil, false, nil
	}

	release := func() {
		// Unlock on the same connection, then return it to the pool. A
		// broken connection releases the lock on close anyway.
		_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", key)
		_ = conn.Close()
	}
	return release, true, nil
}

var _ shared.MaintenanceLocker = (*AdvisoryLocker)(nil)
