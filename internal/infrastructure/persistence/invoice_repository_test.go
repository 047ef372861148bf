package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/ledger"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newMockDatabase wraps a sqlmock connection in the Database type so
// repositories can be exercised against scripted SQL.
func newMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	return NewDatabaseFromGorm(gormDB), mock
}

func mockInvoice(t *testing.T) *ledger.Invoice {
	t.Helper()
	inv, err := ledger.NewInvoice("S1", "C1", "A", "1001",
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		decimal.NewFromInt(1000))
	require.NoError(t, err)
	return inv
}

func TestGormInvoiceRepositorySaveWithLock(t *testing.T) {
	t.Run("guards the update with the loaded version", func(t *testing.T) {
		db, mock := newMockDatabase(t)
		repo := NewGormInvoiceRepository(db)
		inv := mockInvoice(t)

		mock.ExpectExec(`UPDATE "invoices" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, repo.SaveWithLock(context.Background(), inv))
		assert.Equal(t, 2, inv.Version)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no matched row surfaces as a conflict", func(t *testing.T) {
		db, mock := newMockDatabase(t)
		repo := NewGormInvoiceRepository(db)
		inv := mockInvoice(t)

		mock.ExpectExec(`UPDATE "invoices" SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.SaveWithLock(context.Background(), inv)
		require.Error(t, err)
		assert.True(t, shared.IsConflict(err))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormInvoiceRepositoryFindByID(t *testing.T) {
	t.Run("missing invoice returns nil without error", func(t *testing.T) {
		db, mock := newMockDatabase(t)
		repo := NewGormInvoiceRepository(db)

		mock.ExpectQuery(`SELECT \* FROM "invoices"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		inv, err := repo.FindByID(context.Background(), uuid.New())
		require.NoError(t, err)
		assert.Nil(t, inv)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestAdvisoryLocker(t *testing.T) {
	t.Run("acquires and releases on one connection", func(t *testing.T) {
		db, mock := newMockDatabase(t)
		locker := NewAdvisoryLocker(db)

		mock.ExpectQuery(`SELECT pg_try_advisory_lock`).
			WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
		mock.ExpectExec(`SELECT pg_advisory_unlock`).
			WillReturnResult(sqlmock.NewResult(0, 1))

		release, acquired, err := locker.TryAcquire(context.Background(), "balance_reconciliation")
		require.NoError(t, err)
		require.True(t, acquired)
		require.NotNil(t, release)
		release()
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("contention yields acquired false", func(t *testing.T) {
		db, mock := newMockDatabase(t)
		locker := NewAdvisoryLocker(db)

		mock.ExpectQuery(`SELECT pg_try_advisory_lock`).
			WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))

		release, acquired, err := locker.TryAcquire(context.Background(), "balance_reconciliation")
		require.NoError(t, err)
		assert.False(t, acquired)
		assert.Nil(t, release)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("distinct names hash to distinct keys", func(t *testing.T) {
		assert.NotEqual(t, lockKey("balance_reconciliation"), lockKey("credit_reconciliation"))
		assert.Equal(t, lockKey("balance_reconciliation"), lockKey("balance_reconciliation"))
	})
}
