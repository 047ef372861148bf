// Package testutil provides shared fixtures for service-level tests. The
// database helpers run against in-memory SQLite so the suite needs no
// external services.
package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/ledger/backend/internal/domain/shared"
	"github.com/ledger/backend/internal/infrastructure/persistence"
	"github.com/ledger/backend/internal/infrastructure/persistence/models"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewSQLiteDB opens a fresh in-memory database with the full schema.
// The connection pool is capped at one so every query sees the same
// in-memory store.
func NewSQLiteDB(t *testing.T) *persistence.Database {
	t.Helper()

	gormDB, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err, "failed to open sqlite")

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, gormDB.AutoMigrate(
		&models.CustomerModel{},
		&models.SellerModel{},
		&models.InvoiceModel{},
		&models.AdvanceModel{},
		&models.ReceiptModel{},
		&models.ReceiptAllocationModel{},
		&models.PeriodLockModel{},
		&models.ImportBatchModel{},
		&models.StagingRowModel{},
		&models.AuditLogModel{},
	), "failed to migrate schema")

	return persistence.NewDatabaseFromGorm(gormDB)
}

// Logger returns a no-op logger for tests
func Logger() *zap.Logger {
	return zap.NewNop()
}

// Actor builds a test actor with the given roles
func Actor(roles ...shared.Role) shared.Actor {
	return shared.Actor{ID: uuid.New(), Name: "test-actor", Roles: roles}
}

// FakeLocker is an in-process MaintenanceLocker. Hold marks a name as taken
// by someone else so contention paths can be exercised.
type FakeLocker struct {
	mu   sync.Mutex
	held map[string]bool

	// Acquired records every successful acquisition in order
	Acquired []string
}

// NewFakeLocker creates an empty FakeLocker
func NewFakeLocker() *FakeLocker {
	return &FakeLocker{held: make(map[string]bool)}
}

// Hold marks the named lock as held elsewhere
func (l *FakeLocker) Hold(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.held[name] = true
}

// TryAcquire implements shared.MaintenanceLocker
func (l *FakeLocker) TryAcquire(ctx context.Context, name string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[name] {
		return nil, false, nil
	}
	l.held[name] = true
	l.Acquired = append(l.Acquired, name)
	release := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, name)
	}
	return release, true, nil
}

var _ shared.MaintenanceLocker = (*FakeLocker)(nil)

// CaptureNotifier records notifications instead of delivering them
type CaptureNotifier struct {
	mu   sync.Mutex
	Sent []shared.Notification
}

// Notify implements shared.Notifier
func (n *CaptureNotifier) Notify(ctx context.Context, notification shared.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Sent = append(n.Sent, notification)
	return nil
}

var _ shared.Notifier = (*CaptureNotifier)(nil)
