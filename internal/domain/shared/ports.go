package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AuditEntry is a single audit record. Before/After hold JSON snapshots of
// the entity state around the mutation; either may be empty.
type AuditEntry struct {
	Action     string
	EntityType string
	EntityID   string
	Before     string
	After      string
	ActorID    uuid.UUID
	OccurredAt time.Time
}

// AuditSink records audit entries. Implementations are fire-and-forget:
// a failing sink must not fail the business operation, but the call itself
// must not be skipped on any success path.
type AuditSink interface {
	Record(ctx context.Context, entry AuditEntry)
}

// NotificationSeverity classifies a notification
type NotificationSeverity string

const (
	SeverityInfo    NotificationSeverity = "INFO"
	SeverityWarning NotificationSeverity = "WARNING"
	SeverityError   NotificationSeverity = "ERROR"
)

// Notification is an outbound message to one or more users
type Notification struct {
	Recipients []uuid.UUID
	Title      string
	Body       string
	Severity   NotificationSeverity
	SourceTag  string
	Metadata   map[string]string
}

// Notifier delivers notifications to users, honouring each recipient's
// receive-notifications preference.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotificationPreferences answers whether a user wants to receive
// notifications. Held by the identity collaborator.
type NotificationPreferences interface {
	WantsNotifications(ctx context.Context, userID uuid.UUID) (bool, error)
}

// TransactionManager runs a function inside a single storage transaction.
// All writes issued through repositories within fn become visible atomically;
// any error (or context cancellation) rolls everything back.
type TransactionManager interface {
	Transaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// MaintenanceLocker provides coarse, storage-level mutual exclusion for
// maintenance jobs that must not run twice concurrently across service
// instances. TryAcquire is non-blocking: when the lock is held elsewhere it
// returns acquired=false and the caller exits quietly.
type MaintenanceLocker interface {
	TryAcquire(ctx context.Context, name string) (release func(), acquired bool, err error)
}
