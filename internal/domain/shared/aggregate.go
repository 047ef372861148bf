package shared

// AggregateRoot is the base interface for all aggregate roots
type AggregateRoot interface {
	Entity
	GetVersion() int
	IncrementVersion()
}

// BaseAggregateRoot provides common fields for aggregate roots.
// Version backs the optimistic-concurrency discipline: it increments by
// exactly one on every successful mutation, and a writer must present the
// version it last observed or the write is refused with a Conflict.
type BaseAggregateRoot struct {
	BaseEntity
	Version int `gorm:"not null;default:1"`
}

// GetVersion returns the aggregate version for optimistic locking
func (a *BaseAggregateRoot) GetVersion() int {
	return a.Version
}

// IncrementVersion increments the version number
func (a *BaseAggregateRoot) IncrementVersion() {
	a.Version++
}

// CheckVersion refuses the mutation when the caller's last observed version
// does not match the stored one.
func (a *BaseAggregateRoot) CheckVersion(expected int) error {
	if a.Version != expected {
		return ErrConcurrencyConflict
	}
	return nil
}

// NewBaseAggregateRoot creates a new base aggregate root
func NewBaseAggregateRoot() BaseAggregateRoot {
	return BaseAggregateRoot{
		BaseEntity: NewBaseEntity(),
		Version:    1,
	}
}
