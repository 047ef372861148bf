package shared

import "github.com/google/uuid"

// Role represents a role held by the acting user
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleSupervisor Role = "SUPERVISOR"
	RoleAccountant Role = "ACCOUNTANT"
	RoleClerk      Role = "CLERK"
)

// IsValid checks if the role is a known role
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleSupervisor, RoleAccountant, RoleClerk:
		return true
	}
	return false
}

// String returns the string representation of the role
func (r Role) String() string {
	return string(r)
}

// Actor is the identity context for an operation: who is acting and with
// which roles. It is supplied by the identity collaborator and passed
// explicitly into every authorization-sensitive operation.
type Actor struct {
	ID    uuid.UUID
	Name  string
	Roles []Role
}

// HasRole reports whether the actor holds the given role
func (a Actor) HasRole(role Role) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the actor holds at least one of the given roles
func (a Actor) HasAnyRole(roles ...Role) bool {
	for _, role := range roles {
		if a.HasRole(role) {
			return true
		}
	}
	return false
}

// CanOverridePeriodLock reports whether the actor may override period locks.
// Only admins and supervisors qualify.
func (a Actor) CanOverridePeriodLock() bool {
	return a.HasAnyRole(RoleAdmin, RoleSupervisor)
}
