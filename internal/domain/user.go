package domain

import "github.com/google/uuid"

// Role is the authorization role issued by the auth provider
type Role string

const (
	RoleUser  Role = "user"
	RoleOwner Role = "owner"
	RoleAdmin Role = "admin"
)

// Actor is the authenticated caller of an operation
type Actor struct {
	UserID uuid.UUID
	Email  string
	Role   Role
}

// IsAdmin returns true if the actor is an administrator
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// CanManage returns true if the actor may administer resources owned by ownerID
func (a Actor) CanManage(ownerID uuid.UUID) bool {
	if a.IsAdmin() {
		return true
	}
	return a.Role == RoleOwner && a.UserID == ownerID
}
