package model

import "time"

// Role grants access to administrative transitions.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// User represents a registered customer or operator.
type User struct {
	ID           int64
	Login        string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

// Actor is the authenticated caller of a state transition.
type Actor struct {
	UserID int64
	Role   Role
}

// SystemActor performs automatic transitions such as expiry.
var SystemActor = Actor{Role: RoleAdmin}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// CanAccess reports whether the actor may act on a resource owned by ownerID.
func (a Actor) CanAccess(ownerID int64) bool {
	return a.IsAdmin() || (a.UserID != 0 && a.UserID == ownerID)
}
