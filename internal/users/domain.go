package users

import "time"

// User is an account on the platform. IsAdmin grants the engine-level
// short-circuit; IsStaff marks site moderators.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash string
	IsAdmin      bool
	IsStaff      bool
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
