package domain

import "time"

// User is the platform account model. Support staff and requesters share the
// same table and are distinguished by role.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
