package model

import (
	"fmt"
	"time"
)

// User is a community member account. Every user may report and claim
// items; admins may additionally act on any claim.
type User struct {
	ID           int64      `db:"id" json:"id"`
	Username     string     `db:"username" json:"username"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Role         string     `db:"role" json:"role"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	DeletedAt    *time.Time `db:"deleted_at" json:"deleted_at,omitempty"`
}

// Roles.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// RoleAtLeast checks if role meets or exceeds the minimum required role.
// Unknown roles on either side never pass.
func RoleAtLeast(role, minimum string) bool {
	levels := map[string]int{
		RoleAdmin: 2,
		RoleUser:  1,
	}
	r, okRole := levels[role]
	m, okMin := levels[minimum]
	return okRole && okMin && r >= m
}

// ValidatePassword checks a new password against the password policy.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// Actor is an authenticated caller of an engine operation: the user's
// identity plus whether they hold the admin capability.
type Actor struct {
	UserID int64
	Admin  bool
}

// Is reports whether the actor is the given user.
func (a Actor) Is(userID int64) bool {
	return a.UserID == userID
}
