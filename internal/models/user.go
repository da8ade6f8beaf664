package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a platform account. Borrowers, lenders, and admins all
// authenticate through the same table; the role decides what they may do.
type User struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         string    `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// UserRole represents available user roles
type UserRole string

const (
	RoleAdmin    UserRole = "admin"
	RoleBorrower UserRole = "borrower"
	RoleLender   UserRole = "lender"
)

// IsAdmin returns true if user has admin role
func (u *User) IsAdmin() bool {
	return u.Role == string(RoleAdmin)
}

// IsBorrower returns true if user has borrower role
func (u *User) IsBorrower() bool {
	return u.Role == string(RoleBorrower)
}

// MonthsOnPlatform returns whole months since account creation, used for the
// tenure bonus in trust-loop scoring.
func (u *User) MonthsOnPlatform(now time.Time) int {
	if now.Before(u.CreatedAt) {
		return 0
	}
	months := 0
	cursor := u.CreatedAt
	for {
		next := cursor.AddDate(0, 1, 0)
		if next.After(now) {
			break
		}
		cursor = next
		months++
	}
	return months
}
