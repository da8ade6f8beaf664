package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Borrower credentials gate money movement, so hashing runs above the
// bcrypt default cost.
const bcryptCost = 12

// HashPassword derives the bcrypt hash stored on the user record
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(bytes), nil
}

// CheckPassword reports whether a login attempt matches the stored hash
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
