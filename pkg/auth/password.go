package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrWeakPassword is returned for passwords shorter than eight characters.
var ErrWeakPassword = errors.New("password must be at least 8 characters")

// ValidatePassword applies the minimum password policy.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return ErrWeakPassword
	}
	return nil
}

// HashPassword returns a bcrypt hash of the password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword validates a password against a stored bcrypt hash.
func CheckPassword(password, stored string) bool {
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil
}
