package auth

import (
	"errors"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrPasswordMismatch reports a password that does not match its stored hash.
	ErrPasswordMismatch = errors.New("password does not match")
	// ErrPasswordTooShort reports a password under the configured minimum length.
	ErrPasswordTooShort = errors.New("password too short")
)

// CheckPasswordLength counts runes so multi-byte passwords are not penalized.
func CheckPasswordLength(password string, min int) error {
	if utf8.RuneCountInString(password) < min {
		return ErrPasswordTooShort
	}
	return nil
}

// HashPassword hashes a plaintext password. A cost outside bcrypt's range
// falls back to bcrypt.DefaultCost.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword returns ErrPasswordMismatch when plain does not match
// hashed, and the bcrypt error when hashed is malformed.
func ComparePassword(hashed, plain string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	return err
}
