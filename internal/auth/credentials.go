package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// CredentialStore hashes and verifies passwords and OTP codes. Both use
// bcrypt, so every hash carries its own fresh salt and comparison is
// handled by the primitive. Stateless and safe for concurrent use.
type CredentialStore struct {
	cost int
}

// NewCredentialStore creates a CredentialStore with the default bcrypt cost.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{cost: bcrypt.DefaultCost}
}

// HashPassword returns a salted bcrypt hash of plain. Repeated calls with
// the same plaintext produce different hashes.
func (c *CredentialStore) HashPassword(plain string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(plain), c.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

// VerifyPassword reports whether plain matches hash.
func (c *CredentialStore) VerifyPassword(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// HashOTP returns a salted bcrypt hash of the code rendered as text.
func (c *CredentialStore) HashOTP(code string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(code), c.cost)
	if err != nil {
		return "", fmt.Errorf("hash otp: %w", err)
	}
	return string(h), nil
}

// VerifyOTP reports whether code matches hash.
func (c *CredentialStore) VerifyOTP(code, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
}
