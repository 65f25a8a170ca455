package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

const (
	otpExpiry = 5 * time.Minute
	otpMin    = 100000
	otpMax    = 999999

	// devBypassCode is always accepted when dev mode is on. Gated behind
	// the explicit DEV_MODE flag; off by default.
	devBypassCode = "123456"
)

// IssuedOTP is a freshly generated one-time code together with its
// expiry and hashed-at-rest representation. Only Hash and ExpiresAt are
// persisted; Code goes out-of-band to the user and is never stored.
type IssuedOTP struct {
	Code      string
	Hash      string
	ExpiresAt time.Time
}

// OTPLifecycle generates and validates one-time codes.
type OTPLifecycle struct {
	creds   *CredentialStore
	devMode bool
}

// NewOTPLifecycle creates an OTPLifecycle. devMode enables the fixed
// bypass code and must stay off in production.
func NewOTPLifecycle(creds *CredentialStore, devMode bool) *OTPLifecycle {
	return &OTPLifecycle{creds: creds, devMode: devMode}
}

// Generate returns a uniformly random 6-digit code, its bcrypt hash, and
// an expiry 5 minutes from now. The caller persists {Hash, ExpiresAt}
// onto the user record, replacing any prior values.
func (o *OTPLifecycle) Generate() (IssuedOTP, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(otpMax-otpMin+1))
	if err != nil {
		return IssuedOTP{}, fmt.Errorf("generate otp: %w", err)
	}
	code := fmt.Sprintf("%d", otpMin+n.Int64())

	hash, err := o.creds.HashOTP(code)
	if err != nil {
		return IssuedOTP{}, err
	}

	return IssuedOTP{
		Code:      code,
		Hash:      hash,
		ExpiresAt: time.Now().Add(otpExpiry),
	}, nil
}

// Validate reports whether submitted matches the stored hash and the
// stored expiry has not passed. In dev mode the fixed bypass code is
// accepted regardless of the stored values.
func (o *OTPLifecycle) Validate(submitted string, storedHash *string, storedExpiresAt *time.Time) bool {
	if o.devMode && submitted == devBypassCode {
		return true
	}
	if storedHash == nil || storedExpiresAt == nil {
		return false
	}
	if time.Now().After(*storedExpiresAt) {
		return false
	}
	return o.creds.VerifyOTP(submitted, *storedHash)
}
