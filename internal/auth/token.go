package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/veriqo/server/internal/model"
)

// SessionTTL is the default lifetime of an issued token.
const SessionTTL = 24 * time.Hour

// Claims is the signed payload of a session or reset token.
type Claims struct {
	UserID    uuid.UUID  `json:"id"`
	FirstName string     `json:"firstName"`
	LastName  string     `json:"lastName"`
	Email     string     `json:"email,omitempty"`
	Phone     string     `json:"phone"`
	Role      model.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer creates and verifies signed, time-bound claim tokens.
// The signing key is supplied per call: session tokens use the global
// secret, password-reset tokens use the user's current password hash so
// that a password change invalidates every outstanding reset token
// without a revocation list.
type TokenIssuer struct{}

// NewTokenIssuer creates a TokenIssuer.
func NewTokenIssuer() *TokenIssuer {
	return &TokenIssuer{}
}

// ClaimsFor builds the claim set for a user.
func ClaimsFor(u model.User) Claims {
	return Claims{
		UserID:    u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.EmailOrEmpty(),
		Phone:     u.Phone,
		Role:      u.Role,
	}
}

// Issue signs claims with key, embedding an expiry at now+ttl.
func (t *TokenIssuer) Issue(claims Claims, key []byte, ttl time.Duration) (string, error) {
	if ttl == 0 {
		ttl = SessionTTL
	}
	now := time.Now()
	claims.RegisteredClaims = jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &claims)
	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token against key. Signature mismatch,
// malformed structure, and embedded expiry all fail.
func (t *TokenIssuer) Verify(tokenString string, key []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
