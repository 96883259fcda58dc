// Package jwt implements token issuance and verification with HS256 JWTs.
package jwt

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/statusdeck/statusdeck/internal/domain"
	"github.com/statusdeck/statusdeck/internal/identity"
)

// Config contains JWT authenticator settings.
type Config struct {
	SecretKey           string
	AccessTokenDuration time.Duration
}

// Authenticator issues and verifies HS256 access tokens carrying the
// subject id and role claims.
type Authenticator struct {
	secret   []byte
	duration time.Duration
}

// NewAuthenticator creates a JWT authenticator.
func NewAuthenticator(cfg Config) *Authenticator {
	duration := cfg.AccessTokenDuration
	if duration == 0 {
		duration = 24 * time.Hour
	}
	return &Authenticator{
		secret:   []byte(cfg.SecretKey),
		duration: duration,
	}
}

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// GenerateToken issues an access token for the user.
func (a *Authenticator) GenerateToken(_ context.Context, user *domain.User) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.duration)),
		},
	})

	signed, err := token.SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateAccessToken verifies the token signature and expiry and
// returns the subject id and role.
func (a *Authenticator) ValidateAccessToken(_ context.Context, tokenString string) (string, domain.Role, error) {
	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return "", "", identity.ErrInvalidToken
	}

	role := domain.Role(c.Role)
	if c.Subject == "" || !role.IsValid() {
		return "", "", identity.ErrInvalidToken
	}
	return c.Subject, role, nil
}
