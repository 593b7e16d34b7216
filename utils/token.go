// utils/token.go
package utils

import (
	"errors"
	"fmt"
	"time"

	"creator-portal/models"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the payload the identity provider signs for a portal session.
type SessionClaims struct {
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

var ErrInvalidSession = errors.New("invalid session token")

// IssueSessionToken signs an HS256 session token for identity.
func IssueSessionToken(secret string, identity models.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		Email:   identity.Email,
		Name:    identity.Name,
		Picture: identity.PhotoURL,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseSessionToken verifies raw and returns the identity it carries.
func ParseSessionToken(secret, raw string) (models.Identity, error) {
	var claims SessionClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return models.Identity{}, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if !token.Valid || claims.Subject == "" {
		return models.Identity{}, ErrInvalidSession
	}
	return models.Identity{
		UserID:   claims.Subject,
		Email:    claims.Email,
		Name:     claims.Name,
		PhotoURL: claims.Picture,
	}, nil
}
