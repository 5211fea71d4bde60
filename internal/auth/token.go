// Package auth validates pre-provisioned custom tokens. A custom token
// is an HS256 JWT minted by the operator; its subject becomes the
// session identity. Anonymous sign-in never touches this package.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ebk1996/services/internal/domain"
)

var (
	ErrMissingToken     = errors.New("missing custom token")
	ErrInvalidToken     = errors.New("invalid custom token")
	ErrExpiredToken     = errors.New("custom token has expired")
	ErrInvalidSignature = errors.New("invalid custom token signature")
	ErrInvalidClaims    = errors.New("invalid custom token claims")
)

// Claims are the custom-token claims the board understands.
type Claims struct {
	UserID string `json:"sub"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Validator checks custom tokens against the shared HMAC secret.
type Validator struct {
	secretKey []byte
	issuer    string
}

// NewValidator creates a validator. issuer is optional; when set, tokens
// from any other issuer are rejected.
func NewValidator(secret, issuer string) (*Validator, error) {
	if secret == "" {
		return nil, errors.New("secret key required")
	}
	return &Validator{secretKey: []byte(secret), issuer: issuer}, nil
}

// Validate parses and verifies a custom token and derives the session
// identity from its claims.
func (v *Validator) Validate(tokenString string) (*domain.Identity, error) {
	tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Method)
		}
		return v.secretKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrSignatureInvalid) {
			return nil, ErrInvalidSignature
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	if v.issuer != "" && claims.Issuer != v.issuer {
		return nil, fmt.Errorf("%w: invalid issuer", ErrInvalidClaims)
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidClaims)
	}

	name := claims.Name
	if name == "" {
		name = claims.Email
	}

	return &domain.Identity{
		UID:         claims.UserID,
		Provider:    domain.ProviderToken,
		DisplayName: name,
	}, nil
}

// Mint signs a custom token for a principal. Operators use it to
// pre-provision tokens; tests use it to exercise token sign-in.
func Mint(secret, issuer, uid, name string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("secret key required")
	}
	if uid == "" {
		return "", errors.New("uid required")
	}

	now := time.Now()
	claims := &Claims{
		UserID: uid,
		Name:   name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   uid,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
