// Package auth implements the credential and token primitives of the
// session subsystem: JWT access tokens, argon2id password hashing, and the
// Google OAuth code exchange.
package auth

import (
	"errors"
	"time"

	"github.com/dkurganov/taskflow/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the registered claim set plus the user id subject claim.
type Claims struct {
	jwt.RegisteredClaims
	UserID    string `json:"uid"`
	TokenType string `json:"token_type"`
}

// TokenIssuer mints and verifies HS256 access tokens. The signing secret is
// loaded once at construction and never mutated afterwards; rotating it
// requires a restart and invalidates all outstanding tokens at once, since
// verification re-derives the signature every time.
type TokenIssuer struct {
	secret    []byte
	accessTTL time.Duration
}

// NewTokenIssuer builds a TokenIssuer from the configured signing secret and
// access-token lifetime.
func NewTokenIssuer(secret []byte, accessTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: secret, accessTTL: accessTTL}
}

// Issue mints a signed access token for userID and returns it together with
// its expiry instant.
func (i *TokenIssuer) Issue(userID string) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(i.accessTTL)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		UserID:    userID,
		TokenType: "access",
	})

	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Parse verifies signature and expiry and returns the user id. It performs
// no I/O: validity is a pure function of the token string and the secret.
// Expired tokens yield common.ErrTokenExpired; anything else that fails to
// verify yields common.ErrInvalidToken.
func (i *TokenIssuer) Parse(tokenString string) (string, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, common.ErrInvalidToken
		}
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", common.ErrTokenExpired
		}
		return "", common.ErrInvalidToken
	}

	if !token.Valid || claims.UserID == "" {
		return "", common.ErrInvalidToken
	}

	return claims.UserID, nil
}
