// Package common defines shared constants and sentinel errors used across
// the Taskflow server layers. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound      = errors.New("not found")
	ErrorAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Credential errors.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountLocked      = errors.New("account locked")

	// Access token errors (local parse failure, never retried).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Session lifecycle errors. ErrSessionRevoked is security-relevant:
	// it is returned on refresh-token reuse and triggers chain revocation
	// plus forced disconnect of the user's live streams.
	ErrSessionExpired = errors.New("session expired")
	ErrSessionRevoked = errors.New("session revoked")

	// OAuth provider errors. ErrProviderUnreachable is transient and safe
	// to retry; the others are not.
	ErrProviderUnreachable = errors.New("oauth provider unreachable")
	ErrInvalidProvider     = errors.New("oauth provider rejected the request")
	ErrIdentityNotLinked   = errors.New("provider identity not linked to an account")
)
