package models

import "time"

// RefreshToken is one link of a rotation chain. Only the SHA-256 hash of the
// opaque secret is stored. PredecessorID and ReplacedBy are id references,
// not live pointers, so revoking a whole chain is a plain table walk.
type RefreshToken struct {
	ID            string
	UserID        string
	TokenHash     string
	IssuedAt      time.Time
	ExpiresAt     time.Time
	Revoked       bool
	PredecessorID *string
	ReplacedBy    *string
}

// Expired reports whether the token is past its expiry at the given instant.
func (t *RefreshToken) Expired(now time.Time) bool {
	return t.ExpiresAt.Before(now)
}
