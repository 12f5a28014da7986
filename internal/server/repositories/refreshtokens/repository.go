// Package refreshtokens declares the repository contract for the rotating
// refresh-token store, the single source of truth for session state.
package refreshtokens

import (
	"context"

	"github.com/dkurganov/taskflow/internal/server/models"
)

// Repository manages refresh-token rotation chains in persistent storage.
//
// Rotation state must never be mutated around this interface: MarkRotated is
// the sole linearization point for redemption, implemented as an atomic
// conditional update on the revoked flag.
type Repository interface {
	// Create stores a new chain link.
	Create(ctx context.Context, token *models.RefreshToken) error

	// FindByHash looks a token up by the hash of its opaque secret.
	// Returns common.ErrorNotFound when absent.
	FindByHash(ctx context.Context, hash string) (*models.RefreshToken, error)

	// FindByID looks a token up by id. Returns common.ErrorNotFound when absent.
	FindByID(ctx context.Context, id string) (*models.RefreshToken, error)

	// MarkRotated atomically revokes the token and records its successor,
	// provided it has not been revoked already. The boolean reports whether
	// this call won the conditional update; false means a concurrent
	// redemption (or an earlier revocation) got there first.
	MarkRotated(ctx context.Context, id, replacedBy string) (bool, error)

	// Revoke marks one token revoked. Idempotent.
	Revoke(ctx context.Context, id string) error

	// RevokeChain revokes every link of the chain containing id, walking
	// predecessor and successor references in both directions.
	RevokeChain(ctx context.Context, id string) error

	// RevokeAllForUser revokes every token of the user, across all chains.
	// Used on password change and "log out everywhere".
	RevokeAllForUser(ctx context.Context, userID string) error
}
