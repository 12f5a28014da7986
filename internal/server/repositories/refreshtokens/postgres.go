// Package refreshtokens provides the PostgreSQL-backed refresh-token store.
package refreshtokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dkurganov/taskflow/internal/common"
	"github.com/dkurganov/taskflow/internal/dbx"
	"github.com/dkurganov/taskflow/internal/server/models"
)

// PostgresRepository implements Repository over dbx.DBTX (satisfied by both
// *sql.DB and *sql.Tx), so redemption can run inside a caller transaction.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const tokenColumns = `id, user_id, token_hash, issued_at, expires_at, revoked, predecessor_id, replaced_by`

func (r *PostgresRepository) scanToken(row *sql.Row) (*models.RefreshToken, error) {
	t := &models.RefreshToken{}
	err := row.Scan(&t.ID, &t.UserID, &t.TokenHash, &t.IssuedAt, &t.ExpiresAt,
		&t.Revoked, &t.PredecessorID, &t.ReplacedBy)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}

// Create inserts a new chain link.
func (r *PostgresRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, token_hash, issued_at, expires_at, revoked, predecessor_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.db.ExecContext(ctx, query,
		token.ID, token.UserID, token.TokenHash, token.IssuedAt, token.ExpiresAt,
		token.Revoked, token.PredecessorID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// FindByHash returns the chain link whose secret hashes to hash.
func (r *PostgresRepository) FindByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM refresh_tokens WHERE token_hash = $1`
	return r.scanToken(r.db.QueryRowContext(ctx, query, hash))
}

// FindByID returns the chain link with the given id.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.RefreshToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM refresh_tokens WHERE id = $1`
	return r.scanToken(r.db.QueryRowContext(ctx, query, id))
}

// MarkRotated performs the compare-and-swap that makes redemption single-use:
// only a link that is still unrevoked can be rotated, and exactly one caller
// can win.
func (r *PostgresRepository) MarkRotated(ctx context.Context, id, replacedBy string) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked = TRUE, replaced_by = $2
		WHERE id = $1 AND revoked = FALSE
	`
	res, err := r.db.ExecContext(ctx, query, id, replacedBy)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

// Revoke marks one link revoked; revoking an already-revoked link is a no-op.
func (r *PostgresRepository) Revoke(ctx context.Context, id string) error {
	query := `UPDATE refresh_tokens SET revoked = TRUE WHERE id = $1 AND revoked = FALSE`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// RevokeChain walks the rotation chain through id in both directions and
// revokes every link. Chains are short (one link per redemption), so an
// iterative walk over id references is sufficient.
func (r *PostgresRepository) RevokeChain(ctx context.Context, id string) error {
	start, err := r.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := r.Revoke(ctx, start.ID); err != nil {
		return err
	}

	// Successors.
	next := start.ReplacedBy
	for next != nil {
		t, err := r.FindByID(ctx, *next)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				break
			}
			return err
		}
		if err := r.Revoke(ctx, t.ID); err != nil {
			return err
		}
		next = t.ReplacedBy
	}

	// Predecessors.
	prev := start.PredecessorID
	for prev != nil {
		t, err := r.FindByID(ctx, *prev)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				break
			}
			return err
		}
		if err := r.Revoke(ctx, t.ID); err != nil {
			return err
		}
		prev = t.PredecessorID
	}

	return nil
}

// RevokeAllForUser revokes every link the user owns, across all chains.
func (r *PostgresRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	query := `UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = $1 AND revoked = FALSE`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
