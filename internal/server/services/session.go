// Package services contains the server-side business logic. This file
// implements SessionService, the session state machine: login (password and
// Google OAuth), refresh-token rotation with reuse detection, and logout
// with forced stream disconnect.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dkurganov/taskflow/internal/common"
	"github.com/dkurganov/taskflow/internal/dbx"
	"github.com/dkurganov/taskflow/internal/logging"
	"github.com/dkurganov/taskflow/internal/server/auth"
	"github.com/dkurganov/taskflow/internal/server/config"
	"github.com/dkurganov/taskflow/internal/server/events"
	"github.com/dkurganov/taskflow/internal/server/models"
	"github.com/dkurganov/taskflow/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

// refreshSecretSize is the number of random bytes in a refresh secret
// (the issued string is twice as long in hex form).
const refreshSecretSize = 32

// errRotationLost signals a lost compare-and-swap during redemption; it never
// leaves this package. A lost CAS means someone else redeemed the same link
// concurrently, which is treated exactly like reuse of a rotated-out token.
var errRotationLost = errors.New("rotation cas lost")

// AuthResult bundles the credentials returned by login and refresh.
type AuthResult struct {
	AccessToken     string
	AccessExpiresAt time.Time
	RefreshToken    string
	User            *models.User
}

// OAuthExchanger is the slice of the Google client the session service needs.
type OAuthExchanger interface {
	ExchangeCode(ctx context.Context, code string) (*auth.ProviderIdentity, error)
}

// SessionService orchestrates the credential verifier, token issuer,
// refresh-token store and event bus. The refresh-token store is the single
// source of truth for rotation state; no other code path mints tokens.
type SessionService struct {
	db              *sql.DB
	repos           repomanager.RepositoryManager
	issuer          *auth.TokenIssuer
	google          OAuthExchanger
	bus             *events.Bus
	logger          logging.Logger
	refreshTTL      time.Duration
	maxFailedLogins int
	lockDuration    time.Duration
}

// NewSessionService constructs a SessionService from its collaborators and
// server config.
func NewSessionService(db *sql.DB, repos repomanager.RepositoryManager, issuer *auth.TokenIssuer,
	google OAuthExchanger, bus *events.Bus, logger logging.Logger, cfg *config.Config) *SessionService {
	return &SessionService{
		db:              db,
		repos:           repos,
		issuer:          issuer,
		google:          google,
		bus:             bus,
		logger:          logger.With("module", "session_service"),
		refreshTTL:      cfg.RefreshTokenValidityDuration,
		maxFailedLogins: cfg.MaxFailedLogins,
		lockDuration:    cfg.LockDuration,
	}
}

// Register creates an account with the given credentials and opens a fresh
// session for it.
func (s *SessionService) Register(ctx context.Context, username, email, password string) (*AuthResult, error) {
	repo := s.repos.Users(s.db)

	if _, err := repo.GetByEmail(ctx, email); err == nil {
		return nil, common.ErrorAlreadyExists
	} else if !errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrorInternal
	}

	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return nil, common.ErrorInternal
	}

	user, err := repo.Create(ctx, &models.User{
		ID:                  uuid.New().String(),
		Username:            username,
		Email:               email,
		PasswordHash:        passwordHash,
		NotificationEnabled: true,
	})
	if err != nil {
		return nil, fmt.Errorf("error creating user: %w", err)
	}

	return s.openSession(ctx, user)
}

// Login verifies the password and, on success, opens a fresh rotation chain.
// Repeated failures lock the account for the configured duration.
func (s *SessionService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	repo := s.repos.Users(s.db)

	user, err := repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidCredentials
		}
		return nil, common.ErrorInternal
	}

	now := time.Now()
	if user.LockedUntil != nil {
		if now.Before(*user.LockedUntil) {
			return nil, common.ErrAccountLocked
		}
		// Lock period elapsed; clear the counter before verifying.
		if err := repo.ResetFailedLogins(ctx, user.ID); err != nil {
			return nil, common.ErrorInternal
		}
		user.FailedLogins = 0
	}

	if user.PasswordHash == "" || !auth.VerifyPassword(password, user.PasswordHash) {
		if err := s.recordFailedLogin(ctx, user.ID); err != nil {
			s.logger.Error(ctx, "recording failed login", "error", err.Error())
		}
		return nil, common.ErrInvalidCredentials
	}

	if user.FailedLogins > 0 {
		if err := repo.ResetFailedLogins(ctx, user.ID); err != nil {
			return nil, common.ErrorInternal
		}
	}

	return s.openSession(ctx, user)
}

// LoginWithGoogle redeems an OAuth authorization code, finds or creates the
// matching account and opens a fresh session. Provider errors pass through
// untouched so callers can distinguish retryable ones.
func (s *SessionService) LoginWithGoogle(ctx context.Context, code string) (*AuthResult, error) {
	identity, err := s.google.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	repo := s.repos.Users(s.db)

	user, err := repo.GetByEmail(ctx, identity.Email)
	switch {
	case err == nil:
		if user.GoogleID == "" {
			if err := repo.SetGoogleID(ctx, user.ID, identity.ProviderUserID); err != nil {
				return nil, common.ErrorInternal
			}
			user.GoogleID = identity.ProviderUserID
		}
	case errors.Is(err, common.ErrorNotFound):
		username := identity.Email
		if at := strings.IndexByte(username, '@'); at > 0 {
			username = username[:at]
		}
		user, err = repo.Create(ctx, &models.User{
			ID:                  uuid.New().String(),
			Username:            username,
			Email:               identity.Email,
			GoogleID:            identity.ProviderUserID,
			NotificationEnabled: true,
		})
		if err != nil {
			return nil, fmt.Errorf("error creating user: %w", err)
		}
	default:
		return nil, common.ErrorInternal
	}

	return s.openSession(ctx, user)
}

// Refresh redeems a refresh secret, rotating its chain link inside one
// transaction. Reuse of an already-rotated link revokes the whole chain and
// force-closes the user's live streams.
func (s *SessionService) Refresh(ctx context.Context, refreshSecret string) (*AuthResult, error) {
	repo := s.repos.RefreshTokens(s.db)

	token, err := repo.FindByHash(ctx, common.HashSecret(refreshSecret))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrSessionExpired
		}
		return nil, fmt.Errorf("error searching refresh token: %w", err)
	}

	if token.Revoked {
		return nil, s.handleReuse(ctx, token)
	}
	if token.Expired(time.Now()) {
		return nil, common.ErrSessionExpired
	}

	var result *AuthResult
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repoTx := s.repos.RefreshTokens(tx)

		successor, secret, err := s.buildRefreshToken(token.UserID, &token.ID)
		if err != nil {
			return err
		}
		if err := repoTx.Create(ctx, successor); err != nil {
			return fmt.Errorf("error creating refresh token: %w", err)
		}

		won, err := repoTx.MarkRotated(ctx, token.ID, successor.ID)
		if err != nil {
			return err
		}
		if !won {
			return errRotationLost
		}

		access, exp, err := s.issuer.Issue(token.UserID)
		if err != nil {
			return common.ErrorInternal
		}
		result = &AuthResult{AccessToken: access, AccessExpiresAt: exp, RefreshToken: secret}
		return nil
	})
	if err != nil {
		if errors.Is(err, errRotationLost) {
			return nil, s.handleReuse(ctx, token)
		}
		return nil, err
	}

	user, err := s.repos.Users(s.db).GetByID(ctx, token.UserID)
	if err != nil {
		return nil, common.ErrorInternal
	}
	result.User = user
	return result, nil
}

// Logout revokes the chain of the presented refresh secret and closes the
// user's live streams. An unknown secret is a no-op.
func (s *SessionService) Logout(ctx context.Context, refreshSecret string) error {
	repo := s.repos.RefreshTokens(s.db)

	token, err := repo.FindByHash(ctx, common.HashSecret(refreshSecret))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil
		}
		return fmt.Errorf("error searching refresh token: %w", err)
	}

	if err := repo.RevokeChain(ctx, token.ID); err != nil {
		return fmt.Errorf("error revoking chain: %w", err)
	}
	s.bus.CloseAllForUser(token.UserID)
	return nil
}

// LogoutEverywhere revokes every session of the user and closes all live
// streams. Used for "log out on all devices" and after a password change.
func (s *SessionService) LogoutEverywhere(ctx context.Context, userID string) error {
	if err := s.repos.RefreshTokens(s.db).RevokeAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("error revoking user tokens: %w", err)
	}
	s.bus.CloseAllForUser(userID)
	return nil
}

// ChangePassword verifies the old password, stores the new hash and then
// invalidates every session of the user.
func (s *SessionService) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	repo := s.repos.Users(s.db)

	user, err := repo.GetByID(ctx, userID)
	if err != nil {
		return common.ErrorInternal
	}
	if user.PasswordHash == "" || !auth.VerifyPassword(oldPassword, user.PasswordHash) {
		return common.ErrInvalidCredentials
	}

	newHash, err := auth.HashPassword(newPassword)
	if err != nil {
		return common.ErrorInternal
	}
	if err := repo.SetPasswordHash(ctx, userID, newHash); err != nil {
		return common.ErrorInternal
	}

	return s.LogoutEverywhere(ctx, userID)
}

// VerifyAccess parses a bearer access token and returns the user id. Used by
// the HTTP middleware and the stream gateway.
func (s *SessionService) VerifyAccess(token string) (string, error) {
	return s.issuer.Parse(token)
}

// --- helpers below ---

// handleReuse treats redemption of a revoked link as a compromise signal:
// the whole chain dies and every live stream of the user is dropped.
func (s *SessionService) handleReuse(ctx context.Context, token *models.RefreshToken) error {
	s.logger.Warn(ctx, "refresh token reuse detected, revoking chain", "user_id", token.UserID)
	if err := s.repos.RefreshTokens(s.db).RevokeChain(ctx, token.ID); err != nil {
		s.logger.Error(ctx, "revoking chain after reuse", "error", err.Error())
	}
	s.bus.CloseAllForUser(token.UserID)
	return common.ErrSessionRevoked
}

// openSession mints a fresh rotation chain (no predecessor) plus an access
// token for the user.
func (s *SessionService) openSession(ctx context.Context, user *models.User) (*AuthResult, error) {
	var result *AuthResult
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		token, secret, err := s.buildRefreshToken(user.ID, nil)
		if err != nil {
			return err
		}
		if err := s.repos.RefreshTokens(tx).Create(ctx, token); err != nil {
			return fmt.Errorf("error creating refresh token: %w", err)
		}

		access, exp, err := s.issuer.Issue(user.ID)
		if err != nil {
			return common.ErrorInternal
		}
		result = &AuthResult{AccessToken: access, AccessExpiresAt: exp, RefreshToken: secret, User: user}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// buildRefreshToken generates a fresh secret and the chain link storing only
// its hash.
func (s *SessionService) buildRefreshToken(userID string, predecessor *string) (*models.RefreshToken, string, error) {
	secret, err := common.MakeRandHexString(refreshSecretSize)
	if err != nil {
		return nil, "", common.ErrorInternal
	}
	now := time.Now()
	return &models.RefreshToken{
		ID:            uuid.New().String(),
		UserID:        userID,
		TokenHash:     common.HashSecret(secret),
		IssuedAt:      now,
		ExpiresAt:     now.Add(s.refreshTTL),
		PredecessorID: predecessor,
	}, secret, nil
}

func (s *SessionService) recordFailedLogin(ctx context.Context, userID string) error {
	repo := s.repos.Users(s.db)
	n, err := repo.IncrementFailedLogins(ctx, userID)
	if err != nil {
		return err
	}
	if s.maxFailedLogins > 0 && n >= s.maxFailedLogins {
		return repo.LockUntil(ctx, userID, time.Now().Add(s.lockDuration))
	}
	return nil
}
