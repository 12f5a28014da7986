package services

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dkurganov/taskflow/internal/common"
	"github.com/dkurganov/taskflow/internal/logging"
	"github.com/dkurganov/taskflow/internal/server/auth"
	"github.com/dkurganov/taskflow/internal/server/config"
	"github.com/dkurganov/taskflow/internal/server/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

// newSessionFixture wires a SessionService against in-memory fakes. The
// sqlite handle only backs transaction begin/commit; all state lives in the
// fake repositories.
func newSessionFixture(t *testing.T) (*SessionService, *fakeRepoManager, *events.Bus) {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	bus := events.NewBus(4, logger)

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.MaxFailedLogins = 3
	cfg.LockDuration = 10 * time.Minute

	repos := newFakeRepoManager()
	issuer := auth.NewTokenIssuer([]byte("test-secret"), time.Minute)
	svc := NewSessionService(db, repos, issuer, &fakeExchanger{}, bus, logger, cfg)
	return svc, repos, bus
}

func TestSessionService_RegisterAndLogin(t *testing.T) {
	svc, repos, _ := newSessionFixture(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, "alice", "alice@example.com", "s3cret")
	require.NoError(t, err)
	require.NotNil(t, res.User)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)

	// access token resolves back to the new user
	uid, err := svc.VerifyAccess(res.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, uid)

	// one live chain link
	assert.Equal(t, 1, repos.tokens.activeCount(res.User.ID))

	// duplicate email is rejected
	_, err = svc.Register(ctx, "alice2", "alice@example.com", "other")
	assert.ErrorIs(t, err, common.ErrorAlreadyExists)

	// password login works and opens a second chain
	res2, err := svc.Login(ctx, "alice@example.com", "s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, res.RefreshToken, res2.RefreshToken)
	assert.Equal(t, 2, repos.tokens.activeCount(res.User.ID))

	// wrong password
	_, err = svc.Login(ctx, "alice@example.com", "wrong")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)

	// unknown email yields the same error as a wrong password
	_, err = svc.Login(ctx, "nobody@example.com", "s3cret")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
}

func TestSessionService_AccountLockout(t *testing.T) {
	svc, repos, _ := newSessionFixture(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, "bob", "bob@example.com", "s3cret")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = svc.Login(ctx, "bob@example.com", "wrong")
		assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	}

	// locked now, even with the right password
	_, err = svc.Login(ctx, "bob@example.com", "s3cret")
	assert.ErrorIs(t, err, common.ErrAccountLocked)

	// simulate lock expiry
	past := time.Now().Add(-time.Minute)
	require.NoError(t, repos.users.LockUntil(ctx, res.User.ID, past))

	res2, err := svc.Login(ctx, "bob@example.com", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, 0, res2.User.FailedLogins)
}

func TestSessionService_RefreshRotation(t *testing.T) {
	svc, repos, _ := newSessionFixture(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, "carol", "carol@example.com", "s3cret")
	require.NoError(t, err)

	rotated, err := svc.Refresh(ctx, res.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, res.RefreshToken, rotated.RefreshToken)
	assert.Equal(t, res.User.ID, rotated.User.ID)

	// exactly one live link remains: the successor
	assert.Equal(t, 1, repos.tokens.activeCount(res.User.ID))

	// the old link is revoked and points at its successor
	old, err := repos.tokens.FindByHash(ctx, common.HashSecret(res.RefreshToken))
	require.NoError(t, err)
	assert.True(t, old.Revoked)
	require.NotNil(t, old.ReplacedBy)

	succ, err := repos.tokens.FindByID(ctx, *old.ReplacedBy)
	require.NoError(t, err)
	require.NotNil(t, succ.PredecessorID)
	assert.Equal(t, old.ID, *succ.PredecessorID)
}

func TestSessionService_RefreshReuseRevokesChain(t *testing.T) {
	svc, repos, bus := newSessionFixture(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, "dave", "dave@example.com", "s3cret")
	require.NoError(t, err)

	sub := bus.Subscribe(res.User.ID)

	// rotate twice: T0 -> T1 -> T2
	r1, err := svc.Refresh(ctx, res.RefreshToken)
	require.NoError(t, err)
	_, err = svc.Refresh(ctx, r1.RefreshToken)
	require.NoError(t, err)

	// replaying T0 kills the whole chain
	_, err = svc.Refresh(ctx, res.RefreshToken)
	assert.ErrorIs(t, err, common.ErrSessionRevoked)
	assert.Equal(t, 0, repos.tokens.activeCount(res.User.ID))

	// the live stream was force-closed
	select {
	case _, open := <-sub.Events():
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("subscription channel not closed")
	}

	// T2, though never replayed itself, is dead too
	_, err = svc.Login(ctx, "dave@example.com", "s3cret")
	require.NoError(t, err)
}

func TestSessionService_RefreshExpiredAndUnknown(t *testing.T) {
	svc, repos, _ := newSessionFixture(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, "erin", "erin@example.com", "s3cret")
	require.NoError(t, err)

	// unknown secret
	_, err = svc.Refresh(ctx, "deadbeef")
	assert.ErrorIs(t, err, common.ErrSessionExpired)

	// expire the stored link in place
	tok, err := repos.tokens.FindByHash(ctx, common.HashSecret(res.RefreshToken))
	require.NoError(t, err)
	repos.tokens.mu.Lock()
	repos.tokens.byID[tok.ID].ExpiresAt = time.Now().Add(-time.Hour)
	repos.tokens.mu.Unlock()

	_, err = svc.Refresh(ctx, res.RefreshToken)
	assert.ErrorIs(t, err, common.ErrSessionExpired)
}

func TestSessionService_Logout(t *testing.T) {
	svc, repos, bus := newSessionFixture(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, "frank", "frank@example.com", "s3cret")
	require.NoError(t, err)

	sub := bus.Subscribe(res.User.ID)

	// unknown secret is a no-op
	require.NoError(t, svc.Logout(ctx, "not-a-token"))
	assert.Equal(t, 1, repos.tokens.activeCount(res.User.ID))

	require.NoError(t, svc.Logout(ctx, res.RefreshToken))
	assert.Equal(t, 0, repos.tokens.activeCount(res.User.ID))

	_, open := <-sub.Events()
	assert.False(t, open)

	// the dead token cannot be refreshed
	_, err = svc.Refresh(ctx, res.RefreshToken)
	assert.ErrorIs(t, err, common.ErrSessionRevoked)
}

func TestSessionService_LogoutEverywhere(t *testing.T) {
	svc, repos, _ := newSessionFixture(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, "grace", "grace@example.com", "s3cret")
	require.NoError(t, err)
	_, err = svc.Login(ctx, "grace@example.com", "s3cret")
	require.NoError(t, err)
	require.Equal(t, 2, repos.tokens.activeCount(res.User.ID))

	require.NoError(t, svc.LogoutEverywhere(ctx, res.User.ID))
	assert.Equal(t, 0, repos.tokens.activeCount(res.User.ID))
}

func TestSessionService_ChangePassword(t *testing.T) {
	svc, repos, _ := newSessionFixture(t)
	ctx := context.Background()

	res, err := svc.Register(ctx, "heidi", "heidi@example.com", "oldpass")
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, res.User.ID, "wrong", "newpass")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)

	require.NoError(t, svc.ChangePassword(ctx, res.User.ID, "oldpass", "newpass"))

	// all sessions die with the old password
	assert.Equal(t, 0, repos.tokens.activeCount(res.User.ID))
	_, err = svc.Login(ctx, "heidi@example.com", "oldpass")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	_, err = svc.Login(ctx, "heidi@example.com", "newpass")
	require.NoError(t, err)
}

func TestSessionService_LoginWithGoogle(t *testing.T) {
	svc, repos, _ := newSessionFixture(t)
	ctx := context.Background()

	svc.google = &fakeExchanger{identity: &auth.ProviderIdentity{
		ProviderUserID: "google-123",
		Email:          "ivan@example.com",
	}}

	// first login provisions an account
	res, err := svc.LoginWithGoogle(ctx, "code-1")
	require.NoError(t, err)
	assert.Equal(t, "ivan", res.User.Username)
	assert.Equal(t, "google-123", res.User.GoogleID)
	assert.NotEmpty(t, res.RefreshToken)

	// second login reuses it
	res2, err := svc.LoginWithGoogle(ctx, "code-2")
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, res2.User.ID)

	// an existing password account gets linked by email
	pw, err := svc.Register(ctx, "judy", "judy@example.com", "s3cret")
	require.NoError(t, err)
	svc.google = &fakeExchanger{identity: &auth.ProviderIdentity{
		ProviderUserID: "google-456",
		Email:          "judy@example.com",
	}}
	res3, err := svc.LoginWithGoogle(ctx, "code-3")
	require.NoError(t, err)
	assert.Equal(t, pw.User.ID, res3.User.ID)

	linked, err := repos.users.GetByID(ctx, pw.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "google-456", linked.GoogleID)
}

func TestSessionService_LoginWithGoogle_ProviderError(t *testing.T) {
	svc, _, _ := newSessionFixture(t)

	svc.google = &fakeExchanger{err: common.ErrProviderUnreachable}
	_, err := svc.LoginWithGoogle(context.Background(), "code")
	assert.ErrorIs(t, err, common.ErrProviderUnreachable)
}
