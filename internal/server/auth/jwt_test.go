package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/dkurganov/taskflow/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuer_RoundTrip(t *testing.T) {
	issuer := NewTokenIssuer([]byte("test-secret"), time.Minute)

	token, exp, err := issuer.Issue("user-1")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Minute), exp, 5*time.Second)

	userID, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestTokenIssuer_Expired(t *testing.T) {
	issuer := NewTokenIssuer([]byte("test-secret"), -time.Minute)

	token, _, err := issuer.Issue("user-1")
	require.NoError(t, err)

	_, err = issuer.Parse(token)
	assert.ErrorIs(t, err, common.ErrTokenExpired)
}

func TestTokenIssuer_WrongSecret(t *testing.T) {
	issuer := NewTokenIssuer([]byte("secret-a"), time.Minute)
	other := NewTokenIssuer([]byte("secret-b"), time.Minute)

	token, _, err := issuer.Issue("user-1")
	require.NoError(t, err)

	_, err = other.Parse(token)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestTokenIssuer_TamperedClaims(t *testing.T) {
	issuer := NewTokenIssuer([]byte("test-secret"), time.Minute)

	token, _, err := issuer.Issue("user-1")
	require.NoError(t, err)

	// Flip one byte in the payload segment; the signature check must fail.
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	payload := []byte(parts[1])
	if payload[0] == 'A' {
		payload[0] = 'B'
	} else {
		payload[0] = 'A'
	}
	tampered := parts[0] + "." + string(payload) + "." + parts[2]

	_, err = issuer.Parse(tampered)
	assert.ErrorIs(t, err, common.ErrInvalidToken)
}

func TestTokenIssuer_Malformed(t *testing.T) {
	issuer := NewTokenIssuer([]byte("test-secret"), time.Minute)

	for _, token := range []string{"", "garbage", "a.b.c"} {
		_, err := issuer.Parse(token)
		assert.ErrorIs(t, err, common.ErrInvalidToken, "token %q", token)
	}
}
