package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-realtime/internal/apperr"
	"chat-realtime/internal/testutil"
)

const secret = "test-secret"

func sign(t *testing.T, key string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(key))
	require.NoError(t, err)
	return token
}

func TestAuthenticate(t *testing.T) {
	store := testutil.NewStore()
	store.AddUser(5, "erin")
	a := NewSessionAuthenticator(secret, store)
	ctx := context.Background()

	numeric := sign(t, secret, jwt.MapClaims{"sub": 5, "exp": time.Now().Add(time.Hour).Unix()})
	store.AddSession(numeric, 5, true, time.Now().Add(time.Hour))
	user, err := a.Authenticate(ctx, numeric)
	require.NoError(t, err)
	assert.Equal(t, 5, user.ID)
	assert.Equal(t, "erin", user.Username)

	str := sign(t, secret, jwt.MapClaims{"sub": "5"})
	store.AddSession(str, 5, true, time.Now().Add(time.Hour))
	_, err = a.Authenticate(ctx, str)
	assert.NoError(t, err)
}

func TestAuthenticateRejects(t *testing.T) {
	store := testutil.NewStore()
	store.AddUser(5, "erin")
	a := NewSessionAuthenticator(secret, store)
	ctx := context.Background()

	forged := sign(t, "other-secret", jwt.MapClaims{"sub": 5})
	store.AddSession(forged, 5, true, time.Now().Add(time.Hour))

	expiredJWT := sign(t, secret, jwt.MapClaims{"sub": 5, "exp": time.Now().Add(-time.Minute).Unix()})
	store.AddSession(expiredJWT, 5, true, time.Now().Add(time.Hour))

	revoked := sign(t, secret, jwt.MapClaims{"sub": 5, "jti": "revoked"})
	store.AddSession(revoked, 5, false, time.Now().Add(time.Hour))

	expiredSession := sign(t, secret, jwt.MapClaims{"sub": 5, "jti": "old"})
	store.AddSession(expiredSession, 5, true, time.Now().Add(-time.Hour))

	noSession := sign(t, secret, jwt.MapClaims{"sub": 5, "jti": "none"})
	noSubject := sign(t, secret, jwt.MapClaims{"name": "erin"})

	for name, token := range map[string]string{
		"empty":           "",
		"garbage":         "not-a-jwt",
		"forged":          forged,
		"expired jwt":     expiredJWT,
		"revoked":         revoked,
		"expired session": expiredSession,
		"no session":      noSession,
		"no subject":      noSubject,
	} {
		_, err := a.Authenticate(ctx, token)
		assert.True(t, apperr.Is(err, apperr.KindUnauthenticated), name)
	}
}

func TestBearerToken(t *testing.T) {
	token, ok := BearerToken("Bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", token)

	token, ok = BearerToken("bearer  xyz ")
	assert.True(t, ok)
	assert.Equal(t, "xyz", token)

	_, ok = BearerToken("Basic abc")
	assert.False(t, ok)
	_, ok = BearerToken("Bearer")
	assert.False(t, ok)
}
