package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/points-ledger/internal/config"
)

func newVerifier(t *testing.T, issuer string) *Verifier {
	t.Helper()
	v, err := NewVerifier(config.AuthConfig{JWTSecret: "test-secret", Issuer: issuer})
	require.NoError(t, err)
	return v
}

func TestNewVerifier_RequiresSecret(t *testing.T) {
	_, err := NewVerifier(config.AuthConfig{JWTSecret: "   "})
	assert.Error(t, err)
}

func TestVerify_RoundTrip(t *testing.T) {
	v := newVerifier(t, "points-ledger")

	token, err := v.Sign(" 0xABCdef ", time.Hour)
	require.NoError(t, err)

	identity, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "0xabcdef", identity)
}

func TestVerify_Rejects(t *testing.T) {
	v := newVerifier(t, "points-ledger")

	_, err := v.Verify("")
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = v.Verify("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := v.Sign("0xa", -time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other := newVerifier(t, "someone-else")
	foreign, err := other.Sign("0xa", time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken, "issuer must match")

	wrongKey, err := NewVerifier(config.AuthConfig{JWTSecret: "another-secret", Issuer: "points-ledger"})
	require.NoError(t, err)
	forged, err := wrongKey.Sign("0xa", time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "0xa",
		Issuer:  "points-ledger",
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = v.Verify(noExp)
	assert.ErrorIs(t, err, ErrInvalidToken, "expiration is required")

	blank, err := v.Sign("  ", time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(blank)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_UsesClock(t *testing.T) {
	v := newVerifier(t, "")
	token, err := v.Sign("0xa", time.Minute)
	require.NoError(t, err)

	v.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, err = v.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "abc", BearerToken("bearer   abc "))
	assert.Equal(t, "", BearerToken("Basic abc"))
	assert.Equal(t, "", BearerToken("abc"))
	assert.Equal(t, "", BearerToken(""))
}
