package pkgresolve_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"

	"github.com/coreruntime/kernel/pkgresolve"
)

func signToken(t *testing.T, secret string, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": "ci-bot", "exp": exp.Unix()}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestParseRegistryTokenRoundTrip(t *testing.T) {
	raw := signToken(t, "s3cr3t", time.Now().Add(time.Hour))
	tok, err := pkgresolve.ParseRegistryToken(raw, "s3cr3t")
	require.NoError(t, err)
	require.Equal(t, "ci-bot", tok.Subject)
	require.False(t, tok.Expired())
	require.Equal(t, "Bearer "+raw, tok.Bearer())
}

func TestParseRegistryTokenRejectsWrongSecret(t *testing.T) {
	raw := signToken(t, "s3cr3t", time.Now().Add(time.Hour))
	_, err := pkgresolve.ParseRegistryToken(raw, "wrong")
	require.Error(t, err)
}

func TestParseRegistryTokenDetectsExpiry(t *testing.T) {
	raw := signToken(t, "s3cr3t", time.Now().Add(-time.Hour))
	tok, err := pkgresolve.ParseRegistryToken(raw, "s3cr3t")
	require.NoError(t, err)
	require.True(t, tok.Expired())
}
