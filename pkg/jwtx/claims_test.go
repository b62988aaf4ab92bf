package jwtx_test

import (
	"testing"
	"time"

	"github.com/edumall/edumall/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestNewAccessClaims(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c := jwtx.NewAccessClaims("user-1", "sess-1", "9876543210", 15*time.Minute, testIssuer, []string{"storefront"}, now)

	require.Equal(t, testIssuer, c.Issuer)
	require.Equal(t, "user-1", c.Subject)
	require.Equal(t, now, c.IssuedAt.Time)
	require.Equal(t, now.Add(15*time.Minute), c.ExpiresAt.Time)
	require.Equal(t, jwt.ClaimStrings{"storefront"}, c.Audience)
	require.NotEqual(t, c.ID, jwtx.NewJTI())
}

func TestClaimsValidate(t *testing.T) {
	c := jwtx.NewAccessClaims("u", "s", "", time.Minute, testIssuer, []string{"a", "b"}, time.Now())

	require.NoError(t, c.ValidateIssuer(""))
	require.NoError(t, c.ValidateIssuer(testIssuer))
	require.ErrorIs(t, c.ValidateIssuer("x"), jwtx.ErrIssuer)

	require.NoError(t, c.ValidateAudience(nil))
	require.NoError(t, c.ValidateAudience([]string{"z", "b"}))
	require.ErrorIs(t, c.ValidateAudience([]string{"z"}), jwtx.ErrAudience)

	require.NoError(t, c.ValidateExpiry())
	c.NotBefore = jwt.NewNumericDate(time.Now().Add(time.Hour))
	require.ErrorIs(t, c.ValidateExpiry(), jwtx.ErrNotYetValid)
	c.NotBefore = nil
	c.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Second))
	require.ErrorIs(t, c.ValidateExpiry(), jwtx.ErrExpired)
}
