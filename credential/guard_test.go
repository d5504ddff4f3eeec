package credential

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/devicelink/errors"
	"github.com/c360/devicelink/pkg/clock"
)

var guardNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func mintToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestGuard_Validate(t *testing.T) {
	guard := NewGuard(clock.Fake(guardNow))

	rawSegment := func(s string) string {
		return base64.RawURLEncoding.EncodeToString([]byte(s))
	}

	tests := []struct {
		name     string
		token    string
		valid    bool
		reason   Reason
		sentinel error
	}{
		{
			name:     "empty",
			token:    "",
			reason:   ReasonMissing,
			sentinel: errors.ErrNoIdentity,
		},
		{
			name:     "two segments",
			token:    "abc.def",
			reason:   ReasonMalformed,
			sentinel: errors.ErrMalformedToken,
		},
		{
			name:     "four segments",
			token:    "a.b.c.d",
			reason:   ReasonMalformed,
			sentinel: errors.ErrMalformedToken,
		},
		{
			name:     "claims not base64",
			token:    "a.!!!.c",
			reason:   ReasonDecode,
			sentinel: errors.ErrTokenDecode,
		},
		{
			name:     "claims not json",
			token:    "a." + rawSegment("not json") + ".c",
			reason:   ReasonDecode,
			sentinel: errors.ErrTokenDecode,
		},
		{
			name:     "claims not an object",
			token:    "a." + rawSegment("null") + ".c",
			reason:   ReasonDecode,
			sentinel: errors.ErrTokenDecode,
		},
		{
			name:     "exp wrong type",
			token:    "a." + rawSegment(`{"exp":"soon"}`) + ".c",
			reason:   ReasonDecode,
			sentinel: errors.ErrTokenDecode,
		},
		{
			name:     "expired",
			token:    mintToken(t, jwt.MapClaims{"exp": guardNow.Add(-time.Minute).Unix()}),
			reason:   ReasonExpired,
			sentinel: errors.ErrTokenExpired,
		},
		{
			name:     "expires exactly now",
			token:    mintToken(t, jwt.MapClaims{"exp": guardNow.Unix()}),
			reason:   ReasonExpired,
			sentinel: errors.ErrTokenExpired,
		},
		{
			name:  "valid future exp",
			token: mintToken(t, jwt.MapClaims{"exp": guardNow.Add(time.Hour).Unix(), "user_id": "u1"}),
			valid: true,
		},
		{
			name:  "no exp claim",
			token: mintToken(t, jwt.MapClaims{"user_id": "u1"}),
			valid: true,
		},
		{
			name:  "signature is not checked",
			token: "x." + rawSegment(`{"user_id":"u2"}`) + ".not-a-signature",
			valid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := guard.Validate(tt.token)

			assert.Equal(t, tt.valid, result.Valid)
			assert.Equal(t, tt.reason, result.Reason)
			if tt.sentinel != nil {
				require.Error(t, result.Err)
				assert.ErrorIs(t, result.Err, tt.sentinel)
				assert.True(t, errors.IsCredential(result.Err))
			} else {
				assert.NoError(t, result.Err)
			}
		})
	}
}

func TestGuard_Claims(t *testing.T) {
	guard := NewGuard(clock.Fake(guardNow))
	exp := guardNow.Add(2 * time.Hour)

	result := guard.Validate(mintToken(t, jwt.MapClaims{
		"user_id":     42,
		"customer_id": "acme",
		"exp":         exp.Unix(),
	}))

	require.True(t, result.Valid)
	assert.Equal(t, "42", result.Claims.UserID)
	assert.Equal(t, "acme", result.Claims.CustomerID)
	assert.True(t, result.Claims.ExpiresAt.Equal(exp))

	group := result.LogValue().Group()
	keys := make([]string, 0, len(group))
	for _, attr := range group {
		keys = append(keys, attr.Key)
	}
	assert.ElementsMatch(t, []string{"valid", "user_id", "customer_id", "exp"}, keys)
}

func TestGuard_ExpiryFollowsClock(t *testing.T) {
	clk := clock.Fake(guardNow)
	guard := NewGuard(clk)
	token := mintToken(t, jwt.MapClaims{"exp": guardNow.Add(time.Minute).Unix()})

	assert.True(t, guard.Validate(token).Valid)

	clk.Advance(time.Minute)
	result := guard.Validate(token)
	assert.False(t, result.Valid)
	assert.Equal(t, ReasonExpired, result.Reason)
}
