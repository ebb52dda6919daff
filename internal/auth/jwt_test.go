package auth_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airwaycast/airwaycast/internal/auth"
)

func newService(now func() time.Time) *auth.JWTService {
	return auth.NewJWTService(auth.JWTConfig{
		SigningKey: "test-secret-key-for-testing-only",
		Issuer:     "airwaycast",
		Audience:   "airwaycast-api",
		Now:        now,
	})
}

func TestJWTService_GenerateAndValidateAccessToken(t *testing.T) {
	svc := newService(nil)

	token, expiresAt, err := svc.GenerateAccessToken("u1", 0, auth.ScopeReadAll)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(auth.AccessTokenExpiry), expiresAt, 5*time.Second)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "airwaycast", claims.Issuer)
	assert.True(t, claims.HasScope(auth.ScopeReadAll))
	assert.False(t, claims.HasScope(auth.ScopeOps))
}

func TestJWTService_InvalidToken(t *testing.T) {
	svc := newService(nil)

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"malformed token", "not.a.valid.jwt"},
		{"invalid base64", "xxx.yyy.zzz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateAccessToken(tt.token)
			assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
		})
	}
}

func TestJWTService_Expired(t *testing.T) {
	issuedAt := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	issuer := newService(func() time.Time { return issuedAt })

	token, _, err := issuer.GenerateAccessToken("u1", time.Minute)
	require.NoError(t, err)

	later := newService(func() time.Time { return issuedAt.Add(2 * time.Hour) })
	_, err = later.ValidateAccessToken(token)
	assert.ErrorIs(t, err, auth.ErrAccessTokenExpired)
}

func TestJWTService_WrongKeyAndAudience(t *testing.T) {
	token, _, err := newService(nil).GenerateAccessToken("u1", time.Hour)
	require.NoError(t, err)

	otherKey := auth.NewJWTService(auth.JWTConfig{SigningKey: "another-key", Issuer: "airwaycast", Audience: "airwaycast-api"})
	_, err = otherKey.ValidateAccessToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)

	otherAudience := auth.NewJWTService(auth.JWTConfig{SigningKey: "test-secret-key-for-testing-only", Issuer: "airwaycast", Audience: "someone-else"})
	_, err = otherAudience.ValidateAccessToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
}

func TestJWTService_RejectsNoneAlgorithm(t *testing.T) {
	claims := jwt.MapClaims{"uid": "u1", "iss": "airwaycast", "aud": "airwaycast-api", "exp": time.Now().Add(time.Hour).Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = newService(nil).ValidateAccessToken(token)
	assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
}

func TestJWTService_MissingSigningKey(t *testing.T) {
	svc := auth.NewJWTService(auth.JWTConfig{Issuer: "airwaycast", Audience: "airwaycast-api"})

	_, _, err := svc.GenerateAccessToken("u1", time.Hour)
	assert.ErrorIs(t, err, auth.ErrMissingSigningKey)

	_, err = svc.ValidateAccessToken("x.y.z")
	assert.ErrorIs(t, err, auth.ErrMissingSigningKey)
}
