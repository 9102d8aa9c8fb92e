package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTokenService() *TokenService {
	return NewTokenService("test-secret-key-for-testing-purposes", 15*time.Minute)
}

func TestTokenService_Issue(t *testing.T) {
	service := newTestTokenService()

	token, expiresAt, err := service.Issue("staff-1", "ops@example.com", RoleAdmin)

	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))
	assert.True(t, expiresAt.Before(time.Now().Add(16*time.Minute)))
	assert.Equal(t, 15*time.Minute, service.TTL())
}

func TestTokenService_Issue_UnknownRole(t *testing.T) {
	service := newTestTokenService()

	_, _, err := service.Issue("staff-1", "ops@example.com", "customer")

	assert.ErrorIs(t, err, ErrUnknownRole)
}

func TestTokenService_Validate_RoundTrip(t *testing.T) {
	service := newTestTokenService()

	token, _, err := service.Issue("staff-2", "support@example.com", RoleSupport)
	require.NoError(t, err)

	claims, err := service.Validate(token)

	require.NoError(t, err)
	assert.Equal(t, "staff-2", claims.StaffID)
	assert.Equal(t, "support@example.com", claims.Email)
	assert.Equal(t, RoleSupport, claims.Role)
	assert.Equal(t, "staff-2", claims.Subject)
	assert.Equal(t, Issuer, claims.Issuer)
}

func TestTokenService_Validate_Expired(t *testing.T) {
	service := NewTokenService("test-secret", time.Millisecond)

	token, _, err := service.Issue("staff-1", "ops@example.com", RoleAdmin)
	require.NoError(t, err)

	time.Sleep(1100 * time.Millisecond)

	claims, err := service.Validate(token)

	assert.ErrorIs(t, err, ErrExpiredToken)
	assert.Nil(t, claims)
}

func TestTokenService_Validate_Invalid(t *testing.T) {
	service := newTestTokenService()

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"random string", "not-a-valid-token"},
		{"malformed JWT", "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.invalid.signature"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := service.Validate(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.Nil(t, claims)
		})
	}
}

func TestTokenService_Validate_WrongSignature(t *testing.T) {
	issuer := NewTokenService("secret-key-1", 15*time.Minute)
	verifier := NewTokenService("secret-key-2", 15*time.Minute)

	token, _, err := issuer.Issue("staff-1", "ops@example.com", RoleAdmin)
	require.NoError(t, err)

	claims, err := verifier.Validate(token)

	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Nil(t, claims)
}

func TestTokenService_Validate_WrongAlgorithm(t *testing.T) {
	service := newTestTokenService()

	token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		StaffID: "staff-1",
		Role:    RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	tokenString, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	claims, err := service.Validate(tokenString)

	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Nil(t, claims)
}

func TestTokenService_Validate_WrongIssuer(t *testing.T) {
	service := newTestTokenService()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		StaffID: "staff-1",
		Role:    RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	tokenString, err := token.SignedString([]byte("test-secret-key-for-testing-purposes"))
	require.NoError(t, err)

	_, err = service.Validate(tokenString)

	assert.ErrorIs(t, err, ErrInvalidToken)
}
