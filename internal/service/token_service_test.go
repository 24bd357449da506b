package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/facility-booking-api/internal/models"
	appErrors "github.com/noah-isme/facility-booking-api/pkg/errors"
)

func signTestToken(t *testing.T, secret string, claims models.JWTClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestTokenServiceValidateToken(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "secret", Issuer: "identity"})
	now := time.Now()
	raw := signTestToken(t, "secret", models.JWTClaims{
		UserID: "res-1",
		Role:   "resident",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "identity",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})

	claims, err := svc.ValidateToken(raw)
	require.NoError(t, err)
	assert.Equal(t, "res-1", claims.UserID)
	assert.Equal(t, models.RoleResident, claims.Role)
}

func TestTokenServiceFallsBackToSubject(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "secret"})
	raw := signTestToken(t, "secret", models.JWTClaims{
		Role:             models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "adm-1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})

	claims, err := svc.ValidateToken(raw)
	require.NoError(t, err)
	assert.Equal(t, "adm-1", claims.UserID)
}

func TestTokenServiceRejectsBadTokens(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "secret", Issuer: "identity"})
	expiry := jwt.NewNumericDate(time.Now().Add(time.Hour))

	cases := map[string]string{
		"wrong secret": signTestToken(t, "other", models.JWTClaims{UserID: "u", Role: models.RoleResident, RegisteredClaims: jwt.RegisteredClaims{Issuer: "identity", ExpiresAt: expiry}}),
		"wrong issuer": signTestToken(t, "secret", models.JWTClaims{UserID: "u", Role: models.RoleResident, RegisteredClaims: jwt.RegisteredClaims{Issuer: "elsewhere", ExpiresAt: expiry}}),
		"expired":      signTestToken(t, "secret", models.JWTClaims{UserID: "u", Role: models.RoleResident, RegisteredClaims: jwt.RegisteredClaims{Issuer: "identity", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute))}}),
		"missing role": signTestToken(t, "secret", models.JWTClaims{UserID: "u", RegisteredClaims: jwt.RegisteredClaims{Issuer: "identity", ExpiresAt: expiry}}),
		"garbage":      "not-a-token",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(raw)
			assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
		})
	}
}
