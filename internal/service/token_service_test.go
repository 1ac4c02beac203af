package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/jobcoach-api/internal/models"
	appErrors "github.com/noah-isme/jobcoach-api/pkg/errors"
)

func TestTokenServiceRoundTrip(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "secret", Issuer: "jobcoach-api", Expiry: time.Minute})

	token, expiresAt, err := svc.IssueToken("admin-1", models.RoleAdmin, "coach@example.com", "Coach")
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin-1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestTokenServiceRejectsForeignTokens(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "secret", Issuer: "jobcoach-api"})

	other := NewTokenService(TokenConfig{Secret: "other", Issuer: "jobcoach-api"})
	token, _, err := other.IssueToken("u1", models.RoleUser, "", "")
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrUnauthorized.Code))

	wrongIssuer := NewTokenService(TokenConfig{Secret: "secret", Issuer: "someone-else"})
	token, _, err = wrongIssuer.IssueToken("u1", models.RoleUser, "", "")
	require.NoError(t, err)
	_, err = svc.ValidateToken(token)
	assert.Error(t, err)

	_, err = svc.ValidateToken("not-a-token")
	assert.Error(t, err)
}

func TestTokenServiceRejectsUnknownRole(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "secret"})
	claims := &models.JWTClaims{
		UserID: "u1",
		Role:   "ROOT",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = svc.ValidateToken(signed)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrUnauthorized.Code))
}
