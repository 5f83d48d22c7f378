package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hostel-outing-api/internal/models"
	appErrors "github.com/noah-isme/hostel-outing-api/pkg/errors"
)

func TestTokenVerifierRoundTrip(t *testing.T) {
	verifier, err := NewTokenVerifier("secret", "campus-idp")
	require.NoError(t, err)

	token, err := verifier.Issue(models.JWTClaims{UserID: "guard-1", Role: models.RoleSecurity, FullName: "Gate"}, time.Hour)
	require.NoError(t, err)

	claims, err := verifier.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, models.Actor{ID: "guard-1", Role: models.RoleSecurity, Name: "Gate"}, claims.Actor())
}

func TestTokenVerifierRejects(t *testing.T) {
	verifier, err := NewTokenVerifier("secret", "campus-idp")
	require.NoError(t, err)

	other, err := NewTokenVerifier("other", "campus-idp")
	require.NoError(t, err)
	foreign, err := other.Issue(models.JWTClaims{UserID: "u", Role: models.RoleWarden}, time.Hour)
	require.NoError(t, err)
	_, err = verifier.ValidateToken(foreign)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	expired, err := verifier.Issue(models.JWTClaims{UserID: "u", Role: models.RoleWarden}, -time.Minute)
	require.NoError(t, err)
	_, err = verifier.ValidateToken(expired)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	wrongIssuer, err := NewTokenVerifier("secret", "someone-else")
	require.NoError(t, err)
	misissued, err := wrongIssuer.Issue(models.JWTClaims{UserID: "u", Role: models.RoleWarden}, time.Hour)
	require.NoError(t, err)
	_, err = verifier.ValidateToken(misissued)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	noRole := jwt.NewWithClaims(jwt.SigningMethodHS256, &models.JWTClaims{UserID: "u"})
	signed, err := noRole.SignedString([]byte("secret"))
	require.NoError(t, err)
	permissive, err := NewTokenVerifier("secret", "")
	require.NoError(t, err)
	_, err = permissive.ValidateToken(signed)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)

	_, err = NewTokenVerifier(" ", "")
	assert.Error(t, err)
}
