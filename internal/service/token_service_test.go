package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenServiceIssueAndValidate(t *testing.T) {
	svc := NewTokenService(TokenConfig{
		Secret: "test-secret",
		Expiry: time.Hour,
		Issuer: "timetable-api",
	}, nil)

	token, expiresAt, err := svc.Issue("planner-1", "planner")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "planner-1", claims.Subject)
	assert.Equal(t, "planner", claims.Role)
}

func TestTokenServiceRejectsWrongSecret(t *testing.T) {
	issuer := NewTokenService(TokenConfig{Secret: "secret-a", Expiry: time.Hour}, nil)
	verifier := NewTokenService(TokenConfig{Secret: "secret-b", Expiry: time.Hour}, nil)

	token, _, err := issuer.Issue("planner-1", "planner")
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenServiceRejectsExpiredToken(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "test-secret", Expiry: time.Hour}, nil)
	svc.config.Expiry = -time.Minute

	token, _, err := svc.Issue("planner-1", "planner")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.Error(t, err)
}

func TestTokenServiceRejectsGarbage(t *testing.T) {
	svc := NewTokenService(TokenConfig{Secret: "test-secret", Expiry: time.Hour}, nil)

	_, err := svc.ValidateToken("not-a-token")
	assert.Error(t, err)
}
