package websocket

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestTokenValidatorValid(t *testing.T) {
	validator := NewTokenValidator(testSecret)
	tokenString := signToken(t, testSecret, jwt.MapClaims{
		"sub": "64f1a2b3c4d5e6f7a8b9c0d1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	userID, err := validator.Validate(tokenString)
	require.NoError(t, err)
	assert.Equal(t, "64f1a2b3c4d5e6f7a8b9c0d1", userID)
}

func TestTokenValidatorExpired(t *testing.T) {
	validator := NewTokenValidator(testSecret)
	tokenString := signToken(t, testSecret, jwt.MapClaims{
		"sub": "64f1a2b3c4d5e6f7a8b9c0d1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	_, err := validator.Validate(tokenString)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenValidatorWrongSecret(t *testing.T) {
	validator := NewTokenValidator(testSecret)
	tokenString := signToken(t, "other-secret", jwt.MapClaims{
		"sub": "64f1a2b3c4d5e6f7a8b9c0d1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := validator.Validate(tokenString)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenValidatorMissingSubject(t *testing.T) {
	validator := NewTokenValidator(testSecret)
	tokenString := signToken(t, testSecret, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	_, err := validator.Validate(tokenString)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenValidatorGarbage(t *testing.T) {
	validator := NewTokenValidator(testSecret)

	_, err := validator.Validate("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
