package jwt

import (
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTService(t *testing.T) {
	service, err := NewJWTService("test-secret", time.Hour)
	require.NoError(t, err)

	t.Run("GenerateAndValidate", func(t *testing.T) {
		token, expiresAt, err := service.GenerateAdminToken("admin")
		require.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

		claims, err := service.ValidateAdminToken(token)
		require.NoError(t, err)
		assert.Equal(t, "admin", claims.Subject)
		assert.Equal(t, "admin", claims.Role)
		assert.Equal(t, expiresAt.Unix(), claims.ExpiresAt.Unix())
	})

	t.Run("ValidateInvalidToken", func(t *testing.T) {
		_, err := service.ValidateAdminToken("invalid-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("ValidateWrongSecret", func(t *testing.T) {
		other, err := NewJWTService("other-secret", time.Hour)
		require.NoError(t, err)
		token, _, err := other.GenerateAdminToken("admin")
		require.NoError(t, err)

		_, err = service.ValidateAdminToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("ValidateExpiredToken", func(t *testing.T) {
		short, err := NewJWTService("test-secret", time.Minute)
		require.NoError(t, err)
		short.now = func() time.Time { return time.Now().Add(-2 * time.Minute) }
		token, _, err := short.GenerateAdminToken("admin")
		require.NoError(t, err)

		_, err = service.ValidateAdminToken(token)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("RejectsNonAdminRole", func(t *testing.T) {
		forged := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.MapClaims{
			"sub":  "alice",
			"role": "client",
			"iss":  "tollgate",
			"type": "admin_session",
			"exp":  time.Now().Add(time.Hour).Unix(),
		})
		token, err := forged.SignedString([]byte("test-secret"))
		require.NoError(t, err)

		_, err = service.ValidateAdminToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestNewJWTService_Validation(t *testing.T) {
	_, err := NewJWTService("", time.Hour)
	assert.ErrorIs(t, err, ErrMissingSecret)

	_, err = NewJWTService("secret", 0)
	assert.Error(t, err)
}
