package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("sekret123")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))

	ok, err := VerifyPassword("sekret123", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("wrongpass", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPasswordHashesAreSalted(t *testing.T) {
	first, err := HashPassword("sekret123")
	require.NoError(t, err)
	second, err := HashPassword("sekret123")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestVerifyPasswordRejectsGarbageHash(t *testing.T) {
	_, err := VerifyPassword("sekret123", "not-a-hash")
	assert.Error(t, err)
}

func TestGenerateSecureOTP(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := GenerateSecureOTP()
		require.NoError(t, err)
		require.Len(t, code, 4)
		for _, r := range code {
			assert.True(t, r >= '0' && r <= '9')
		}
		seen[code] = true
	}
	// 50 draws from 10000 codes colliding into one value would be broken RNG
	assert.Greater(t, len(seen), 1)
}

func TestNewSessionToken(t *testing.T) {
	first := NewSessionToken()
	second := NewSessionToken()
	assert.NotEmpty(t, first)
	assert.NotEqual(t, first, second)
}

func TestValidateStruct(t *testing.T) {
	type form struct {
		Email string `validate:"required,email"`
		Name  string `validate:"required,min=2"`
	}

	assert.NoError(t, ValidateStruct(&form{Email: "jane@example.com", Name: "Jane"}))

	err := ValidateStruct(&form{Email: "nope", Name: "J"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email")
}
