package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher_HashAndVerify(t *testing.T) {
	t.Parallel()

	h := NewBcryptHasher(bcrypt.MinCost)

	hash, err := h.Hash("Gestora2024")
	require.NoError(t, err)
	assert.NotEqual(t, "Gestora2024", hash)
	assert.True(t, strings.HasPrefix(hash, "$2a$"))

	assert.True(t, h.Verify(hash, "Gestora2024"))
	assert.False(t, h.Verify(hash, "gestora2024"))
	assert.False(t, h.Verify("", "Gestora2024"))
	assert.False(t, h.Verify("not-a-bcrypt-hash", "Gestora2024"))
}

func TestBcryptHasher_SaltedPerHash(t *testing.T) {
	t.Parallel()

	h := NewBcryptHasher(bcrypt.MinCost)

	a, err := h.Hash("same")
	require.NoError(t, err)
	b, err := h.Hash("same")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.True(t, h.Verify(a, "same"))
	assert.True(t, h.Verify(b, "same"))
}

func TestNewBcryptHasher_CostBounds(t *testing.T) {
	t.Parallel()

	assert.Equal(t, DefaultCost, NewBcryptHasher(0).Cost)
	assert.Equal(t, DefaultCost, NewBcryptHasher(99).Cost)
	assert.Equal(t, 12, NewBcryptHasher(12).Cost)
}

func TestBcryptHasher_TooLong(t *testing.T) {
	t.Parallel()

	_, err := NewBcryptHasher(bcrypt.MinCost).Hash(strings.Repeat("x", 73))
	assert.Error(t, err)
}

func TestNormalizeAnswer(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"  Firulais  ":   "firulais",
		"FIRULAIS":       "firulais",
		"\tMaracay\n":    "maracay",
		"Ñandú":          "ñandú",
		"":               "",
		"San  Cristóbal": "san  cristóbal",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeAnswer(in), "input %q", in)
	}
}
