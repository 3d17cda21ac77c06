package credential

import (
	"strings"
	"testing"

	"warbler/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasher_HashAndVerify(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	hashed, err := h.Hash("HASHED_PASSWORD")
	require.NoError(t, err)
	assert.NotEqual(t, "HASHED_PASSWORD", hashed)
	assert.True(t, strings.HasPrefix(hashed, "$2"))
	assert.True(t, h.Verify("HASHED_PASSWORD", hashed))
	assert.False(t, h.Verify("wrong", hashed))
}

func TestHasher_SaltedPerCall(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	a, err := h.Hash("same-password")
	require.NoError(t, err)
	b, err := h.Hash("same-password")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.True(t, h.Verify("same-password", a))
	assert.True(t, h.Verify("same-password", b))
}

func TestHasher_HashRejectsInvalid(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	tests := []struct {
		name      string
		plaintext string
	}{
		{"Empty", ""},
		{"Too Long", strings.Repeat("a", 73)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.Hash(tt.plaintext)
			require.Error(t, err)
			assert.True(t, models.HasCode(err, models.CodeValidation))
		})
	}
}

func TestHasher_VerifyNeverPanics(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	assert.False(t, h.Verify("password", "not-a-bcrypt-hash"))
	assert.False(t, h.Verify("password", ""))
	assert.False(t, h.Verify("", "$2a$04$abcdefghijklmnopqrstuu"))
}

func TestNewHasher_CostBounds(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(0).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(99).cost)
	assert.Equal(t, 12, NewHasher(12).cost)
}
