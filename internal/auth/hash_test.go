package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasher_RoundTrip(t *testing.T) {
	h := NewHasher()

	hash, err := h.Hash("Passw0rd!")
	require.NoError(t, err)
	assert.NotEqual(t, "Passw0rd!", hash)

	assert.True(t, h.Compare("Passw0rd!", hash))
	assert.False(t, h.Compare("passw0rd!", hash))
}

func TestHasher_Randomized(t *testing.T) {
	h := NewHasher()

	h1, err := h.Hash("same-input")
	require.NoError(t, err)
	h2, err := h.Hash("same-input")
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2, "bcrypt salting should make identical inputs hash differently")
	assert.True(t, h.Compare("same-input", h1))
	assert.True(t, h.Compare("same-input", h2))
}

func TestHasher_MalformedHashComparesFalse(t *testing.T) {
	h := NewHasher()

	assert.False(t, h.Compare("anything", "not-a-bcrypt-hash"))
	assert.False(t, h.Compare("anything", ""))
}
