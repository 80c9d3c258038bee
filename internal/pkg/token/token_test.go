package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_FixedLengthHex(t *testing.T) {
	var g Generator
	tok, err := g.New("u1", "item-5", time.Now())
	require.NoError(t, err)
	assert.Len(t, tok, 64)
	assert.Regexp(t, "^[0-9a-f]{64}$", tok)
}

func TestNew_UniqueAcrossCalls(t *testing.T) {
	var g Generator
	now := time.Now()
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		tok, err := g.New("u1", "item-5", now)
		require.NoError(t, err)
		assert.False(t, seen[tok], "token collision")
		seen[tok] = true
	}
}

func TestNew_DiffersByUser(t *testing.T) {
	var g Generator
	now := time.Now()
	a, err := g.New("u1", "item-5", now)
	require.NoError(t, err)
	b, err := g.New("u2", "item-5", now)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
