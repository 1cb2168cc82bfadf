package id

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewID32_ShapeAndUniqueness(t *testing.T) {
	const n = 200
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		got := NewID32()
		require.True(t, Valid32(got), "not a 32-char lowercase hex id: %q", got)

		b, err := hex.DecodeString(got)
		require.NoError(t, err)
		require.Len(t, b, 16)

		_, dup := seen[got]
		require.False(t, dup, "duplicate id after %d iterations: %q", i, got)
		seen[got] = struct{}{}
	}
}

func TestValid32(t *testing.T) {
	cases := map[string]bool{
		strings.Repeat("a", 32):                true,
		"0123456789abcdef0123456789abcdef":     true,
		strings.Repeat("A", 32):                false,
		strings.Repeat("a", 31):                false,
		strings.Repeat("a", 33):                false,
		"0123456789abcdef0123456789abcdeg":     false,
		"123e4567-e89b-12d3-a456-426614174000": false,
		"":                                     false,
	}
	for in, want := range cases {
		assert.Equal(t, want, Valid32(in), in)
	}
}
