// Package id mints and checks the 32-hex identifiers used for submissions
// and idempotency keys.
package id

import (
	"crypto/rand"
	"encoding/hex"
)

const Len32 = 32

// NewID32 returns 16 random bytes as lowercase hex.
func NewID32() string {
	b := make([]byte, Len32/2)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Valid32 reports whether s has the NewID32 shape: 32 lowercase hex chars.
func Valid32(s string) bool {
	if len(s) != Len32 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
