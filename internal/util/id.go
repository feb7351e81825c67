package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a 24-character lowercase hex identifier.
func NewID() string {
	bytes := make([]byte, 12)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// IsValidID reports whether id is syntactically a document identifier:
// lowercase hex, 12 to 64 characters. Checked before any storage call so a
// malformed id never reaches the database.
func IsValidID(id string) bool {
	if len(id) < 12 || len(id) > 64 {
		return false
	}
	for _, c := range id {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
