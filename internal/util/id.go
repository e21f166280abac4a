package util

import (
	"crypto/rand"
	"encoding/hex"
)

const idBytes = 16

// NewID returns a random hex identifier. Collisions are not a
// practical concern at 128 bits; uniqueness-sensitive columns still
// carry a database index.
func NewID() string {
	b := make([]byte, idBytes)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
