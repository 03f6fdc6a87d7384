package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// hashParts hashes the JSON encoding of parts.
// JSON keeps map keys sorted, so option maps hash independently of insertion order.
func hashParts(parts ...any) string {
	data, _ := json.Marshal(parts)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Hash computes a SHA-256 hash of the input data.
// Returns the full 64-character hex string.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
