package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashPassword derives a hex digest for storage.
func HashPassword(password, salt string) string {
	sum := sha256.Sum256([]byte(salt + password))
	return hex.EncodeToString(sum[:])
}

// VerifyPassword compares a candidate password against a stored digest
// in constant time.
func VerifyPassword(password, salt, digest string) bool {
	candidate := HashPassword(password, salt)
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(digest)) == 1
}
