// Package cryptox holds the cryptographic primitives of the vault core:
// salted password hashing, vault-key derivation, and the AEAD used for
// per-field encryption. It contains pure functions only; nothing in this
// package touches storage or logs.
package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// PasswordSaltSize is the salt length for password hashing.
	PasswordSaltSize = 16

	// PasswordHashSize is the derived hash length.
	PasswordHashSize = 32

	// PasswordHashIterations is the current PBKDF2 iteration count.
	// Stored per user so it can be raised without invalidating old rows.
	PasswordHashIterations = 390_000
)

// HashPassword computes a PBKDF2-HMAC-SHA256 hash of the password with the
// given salt and iteration count. Deterministic; used for both creating and
// verifying password records.
func HashPassword(password, salt []byte, iterations int) []byte {
	return pbkdf2.Key(password, salt, iterations, PasswordHashSize, sha256.New)
}

// VerifyPassword recomputes the hash for the candidate password and compares
// it to the stored hash in constant time.
func VerifyPassword(password, salt, storedHash []byte, iterations int) bool {
	candidate := HashPassword(password, salt, iterations)
	return subtle.ConstantTimeCompare(candidate, storedHash) == 1
}
