package cryptox

import "golang.org/x/crypto/argon2"

const (
	// KDFSaltSize is the salt length for vault-key derivation. Independent
	// of the password-hash salt: the two salts are never shared.
	KDFSaltSize = 32

	// VaultKeySize is the symmetric vault key length (AES-256).
	VaultKeySize = 32

	argonTime    = 1
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4
)

// DeriveVaultKey turns a password and a per-user kdf salt into a 256-bit
// vault key using Argon2id. Deterministic and side-effect-free: the same
// inputs always yield the same key.
//
// Argon2id is deliberately a different KDF than the PBKDF2 used for the
// password record, with its own salt, so compromising one derivation does
// not trivially compromise the other.
func DeriveVaultKey(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, argonTime, argonMemory, argonThreads, VaultKeySize)
}
