// Package vault implements authenticated per-field encryption under a vault
// key. Encryption and decryption are pure functions of their inputs: the
// same key works identically whether it came from a password derivation or
// from an unwrapped session token. The package never touches storage.
package vault

import (
	"errors"
	"fmt"

	"github.com/heartline/vault/internal/common"
	"github.com/heartline/vault/internal/cryptox"
)

// EncryptedField is the AEAD output for one field value. All three parts
// are stored; decryption needs all of them plus the original key.
type EncryptedField struct {
	Nonce      []byte
	Ciphertext []byte
	AuthTag    []byte
}

// EncryptField seals plaintext under key with a fresh random nonce.
func EncryptField(key, plaintext []byte) (*EncryptedField, error) {
	nonce, ciphertext, tag, err := cryptox.Seal(key, plaintext, nil)
	if err != nil {
		return nil, fmt.Errorf("encrypt field: %w", err)
	}

	return &EncryptedField{Nonce: nonce, Ciphertext: ciphertext, AuthTag: tag}, nil
}

// DecryptField opens a sealed field. A wrong key, corrupted ciphertext, or
// tampered tag all fail with common.ErrIntegrity and nothing else: the error
// carries no hint of which part failed, and no partial plaintext leaks.
func DecryptField(key []byte, field *EncryptedField) ([]byte, error) {
	plaintext, err := cryptox.Open(key, field.Nonce, field.Ciphertext, field.AuthTag, nil)
	if err != nil {
		if errors.Is(err, cryptox.ErrOpenFailed) {
			return nil, common.ErrIntegrity
		}
		return nil, fmt.Errorf("decrypt field: %w", err)
	}

	return plaintext, nil
}
