package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
)

const (
	// NonceSize is the AES-GCM nonce length. Nonces are random per call;
	// at 96 bits the collision probability stays below 2^-32 up to about
	// 2^32 encryptions under one key, far beyond a single user's field count.
	NonceSize = 12

	// TagSize is the GCM authentication tag length.
	TagSize = 16
)

// ErrOpenFailed is returned when an AEAD open fails. Callers translate it to
// the shared integrity error; the message never distinguishes a wrong key
// from corrupted or forged ciphertext.
var ErrOpenFailed = errors.New("aead open failed")

// Seal encrypts plaintext with AES-256-GCM under key, binding aad into the
// tag. A fresh random nonce is generated per call. Ciphertext and tag are
// returned separately so storage can keep them as distinct columns.
func Seal(key, plaintext, aad []byte) (nonce, ciphertext, tag []byte, err error) {
	if len(key) != VaultKeySize {
		return nil, nil, nil, fmt.Errorf("aead requires a %d-byte key", VaultKeySize)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, nil, err
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, nil, err
	}

	nonce = make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, nil, err
	}

	sealed := aesgcm.Seal(nil, nonce, plaintext, aad)

	split := len(sealed) - TagSize
	return nonce, sealed[:split], sealed[split:], nil
}

// Open decrypts ciphertext produced by Seal. It fails with ErrOpenFailed if
// the tag does not verify; no partial plaintext is ever returned.
func Open(key, nonce, ciphertext, tag, aad []byte) ([]byte, error) {
	if len(key) != VaultKeySize {
		return nil, fmt.Errorf("aead requires a %d-byte key", VaultKeySize)
	}
	if len(nonce) != NonceSize || len(tag) != TagSize {
		return nil, ErrOpenFailed
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := aesgcm.Open(nil, nonce, sealed, aad)
	if err != nil {
		return nil, ErrOpenFailed
	}

	return plaintext, nil
}
