// Package common defines shared constants and sentinel errors used across
// the vault core. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Login/registration errors. ErrAuthentication is deliberately generic:
	// an unknown username and a wrong password produce the same value, so
	// the response carries no user-enumeration signal.
	ErrAuthentication = errors.New("invalid username or password")
	ErrDuplicateUser  = errors.New("username already registered")

	// ErrIntegrity means an AEAD tag failed to verify: wrong key, corrupted
	// ciphertext, or tampering. The record is unreadable under the current
	// key and must be reported as such, never silently dropped.
	ErrIntegrity = errors.New("field integrity check failed")

	// Session token lifecycle errors.
	ErrTokenExpired = errors.New("session token expired")
	ErrTokenRevoked = errors.New("session token revoked")

	// ErrPersistence wraps I/O failures from the storage gateway. Always
	// propagated, never retried automatically: retrying a write with a
	// stale derived key could leave a record encrypted inconsistently
	// with the user's current credentials.
	ErrPersistence = errors.New("persistence failure")
)
