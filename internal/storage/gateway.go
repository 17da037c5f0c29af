// Package storage defines the persistence gateway consumed by the vault
// core: an opaque store keyed by user id and field name, with plain
// get/put/delete semantics and no query logic.
//
// Every implementation guarantees atomicity per single-row operation only.
// The two multi-row operations the core needs (re-keying a user during a
// password change, the compare-and-swap behind token rotation) are
// expressed as explicit gateway methods so each backend can provide them
// with its own transactional means.
package storage

import (
	"context"
	"time"
)

// UserRow is an account row. Immutable except via ReplaceUserKeys.
type UserRow struct {
	ID             string
	Username       string
	PasswordSalt   []byte
	PasswordHash   []byte
	HashIterations int
	KDFSalt        []byte
	CreatedAt      time.Time
}

// RecordRow is one encrypted field value. The ciphertext is only meaningful
// together with the owner's vault key and the stored nonce and tag.
type RecordRow struct {
	UserID     string
	FieldName  string
	Nonce      []byte
	Ciphertext []byte
	AuthTag    []byte
	UpdatedAt  time.Time
}

// TokenRow is a remember-me session token. WrappedKey is the vault key
// encrypted under the token's client-held secret; no row ever contains an
// unwrapped vault key.
type TokenRow struct {
	ID         string
	UserID     string
	WrapNonce  []byte
	WrappedKey []byte
	WrapTag    []byte
	Generation int64
	IssuedAt   time.Time
	ExpiresAt  time.Time
}

// RevokedGeneration marks a token row as permanently unmatchable. Bearer
// strings always carry generations >= 0, so no presented token can match.
const RevokedGeneration int64 = -1

// Gateway is the persistence contract. Implementations translate their
// native failures into the shared sentinels: common.ErrNotFound for missing
// rows, common.ErrDuplicateUser for username conflicts, and wrap everything
// else in common.ErrPersistence.
type Gateway interface {
	// CreateUser inserts a new account row. The caller sets the ID.
	CreateUser(ctx context.Context, user *UserRow) error

	// GetUser looks an account up by username.
	GetUser(ctx context.Context, username string) (*UserRow, error)

	// GetUserByID looks an account up by id.
	GetUserByID(ctx context.Context, id string) (*UserRow, error)

	// GetRecord fetches one encrypted field, or common.ErrNotFound.
	GetRecord(ctx context.Context, userID, fieldName string) (*RecordRow, error)

	// PutRecord creates or overwrites the field row.
	PutRecord(ctx context.Context, record *RecordRow) error

	// DeleteRecord removes the field row. Deleting an absent row is not
	// an error.
	DeleteRecord(ctx context.Context, userID, fieldName string) error

	// ListRecords returns every encrypted field owned by the user.
	ListRecords(ctx context.Context, userID string) ([]*RecordRow, error)

	// GetToken fetches a session token row, or common.ErrNotFound.
	GetToken(ctx context.Context, tokenID string) (*TokenRow, error)

	// PutToken inserts a session token row.
	PutToken(ctx context.Context, token *TokenRow) error

	// DeleteToken removes a session token row.
	DeleteToken(ctx context.Context, tokenID string) error

	// DeleteUserTokens removes every session token owned by the user
	// (logout everywhere).
	DeleteUserTokens(ctx context.Context, userID string) error

	// SwapTokenGeneration atomically replaces the token row if and only if
	// its stored generation still equals expectedGen. On a generation
	// mismatch or a missing row it returns common.ErrNotFound and leaves
	// storage untouched. This is the linearization point of rotation: of
	// two concurrent swaps with the same expectedGen, exactly one wins.
	SwapTokenGeneration(ctx context.Context, tokenID string, expectedGen int64, updated *TokenRow) error

	// RevokeToken sets the token's generation to RevokedGeneration.
	RevokeToken(ctx context.Context, tokenID string) error

	// DeleteExpiredTokens removes rows whose expiry has passed. Storage
	// hygiene only; verification rejects expired tokens regardless.
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)

	// ReplaceUserKeys atomically swaps the user's salts and password hash
	// together with the full set of re-encrypted field records. Either the
	// row and all records land, or nothing does.
	ReplaceUserKeys(ctx context.Context, user *UserRow, records []*RecordRow) error
}
