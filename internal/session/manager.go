// Package session issues, verifies, rotates, and expires the remember-me
// tokens that let a returning device recover its vault key without a
// password prompt.
//
// A token splits in two: the storage row keeps the vault key wrapped
// (AEAD-encrypted) under a per-token secret, and the opaque bearer string
// handed to the device carries that secret plus the token id and
// generation. Neither half alone recovers the key.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/heartline/vault/internal/common"
	"github.com/heartline/vault/internal/cryptox"
	"github.com/heartline/vault/internal/logging"
	"github.com/heartline/vault/internal/storage"
)

// Manager owns the session-token lifecycle:
//
//	Issued → Active → {Rotated → new Active, Expired, Revoked}
//
// Expired and Revoked are terminal.
type Manager struct {
	gw     storage.Gateway
	logger logging.Logger

	// rotateTTL is the validity window applied to the replacement token
	// on rotation.
	rotateTTL time.Duration

	// now is a clock seam for expiry tests.
	now func() time.Time
}

func NewManager(gw storage.Gateway, logger logging.Logger, rotateTTL time.Duration) *Manager {
	return &Manager{
		gw:        gw,
		logger:    logger,
		rotateTTL: rotateTTL,
		now:       time.Now,
	}
}

// wrap seals the vault key under a fresh per-token secret.
func wrap(vaultKey []byte, tokenID uuid.UUID, generation int64) (secret, nonce, wrapped, tag []byte, err error) {
	secret = common.GenerateRandByteArray(secretSize)
	nonce, wrapped, tag, err = cryptox.Seal(secret, vaultKey, wrapAAD(tokenID, generation))
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return secret, nonce, wrapped, tag, nil
}

// Issue creates a remember-me token for the user and returns the opaque
// bearer string. The vault key is persisted only in wrapped form; the
// caller keeps ownership of vaultKey and wipes it when the session ends.
func (m *Manager) Issue(ctx context.Context, userID string, vaultKey []byte, ttl time.Duration) (string, error) {
	tokenID := uuid.New()
	const generation = 0

	secret, nonce, wrapped, tag, err := wrap(vaultKey, tokenID, generation)
	if err != nil {
		return "", fmt.Errorf("wrapping vault key: %w", err)
	}
	defer common.WipeByteArray(secret)

	issuedAt := m.now()
	row := &storage.TokenRow{
		ID:         tokenID.String(),
		UserID:     userID,
		WrapNonce:  nonce,
		WrappedKey: wrapped,
		WrapTag:    tag,
		Generation: generation,
		IssuedAt:   issuedAt,
		ExpiresAt:  issuedAt.Add(ttl),
	}

	if err := m.gw.PutToken(ctx, row); err != nil {
		return "", err
	}

	m.logger.Info(ctx, "session token issued", "user_id", userID, "token_id", row.ID)

	return bearer{tokenID: tokenID, generation: generation, secret: secret}.encode(), nil
}

// lookup fetches and validates the row behind a bearer. Any shape of
// invalidity other than expiry reports ErrTokenRevoked, so a probing caller
// learns nothing about why a token stopped working.
func (m *Manager) lookup(ctx context.Context, token string) (bearer, *storage.TokenRow, error) {
	b, err := decodeBearer(token)
	if err != nil {
		return bearer{}, nil, common.ErrTokenRevoked
	}

	row, err := m.gw.GetToken(ctx, b.tokenID.String())
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return bearer{}, nil, common.ErrTokenRevoked
		}
		return bearer{}, nil, err
	}

	if m.now().After(row.ExpiresAt) {
		return bearer{}, nil, common.ErrTokenExpired
	}

	if row.Generation != b.generation {
		return bearer{}, nil, common.ErrTokenRevoked
	}

	return b, row, nil
}

// unwrap recovers the vault key from a validated row using the bearer's
// secret. The caller owns the returned key.
func unwrap(b bearer, row *storage.TokenRow) ([]byte, error) {
	key, err := cryptox.Open(b.secret, row.WrapNonce, row.WrappedKey, row.WrapTag,
		wrapAAD(b.tokenID, b.generation))
	if err != nil {
		return nil, common.ErrTokenRevoked
	}
	return key, nil
}

// Verify checks a bearer string and returns the owning user id together
// with the unwrapped vault key. Fails with ErrTokenExpired past the expiry,
// and ErrTokenRevoked for anything else that makes the token invalid.
func (m *Manager) Verify(ctx context.Context, token string) (string, []byte, error) {
	b, row, err := m.lookup(ctx, token)
	if err != nil {
		return "", nil, err
	}

	key, err := unwrap(b, row)
	if err != nil {
		return "", nil, err
	}

	return row.UserID, key, nil
}

// Rotate supersedes the presented token with a fresh one: new secret, new
// wrapped copy, generation+1, refreshed expiry. The swap is a single
// compare-and-increment against storage, so of two concurrent rotations of
// the same token exactly one succeeds; the loser gets ErrTokenRevoked and
// must fall back to re-authentication once the token it holds stops
// verifying.
func (m *Manager) Rotate(ctx context.Context, token string) (string, error) {
	b, row, err := m.lookup(ctx, token)
	if err != nil {
		return "", err
	}

	vaultKey, err := unwrap(b, row)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(vaultKey)

	nextGen := b.generation + 1
	secret, nonce, wrapped, tag, err := wrap(vaultKey, b.tokenID, nextGen)
	if err != nil {
		return "", fmt.Errorf("wrapping vault key: %w", err)
	}
	defer common.WipeByteArray(secret)

	issuedAt := m.now()
	updated := &storage.TokenRow{
		ID:         row.ID,
		UserID:     row.UserID,
		WrapNonce:  nonce,
		WrappedKey: wrapped,
		WrapTag:    tag,
		Generation: nextGen,
		IssuedAt:   issuedAt,
		ExpiresAt:  issuedAt.Add(m.rotateTTL),
	}

	if err := m.gw.SwapTokenGeneration(ctx, row.ID, b.generation, updated); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return "", common.ErrTokenRevoked
		}
		return "", err
	}

	m.logger.Info(ctx, "session token rotated",
		"user_id", row.UserID, "token_id", row.ID, "generation", nextGen)

	return bearer{tokenID: b.tokenID, generation: nextGen, secret: secret}.encode(), nil
}

// Revoke permanently invalidates the presented token (logout), independent
// of expiry. Revoking an already-invalid token reports ErrTokenRevoked.
func (m *Manager) Revoke(ctx context.Context, token string) error {
	b, err := decodeBearer(token)
	if err != nil {
		return common.ErrTokenRevoked
	}

	if err := m.gw.RevokeToken(ctx, b.tokenID.String()); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return common.ErrTokenRevoked
		}
		return err
	}

	m.logger.Info(ctx, "session token revoked", "token_id", b.tokenID.String())
	return nil
}

// RevokeAll drops every token owned by the user (logout everywhere).
func (m *Manager) RevokeAll(ctx context.Context, userID string) error {
	if err := m.gw.DeleteUserTokens(ctx, userID); err != nil {
		return err
	}
	m.logger.Info(ctx, "all session tokens revoked", "user_id", userID)
	return nil
}

// SweepExpired deletes rows past their expiry. Hygiene only: Verify
// rejects expired tokens whether or not the sweep has run.
func (m *Manager) SweepExpired(ctx context.Context) (int64, error) {
	n, err := m.gw.DeleteExpiredTokens(ctx, m.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		m.logger.Debug(ctx, "expired session tokens swept", "count", n)
	}
	return n, nil
}
