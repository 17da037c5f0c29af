// Package credentials hashes and verifies account passwords and owns the
// one operation that touches both halves of the key hierarchy: the atomic
// password change. The store never persists key material; it holds only the
// salted password hash and the two per-user salts.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/heartline/vault/internal/common"
	"github.com/heartline/vault/internal/cryptox"
	"github.com/heartline/vault/internal/keyderiv"
	"github.com/heartline/vault/internal/logging"
	"github.com/heartline/vault/internal/storage"
	"github.com/heartline/vault/internal/vault"
)

// Login is the result of a successful password verification: the account id
// and the derived vault key. The key lives only in the caller's memory;
// callers wipe it when their session ends.
type Login struct {
	UserID   string
	VaultKey []byte
}

type Store struct {
	gw     storage.Gateway
	kdf    *keyderiv.Service
	logger logging.Logger
}

func NewStore(gw storage.Gateway, kdf *keyderiv.Service, logger logging.Logger) *Store {
	return &Store{gw: gw, kdf: kdf, logger: logger}
}

// Register creates an account and returns its id. The password salt and the
// kdf salt are generated independently and never reused across users.
// Fails with ErrDuplicateUser if the username is taken.
func (s *Store) Register(ctx context.Context, username string, password []byte) (string, error) {
	passwordSalt := common.GenerateRandByteArray(cryptox.PasswordSaltSize)
	kdfSalt := common.GenerateRandByteArray(cryptox.KDFSaltSize)

	user := &storage.UserRow{
		ID:             uuid.New().String(),
		Username:       username,
		PasswordSalt:   passwordSalt,
		PasswordHash:   cryptox.HashPassword(password, passwordSalt, cryptox.PasswordHashIterations),
		HashIterations: cryptox.PasswordHashIterations,
		KDFSalt:        kdfSalt,
		CreatedAt:      time.Now(),
	}

	if err := s.gw.CreateUser(ctx, user); err != nil {
		return "", err
	}

	s.logger.Info(ctx, "user registered", "user_id", user.ID)
	return user.ID, nil
}

// dummySalt keeps the work for an unknown username indistinguishable from a
// wrong password: the hash is always computed before failing.
var dummySalt = []byte("heartline.dummy.")

// Verify checks a username/password pair and, on success, derives the vault
// key. Unknown username and wrong password both fail with the same
// ErrAuthentication, after the same amount of hashing work.
func (s *Store) Verify(ctx context.Context, username string, password []byte) (*Login, error) {
	user, err := s.gw.GetUser(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			cryptox.HashPassword(password, dummySalt, cryptox.PasswordHashIterations)
			return nil, common.ErrAuthentication
		}
		return nil, err
	}

	if !cryptox.VerifyPassword(password, user.PasswordSalt, user.PasswordHash, user.HashIterations) {
		return nil, common.ErrAuthentication
	}

	key, err := s.kdf.Derive(ctx, password, user.KDFSalt)
	if err != nil {
		return nil, err
	}

	return &Login{UserID: user.ID, VaultKey: key}, nil
}

// ChangePassword re-keys the account: it verifies the old password, derives
// the old vault key, derives a new key from the new password and a freshly
// generated kdf salt, re-encrypts every stored field, and swaps the account
// row and all records in one gateway transaction. Any failure along the way
// leaves the account exactly as it was.
//
// A successful change also drops the user's remember-me tokens: they wrap
// the old key, which can no longer read any record.
func (s *Store) ChangePassword(ctx context.Context, userID string, oldPassword, newPassword []byte) error {
	user, err := s.gw.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}

	if !cryptox.VerifyPassword(oldPassword, user.PasswordSalt, user.PasswordHash, user.HashIterations) {
		return common.ErrAuthentication
	}

	oldKey, err := s.kdf.Derive(ctx, oldPassword, user.KDFSalt)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(oldKey)

	// fresh salts for both halves: a new password epoch shares nothing
	// with the previous one
	newPasswordSalt := common.GenerateRandByteArray(cryptox.PasswordSaltSize)
	newKDFSalt := common.GenerateRandByteArray(cryptox.KDFSaltSize)

	newKey, err := s.kdf.Derive(ctx, newPassword, newKDFSalt)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(newKey)

	records, err := s.gw.ListRecords(ctx, userID)
	if err != nil {
		return err
	}

	rekeyed := make([]*storage.RecordRow, 0, len(records))
	for _, record := range records {
		plaintext, err := vault.DecryptField(oldKey, &vault.EncryptedField{
			Nonce:      record.Nonce,
			Ciphertext: record.Ciphertext,
			AuthTag:    record.AuthTag,
		})
		if err != nil {
			return fmt.Errorf("re-keying field %q: %w", record.FieldName, err)
		}

		sealed, err := vault.EncryptField(newKey, plaintext)
		common.WipeByteArray(plaintext)
		if err != nil {
			return fmt.Errorf("re-keying field %q: %w", record.FieldName, err)
		}

		rekeyed = append(rekeyed, &storage.RecordRow{
			UserID:     userID,
			FieldName:  record.FieldName,
			Nonce:      sealed.Nonce,
			Ciphertext: sealed.Ciphertext,
			AuthTag:    sealed.AuthTag,
			UpdatedAt:  time.Now(),
		})
	}

	updated := &storage.UserRow{
		ID:             user.ID,
		Username:       user.Username,
		PasswordSalt:   newPasswordSalt,
		PasswordHash:   cryptox.HashPassword(newPassword, newPasswordSalt, cryptox.PasswordHashIterations),
		HashIterations: cryptox.PasswordHashIterations,
		KDFSalt:        newKDFSalt,
		CreatedAt:      user.CreatedAt,
	}

	if err := s.gw.ReplaceUserKeys(ctx, updated, rekeyed); err != nil {
		return err
	}

	if err := s.gw.DeleteUserTokens(ctx, userID); err != nil {
		return err
	}

	s.logger.Info(ctx, "password changed", "user_id", userID, "records_rekeyed", len(rekeyed))
	return nil
}
