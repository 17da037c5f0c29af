// Package records is the write/read path the embedding application uses for
// encrypted fields: it binds the vault's AEAD to the persistence gateway,
// one record per (user, field name). The vault key is a call argument and
// is never retained between calls.
package records

import (
	"context"
	"fmt"
	"time"

	"github.com/heartline/vault/internal/blobstore"
	"github.com/heartline/vault/internal/common"
	"github.com/heartline/vault/internal/cryptox"
	"github.com/heartline/vault/internal/logging"
	"github.com/heartline/vault/internal/storage"
	"github.com/heartline/vault/internal/vault"
)

type Service struct {
	gw     storage.Gateway
	blobs  blobstore.Store
	logger logging.Logger
}

// NewService builds the field service. blobs may be nil when attachment
// support is not configured.
func NewService(gw storage.Gateway, blobs blobstore.Store, logger logging.Logger) *Service {
	return &Service{gw: gw, blobs: blobs, logger: logger}
}

// PutField encrypts plaintext under key and creates or overwrites the
// record for (userID, fieldName).
func (s *Service) PutField(ctx context.Context, userID, fieldName string, key, plaintext []byte) error {
	sealed, err := vault.EncryptField(key, plaintext)
	if err != nil {
		return err
	}

	return s.gw.PutRecord(ctx, &storage.RecordRow{
		UserID:     userID,
		FieldName:  fieldName,
		Nonce:      sealed.Nonce,
		Ciphertext: sealed.Ciphertext,
		AuthTag:    sealed.AuthTag,
		UpdatedAt:  time.Now(),
	})
}

// GetField fetches and decrypts one field. ErrNotFound when the field was
// never written; ErrIntegrity when the stored record does not verify under
// key.
func (s *Service) GetField(ctx context.Context, userID, fieldName string, key []byte) ([]byte, error) {
	record, err := s.gw.GetRecord(ctx, userID, fieldName)
	if err != nil {
		return nil, err
	}

	plaintext, err := vault.DecryptField(key, &vault.EncryptedField{
		Nonce:      record.Nonce,
		Ciphertext: record.Ciphertext,
		AuthTag:    record.AuthTag,
	})
	if err != nil {
		// the caller must learn which field is unreadable; the record
		// itself stays put
		return nil, fmt.Errorf("field %q: %w", fieldName, err)
	}

	return plaintext, nil
}

// DeleteField removes the record. Absent fields delete cleanly.
func (s *Service) DeleteField(ctx context.Context, userID, fieldName string) error {
	return s.gw.DeleteRecord(ctx, userID, fieldName)
}

func attachmentKey(userID, name string) string {
	return "users/" + userID + "/attachments/" + name
}

// PutAttachment seals data and stores the whole sealed blob (nonce,
// ciphertext, tag concatenated) in object storage. Meant for payloads too
// large for a database row: avatars, exported documents.
func (s *Service) PutAttachment(ctx context.Context, userID, name string, key, data []byte) error {
	if s.blobs == nil {
		return fmt.Errorf("%w: attachment storage not configured", common.ErrPersistence)
	}

	sealed, err := vault.EncryptField(key, data)
	if err != nil {
		return err
	}

	blob := make([]byte, 0, len(sealed.Nonce)+len(sealed.Ciphertext)+len(sealed.AuthTag))
	blob = append(blob, sealed.Nonce...)
	blob = append(blob, sealed.Ciphertext...)
	blob = append(blob, sealed.AuthTag...)

	if err := s.blobs.Put(ctx, attachmentKey(userID, name), blob); err != nil {
		return err
	}

	s.logger.Debug(ctx, "attachment stored", "user_id", userID, "name", name, "bytes", len(blob))
	return nil
}

// GetAttachment fetches and opens a sealed blob written by PutAttachment.
func (s *Service) GetAttachment(ctx context.Context, userID, name string, key []byte) ([]byte, error) {
	if s.blobs == nil {
		return nil, fmt.Errorf("%w: attachment storage not configured", common.ErrPersistence)
	}

	blob, err := s.blobs.Get(ctx, attachmentKey(userID, name))
	if err != nil {
		return nil, err
	}
	if len(blob) < cryptox.NonceSize+cryptox.TagSize {
		return nil, common.ErrIntegrity
	}

	nonce := blob[:cryptox.NonceSize]
	tag := blob[len(blob)-cryptox.TagSize:]
	ciphertext := blob[cryptox.NonceSize : len(blob)-cryptox.TagSize]

	plaintext, err := vault.DecryptField(key, &vault.EncryptedField{
		Nonce:      nonce,
		Ciphertext: ciphertext,
		AuthTag:    tag,
	})
	if err != nil {
		return nil, fmt.Errorf("attachment %q: %w", name, err)
	}

	return plaintext, nil
}

// DeleteAttachment removes the blob.
func (s *Service) DeleteAttachment(ctx context.Context, userID, name string) error {
	if s.blobs == nil {
		return fmt.Errorf("%w: attachment storage not configured", common.ErrPersistence)
	}
	return s.blobs.Delete(ctx, attachmentKey(userID, name))
}
