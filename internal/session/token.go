package session

import (
	"encoding/base64"
	"encoding/binary"
	"errors"

	"github.com/google/uuid"

	"github.com/heartline/vault/internal/cryptox"
)

const (
	secretSize = cryptox.VaultKeySize

	// bearer layout: 16-byte token id, 8-byte big-endian generation,
	// 32-byte unwrapping secret
	bearerSize = 16 + 8 + secretSize
)

var errMalformedBearer = errors.New("malformed bearer token")

// bearer is the decoded form of the opaque string handed to a device.
// It carries the unwrapping secret, never the vault key itself.
type bearer struct {
	tokenID    uuid.UUID
	generation int64
	secret     []byte
}

func (b bearer) encode() string {
	raw := make([]byte, 0, bearerSize)
	raw = append(raw, b.tokenID[:]...)
	raw = binary.BigEndian.AppendUint64(raw, uint64(b.generation))
	raw = append(raw, b.secret...)
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeBearer(token string) (bearer, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) != bearerSize {
		return bearer{}, errMalformedBearer
	}

	id, err := uuid.FromBytes(raw[:16])
	if err != nil {
		return bearer{}, errMalformedBearer
	}

	gen := int64(binary.BigEndian.Uint64(raw[16:24]))
	if gen < 0 {
		return bearer{}, errMalformedBearer
	}

	return bearer{
		tokenID:    id,
		generation: gen,
		secret:     raw[24:],
	}, nil
}

// wrapAAD binds the wrapped key to its token id and generation, so a wrapped
// blob copied onto another row or an older generation fails to unwrap.
func wrapAAD(tokenID uuid.UUID, generation int64) []byte {
	aad := make([]byte, 0, 16+8)
	aad = append(aad, tokenID[:]...)
	aad = binary.BigEndian.AppendUint64(aad, uint64(generation))
	return aad
}
