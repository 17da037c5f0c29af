package session

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestBearer_EncodeDecodeRoundTrip(t *testing.T) {
	b := bearer{
		tokenID:    uuid.New(),
		generation: 7,
		secret:     bytes.Repeat([]byte{0xab}, secretSize),
	}

	got, err := decodeBearer(b.encode())
	if err != nil {
		t.Fatalf("decodeBearer error: %v", err)
	}
	if got.tokenID != b.tokenID {
		t.Errorf("token id mismatch")
	}
	if got.generation != b.generation {
		t.Errorf("generation mismatch: %d != %d", got.generation, b.generation)
	}
	if !bytes.Equal(got.secret, b.secret) {
		t.Errorf("secret mismatch")
	}
}

func TestDecodeBearer_Malformed(t *testing.T) {
	cases := map[string]string{
		"empty":        "",
		"not base64":   "!!!not-base64!!!",
		"too short":    "AAAA",
		"wrong length": bearer{tokenID: uuid.New(), generation: 0, secret: []byte("short")}.encode(),
	}

	for name, token := range cases {
		if _, err := decodeBearer(token); !errors.Is(err, errMalformedBearer) {
			t.Errorf("%s: expected errMalformedBearer, got %v", name, err)
		}
	}
}

func TestWrapAAD_BindsGeneration(t *testing.T) {
	id := uuid.New()
	if bytes.Equal(wrapAAD(id, 0), wrapAAD(id, 1)) {
		t.Errorf("expected different aad for different generations")
	}
	if bytes.Equal(wrapAAD(uuid.New(), 0), wrapAAD(uuid.New(), 0)) {
		t.Errorf("expected different aad for different token ids")
	}
}
