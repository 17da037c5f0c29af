package blobstore

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/heartline/vault/internal/common"
)

func TestMemory_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	data := []byte("sealed bytes")
	if err := m.Put(ctx, "users/u1/attachments/a", data); err != nil {
		t.Fatalf("Put error: %v", err)
	}

	got, err := m.Get(ctx, "users/u1/attachments/a")
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Errorf("got %q, want %q", got, data)
	}

	// returned slice is a copy
	got[0] = 'X'
	again, _ := m.Get(ctx, "users/u1/attachments/a")
	if !bytes.Equal(again, data) {
		t.Errorf("stored blob mutated through returned slice")
	}

	if err := m.Delete(ctx, "users/u1/attachments/a"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, err := m.Get(ctx, "users/u1/attachments/a"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemory_GetMissing(t *testing.T) {
	m := NewMemory()
	if _, err := m.Get(context.Background(), "missing"); !errors.Is(err, common.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
