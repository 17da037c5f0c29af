package cryptox

import (
	"bytes"
	"testing"
)

// low iteration count keeps the test fast; correctness does not depend on it
const testIterations = 1000

func TestHashPassword_Deterministic(t *testing.T) {
	password := []byte("secret-password")
	salt := []byte("0123456789abcdef")

	h1 := HashPassword(password, salt, testIterations)
	h2 := HashPassword(password, salt, testIterations)

	if !bytes.Equal(h1, h2) {
		t.Errorf("expected same result for same inputs, got different")
	}
	if len(h1) != PasswordHashSize {
		t.Errorf("expected %d-byte hash, got %d", PasswordHashSize, len(h1))
	}
}

func TestHashPassword_DifferentSalts(t *testing.T) {
	password := []byte("secret-password")

	h1 := HashPassword(password, []byte("salt-salt-salt-1"), testIterations)
	h2 := HashPassword(password, []byte("salt-salt-salt-2"), testIterations)

	if bytes.Equal(h1, h2) {
		t.Errorf("expected different hashes for different salts, got same")
	}
}

func TestHashPassword_DifferentIterations(t *testing.T) {
	password := []byte("secret-password")
	salt := []byte("0123456789abcdef")

	h1 := HashPassword(password, salt, testIterations)
	h2 := HashPassword(password, salt, testIterations+1)

	if bytes.Equal(h1, h2) {
		t.Errorf("expected different hashes for different iteration counts")
	}
}

func TestVerifyPassword(t *testing.T) {
	password := []byte("correct horse")
	salt := []byte("0123456789abcdef")
	stored := HashPassword(password, salt, testIterations)

	if !VerifyPassword(password, salt, stored, testIterations) {
		t.Errorf("expected correct password to verify")
	}
	if VerifyPassword([]byte("battery staple"), salt, stored, testIterations) {
		t.Errorf("expected wrong password to fail verification")
	}
}
