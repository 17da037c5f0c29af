// Package keyderiv turns a verified password into the user's vault key.
package keyderiv

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/heartline/vault/internal/cryptox"
)

// DefaultMaxConcurrent bounds how many derivations run at once. Argon2id
// costs ~64 MiB per call, so the bound caps both CPU and memory pressure.
const DefaultMaxConcurrent = 4

// Service derives vault keys through a bounded worker pool. The KDF is
// deliberately slow; callers block until a slot frees up or their context
// is done, and must never put Derive on a latency-sensitive path.
type Service struct {
	sem *semaphore.Weighted
}

// NewService creates a Service allowing at most maxConcurrent parallel
// derivations. Values < 1 fall back to DefaultMaxConcurrent.
func NewService(maxConcurrent int64) *Service {
	if maxConcurrent < 1 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &Service{sem: semaphore.NewWeighted(maxConcurrent)}
}

// Derive computes the 256-bit vault key for (password, kdfSalt).
// Deterministic and side-effect-free: same inputs, same key. The password
// is read, never stored, logged, or returned.
//
// The caller owns the returned key and should wipe it after use.
func (s *Service) Derive(ctx context.Context, password, kdfSalt []byte) ([]byte, error) {
	if err := s.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.sem.Release(1)

	return cryptox.DeriveVaultKey(password, kdfSalt), nil
}
