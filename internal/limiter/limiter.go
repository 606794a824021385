// Package limiter throttles credential validation attempts of the config flow.
package limiter

import (
	"context"
	"crypto/sha256"
	"time"
)

// Defaults used by the daemon.
const (
	DefaultWindow   = 15 * time.Minute
	DefaultMaxFails = 5
	DefaultBlockFor = 15 * time.Minute
)

// Limiter controls validation attempts and temporary lockouts per (email, source).
type Limiter interface {
	// Allow reports whether validation is currently allowed and optional retry-after.
	Allow(ctx context.Context, email string, sourceHash []byte) (bool, time.Duration, error)
	// Success resets counters after a successful validation.
	Success(ctx context.Context, email string, sourceHash []byte) error
	// Failure records a rejected attempt; may place a temporary block.
	Failure(ctx context.Context, email string, sourceHash []byte) (bool, time.Duration, error)
}

// HashSource returns a stable hash for a caller address to avoid storing raw addresses.
func HashSource(addr string) []byte {
	h := sha256.Sum256([]byte(addr))
	return h[:]
}
