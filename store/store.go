package store

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for store operations.
var (
	ErrNilStore           = errors.New("store: store is nil")
	ErrPatternUnsupported = errors.New("store: pattern deletion not supported")
)

// Options control how a computed value is written.
type Options struct {
	// TTL bounds the entry lifetime. Zero falls back to the backend's
	// default TTL.
	TTL time.Duration
}

// ComputeFunc produces the value for a key on miss. Only a value returned
// from a completed call is ever stored.
type ComputeFunc func(ctx context.Context) (any, error)

// Store is the pluggable durable cache backend.
//
// Contract:
// - Concurrency: Fetch must be safe to call from independent execution
//   units with no external synchronization. Concurrent fetches of one key
//   may race; duplicate computation is accepted and last write wins.
// - Errors: a compute error is returned unchanged and nothing is written.
//   A backend read or write failure is returned wrapped, never masked as
//   a miss, so a cache malfunction is always distinguishable from a
//   denial.
type Store interface {
	// Fetch returns the stored value for key, or runs compute, stores
	// its result under key with opts, and returns it.
	Fetch(ctx context.Context, key string, opts Options, compute ComputeFunc) (any, error)
}

// PatternDeleter is implemented by stores whose backend can enumerate
// keys. Stores without that ability simply do not implement the
// interface; DeleteMatched surfaces that as ErrPatternUnsupported rather
// than silently doing nothing.
type PatternDeleter interface {
	// DeleteMatched removes every key matching pattern, where '*'
	// matches any run of characters, and reports how many were removed.
	DeleteMatched(ctx context.Context, pattern string) (int, error)
}

// DeleteMatched deletes keys matching pattern from s, if s supports it.
func DeleteMatched(ctx context.Context, s Store, pattern string) (int, error) {
	if s == nil {
		return 0, ErrNilStore
	}
	pd, ok := s.(PatternDeleter)
	if !ok {
		return 0, ErrPatternUnsupported
	}
	return pd.DeleteMatched(ctx, pattern)
}
