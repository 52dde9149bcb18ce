// Package kv declares a small key-value contract with per-key expiry and
// provides in-memory and Redis-backed implementations of it.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned for keys that are absent or expired.
var ErrNotFound = errors.New("kv: key not found")

// Store is a key-value store with native TTL. A ttl <= 0 means no expiry.
type Store interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	// GetDel reads and removes key in one step.
	GetDel(ctx context.Context, key string) ([]byte, error)
	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
	// SetNX sets key only if it is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Ping(ctx context.Context) error
}
