// Package kv provides the durable key-value primitive used by the
// persistent operation queue to survive restarts. Three backends are
// available: in-memory (tests), redis and sqlite.
package kv

import "context"

type Store interface {
	// Get returns the value for key; the second result is false when
	// the key is absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
