// Package provider defines the byte store under the record store.
//
// Implementations must be byte-for-byte transparent: Get returns exactly the
// bytes passed to Set for that key, without added metadata or re-encoding.
//
// The keyspaces "rec:<ns>:" and "many:<ns>:" belong to the record store.
// Foreign values written there fail framing checks and are deleted on read.
package provider

import (
	"context"
	"time"
)

// Provider is a minimal byte store with TTLs, safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit and (nil, false, nil) on miss.
	// IO or remote failures return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value for ttl; ttl <= 0 means no expiry where supported.
	// cost may be ignored. ok=false means the store dropped the write.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes key. Missing keys are not an error.
	Del(ctx context.Context, key string) error

	Close(ctx context.Context) error
}
