package recordstore

import (
	"context"
	"time"

	"github.com/unkn0wn-root/sessioncache"
	"github.com/unkn0wn-root/sessioncache/codec"
	"github.com/unkn0wn-root/sessioncache/genstore"
	"github.com/unkn0wn-root/sessioncache/provider"
)

// SetCostFunc computes the provider cost of an encoded entry. count is the
// number of records framed in raw (1 for singles).
type SetCostFunc func(storageKey string, raw []byte, isMany bool, count int) int64

// CAS is the generation-checked record API implemented by *Store.
type CAS[V any] interface {
	Enabled() bool
	Close(context.Context) error

	Get(ctx context.Context, key string) (v V, ok bool, err error)
	SetWithGen(ctx context.Context, key string, value V, observedGen uint64, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error

	// GetMany returns values keyed by request key; order is up to the caller.
	GetMany(ctx context.Context, keys []string) (values map[string]V, missing []string, err error)
	SetManyWithGens(ctx context.Context, items map[string]V, observedGens map[string]uint64, ttl time.Duration) error

	SnapshotGen(ctx context.Context, key string) (uint64, error)
	SnapshotGens(ctx context.Context, keys []string) (map[string]uint64, error)
}

// Options configure a Store. Namespace, Provider and Codec are required.
type Options[V any] struct {
	Namespace string // isolates keys, e.g. "root", "mailbox", "folders"
	Provider  provider.Provider
	Codec     codec.Codec[V]

	Logger          sessioncache.Logger // nil => NopLogger
	Hooks           Hooks               // nil => NopHooks
	DefaultTTL      time.Duration       // singles; 0 => 10m
	SetTTL          time.Duration       // many-entries; 0 => 10m
	CleanupInterval time.Duration       // local gens sweep; 0 => 1h
	GenRetention    time.Duration       // local gens retention; 0 => 30d
	Disabled        bool                // every call becomes a miss or no-op
	DisableSets     bool                // SetManyWithGens seeds singles only
	ComputeSetCost  SetCostFunc         // nil => 1
	GenStore        genstore.GenStore   // nil => genstore.Local
}

var _ CAS[struct{}] = (*Store[struct{}])(nil)
