package recordstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/unkn0wn-root/sessioncache"
	"github.com/unkn0wn-root/sessioncache/codec"
	"github.com/unkn0wn-root/sessioncache/genstore"
	"github.com/unkn0wn-root/sessioncache/internal/util"
	"github.com/unkn0wn-root/sessioncache/internal/wire"
	"github.com/unkn0wn-root/sessioncache/provider"
)

const (
	defaultTTL          = 10 * time.Minute
	defaultGenRetention = 30 * 24 * time.Hour
	defaultSweep        = time.Hour
)

// Store is a generation-checked record cache for values of type V.
type Store[V any] struct {
	ns             string
	provider       provider.Provider
	codec          codec.Codec[V]
	log            sessioncache.Logger
	hooks          Hooks
	enabled        bool
	sets           bool
	defaultTTL     time.Duration
	setTTL         time.Duration
	computeSetCost SetCostFunc
	gen            genstore.GenStore
}

func New[V any](opts Options[V]) (*Store[V], error) {
	if opts.Provider == nil {
		return nil, errors.New("recordstore: provider is required")
	}
	if opts.Codec == nil {
		return nil, errors.New("recordstore: codec is required")
	}
	if opts.Namespace == "" {
		return nil, errors.New("recordstore: namespace is required")
	}

	s := &Store[V]{
		ns:       opts.Namespace,
		provider: opts.Provider,
		codec:    opts.Codec,
		enabled:  !opts.Disabled,
		sets:     !opts.DisableSets,
	}
	s.log = coalesce[sessioncache.Logger](opts.Logger, sessioncache.NopLogger{})
	s.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	s.defaultTTL = coalesce(opts.DefaultTTL, defaultTTL)
	s.setTTL = coalesce(opts.SetTTL, defaultTTL)

	if opts.ComputeSetCost != nil {
		s.computeSetCost = opts.ComputeSetCost
	} else {
		s.computeSetCost = func(string, []byte, bool, int) int64 { return 1 }
	}

	if opts.GenStore != nil {
		s.gen = opts.GenStore
	} else {
		s.gen = genstore.NewLocal(
			coalesce(opts.CleanupInterval, defaultSweep),
			coalesce(opts.GenRetention, defaultGenRetention),
		)
	}

	if _, local := s.gen.(*genstore.Local); local && s.enabled && s.sets {
		s.hooks.LocalGenWithMany()
		s.log.Warn("many-entries enabled with local generations; other processes may serve stale sets",
			sessioncache.Fields{"ns": s.ns})
	}
	return s, nil
}

func (s *Store[V]) Enabled() bool { return s.enabled }

// Close closes the generation store and then the provider.
func (s *Store[V]) Close(ctx context.Context) error {
	genErr := s.gen.Close(ctx)
	return errors.Join(genErr, s.provider.Close(ctx))
}

// Get returns the cached value for key. Corrupt, stale or undecodable entries
// are deleted and reported as a miss. Only provider read errors are returned.
func (s *Store[V]) Get(ctx context.Context, key string) (V, bool, error) {
	var zero V
	if !s.enabled {
		return zero, false, nil
	}
	sk := s.singleKey(key)
	raw, ok, err := s.provider.Get(ctx, sk)
	if err != nil || !ok {
		return zero, false, err
	}
	gen, payload, err := wire.DecodeSingle(raw)
	if err != nil {
		s.selfHeal(ctx, sk, ReasonCorrupt)
		return zero, false, nil
	}
	cur, err := s.snapshotGen(ctx, sk)
	if err != nil {
		// can't tell if it's stale; leave it for the next read
		return zero, false, nil
	}
	if gen != cur {
		s.selfHeal(ctx, sk, ReasonGenMismatch)
		return zero, false, nil
	}
	v, err := s.codec.Decode(payload)
	if err != nil {
		s.selfHeal(ctx, sk, ReasonDecode)
		return zero, false, nil
	}
	return v, true, nil
}

// SetWithGen stores value only if key's generation still equals observedGen.
// A skipped or provider-rejected write is not an error. ttl 0 => DefaultTTL.
func (s *Store[V]) SetWithGen(ctx context.Context, key string, value V, observedGen uint64, ttl time.Duration) error {
	if !s.enabled {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	sk := s.singleKey(key)
	cur, err := s.snapshotGen(ctx, sk)
	if err != nil {
		return nil
	}
	if cur != observedGen {
		s.log.Debug("SetWithGen skipped (gen moved)", sessioncache.Fields{"key": key, "obs": observedGen, "cur": cur})
		return nil
	}
	payload, err := s.codec.Encode(value)
	if err != nil {
		return fmt.Errorf("recordstore: encode %q: %w", key, err)
	}
	return s.put(ctx, sk, wire.EncodeSingle(observedGen, payload), false, 1, ttl)
}

// Invalidate bumps key's generation and deletes its single entry. Many-entries
// containing key become stale through the bump.
func (s *Store[V]) Invalidate(ctx context.Context, key string) error {
	if !s.enabled {
		return nil
	}
	sk := s.singleKey(key)
	newGen, bumpErr := s.bumpGen(ctx, sk)
	delErr := s.provider.Del(ctx, sk)

	if bumpErr != nil && delErr != nil {
		s.hooks.InvalidateOutage(key, bumpErr, delErr)
		s.log.Error("invalidate failed: gen bump and delete both failed",
			sessioncache.Fields{"key": key, "bumpErr": bumpErr, "delErr": delErr})
		return &InvalidateError{Key: key, BumpErr: bumpErr, DelErr: delErr}
	}
	if delErr != nil {
		s.log.Warn("invalidate: delete failed, gen bumped", sessioncache.Fields{"key": key, "newGen": newGen, "err": delErr})
		return nil
	}
	s.log.Debug("invalidated", sessioncache.Fields{"key": key, "newGen": newGen})
	return nil
}

// GetMany looks up keys, serving from a many-entry when one exists for the
// exact set and is fresh, and from singles otherwise. Duplicate request keys
// are answered once.
func (s *Store[V]) GetMany(ctx context.Context, keys []string) (map[string]V, []string, error) {
	out := make(map[string]V, len(keys))
	if !s.enabled {
		return out, append([]string(nil), keys...), nil
	}
	sorted := util.UniqSorted(keys)
	if len(sorted) == 0 {
		return out, nil, nil
	}

	if s.sets {
		if hit := s.getManyEntry(ctx, sorted, out); hit {
			return out, nil, nil
		}
	}

	var missing []string
	for _, k := range sorted {
		v, ok, err := s.Get(ctx, k)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			out[k] = v
		} else {
			missing = append(missing, k)
		}
	}
	return out, missing, nil
}

// getManyEntry fills out from the many-entry for sorted and reports whether it
// served every member.
func (s *Store[V]) getManyEntry(ctx context.Context, sorted []string, out map[string]V) bool {
	mk := s.manyKey(sorted)
	raw, ok, err := s.provider.Get(ctx, mk)
	if err != nil || !ok {
		return false
	}
	reject := func(reason string) bool {
		_ = s.provider.Del(ctx, mk)
		s.hooks.ManyRejected(s.ns, len(sorted), reason)
		return false
	}

	items, err := wire.DecodeMany(raw)
	if err != nil {
		return reject(RejectDecode)
	}
	valid, err := s.manyValid(ctx, sorted, items)
	if err != nil {
		s.hooks.ManyRejected(s.ns, len(sorted), RejectSnapshot)
		return false
	}
	if !valid {
		return reject(RejectStale)
	}

	vals := make(map[string]V, len(sorted))
	gens := make(map[string]uint64, len(sorted))
	for _, it := range items {
		v, err := s.codec.Decode(it.Payload)
		if err != nil {
			return reject(RejectDecode)
		}
		vals[it.Key] = v
		gens[it.Key] = it.Gen
	}
	for _, k := range sorted {
		out[k] = vals[k]
		// warm the single; CAS keeps it honest
		_ = s.SetWithGen(ctx, k, vals[k], gens[k], s.defaultTTL)
	}
	return true
}

// SetManyWithGens stores items as one many-entry plus single entries. If any
// member's generation moved (or has no observed gen) the many-entry is skipped
// and only the members whose generation is still current are seeded as
// singles.
func (s *Store[V]) SetManyWithGens(ctx context.Context, items map[string]V, observedGens map[string]uint64, ttl time.Duration) error {
	if !s.enabled || len(items) == 0 {
		return nil
	}
	if ttl <= 0 {
		ttl = s.setTTL
	}

	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	sorted := util.UniqSorted(keys)

	seedSingles := func() error {
		for _, k := range sorted {
			obs, ok := observedGens[k]
			if !ok {
				continue
			}
			if err := s.SetWithGen(ctx, k, items[k], obs, s.defaultTTL); err != nil {
				return err
			}
		}
		return nil
	}

	if !s.sets {
		return seedSingles()
	}

	storage := make([]string, len(sorted))
	for i, k := range sorted {
		storage[i] = s.singleKey(k)
	}
	cur, err := s.gen.SnapshotMany(ctx, storage)
	if err != nil {
		s.hooks.GenSnapshotError(len(storage), err)
		s.log.Warn("gen snapshot error", sessioncache.Fields{"ns": s.ns, "count": len(storage), "err": err})
		return nil
	}

	wireItems := make([]wire.Item, 0, len(sorted))
	for i, k := range sorted {
		obs, ok := observedGens[k]
		if !ok || cur[storage[i]] != obs {
			s.log.Debug("SetManyWithGens: member gen moved, seeding singles", sessioncache.Fields{"key": k})
			return seedSingles()
		}
		payload, err := s.codec.Encode(items[k])
		if err != nil {
			return fmt.Errorf("recordstore: encode %q: %w", k, err)
		}
		wireItems = append(wireItems, wire.Item{Key: k, Gen: obs, Payload: payload})
	}
	raw, err := wire.EncodeMany(wireItems)
	if err != nil {
		return err
	}
	if err := s.put(ctx, s.manyKey(sorted), raw, true, len(wireItems), ttl); err != nil {
		return err
	}
	return seedSingles()
}

func (s *Store[V]) SnapshotGen(ctx context.Context, key string) (uint64, error) {
	return s.snapshotGen(ctx, s.singleKey(key))
}

// SnapshotGens returns the current generation per unique key; missing => 0.
func (s *Store[V]) SnapshotGens(ctx context.Context, keys []string) (map[string]uint64, error) {
	out := make(map[string]uint64, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	uniq := util.UniqSorted(keys)
	storage := make([]string, len(uniq))
	for i, k := range uniq {
		storage[i] = s.singleKey(k)
	}
	m, err := s.gen.SnapshotMany(ctx, storage)
	if err != nil {
		s.hooks.GenSnapshotError(len(storage), err)
		return nil, err
	}
	for i, k := range uniq {
		out[k] = m[storage[i]]
	}
	return out, nil
}

func (s *Store[V]) put(ctx context.Context, storageKey string, raw []byte, isMany bool, count int, ttl time.Duration) error {
	ok, err := s.provider.Set(ctx, storageKey, raw, s.computeSetCost(storageKey, raw, isMany, count), ttl)
	if err != nil {
		return err
	}
	if !ok {
		s.hooks.ProviderSetRejected(storageKey, isMany)
		s.log.Debug("provider rejected set", sessioncache.Fields{"key": storageKey, "many": isMany})
	}
	return nil
}

func (s *Store[V]) selfHeal(ctx context.Context, storageKey, reason string) {
	_ = s.provider.Del(ctx, storageKey)
	s.hooks.SelfHealSingle(storageKey, reason)
}

func (s *Store[V]) snapshotGen(ctx context.Context, storageKey string) (uint64, error) {
	g, err := s.gen.Snapshot(ctx, storageKey)
	if err != nil {
		s.hooks.GenSnapshotError(1, err)
		s.log.Warn("gen snapshot error", sessioncache.Fields{"key": storageKey, "err": err})
		return 0, err
	}
	return g, nil
}

func (s *Store[V]) bumpGen(ctx context.Context, storageKey string) (uint64, error) {
	g, err := s.gen.Bump(ctx, storageKey)
	if err != nil {
		s.hooks.GenBumpError(storageKey, err)
		s.log.Error("gen bump error", sessioncache.Fields{"key": storageKey, "err": err})
		return 0, err
	}
	return g, nil
}

func (s *Store[V]) singleKey(key string) string { return "rec:" + s.ns + ":" + key }

// manyKey expects the output of util.UniqSorted.
func (s *Store[V]) manyKey(sorted []string) string {
	return util.ManyKeySorted("many:"+s.ns, sorted)
}

// manyValid reports whether every requested key is present in items with its
// current generation. Members not requested are ignored.
func (s *Store[V]) manyValid(ctx context.Context, sorted []string, items []wire.Item) (bool, error) {
	byKey := make(map[string]uint64, len(items))
	for _, it := range items {
		byKey[it.Key] = it.Gen
	}
	storage := make([]string, len(sorted))
	for i, k := range sorted {
		if _, ok := byKey[k]; !ok {
			return false, nil
		}
		storage[i] = s.singleKey(k)
	}
	cur, err := s.gen.SnapshotMany(ctx, storage)
	if err != nil {
		s.hooks.GenSnapshotError(len(storage), err)
		return false, err
	}
	for i, k := range sorted {
		if byKey[k] != cur[storage[i]] {
			return false, nil
		}
	}
	return true, nil
}

func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
