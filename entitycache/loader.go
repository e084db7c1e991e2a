// Package entitycache puts generation-checked record stores in front of the
// upstream loaders a sessioncache.Cache depends on.
//
// Loader implements sessioncache.RootPointerLoader, sessioncache.EntityLoader
// and folders.Loader. Reads are served from the provider when a fresh entry
// exists and from upstream otherwise; upstream results are written back with
// the generation observed before the upstream call, so an invalidation that
// races a load always wins.
//
//	ld, _ := entitycache.New(entitycache.Options{
//		Provider: bigcacheProvider,
//		Pointers: api, Entities: api, Folders: api,
//	})
//	c, _ := sessioncache.New(sessioncache.Options{
//		Session: sess, Pointers: ld, Entities: ld, Crypto: symcrypto.XChaCha{},
//		FolderTree: folders.NewBuilder(ld, registry),
//	})
package entitycache

import (
	"context"
	"errors"
	"time"

	"github.com/unkn0wn-root/sessioncache"
	"github.com/unkn0wn-root/sessioncache/codec"
	"github.com/unkn0wn-root/sessioncache/folders"
	"github.com/unkn0wn-root/sessioncache/genstore"
	"github.com/unkn0wn-root/sessioncache/provider"
	"github.com/unkn0wn-root/sessioncache/recordstore"
)

var ErrNoFolderLoader = errors.New("entitycache: no upstream folder loader configured")

const (
	defaultNamespace = "session"
	defaultTTL       = 10 * time.Minute
)

// Options configure a Loader. Provider, Pointers and Entities are required.
type Options struct {
	Namespace string // prefix of every store namespace; "" => "session"
	Provider  provider.Provider

	Pointers sessioncache.RootPointerLoader
	Entities sessioncache.EntityLoader
	Folders  folders.Loader // nil => LoadFolders returns ErrNoFolderLoader

	Format         Format // record and folder payloads; default CBOR
	MaxRecordBytes int    // 0 => unlimited

	RootTTL   time.Duration // 0 => 10m
	RecordTTL time.Duration // 0 => 10m
	FolderTTL time.Duration // 0 => 10m

	GenStore genstore.GenStore   // nil => genstore.Local shared by all stores
	Logger   sessioncache.Logger // nil => NopLogger
	Hooks    recordstore.Hooks   // nil => NopHooks
}

// Loader is a read-through cache of root pointers, records and folders.
type Loader struct {
	up struct {
		pointers sessioncache.RootPointerLoader
		entities sessioncache.EntityLoader
		folders  folders.Loader
	}

	roots   *recordstore.Store[sessioncache.RootPointer]
	records *recordstore.Store[sessioncache.Record]
	elems   *recordstore.Store[folders.MailFolder]
	index   *recordstore.Store[[]string]

	rootTTL, recordTTL, folderTTL time.Duration

	provider provider.Provider
	gen      genstore.GenStore
	log      sessioncache.Logger
}

var (
	_ sessioncache.RootPointerLoader = (*Loader)(nil)
	_ sessioncache.EntityLoader      = (*Loader)(nil)
	_ folders.Loader                 = (*Loader)(nil)
)

func New(opts Options) (*Loader, error) {
	if opts.Provider == nil {
		return nil, errors.New("entitycache: provider is required")
	}
	if opts.Pointers == nil || opts.Entities == nil {
		return nil, errors.New("entitycache: pointers and entities loaders are required")
	}

	rc, err := newRecordCodec(opts.Format)
	if err != nil {
		return nil, err
	}
	fc, err := codecFor[folders.MailFolder](opts.Format)
	if err != nil {
		return nil, err
	}

	ns := opts.Namespace
	if ns == "" {
		ns = defaultNamespace
	}
	l := &Loader{
		provider:  opts.Provider,
		gen:       opts.GenStore,
		log:       opts.Logger,
		rootTTL:   ttlOr(opts.RootTTL),
		recordTTL: ttlOr(opts.RecordTTL),
		folderTTL: ttlOr(opts.FolderTTL),
	}
	l.up.pointers, l.up.entities, l.up.folders = opts.Pointers, opts.Entities, opts.Folders
	if l.log == nil {
		l.log = sessioncache.NopLogger{}
	}
	if l.gen == nil {
		l.gen = genstore.NewLocal(time.Hour, 30*24*time.Hour)
	}

	env := storeEnv{ns: ns, provider: l.provider, gen: l.gen, log: l.log, hooks: opts.Hooks}
	if l.roots, err = newStore[sessioncache.RootPointer](env, "root", rootPointerCodec{}, true); err != nil {
		return nil, err
	}
	rlim := codec.Limit[sessioncache.Record]{Inner: rc, Max: opts.MaxRecordBytes}
	if l.records, err = newStore[sessioncache.Record](env, "record", rlim, true); err != nil {
		return nil, err
	}
	flim := codec.Limit[folders.MailFolder]{Inner: fc, Max: opts.MaxRecordBytes}
	if l.elems, err = newStore[folders.MailFolder](env, "folder", flim, false); err != nil {
		return nil, err
	}
	if l.index, err = newStore[[]string](env, "folder_index", codec.Msgpack[[]string]{}, true); err != nil {
		return nil, err
	}
	return l, nil
}

type storeEnv struct {
	ns       string
	provider provider.Provider
	gen      genstore.GenStore
	log      sessioncache.Logger
	hooks    recordstore.Hooks
}

// newStore builds the store "<ns>.<name>". Only the folder store keeps
// many-entries; the others are always read one key at a time.
func newStore[V any](env storeEnv, name string, c codec.Codec[V], singlesOnly bool) (*recordstore.Store[V], error) {
	return recordstore.New(recordstore.Options[V]{
		Namespace:   env.ns + "." + name,
		Provider:    env.provider,
		Codec:       c,
		Logger:      env.log,
		Hooks:       env.hooks,
		GenStore:    env.gen,
		DisableSets: singlesOnly,
	})
}

func ttlOr(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultTTL
	}
	return d
}

// LoadRoot serves the root pointer of (groupID, rootID). Upstream errors,
// including not-found, are returned unchanged and never cached.
func (l *Loader) LoadRoot(ctx context.Context, groupID, rootID string) (sessioncache.RootPointer, error) {
	return readThrough(ctx, l, l.roots, rootKey(groupID, rootID), l.rootTTL,
		func(ctx context.Context) (sessioncache.RootPointer, error) {
			return l.up.pointers.LoadRoot(ctx, groupID, rootID)
		})
}

// LoadEntity serves the record of kind at ref.
func (l *Loader) LoadEntity(ctx context.Context, kind sessioncache.Kind, ref sessioncache.Reference) (sessioncache.Record, error) {
	return readThrough(ctx, l, l.records, recordKey(kind, ref), l.recordTTL,
		func(ctx context.Context) (sessioncache.Record, error) {
			return l.up.entities.LoadEntity(ctx, kind, ref)
		})
}

// InvalidateRoot drops the cached root pointer of kind for groupID.
func (l *Loader) InvalidateRoot(ctx context.Context, groupID string, kind sessioncache.Kind) error {
	return l.roots.Invalidate(ctx, rootKey(groupID, kind.RootID()))
}

// Invalidate drops the cached record of kind at ref.
func (l *Loader) Invalidate(ctx context.Context, kind sessioncache.Kind, ref sessioncache.Reference) error {
	return l.records.Invalidate(ctx, recordKey(kind, ref))
}

// Close releases the generation store and the provider shared by all stores.
func (l *Loader) Close(ctx context.Context) error {
	return errors.Join(l.gen.Close(ctx), l.provider.Close(ctx))
}

func readThrough[V any](ctx context.Context, l *Loader, st *recordstore.Store[V], key string, ttl time.Duration, load func(context.Context) (V, error)) (V, error) {
	v, ok, err := st.Get(ctx, key)
	if err != nil {
		l.log.Warn("cache read failed, loading upstream", sessioncache.Fields{"key": key, "err": err})
	} else if ok {
		return v, nil
	}

	obs, snapErr := st.SnapshotGen(ctx, key)
	v, err = load(ctx)
	if err != nil {
		var zero V
		return zero, err
	}
	if snapErr == nil {
		if err := st.SetWithGen(ctx, key, v, obs, ttl); err != nil {
			l.log.Warn("cache write failed", sessioncache.Fields{"key": key, "err": err})
		}
	}
	return v, nil
}

func rootKey(groupID, rootID string) string { return groupID + "/" + rootID }

func recordKey(kind sessioncache.Kind, ref sessioncache.Reference) string {
	return kind.String() + "/" + ref.String()
}
