package sessioncache_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sc "github.com/unkn0wn-root/sessioncache"
	"github.com/unkn0wn-root/sessioncache/symcrypto"
)

// ==============================
// Fakes
// ==============================

// backend serves root pointers and records from memory. A kind listed in
// wait blocks in LoadEntity until its channel is closed.
type backend struct {
	mu       sync.Mutex
	roots    map[string]sc.Reference // "<group>/<rootID>" -> reference
	records  map[sc.Reference]sc.Record
	loadErr  map[sc.Kind]error
	wait     map[sc.Kind]<-chan struct{}
	resolved []string
	loaded   []sc.Kind
}

func newBackend() *backend {
	return &backend{
		roots:   make(map[string]sc.Reference),
		records: make(map[sc.Reference]sc.Record),
		loadErr: make(map[sc.Kind]error),
		wait:    make(map[sc.Kind]<-chan struct{}),
	}
}

func (b *backend) put(groupID string, rec sc.Record, ref sc.Reference) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.roots[groupID+"/"+rec.Kind().RootID()] = ref
	b.records[ref] = rec
}

func (b *backend) LoadRoot(_ context.Context, groupID, rootID string) (sc.RootPointer, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.resolved = append(b.resolved, rootID)
	ref, ok := b.roots[groupID+"/"+rootID]
	if !ok {
		return sc.RootPointer{}, fmt.Errorf("root %s/%s: %w", groupID, rootID, sc.ErrNotFound)
	}
	return sc.RootPointer{GroupID: groupID, RootID: rootID, Reference: ref}, nil
}

func (b *backend) LoadEntity(ctx context.Context, kind sc.Kind, ref sc.Reference) (sc.Record, error) {
	b.mu.Lock()
	wait := b.wait[kind]
	b.mu.Unlock()
	if wait != nil {
		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.loaded = append(b.loaded, kind)
	if err := b.loadErr[kind]; err != nil {
		return nil, err
	}
	rec, ok := b.records[ref]
	if !ok {
		return nil, fmt.Errorf("no record at %s", ref)
	}
	return rec, nil
}

func (b *backend) resolvedRoots() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.resolved...)
}

func (b *backend) loadedKinds() []sc.Kind {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]sc.Kind(nil), b.loaded...)
}

type folderTree struct {
	err   error
	calls []sc.FolderRef
}

func (f *folderTree) Build(_ context.Context, ref sc.FolderRef) error {
	f.calls = append(f.calls, ref)
	return f.err
}

type recHooks struct {
	mu        sync.Mutex
	committed []sc.Kind
	failed    map[sc.Kind]error
	skipped   bool
	finished  []sc.State
	onFailed  func(sc.Kind)
}

func (h *recHooks) InitStarted(string, string, bool) {}
func (h *recHooks) SlotCommitted(_ string, k sc.Kind) {
	h.mu.Lock()
	h.committed = append(h.committed, k)
	h.mu.Unlock()
}
func (h *recHooks) StepFailed(_ string, _ sc.Step, k sc.Kind, err error) {
	h.mu.Lock()
	if h.failed == nil {
		h.failed = make(map[sc.Kind]error)
	}
	h.failed[k] = err
	cb := h.onFailed
	h.mu.Unlock()
	if cb != nil {
		cb(k)
	}
}
func (h *recHooks) FanOutSkipped(string) {
	h.mu.Lock()
	h.skipped = true
	h.mu.Unlock()
}
func (h *recHooks) InitFinished(_ string, s sc.State, _ time.Duration) {
	h.mu.Lock()
	h.finished = append(h.finished, s)
	h.mu.Unlock()
}

// fixture is one account: group G1, key K, one record per kind.
type fixture struct {
	groupID    string
	groupKey   sc.SymmetricKey
	bucketKeys map[sc.Kind]sc.SymmetricKey

	mb *sc.MailBox
	cl *sc.ContactList
	fs *sc.FileSystem
	sh *sc.Shares
	pr *sc.Properties

	backend *backend
	tree    *folderTree
	hooks   *recHooks
}

func newFixture(t *testing.T, kinds ...sc.Kind) *fixture {
	t.Helper()
	if len(kinds) == 0 {
		kinds = sc.Kinds[:]
	}
	f := &fixture{
		groupID:    "G1",
		groupKey:   mustKey(t),
		bucketKeys: make(map[sc.Kind]sc.SymmetricKey),
		backend:    newBackend(),
		tree:       &folderTree{},
		hooks:      &recHooks{},
	}
	f.mb = &sc.MailBox{ID: "mb", ShareBucketID: "bucket-mb", SymEncShareBucketKey: f.wrap(t, sc.KindMailBox), SystemFolders: sc.FolderRef{ListID: "sysfolders"}}
	f.cl = &sc.ContactList{ID: "cl", ShareBucketID: "bucket-cl", SymEncShareBucketKey: f.wrap(t, sc.KindContactList), ContactsListID: "contacts"}
	f.fs = &sc.FileSystem{ID: "fs", ShareBucketID: "bucket-fs", SymEncShareBucketKey: f.wrap(t, sc.KindFileSystem), FilesListID: "files"}
	f.sh = &sc.Shares{ID: "sh", RequestsListID: "requests", GrantsListID: "grants"}
	f.pr = &sc.Properties{ID: "pr", NotificationMailLanguage: "en"}

	all := map[sc.Kind]sc.Record{
		sc.KindMailBox:     f.mb,
		sc.KindContactList: f.cl,
		sc.KindFileSystem:  f.fs,
		sc.KindShares:      f.sh,
		sc.KindProperties:  f.pr,
	}
	for _, k := range kinds {
		f.backend.put(f.groupID, all[k], sc.Reference{ElementID: "el-" + k.String()})
	}
	return f
}

func (f *fixture) wrap(t *testing.T, k sc.Kind) []byte {
	t.Helper()
	key := mustKey(t)
	f.bucketKeys[k] = key
	enc, err := symcrypto.XChaCha{}.EncryptKey(f.groupKey, key)
	require.NoError(t, err)
	return enc
}

func (f *fixture) cache(t *testing.T, restricted bool) *sc.Cache {
	t.Helper()
	c, err := sc.New(sc.Options{
		Session:    sc.StaticSession{Group: f.groupID, Key: f.groupKey, Restricted: restricted},
		Pointers:   f.backend,
		Entities:   f.backend,
		Crypto:     symcrypto.XChaCha{},
		FolderTree: f.tree,
		Hooks:      f.hooks,
		NewRunID:   func() string { return "run-1" },
	})
	require.NoError(t, err)
	return c
}

func mustKey(t *testing.T) sc.SymmetricKey {
	t.Helper()
	k, err := symcrypto.GenerateKey()
	require.NoError(t, err)
	return k
}

func requireInitError(t *testing.T, err error, step sc.Step) *sc.InitError {
	t.Helper()
	require.Error(t, err)
	var ie *sc.InitError
	require.True(t, errors.As(err, &ie), "expected *InitError, got %T: %v", err, err)
	require.Equal(t, step, ie.Step)
	require.Equal(t, "run-1", ie.RunID)
	return ie
}

// ==============================
// Construction
// ==============================

func TestNewRequiresCollaborators(t *testing.T) {
	f := newFixture(t)
	full := sc.Options{
		Session:  sc.StaticSession{Group: f.groupID, Key: f.groupKey},
		Pointers: f.backend,
		Entities: f.backend,
		Crypto:   symcrypto.XChaCha{},
	}
	_, err := sc.New(full)
	require.NoError(t, err)

	cases := map[string]func(o *sc.Options){
		"session":  func(o *sc.Options) { o.Session = nil },
		"pointers": func(o *sc.Options) { o.Pointers = nil },
		"entities": func(o *sc.Options) { o.Entities = nil },
		"crypto":   func(o *sc.Options) { o.Crypto = nil },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			o := full
			mutate(&o)
			_, err := sc.New(o)
			assert.Error(t, err)
		})
	}
}

// ==============================
// Initialization protocol
// ==============================

func TestAccessorsEmptyBeforeInit(t *testing.T) {
	c := newFixture(t).cache(t, false)

	assert.Equal(t, sc.StateUninitialized, c.State())
	assert.Nil(t, c.MailBox())
	assert.Nil(t, c.ContactList())
	assert.Nil(t, c.FileSystem())
	assert.Nil(t, c.Shares())
	assert.Nil(t, c.Properties())
	for _, k := range sc.Kinds {
		assert.True(t, c.Slot(k).IsEmpty(), "slot %s", k)
	}

	_, err := c.MailBoxBucketData()
	assert.ErrorIs(t, err, sc.ErrSlotEmpty)
	_, err = c.ContactListBucketData()
	assert.ErrorIs(t, err, sc.ErrSlotEmpty)
	_, err = c.FileSystemBucketData()
	var ese *sc.EmptySlotError
	require.ErrorAs(t, err, &ese)
	assert.Equal(t, sc.KindFileSystem, ese.Kind)
}

func TestInitForUserPopulatesAllSlots(t *testing.T) {
	f := newFixture(t)
	c := f.cache(t, false)

	require.NoError(t, c.InitForUser(context.Background()))

	assert.Equal(t, sc.StateReady, c.State())
	assert.Same(t, f.mb, c.MailBox())
	assert.Same(t, f.pr, c.Properties())
	assert.Same(t, f.sh, c.Shares())
	assert.Same(t, f.cl, c.ContactList())
	assert.Same(t, f.fs, c.FileSystem())

	// mailbox, then properties, then the fan-out in any order
	loaded := f.backend.loadedKinds()
	require.Len(t, loaded, 5)
	assert.Equal(t, []sc.Kind{sc.KindMailBox, sc.KindProperties}, loaded[:2])
	assert.ElementsMatch(t, []sc.Kind{sc.KindContactList, sc.KindFileSystem, sc.KindShares}, loaded[2:])

	assert.Equal(t, []sc.FolderRef{{ListID: "sysfolders"}}, f.tree.calls)
	assert.ElementsMatch(t, sc.Kinds[:], f.hooks.committed)
	assert.False(t, f.hooks.skipped)
	assert.Equal(t, []sc.State{sc.StateReady}, f.hooks.finished)
}

func TestInitForUserRestrictedSkipsFanOut(t *testing.T) {
	// restricted accounts have no pointers for the fan-out kinds at all
	f := newFixture(t, sc.KindMailBox, sc.KindProperties)
	c := f.cache(t, true)

	require.NoError(t, c.InitForUser(context.Background()))

	assert.Equal(t, sc.StateReady, c.State())
	assert.Same(t, f.mb, c.MailBox())
	assert.Same(t, f.pr, c.Properties())
	assert.Nil(t, c.ContactList())
	assert.Nil(t, c.FileSystem())
	assert.Nil(t, c.Shares())

	assert.Equal(t, []string{sc.MailBoxRootID, sc.PropertiesRootID}, f.backend.resolvedRoots())
	assert.True(t, f.hooks.skipped)
	assert.Empty(t, f.hooks.failed)
}

func TestMailBoxFailureStopsInit(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("connection refused")
	f.backend.loadErr[sc.KindMailBox] = boom
	c := f.cache(t, false)

	err := c.InitForUser(context.Background())
	requireInitError(t, err, sc.StepMailBox)
	assert.ErrorIs(t, err, boom)
	var te *sc.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "load", te.Op)

	assert.Equal(t, sc.StateFailed, c.State())
	assert.Nil(t, c.MailBox())
	assert.Nil(t, c.Properties())
	assert.Equal(t, []string{sc.MailBoxRootID}, f.backend.resolvedRoots())
	assert.Empty(t, f.tree.calls)
}

func TestMissingMailBoxPointerIsNotFound(t *testing.T) {
	f := newFixture(t, sc.KindProperties)
	c := f.cache(t, false)

	err := c.InitForUser(context.Background())
	requireInitError(t, err, sc.StepMailBox)
	assert.ErrorIs(t, err, sc.ErrNotFound)
	var nf *sc.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, sc.KindMailBox, nf.Kind)
	assert.Equal(t, "G1", nf.GroupID)
	assert.Nil(t, c.Properties())
}

func TestFolderTreeFailureKeepsMailBox(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("folder list unavailable")
	f.tree.err = boom
	c := f.cache(t, false)

	err := c.InitForUser(context.Background())
	requireInitError(t, err, sc.StepMailBox)
	var te *sc.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "build folder tree", te.Op)
	assert.ErrorIs(t, err, boom)

	// the mailbox is committed before the tree is built
	assert.Same(t, f.mb, c.MailBox())
	assert.Nil(t, c.Properties())
	assert.Equal(t, []sc.Kind{sc.KindMailBox}, f.backend.loadedKinds())
}

func TestPropertiesFailureSkipsFanOut(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("timeout")
	f.backend.loadErr[sc.KindProperties] = boom
	c := f.cache(t, false)

	err := c.InitForUser(context.Background())
	requireInitError(t, err, sc.StepProperties)
	assert.ErrorIs(t, err, boom)

	assert.Same(t, f.mb, c.MailBox())
	assert.Nil(t, c.Properties())
	assert.Nil(t, c.ContactList())
	assert.Nil(t, c.FileSystem())
	assert.Nil(t, c.Shares())
	assert.Equal(t, []sc.Kind{sc.KindMailBox, sc.KindProperties}, f.backend.loadedKinds())
	assert.Contains(t, f.hooks.failed, sc.KindProperties)
}

// lookalike claims a kind without being that kind's record type.
type lookalike struct{ kind sc.Kind }

func (l lookalike) Kind() sc.Kind { return l.kind }

func TestRecordOfWrongTypeFailsStep(t *testing.T) {
	f := newFixture(t, sc.KindMailBox, sc.KindProperties)
	f.backend.records[sc.Reference{ElementID: "el-" + sc.KindProperties.String()}] = lookalike{kind: sc.KindProperties}
	c := f.cache(t, true)

	err := c.InitForUser(context.Background())
	requireInitError(t, err, sc.StepProperties)
	var te *sc.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "load", te.Op)

	assert.Equal(t, sc.StateFailed, c.State())
	assert.Same(t, f.mb, c.MailBox())
	assert.Nil(t, c.Properties())
	assert.True(t, c.Slot(sc.KindProperties).IsEmpty())
	assert.Equal(t, []sc.Kind{sc.KindMailBox}, f.hooks.committed)
}

func TestMailBoxOfWrongTypeFailsWithoutPanic(t *testing.T) {
	f := newFixture(t)
	f.backend.records[sc.Reference{ElementID: "el-" + sc.KindMailBox.String()}] = lookalike{kind: sc.KindMailBox}
	c := f.cache(t, false)

	var err error
	require.NotPanics(t, func() { err = c.InitForUser(context.Background()) })
	requireInitError(t, err, sc.StepMailBox)
	assert.Nil(t, c.MailBox())
	assert.Empty(t, f.tree.calls)
	assert.Empty(t, f.hooks.committed)
}

// FileSystem fails first; ContactList only finishes loading after the
// failure was reported and must still be cached.
func TestFanOutFailureKeepsSiblingsThatSucceed(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("file system shard down")
	f.backend.loadErr[sc.KindFileSystem] = boom

	fsFailed := make(chan struct{})
	var once sync.Once
	f.hooks.onFailed = func(k sc.Kind) {
		if k == sc.KindFileSystem {
			once.Do(func() { close(fsFailed) })
		}
	}
	f.backend.wait[sc.KindContactList] = fsFailed
	c := f.cache(t, false)

	err := c.InitForUser(context.Background())
	requireInitError(t, err, sc.StepFanOut)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, sc.StateFailed, c.State())

	assert.Same(t, f.cl, c.ContactList(), "late sibling is committed")
	assert.Same(t, f.sh, c.Shares())
	assert.Nil(t, c.FileSystem())
	assert.Same(t, f.mb, c.MailBox())
	assert.Same(t, f.pr, c.Properties())
}

func TestFanOutJoinsEveryMemberError(t *testing.T) {
	f := newFixture(t, sc.KindMailBox, sc.KindProperties, sc.KindFileSystem)
	shareErr := errors.New("shares: 503")
	f.backend.loadErr[sc.KindShares] = shareErr
	c := f.cache(t, false)

	err := c.InitForUser(context.Background())
	requireInitError(t, err, sc.StepFanOut)
	assert.ErrorIs(t, err, sc.ErrNotFound, "contact list has no pointer")

	// shares has no pointer either, so its load error never fires
	assert.NotErrorIs(t, err, shareErr)
	assert.Same(t, f.fs, c.FileSystem())
	assert.Len(t, f.hooks.failed, 2)
}

func TestReinitOverwritesOnlySuccessfulSlots(t *testing.T) {
	f := newFixture(t)
	c := f.cache(t, false)
	require.NoError(t, c.InitForUser(context.Background()))

	newCL := &sc.ContactList{ID: "cl2", ShareBucketID: "bucket-cl2", SymEncShareBucketKey: f.cl.SymEncShareBucketKey}
	f.backend.put(f.groupID, newCL, sc.Reference{ElementID: "el-contact_list-2"})
	f.backend.loadErr[sc.KindFileSystem] = errors.New("gone")

	err := c.InitForUser(context.Background())
	requireInitError(t, err, sc.StepFanOut)

	assert.Same(t, newCL, c.ContactList())
	assert.Same(t, f.fs, c.FileSystem(), "previous run's slot survives")
	assert.Equal(t, []sc.State{sc.StateReady, sc.StateFailed}, f.hooks.finished)
}

func TestResetEmptiesSlots(t *testing.T) {
	f := newFixture(t)
	c := f.cache(t, false)
	require.NoError(t, c.InitForUser(context.Background()))

	c.Reset()

	assert.Equal(t, sc.StateUninitialized, c.State())
	for _, k := range sc.Kinds {
		assert.True(t, c.Slot(k).IsEmpty(), "slot %s", k)
	}
	_, err := c.MailBoxBucketData()
	assert.ErrorIs(t, err, sc.ErrSlotEmpty)
}

func TestInitWithoutFolderTree(t *testing.T) {
	f := newFixture(t)
	c, err := sc.New(sc.Options{
		Session:  sc.StaticSession{Group: f.groupID, Key: f.groupKey},
		Pointers: f.backend,
		Entities: f.backend,
		Crypto:   symcrypto.XChaCha{},
	})
	require.NoError(t, err)
	require.NoError(t, c.InitForUser(context.Background()))
	assert.Same(t, f.mb, c.MailBox())
}

// ==============================
// Bucket data
// ==============================

func TestBucketDataDerivedFromGroupKey(t *testing.T) {
	f := newFixture(t)
	c := f.cache(t, false)
	require.NoError(t, c.InitForUser(context.Background()))

	bd, err := c.MailBoxBucketData()
	require.NoError(t, err)
	assert.Equal(t, f.mb.ShareBucketID, bd.BucketID)
	assert.Equal(t, f.bucketKeys[sc.KindMailBox], bd.Key)

	bd, err = c.ContactListBucketData()
	require.NoError(t, err)
	assert.Equal(t, "bucket-cl", bd.BucketID)
	assert.Equal(t, f.bucketKeys[sc.KindContactList], bd.Key)

	bd, err = c.FileSystemBucketData()
	require.NoError(t, err)
	assert.Equal(t, "bucket-fs", bd.BucketID)
	assert.Equal(t, f.bucketKeys[sc.KindFileSystem], bd.Key)
}

func TestBucketDataCryptoFailureSurfaces(t *testing.T) {
	f := newFixture(t)
	f.mb.SymEncShareBucketKey[len(f.mb.SymEncShareBucketKey)-1] ^= 0x01
	c := f.cache(t, false)
	require.NoError(t, c.InitForUser(context.Background()))

	_, err := c.MailBoxBucketData()
	var ce *sc.CryptoError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, sc.KindMailBox, ce.Kind)
	assert.Equal(t, "bucket-mb", ce.BucketID)
	assert.ErrorIs(t, err, symcrypto.ErrAuth)

	// other slots are unaffected
	_, err = c.ContactListBucketData()
	assert.NoError(t, err)
}

func TestBucketDataUnavailableForRestrictedFanOutKinds(t *testing.T) {
	f := newFixture(t, sc.KindMailBox, sc.KindProperties)
	c := f.cache(t, true)
	require.NoError(t, c.InitForUser(context.Background()))

	_, err := c.MailBoxBucketData()
	require.NoError(t, err)
	_, err = c.ContactListBucketData()
	assert.ErrorIs(t, err, sc.ErrSlotEmpty)
	_, err = c.FileSystemBucketData()
	assert.ErrorIs(t, err, sc.ErrSlotEmpty)
}
