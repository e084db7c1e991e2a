package sessioncache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Cache is the per-session resource cache. Create one per login with New,
// call InitForUser once, then read through the accessors.
//
// Accessors never block on a running InitForUser and never trigger a load.
type Cache struct {
	session  Session
	resolver *RootResolver
	deriver  BucketKeyDeriver
	folders  FolderTreeBuilder
	log      Logger
	hooks    Hooks
	newRunID func() string

	// serializes InitForUser and Reset
	runMu sync.Mutex

	mu    sync.RWMutex
	state State
	slots slots
}

func New(opts Options) (*Cache, error) {
	if opts.Session == nil {
		return nil, fmt.Errorf("sessioncache: session is required")
	}
	if opts.Pointers == nil {
		return nil, fmt.Errorf("sessioncache: root pointer loader is required")
	}
	if opts.Entities == nil {
		return nil, fmt.Errorf("sessioncache: entity loader is required")
	}
	if opts.Crypto == nil {
		return nil, fmt.Errorf("sessioncache: symmetric crypto is required")
	}

	c := &Cache{
		session:  opts.Session,
		resolver: NewRootResolver(opts.Pointers, opts.Entities),
		deriver:  NewBucketKeyDeriver(opts.Crypto),
		folders:  opts.FolderTree,
	}

	// defaults
	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	c.newRunID = newRunID
	if opts.NewRunID != nil {
		c.newRunID = opts.NewRunID
	}
	return c, nil
}

// InitForUser loads every resource the session is entitled to.
//
// MailBox (and its folder tree) then Properties are loaded in order; a
// failure there returns immediately and nothing later is attempted. For
// restricted accounts the run ends after Properties. Otherwise ContactList,
// FileSystem and Shares are loaded concurrently: each member commits its own
// slot when it succeeds, and the run fails once all members have finished
// if any of them failed. Slots committed before a failure stay cached.
//
// The returned error is an *InitError. Calling again restarts the protocol
// and overwrites slots as loads succeed.
func (c *Cache) InitForUser(ctx context.Context) error {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	runID := c.newRunID()
	groupID := c.session.GroupID()
	restricted := c.session.IsRestrictedAccount()
	start := time.Now()

	c.setState(StateInitializing)
	c.hooks.InitStarted(runID, groupID, restricted)
	c.log.Info("init started", Fields{"run": runID, "group": groupID, "restricted": restricted})

	err := c.run(ctx, runID, groupID, restricted)

	state := StateReady
	if err != nil {
		state = StateFailed
	}
	c.setState(state)
	elapsed := time.Since(start)
	c.hooks.InitFinished(runID, state, elapsed)

	if err != nil {
		c.log.Error("init failed", Fields{"run": runID, "elapsed": elapsed, "err": err})
		return err
	}
	c.log.Info("init finished", Fields{"run": runID, "elapsed": elapsed})
	return nil
}

func (c *Cache) run(ctx context.Context, runID, groupID string, restricted bool) error {
	if err := c.loadMailBox(ctx, runID, groupID); err != nil {
		return c.stepFailed(runID, StepMailBox, KindMailBox, err)
	}
	if err := c.load(ctx, runID, KindProperties, groupID); err != nil {
		return c.stepFailed(runID, StepProperties, KindProperties, err)
	}

	// restricted accounts are only entitled to mailbox and properties
	if restricted {
		c.hooks.FanOutSkipped(runID)
		c.log.Info("restricted account; contact list, file system and shares not loaded", Fields{"run": runID})
		return nil
	}
	return c.fanOut(ctx, runID, groupID)
}

func (c *Cache) loadMailBox(ctx context.Context, runID, groupID string) error {
	rec, err := c.resolver.Fetch(ctx, KindMailBox, groupID)
	if err != nil {
		return err
	}
	mb, ok := rec.(*MailBox)
	if !ok {
		return &TransportError{Op: "load", Kind: KindMailBox, Err: fmt.Errorf("unexpected record %T", rec)}
	}
	c.commit(runID, rec)

	if c.folders == nil {
		return nil
	}
	if err := c.folders.Build(ctx, mb.SystemFolders); err != nil {
		return &TransportError{Op: "build folder tree", Kind: KindMailBox, Err: err}
	}
	c.log.Debug("folder tree built", Fields{"run": runID, "list": mb.SystemFolders.ListID})
	return nil
}

// fanOut runs every member to completion without cancelling siblings.
func (c *Cache) fanOut(ctx context.Context, runID, groupID string) error {
	var g errgroup.Group
	errs := make([]error, len(fanOutKinds))
	for i, kind := range fanOutKinds {
		i, kind := i, kind
		g.Go(func() error {
			if err := c.load(ctx, runID, kind, groupID); err != nil {
				c.hooks.StepFailed(runID, StepFanOut, kind, err)
				c.log.Warn("fan-out member failed", Fields{"run": runID, "kind": kind.String(), "err": err})
				errs[i] = err
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return &InitError{RunID: runID, Step: StepFanOut, Err: errors.Join(errs...)}
	}
	return nil
}

func (c *Cache) load(ctx context.Context, runID string, kind Kind, groupID string) error {
	rec, err := c.resolver.Fetch(ctx, kind, groupID)
	if err != nil {
		return err
	}
	c.commit(runID, rec)
	return nil
}

// commit replaces one slot under the write lock, so readers see either the
// previous record or the new one.
func (c *Cache) commit(runID string, rec Record) {
	c.mu.Lock()
	c.slots.put(rec)
	c.mu.Unlock()
	c.hooks.SlotCommitted(runID, rec.Kind())
	c.log.Debug("slot committed", Fields{"run": runID, "kind": rec.Kind().String()})
}

func (c *Cache) stepFailed(runID string, step Step, kind Kind, err error) error {
	c.hooks.StepFailed(runID, step, kind, err)
	return &InitError{RunID: runID, Step: step, Err: err}
}

func (c *Cache) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// State returns where the initialization protocol currently stands.
func (c *Cache) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Reset empties every slot and returns to StateUninitialized. It waits for a
// running InitForUser to finish.
func (c *Cache) Reset() {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	c.mu.Lock()
	c.slots = slots{}
	c.state = StateUninitialized
	c.mu.Unlock()
	c.log.Debug("cache reset", Fields{"group": c.session.GroupID()})
}

// Slot returns the slot of kind. Unknown kinds are always empty.
func (c *Cache) Slot(kind Kind) Slot[Record] {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.slots.get(kind)
}

// MailBox returns the cached mailbox, or nil.
func (c *Cache) MailBox() *MailBox {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, _ := c.slots.mailBox.Get()
	return v
}

// ContactList returns the cached contact list, or nil.
func (c *Cache) ContactList() *ContactList {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, _ := c.slots.contactList.Get()
	return v
}

// FileSystem returns the cached file system, or nil.
func (c *Cache) FileSystem() *FileSystem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, _ := c.slots.fileSystem.Get()
	return v
}

// Shares returns the cached shares instance, or nil.
func (c *Cache) Shares() *Shares {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, _ := c.slots.shares.Get()
	return v
}

// Properties returns the cached account properties, or nil.
func (c *Cache) Properties() *Properties {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, _ := c.slots.properties.Get()
	return v
}

// MailBoxBucketData derives the mailbox's bucket data from the live group key.
func (c *Cache) MailBoxBucketData() (BucketData, error) {
	c.mu.RLock()
	s := c.slots.mailBox
	c.mu.RUnlock()
	return bucketData(c, KindMailBox, s)
}

func (c *Cache) ContactListBucketData() (BucketData, error) {
	c.mu.RLock()
	s := c.slots.contactList
	c.mu.RUnlock()
	return bucketData(c, KindContactList, s)
}

func (c *Cache) FileSystemBucketData() (BucketData, error) {
	c.mu.RLock()
	s := c.slots.fileSystem
	c.mu.RUnlock()
	return bucketData(c, KindFileSystem, s)
}

func bucketData[T Bucketed](c *Cache, kind Kind, s Slot[T]) (BucketData, error) {
	v, ok := s.Get()
	if !ok {
		return BucketData{}, &EmptySlotError{Kind: kind}
	}
	return c.deriver.Derive(v, c.session.GroupKey())
}
