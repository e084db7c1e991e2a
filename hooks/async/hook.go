// Package asynchook moves hook calls off the init and record-store paths
// onto a bounded queue drained by worker goroutines. Events are dropped
// when the queue is full.
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{SelfHealEvery: 10})
//	hooks := asynchook.New(raw, raw, 1, 1000)
//	defer hooks.Close()
//
//	c, _ := sessioncache.New(sessioncache.Options{..., Hooks: hooks})
//	ld, _ := entitycache.New(entitycache.Options{..., Hooks: hooks})
package asynchook

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/sessioncache"
	"github.com/unkn0wn-root/sessioncache/recordstore"
)

type Hooks struct {
	session sessioncache.Hooks
	store   recordstore.Hooks

	mu      sync.RWMutex // held shared by senders, exclusively while closing q
	closed  bool
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	dropped atomic.Uint64
}

var (
	_ sessioncache.Hooks = (*Hooks)(nil)
	_ recordstore.Hooks  = (*Hooks)(nil)
)

// New forwards to session and store; either may be nil.
func New(session sessioncache.Hooks, store recordstore.Hooks, workers, qlen int) *Hooks {
	if session == nil {
		session = sessioncache.NopHooks{}
	}
	if store == nil {
		store = recordstore.NopHooks{}
	}
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{session: session, store: store, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains the queue and stops the workers. Events sent after Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped counts events lost to a full queue or sent after Close.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) InitStarted(run, group string, restricted bool) {
	h.try(func() { h.session.InitStarted(run, group, restricted) })
}
func (h *Hooks) SlotCommitted(run string, k sessioncache.Kind) {
	h.try(func() { h.session.SlotCommitted(run, k) })
}
func (h *Hooks) StepFailed(run string, s sessioncache.Step, k sessioncache.Kind, err error) {
	h.try(func() { h.session.StepFailed(run, s, k, err) })
}
func (h *Hooks) FanOutSkipped(run string) { h.try(func() { h.session.FanOutSkipped(run) }) }
func (h *Hooks) InitFinished(run string, s sessioncache.State, d time.Duration) {
	h.try(func() { h.session.InitFinished(run, s, d) })
}

func (h *Hooks) SelfHealSingle(k, r string)       { h.try(func() { h.store.SelfHealSingle(k, r) }) }
func (h *Hooks) GenBumpError(k string, err error) { h.try(func() { h.store.GenBumpError(k, err) }) }
func (h *Hooks) LocalGenWithMany()                { h.try(func() { h.store.LocalGenWithMany() }) }
func (h *Hooks) ManyRejected(ns string, n int, r string) {
	h.try(func() { h.store.ManyRejected(ns, n, r) })
}
func (h *Hooks) ProviderSetRejected(k string, many bool) {
	h.try(func() { h.store.ProviderSetRejected(k, many) })
}
func (h *Hooks) GenSnapshotError(n int, err error) {
	h.try(func() { h.store.GenSnapshotError(n, err) })
}
func (h *Hooks) InvalidateOutage(k string, be, de error) {
	h.try(func() { h.store.InvalidateOutage(k, be, de) })
}
