// Package sloghooks logs session cache and record store events to a
// *slog.Logger. Group ids and storage keys are redacted before logging.
package sloghooks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/sessioncache"
	"github.com/unkn0wn-root/sessioncache/recordstore"
)

type Options struct {
	// Log every Nth event of the noisy kinds; 0 or 1 logs all.
	SelfHealEvery   uint64
	ManyRejectEvery uint64
	SlotCommitEvery uint64
	// Defaults to the first 8 bytes of SHA-256, hex encoded.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	selfHealCtr   atomic.Uint64
	manyRejectCtr atomic.Uint64
	slotCommitCtr atomic.Uint64
}

var (
	_ sessioncache.Hooks = (*Hooks)(nil)
	_ recordstore.Hooks  = (*Hooks)(nil)
)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n <= 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) InitStarted(runID, groupID string, restricted bool) {
	if h.l == nil {
		return
	}
	h.l.Debug("sessioncache.init_started",
		"run", runID,
		"group", h.redact(groupID),
		"restricted", restricted)
}

func (h *Hooks) SlotCommitted(runID string, kind sessioncache.Kind) {
	if h.l == nil || !sample(h.opts.SlotCommitEvery, &h.slotCommitCtr) {
		return
	}
	h.l.Debug("sessioncache.slot_committed",
		"run", runID,
		"kind", kind.String())
}

func (h *Hooks) StepFailed(runID string, step sessioncache.Step, kind sessioncache.Kind, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("sessioncache.step_failed",
		"run", runID,
		"step", step.String(),
		"kind", kind.String(),
		"err", err)
}

func (h *Hooks) FanOutSkipped(runID string) {
	if h.l == nil {
		return
	}
	h.l.Debug("sessioncache.fan_out_skipped", "run", runID)
}

func (h *Hooks) InitFinished(runID string, state sessioncache.State, elapsed time.Duration) {
	if h.l == nil {
		return
	}
	lvl := slog.LevelInfo
	if state == sessioncache.StateFailed {
		lvl = slog.LevelWarn
	}
	h.l.Log(context.Background(), lvl, "sessioncache.init_finished",
		"run", runID,
		"state", state.String(),
		"elapsed", elapsed)
}

func (h *Hooks) SelfHealSingle(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("recordstore.self_heal_single",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) ManyRejected(ns string, requested int, reason string) {
	if h.l == nil || !sample(h.opts.ManyRejectEvery, &h.manyRejectCtr) {
		return
	}
	h.l.Info("recordstore.many_rejected",
		"ns", ns,
		"requested", requested,
		"reason", reason)
}

func (h *Hooks) ProviderSetRejected(storageKey string, isMany bool) {
	if h.l == nil {
		return
	}
	h.l.Warn("recordstore.provider_set_rejected",
		"key", h.redact(storageKey),
		"is_many", isMany)
}

func (h *Hooks) GenSnapshotError(count int, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("recordstore.gen_snapshot_error",
		"count", count,
		"err", err)
}

func (h *Hooks) GenBumpError(storageKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("recordstore.gen_bump_error",
		"key", h.redact(storageKey),
		"err", err)
}

func (h *Hooks) InvalidateOutage(key string, bumpErr, delErr error) {
	if h.l == nil {
		return
	}
	h.l.Error("recordstore.invalidate_outage",
		"key", h.redact(key),
		"bump_err", bumpErr,
		"del_err", delErr)
}

func (h *Hooks) LocalGenWithMany() {
	if h.l == nil {
		return
	}
	h.l.Warn("recordstore.local_gen_with_many",
		"detail", "many-entries with process-local generations; other replicas may serve stale sets")
}
