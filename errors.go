package sessioncache

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound marks a missing root pointer for a (group, kind) pair.
	// Loaders return it (or an error wrapping it) when no pointer exists.
	ErrNotFound = errors.New("sessioncache: root pointer not found")

	// ErrSlotEmpty is returned by the bucket-data accessors before the
	// corresponding slot has been populated.
	ErrSlotEmpty = errors.New("sessioncache: slot is empty")
)

// NotFoundError reports that a group has no root pointer for Kind. This is
// an inconsistency in the account data model.
type NotFoundError struct {
	Kind    Kind
	GroupID string
	Err     error // loader error, may be nil
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("sessioncache: no root pointer for %s in group %q", e.Kind, e.GroupID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }
func (e *NotFoundError) Unwrap() error        { return e.Err }

// TransportError wraps a failed remote call: a pointer or record fetch, or
// the folder tree build.
type TransportError struct {
	Op   string // "resolve", "load", "build folder tree"
	Kind Kind
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("sessioncache: %s %s: %v", e.Op, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// CryptoError reports that a bucket key could not be decrypted with the group
// key (key mismatch or corrupt data).
type CryptoError struct {
	Kind     Kind
	BucketID string
	Err      error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("sessioncache: decrypt bucket key of %s (bucket %q): %v", e.Kind, e.BucketID, e.Err)
}

func (e *CryptoError) Unwrap() error { return e.Err }

// EmptySlotError is returned when bucket data is requested for a kind that
// has not been cached. Calling before a successful InitForUser is a
// programming error.
type EmptySlotError struct {
	Kind Kind
}

func (e *EmptySlotError) Error() string {
	return fmt.Sprintf("sessioncache: %s is not cached", e.Kind)
}

func (e *EmptySlotError) Is(target error) bool { return target == ErrSlotEmpty }

// InitError is the single failure of one InitForUser run. For StepFanOut,
// Err joins the errors of every failed member.
type InitError struct {
	RunID string
	Step  Step
	Err   error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("sessioncache: init %s failed at %s: %v", e.RunID, e.Step, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }
