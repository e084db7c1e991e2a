package sessioncache

import "context"

// SymmetricKey is raw key material.
type SymmetricKey []byte

// Session is the logged-in user's context. It must not change for the
// lifetime of a Cache.
type Session interface {
	GroupID() string
	GroupKey() SymmetricKey
	IsRestrictedAccount() bool
}

// RootPointerLoader fetches the root pointer stored for (groupID, rootID).
// It returns an error matching ErrNotFound when none exists.
type RootPointerLoader interface {
	LoadRoot(ctx context.Context, groupID, rootID string) (RootPointer, error)
}

// EntityLoader fetches the record of kind stored at ref.
type EntityLoader interface {
	LoadEntity(ctx context.Context, kind Kind, ref Reference) (Record, error)
}

// SymmetricCrypto decrypts a key encrypted under parent.
type SymmetricCrypto interface {
	DecryptKey(parent SymmetricKey, encrypted []byte) (SymmetricKey, error)
}

// FolderTreeBuilder builds and registers the system folder hierarchy of a
// mailbox. Any error fails the mailbox step.
type FolderTreeBuilder interface {
	Build(ctx context.Context, systemFolders FolderRef) error
}

// StaticSession is a Session backed by fixed values.
type StaticSession struct {
	Group      string
	Key        SymmetricKey
	Restricted bool
}

func (s StaticSession) GroupID() string           { return s.Group }
func (s StaticSession) GroupKey() SymmetricKey    { return s.Key }
func (s StaticSession) IsRestrictedAccount() bool { return s.Restricted }

// Options wire a Cache to its collaborators.
// Session, Pointers, Entities and Crypto are required; others have sensible defaults.
type Options struct {
	// Required
	Session  Session
	Pointers RootPointerLoader
	Entities EntityLoader
	Crypto   SymmetricCrypto

	FolderTree FolderTreeBuilder // nil => mailbox step ends once the mailbox is cached
	Logger     Logger            // nil => NopLogger
	Hooks      Hooks             // nil => NopHooks
	NewRunID   func() string     // nil => random UUID
}
