package sessioncache

import (
	"context"
	"errors"
	"fmt"
)

// RootResolver maps a (group, kind) pair to its record through the root
// pointer. It keeps no state and never retries.
type RootResolver struct {
	pointers RootPointerLoader
	entities EntityLoader
}

func NewRootResolver(pointers RootPointerLoader, entities EntityLoader) *RootResolver {
	return &RootResolver{pointers: pointers, entities: entities}
}

// Resolve returns the reference stored in the root pointer of kind for
// groupID. A missing pointer yields *NotFoundError; anything else
// *TransportError.
func (r *RootResolver) Resolve(ctx context.Context, kind Kind, groupID string) (Reference, error) {
	if !kind.Valid() {
		return Reference{}, fmt.Errorf("sessioncache: invalid kind %d", uint8(kind))
	}
	root, err := r.pointers.LoadRoot(ctx, groupID, kind.RootID())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Reference{}, &NotFoundError{Kind: kind, GroupID: groupID, Err: err}
		}
		return Reference{}, &TransportError{Op: "resolve", Kind: kind, Err: err}
	}
	if root.Reference.IsZero() {
		return Reference{}, &NotFoundError{Kind: kind, GroupID: groupID}
	}
	return root.Reference, nil
}

// Load fetches the record at ref and checks that it is of kind.
func (r *RootResolver) Load(ctx context.Context, kind Kind, ref Reference) (Record, error) {
	rec, err := r.entities.LoadEntity(ctx, kind, ref)
	if err != nil {
		return nil, &TransportError{Op: "load", Kind: kind, Err: err}
	}
	if !holdsKind(rec, kind) {
		return nil, &TransportError{Op: "load", Kind: kind, Err: fmt.Errorf("unexpected record %T at %s", rec, ref)}
	}
	return rec, nil
}

// Fetch is Resolve followed by Load.
func (r *RootResolver) Fetch(ctx context.Context, kind Kind, groupID string) (Record, error) {
	ref, err := r.Resolve(ctx, kind, groupID)
	if err != nil {
		return nil, err
	}
	return r.Load(ctx, kind, ref)
}

// holdsKind reports whether r is a non-nil record of the concrete type that
// backs kind. Kind() alone is not enough: any type can claim a kind.
func holdsKind(r Record, kind Kind) bool {
	switch v := r.(type) {
	case *MailBox:
		return v != nil && kind == KindMailBox
	case *ContactList:
		return v != nil && kind == KindContactList
	case *FileSystem:
		return v != nil && kind == KindFileSystem
	case *Shares:
		return v != nil && kind == KindShares
	case *Properties:
		return v != nil && kind == KindProperties
	}
	return false
}
