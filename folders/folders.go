// Package folders builds the system folder list of a mailbox and hands it to
// whatever renders it. Builder satisfies sessioncache.FolderTreeBuilder.
package folders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/unkn0wn-root/sessioncache"
)

// MinID is the lowest generated element id; listing from it returns the whole list.
const MinID = "------------"

var ErrNoFolderList = errors.New("folders: mailbox has no system folder list")

// FolderType orders system folders. Custom folders sort last.
type FolderType uint8

const (
	TypeCustom FolderType = iota
	TypeInbox
	TypeSent
	TypeTrash
	TypeArchive
	TypeSpam
	TypeDraft
)

type MailFolder struct {
	ListID           string     `json:"listId" msgpack:"listId"`
	ElementID        string     `json:"elementId" msgpack:"elementId"`
	Type             FolderType `json:"type" msgpack:"type"`
	Name             string     `json:"name" msgpack:"name"`
	MailsListID      string     `json:"mailsListId" msgpack:"mailsListId"`
	SubFoldersListID string     `json:"subFoldersListId" msgpack:"subFoldersListId"`
}

// Loader lists the folders of listID starting after start.
type Loader interface {
	LoadFolders(ctx context.Context, listID, start string) ([]MailFolder, error)
}

// Node is one folder in the rendered hierarchy. System folders have no
// parent; their subfolders point back at them.
type Node struct {
	Folder   MailFolder
	Parent   *Node
	Children []*Node
}

// Registry receives the built system folders with their subfolders attached.
type Registry interface {
	SetMailFolders(nodes []*Node)
}

// Builder loads system folders through a Loader and registers them.
type Builder struct {
	loader   Loader
	registry Registry
}

var _ sessioncache.FolderTreeBuilder = (*Builder)(nil)

func NewBuilder(loader Loader, registry Registry) *Builder {
	return &Builder{loader: loader, registry: registry}
}

func (b *Builder) Build(ctx context.Context, ref sessioncache.FolderRef) error {
	if ref.ListID == "" {
		return ErrNoFolderList
	}
	loaded, err := b.loader.LoadFolders(ctx, ref.ListID, MinID)
	if err != nil {
		return fmt.Errorf("folders: load system folders of %s: %w", ref.ListID, err)
	}
	sorted := make([]MailFolder, len(loaded))
	copy(sorted, loaded)
	sort.SliceStable(sorted, func(i, j int) bool { return rank(sorted[i].Type) < rank(sorted[j].Type) })

	nodes := make([]*Node, 0, len(sorted))
	for _, f := range sorted {
		n := &Node{Folder: f}
		if err := b.attachSubFolders(ctx, n); err != nil {
			return err
		}
		nodes = append(nodes, n)
	}
	b.registry.SetMailFolders(nodes)
	return nil
}

// attachSubFolders loads the direct subfolders of parent, if it has a
// subfolder list, and links them under it.
func (b *Builder) attachSubFolders(ctx context.Context, parent *Node) error {
	listID := parent.Folder.SubFoldersListID
	if listID == "" {
		return nil
	}
	subs, err := b.loader.LoadFolders(ctx, listID, MinID)
	if err != nil {
		return fmt.Errorf("folders: load subfolders of %s: %w", parent.Folder.ElementID, err)
	}
	parent.Children = make([]*Node, 0, len(subs))
	for _, f := range subs {
		parent.Children = append(parent.Children, &Node{Folder: f, Parent: parent})
	}
	return nil
}

func rank(t FolderType) int {
	if t == TypeCustom {
		return int(TypeDraft) + 1
	}
	return int(t)
}

// MemoryRegistry keeps the last registered folders in memory.
type MemoryRegistry struct {
	mu    sync.RWMutex
	nodes []*Node
}

func (r *MemoryRegistry) SetMailFolders(nodes []*Node) {
	r.mu.Lock()
	r.nodes = nodes
	r.mu.Unlock()
}

// MailFolders returns the registered folders in display order.
func (r *MemoryRegistry) MailFolders() []*Node {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nodes
}
