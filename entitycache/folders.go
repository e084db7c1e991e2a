package entitycache

import (
	"context"
	"errors"

	"github.com/unkn0wn-root/sessioncache"
	"github.com/unkn0wn-root/sessioncache/folders"
)

// LoadFolders serves a full folder list (start == folders.MinID) from an
// index of element ids plus one entry per folder. Partial listings go
// straight upstream.
//
// The index is written last, with the generation observed before the
// upstream call, so elements written by a load that raced an invalidation
// are never reachable through it.
func (l *Loader) LoadFolders(ctx context.Context, listID, start string) ([]folders.MailFolder, error) {
	if l.up.folders == nil {
		return nil, ErrNoFolderLoader
	}
	if start != folders.MinID {
		return l.up.folders.LoadFolders(ctx, listID, start)
	}

	if fs, ok := l.cachedFolders(ctx, listID); ok {
		return fs, nil
	}

	obs, idxErr := l.index.SnapshotGen(ctx, listID)
	loaded, err := l.up.folders.LoadFolders(ctx, listID, start)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(loaded))
	keys := make([]string, len(loaded))
	items := make(map[string]folders.MailFolder, len(loaded))
	for i, f := range loaded {
		ids[i] = f.ElementID
		keys[i] = folderKey(listID, f.ElementID)
		items[keys[i]] = f
	}
	gens, err := l.elems.SnapshotGens(ctx, keys)
	if err != nil || idxErr != nil {
		return loaded, nil
	}
	if err := l.elems.SetManyWithGens(ctx, items, gens, l.folderTTL); err != nil {
		l.log.Warn("folder cache write failed", sessioncache.Fields{"list": listID, "err": err})
		return loaded, nil
	}
	if err := l.index.SetWithGen(ctx, listID, ids, obs, l.folderTTL); err != nil {
		l.log.Warn("folder index write failed", sessioncache.Fields{"list": listID, "err": err})
	}
	return loaded, nil
}

func (l *Loader) cachedFolders(ctx context.Context, listID string) ([]folders.MailFolder, bool) {
	ids, ok, err := l.index.Get(ctx, listID)
	if err != nil || !ok {
		return nil, false
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = folderKey(listID, id)
	}
	byKey, missing, err := l.elems.GetMany(ctx, keys)
	if err != nil || len(missing) > 0 {
		return nil, false
	}
	out := make([]folders.MailFolder, len(keys))
	for i, k := range keys {
		out[i] = byKey[k]
	}
	return out, true
}

// InvalidateFolder drops the folder at ref and the index of its list.
func (l *Loader) InvalidateFolder(ctx context.Context, ref sessioncache.Reference) error {
	return errors.Join(
		l.elems.Invalidate(ctx, folderKey(ref.ListID, ref.ElementID)),
		l.index.Invalidate(ctx, ref.ListID),
	)
}

// InvalidateFolderList drops the index of listID; the next full listing
// reloads every folder from upstream.
func (l *Loader) InvalidateFolderList(ctx context.Context, listID string) error {
	return l.index.Invalidate(ctx, listID)
}

func folderKey(listID, elementID string) string { return listID + "/" + elementID }
