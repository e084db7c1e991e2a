// Package recordstore is a generation-checked cache of decoded records on top
// of any byte store implementing provider.Provider.
//
// Every record key has a generation kept in a genstore.GenStore. A write
// carries the generation the caller observed before loading the record from
// its source of truth; if the generation moved in the meantime the write is
// dropped. Invalidate bumps the generation, so an in-flight load can never
// resurrect a record that was invalidated after it started.
//
// Typical read-through flow:
//
//	v, ok, err := st.Get(ctx, key)
//	if err != nil || ok {
//		return v, err
//	}
//	obs, err := st.SnapshotGen(ctx, key)
//	if err != nil {
//		return load(ctx, key)
//	}
//	v, err = load(ctx, key)
//	if err != nil {
//		return v, err
//	}
//	_ = st.SetWithGen(ctx, key, v, obs, 0)
//	return v, nil
//
// Many-entries cache a whole set of records under one provider key derived
// from the sorted unique member keys. A many-entry is only served while every
// requested member's generation still matches; otherwise it is dropped and the
// read falls back to single entries.
//
// Keys under "rec:<ns>:" and "many:<ns>:" belong to the store. Entries there
// that fail framing or generation checks are deleted on read.
package recordstore
