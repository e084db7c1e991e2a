// Package wire frames record-store entries so a read can tell a valid entry
// from foreign or truncated bytes and check its generation.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	version    byte = 1
	kindSingle byte = 1
	kindMany   byte = 2

	singleHeader = 4 + 1 + 1 + 8 + 4
	manyHeader   = 4 + 1 + 1 + 4
	// smallest possible item: klen(2) + key(1) + gen(8) + vlen(4)
	minItem = 2 + 1 + 8 + 4
)

var (
	ErrCorrupt = errors.New("recordstore: corrupt entry")
	magic4     = [...]byte{'S', 'R', 'E', 'C'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Single: magic(4) | ver(1) | kind(1=single) | gen(u64 be) | vlen(u32 be) | payload(vlen)
func EncodeSingle(gen uint64, payload []byte) []byte {
	out := make([]byte, singleHeader, singleHeader+len(payload))
	copy(out, magic4[:])
	out[4] = version
	out[5] = kindSingle
	binary.BigEndian.PutUint64(out[6:14], gen)
	binary.BigEndian.PutUint32(out[14:18], uint32(len(payload)))
	return append(out, payload...)
}

// DecodeSingle returns the generation and a payload slice aliasing b.
// Trailing bytes after the payload are rejected.
func DecodeSingle(b []byte) (gen uint64, payload []byte, err error) {
	if len(b) < singleHeader || !hasMagic(b) || b[4] != version || b[5] != kindSingle {
		return 0, nil, ErrCorrupt
	}
	gen = binary.BigEndian.Uint64(b[6:14])
	vlen := binary.BigEndian.Uint32(b[14:18])
	if uint64(vlen) != uint64(len(b)-singleHeader) {
		return 0, nil, ErrCorrupt
	}
	return gen, b[singleHeader:], nil
}

// Item is one member of a many-entry.
type Item struct {
	Key     string
	Gen     uint64
	Payload []byte
}

// Many:
//
//	magic(4) | ver(1) | kind(2=many) | n(u32 be)
//	keyLen(u16 be) | key(keyLen) | gen(u64 be) | vlen(u32 be) | payload(vlen) * n
func EncodeMany(items []Item) ([]byte, error) {
	total := manyHeader
	for _, it := range items {
		if l := len(it.Key); l == 0 || l > 0xFFFF {
			return nil, fmt.Errorf("recordstore: invalid key length %d in many-entry", l)
		}
		total += 2 + len(it.Key) + 8 + 4 + len(it.Payload)
	}

	out := make([]byte, manyHeader, total)
	copy(out, magic4[:])
	out[4] = version
	out[5] = kindMany
	binary.BigEndian.PutUint32(out[6:10], uint32(len(items)))

	for _, it := range items {
		out = binary.BigEndian.AppendUint16(out, uint16(len(it.Key)))
		out = append(out, it.Key...)
		out = binary.BigEndian.AppendUint64(out, it.Gen)
		out = binary.BigEndian.AppendUint32(out, uint32(len(it.Payload)))
		out = append(out, it.Payload...)
	}
	return out, nil
}

// DecodeMany parses a many-entry. Payloads alias b. Duplicate keys are
// preserved in order; trailing bytes are rejected.
func DecodeMany(b []byte) ([]Item, error) {
	if len(b) < manyHeader || !hasMagic(b) || b[4] != version || b[5] != kindMany {
		return nil, ErrCorrupt
	}
	n := int(binary.BigEndian.Uint32(b[6:10]))
	off := manyHeader

	// a bogus n must not drive a huge allocation
	if n > (len(b)-off)/minItem {
		return nil, ErrCorrupt
	}

	items := make([]Item, 0, n)
	for i := 0; i < n; i++ {
		if off+2 > len(b) {
			return nil, ErrCorrupt
		}
		klen := int(binary.BigEndian.Uint16(b[off : off+2]))
		off += 2
		if klen == 0 || klen > len(b)-off {
			return nil, ErrCorrupt
		}
		key := string(b[off : off+klen])
		off += klen

		if off+12 > len(b) {
			return nil, ErrCorrupt
		}
		gen := binary.BigEndian.Uint64(b[off : off+8])
		off += 8
		vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
		off += 4
		if vlen > len(b)-off {
			return nil, ErrCorrupt
		}

		items = append(items, Item{Key: key, Gen: gen, Payload: b[off : off+vlen : off+vlen]})
		off += vlen
	}
	if off != len(b) {
		return nil, ErrCorrupt
	}
	return items, nil
}
