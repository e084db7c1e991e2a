package entitycache

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/unkn0wn-root/sessioncache"
	"github.com/unkn0wn-root/sessioncache/codec"
)

// Format selects the payload encoding of cached records and folders.
type Format uint8

const (
	FormatCBOR Format = iota
	FormatMsgpack
	FormatJSON
)

func (f Format) String() string {
	switch f {
	case FormatCBOR:
		return "cbor"
	case FormatMsgpack:
		return "msgpack"
	case FormatJSON:
		return "json"
	}
	return fmt.Sprintf("format(%d)", uint8(f))
}

func codecFor[T any](f Format) (codec.Codec[T], error) {
	switch f {
	case FormatCBOR:
		c, err := codec.NewCBOR[T](true)
		if err != nil {
			return nil, err
		}
		return c, nil
	case FormatMsgpack:
		return codec.Msgpack[T]{}, nil
	case FormatJSON:
		return codec.JSON[T]{}, nil
	}
	return nil, fmt.Errorf("entitycache: unknown format %s", f)
}

type kindCodec struct {
	encode func(sessioncache.Record) ([]byte, error)
	decode func([]byte) (sessioncache.Record, error)
}

// newKindCodec adapts a codec for record struct T to the Record interface
// implemented by *T.
func newKindCodec[T any, P interface {
	*T
	sessioncache.Record
}](f Format) (kindCodec, error) {
	c, err := codecFor[T](f)
	if err != nil {
		return kindCodec{}, err
	}
	return kindCodec{
		encode: func(r sessioncache.Record) ([]byte, error) {
			p, ok := r.(P)
			if !ok || p == nil {
				return nil, fmt.Errorf("entitycache: cannot encode %T", r)
			}
			return c.Encode(*p)
		},
		decode: func(b []byte) (sessioncache.Record, error) {
			v, err := c.Decode(b)
			if err != nil {
				return nil, err
			}
			return P(&v), nil
		},
	}, nil
}

// recordCodec frames a record as kind(1) | payload so one store holds all
// five record types.
type recordCodec struct {
	kinds map[sessioncache.Kind]kindCodec
}

var _ codec.Codec[sessioncache.Record] = recordCodec{}

func newRecordCodec(f Format) (recordCodec, error) {
	ctors := map[sessioncache.Kind]func(Format) (kindCodec, error){
		sessioncache.KindMailBox:     newKindCodec[sessioncache.MailBox],
		sessioncache.KindContactList: newKindCodec[sessioncache.ContactList],
		sessioncache.KindFileSystem:  newKindCodec[sessioncache.FileSystem],
		sessioncache.KindShares:      newKindCodec[sessioncache.Shares],
		sessioncache.KindProperties:  newKindCodec[sessioncache.Properties],
	}
	rc := recordCodec{kinds: make(map[sessioncache.Kind]kindCodec, len(ctors))}
	for k, ctor := range ctors {
		kc, err := ctor(f)
		if err != nil {
			return recordCodec{}, err
		}
		rc.kinds[k] = kc
	}
	return rc, nil
}

func (c recordCodec) Encode(r sessioncache.Record) ([]byte, error) {
	if r == nil {
		return nil, errors.New("entitycache: cannot encode nil record")
	}
	kc, ok := c.kinds[r.Kind()]
	if !ok {
		return nil, fmt.Errorf("entitycache: no codec for %s", r.Kind())
	}
	payload, err := kc.encode(r)
	if err != nil {
		return nil, err
	}
	return append([]byte{byte(r.Kind())}, payload...), nil
}

func (c recordCodec) Decode(b []byte) (sessioncache.Record, error) {
	if len(b) == 0 {
		return nil, errors.New("entitycache: empty record payload")
	}
	kc, ok := c.kinds[sessioncache.Kind(b[0])]
	if !ok {
		return nil, fmt.Errorf("entitycache: unknown record kind %d", b[0])
	}
	return kc.decode(b[1:])
}

// Root pointer fields. Unknown fields are skipped on decode.
const (
	fieldGroupID   protowire.Number = 1
	fieldRootID    protowire.Number = 2
	fieldListID    protowire.Number = 3
	fieldElementID protowire.Number = 4
)

// rootPointerCodec encodes root pointers as protobuf wire messages.
type rootPointerCodec struct{}

var _ codec.Codec[sessioncache.RootPointer] = rootPointerCodec{}

func (rootPointerCodec) Encode(p sessioncache.RootPointer) ([]byte, error) {
	var b []byte
	for _, f := range []struct {
		num protowire.Number
		v   string
	}{
		{fieldGroupID, p.GroupID},
		{fieldRootID, p.RootID},
		{fieldListID, p.Reference.ListID},
		{fieldElementID, p.Reference.ElementID},
	} {
		if f.v == "" {
			continue
		}
		b = protowire.AppendTag(b, f.num, protowire.BytesType)
		b = protowire.AppendString(b, f.v)
	}
	return b, nil
}

func (rootPointerCodec) Decode(b []byte) (sessioncache.RootPointer, error) {
	var p sessioncache.RootPointer
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return sessioncache.RootPointer{}, protowire.ParseError(n)
		}
		b = b[n:]
		if typ != protowire.BytesType || num > fieldElementID {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return sessioncache.RootPointer{}, protowire.ParseError(n)
			}
			b = b[n:]
			continue
		}
		v, n := protowire.ConsumeString(b)
		if n < 0 {
			return sessioncache.RootPointer{}, protowire.ParseError(n)
		}
		b = b[n:]
		switch num {
		case fieldGroupID:
			p.GroupID = v
		case fieldRootID:
			p.RootID = v
		case fieldListID:
			p.Reference.ListID = v
		case fieldElementID:
			p.Reference.ElementID = v
		}
	}
	return p, nil
}
