// Package codec turns record values into payload bytes for the record store.
//
// The store frames and checks payloads itself; a codec only has to be a
// faithful round trip for V.
package codec

// Codec encodes/decodes values V to []byte.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
