package util

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
)

// UniqSorted returns a sorted copy of keys without duplicates.
func UniqSorted(keys []string) []string {
	if len(keys) == 0 {
		return nil
	}
	s := make([]string, len(keys))
	copy(s, keys)
	sort.Strings(s)
	out := s[:1]
	for _, k := range s[1:] {
		if k != out[len(out)-1] {
			out = append(out, k)
		}
	}
	return out
}

// ManyKeySorted returns prefix + ":" + the first 16 hex chars of a hash over
// sortedKeys. sortedKeys must be the output of UniqSorted.
func ManyKeySorted(prefix string, sortedKeys []string) string {
	h := sha256.New()
	for _, k := range sortedKeys {
		// length prefix keeps {"ab","c"} and {"a","bc"} apart
		var n [4]byte
		n[0], n[1], n[2], n[3] = byte(len(k)>>24), byte(len(k)>>16), byte(len(k)>>8), byte(len(k))
		h.Write(n[:])
		h.Write([]byte(k))
	}
	sum := h.Sum(nil)
	return prefix + ":" + hex.EncodeToString(sum[:8])
}
