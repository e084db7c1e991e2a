// Package symcrypto implements sessioncache.SymmetricCrypto with
// XChaCha20-Poly1305 key wrapping.
//
// An encrypted key is laid out as:
//
//	nonce(24) | ciphertext(len(key)) | tag(16)
package symcrypto

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/unkn0wn-root/sessioncache"
)

var (
	ErrKeySize   = fmt.Errorf("symcrypto: parent key must be %d bytes", chacha20poly1305.KeySize)
	ErrMalformed = errors.New("symcrypto: encrypted key too short")
	ErrAuth      = errors.New("symcrypto: encrypted key failed authentication")
)

// XChaCha wraps keys with XChaCha20-Poly1305. The zero value uses crypto/rand for nonces.
type XChaCha struct {
	// Rand overrides the nonce source. Tests only.
	Rand io.Reader
}

var _ sessioncache.SymmetricCrypto = XChaCha{}

// EncryptKey encrypts key under parent.
func (x XChaCha) EncryptKey(parent, key sessioncache.SymmetricKey) ([]byte, error) {
	aead, err := newAEAD(parent)
	if err != nil {
		return nil, err
	}
	src := x.Rand
	if src == nil {
		src = rand.Reader
	}
	out := make([]byte, aead.NonceSize(), aead.NonceSize()+len(key)+aead.Overhead())
	if _, err := io.ReadFull(src, out); err != nil {
		return nil, fmt.Errorf("symcrypto: nonce: %w", err)
	}
	return aead.Seal(out, out, key, nil), nil
}

// DecryptKey reverses EncryptKey.
func (XChaCha) DecryptKey(parent sessioncache.SymmetricKey, encrypted []byte) (sessioncache.SymmetricKey, error) {
	aead, err := newAEAD(parent)
	if err != nil {
		return nil, err
	}
	if len(encrypted) < aead.NonceSize()+aead.Overhead() {
		return nil, ErrMalformed
	}
	nonce, sealed := encrypted[:aead.NonceSize()], encrypted[aead.NonceSize():]
	key, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrAuth
	}
	return key, nil
}

// GenerateKey returns a random key suitable as a group or bucket key.
func GenerateKey() (sessioncache.SymmetricKey, error) {
	k := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(k); err != nil {
		return nil, err
	}
	return k, nil
}

func newAEAD(parent sessioncache.SymmetricKey) (cipher.AEAD, error) {
	if len(parent) != chacha20poly1305.KeySize {
		return nil, ErrKeySize
	}
	return chacha20poly1305.NewX(parent)
}
