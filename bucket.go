package sessioncache

import "errors"

// BucketData couples a bucket id with the decrypted key of that bucket.
// It is derived on demand and never cached.
type BucketData struct {
	BucketID string
	Key      SymmetricKey
}

// BucketKeyDeriver decrypts share bucket keys. It holds no state besides
// the crypto primitive.
type BucketKeyDeriver struct {
	crypto SymmetricCrypto
}

func NewBucketKeyDeriver(crypto SymmetricCrypto) BucketKeyDeriver {
	return BucketKeyDeriver{crypto: crypto}
}

// Derive decrypts res's bucket key with groupKey. Decryption failures are
// returned as *CryptoError.
func (d BucketKeyDeriver) Derive(res Bucketed, groupKey SymmetricKey) (BucketData, error) {
	enc := res.EncryptedBucketKey()
	if len(enc) == 0 {
		return BucketData{}, &CryptoError{Kind: res.Kind(), BucketID: res.BucketID(), Err: errors.New("missing encrypted bucket key")}
	}
	key, err := d.crypto.DecryptKey(groupKey, enc)
	if err != nil {
		return BucketData{}, &CryptoError{Kind: res.Kind(), BucketID: res.BucketID(), Err: err}
	}
	return BucketData{BucketID: res.BucketID(), Key: key}, nil
}
