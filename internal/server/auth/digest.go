package auth

import (
	"crypto/subtle"
	"fmt"

	"github.com/hungtran3011/research-review-sub001/internal/common"
	"golang.org/x/crypto/blake2b"
)

// Hasher computes keyed BLAKE2b-256 digests of raw tokens. Only digests are
// persisted, so a leaked table cannot be replayed without the key.
type Hasher struct {
	key []byte
}

// NewHasher returns a Hasher keyed with key (1..64 bytes).
func NewHasher(key []byte) (*Hasher, error) {
	if len(key) == 0 || len(key) > blake2b.Size {
		return nil, fmt.Errorf("%w: digest key must be 1..%d bytes", common.ErrorValidation, blake2b.Size)
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Hasher{key: k}, nil
}

// Digest returns the keyed digest of raw.
func (h *Hasher) Digest(raw string) []byte {
	m, err := blake2b.New256(h.key)
	if err != nil {
		// key length is validated in NewHasher
		panic(err)
	}
	m.Write([]byte(raw))
	return m.Sum(nil)
}

// Equal compares a raw token against a stored digest in constant time.
func (h *Hasher) Equal(raw string, digest []byte) bool {
	d := h.Digest(raw)
	defer common.WipeByteArray(d)
	return subtle.ConstantTimeCompare(d, digest) == 1
}
