package service

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"sync/atomic"

	keysDomain "github.com/opensurvey/keyvault/internal/keys/domain"
)

// NonceSource produces 96-bit AEAD nonces from an 8-byte random salt generated
// at construction plus a monotonic 32-bit counter. The salt carries the entropy
// across process restarts; the counter guarantees uniqueness within a process.
// A survey key is wrapped a handful of times over its lifetime, so collision
// for the same key is infeasible.
type NonceSource struct {
	salt    [8]byte
	counter atomic.Uint32
}

// NewNonceSource creates a NonceSource with a fresh random salt.
func NewNonceSource() (*NonceSource, error) {
	ns := &NonceSource{}
	if _, err := rand.Read(ns.salt[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce salt: %w", err)
	}
	return ns, nil
}

// Next returns the next nonce: salt (8 bytes) followed by the incremented
// counter (4 bytes, big-endian). Safe for concurrent use.
func (ns *NonceSource) Next() []byte {
	nonce := make([]byte, keysDomain.NonceSize)
	copy(nonce, ns.salt[:])
	binary.BigEndian.PutUint32(nonce[8:], ns.counter.Add(1))
	return nonce
}
