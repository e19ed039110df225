package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"

	auditDomain "github.com/opensurvey/keyvault/internal/audit/domain"
)

type chainHasher struct{}

// NewChainHasher creates a new SHA-256 chain hasher.
func NewChainHasher() ChainHasher {
	return &chainHasher{}
}

// canonicalizeEntry converts an entry to its canonical byte representation.
// Format: seq || id || actor || action || subject_ref || detail || created_at
// Variable-length fields are length-prefixed to prevent ambiguity.
func canonicalizeEntry(entry *auditDomain.Entry) []byte {
	// Typical entry is well under 1KB
	buf := make([]byte, 0, 1024)

	seqBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(seqBytes, entry.Seq)
	buf = append(buf, seqBytes...)

	buf = append(buf, entry.ID[:]...)

	buf = appendLengthPrefixed(buf, []byte(entry.Actor))
	buf = appendLengthPrefixed(buf, []byte(string(entry.Action)))
	buf = appendLengthPrefixed(buf, []byte(entry.SubjectRef))
	buf = appendLengthPrefixed(buf, entry.Detail)

	timeBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(timeBytes, uint64(entry.CreatedAt.UnixNano()))
	buf = append(buf, timeBytes...)

	return buf
}

// appendLengthPrefixed adds a 4-byte big-endian length prefix followed by data.
func appendLengthPrefixed(buf []byte, data []byte) []byte {
	if len(data) > 0xFFFFFFFF {
		panic("data length exceeds uint32 max")
	}
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))
	buf = append(buf, length...)
	buf = append(buf, data...)
	return buf
}

// Hash computes SHA-256(prev_hash || canonical(entry)). A nil prevHash is
// treated as the all-zero genesis hash.
func (c *chainHasher) Hash(prevHash []byte, entry *auditDomain.Entry) ([]byte, error) {
	h := sha256.New()
	if prevHash == nil {
		prevHash = make([]byte, auditDomain.HashSize)
	}
	h.Write(prevHash)
	h.Write(canonicalizeEntry(entry))
	return h.Sum(nil), nil
}

// Check recomputes the entry hash and compares it in constant time.
func (c *chainHasher) Check(prevHash []byte, entry *auditDomain.Entry) error {
	expected, err := c.Hash(prevHash, entry)
	if err != nil {
		return err
	}
	if !hmac.Equal(expected, entry.ThisHash) {
		return auditDomain.ErrChainTampered
	}
	return nil
}
