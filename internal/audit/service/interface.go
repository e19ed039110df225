// Package service implements the audit chain hasher.
package service

import (
	auditDomain "github.com/opensurvey/keyvault/internal/audit/domain"
)

// ChainHasher computes and checks the hash chain over audit entries.
type ChainHasher interface {
	// Hash computes the chain hash for entry given its predecessor's hash.
	// prevHash is nil or all zeroes for the first entry.
	Hash(prevHash []byte, entry *auditDomain.Entry) ([]byte, error)
	// Check recomputes the hash for entry and compares it to the stored
	// ThisHash, returning ErrChainTampered on mismatch.
	Check(prevHash []byte, entry *auditDomain.Entry) error
}
