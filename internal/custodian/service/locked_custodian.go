package service

import (
	"bytes"
	"crypto/sha256"
	"sync"

	custodianDomain "github.com/opensurvey/keyvault/internal/custodian/domain"
	apperrors "github.com/opensurvey/keyvault/internal/errors"
	keysDomain "github.com/opensurvey/keyvault/internal/keys/domain"
)

// lockedCustodian holds the platform escrow key behind a share quorum.
//
// Combining a full quorum that includes corrupted or mismatched shares does
// not error out of Shamir; it just yields a different 32-byte value. The
// holder therefore only attempts reconstruction once the configured quorum
// of distinct shares has been collected, and checks the result against the
// key fingerprint recorded when the share set was generated. The fingerprint
// is a plain SHA-256 of the key and reveals nothing useful about it.
type lockedCustodian struct {
	splitter    Splitter
	threshold   int
	fingerprint []byte

	mu       sync.Mutex
	pending  [][]byte
	key      []byte
	unlocked bool
}

// NewLockedCustodian creates a Custodian in the locked state. fingerprint is
// the SHA-256 of the platform escrow key from share generation; pass nil to
// skip verification.
func NewLockedCustodian(splitter Splitter, threshold int, fingerprint []byte) Custodian {
	return &lockedCustodian{
		splitter:    splitter,
		threshold:   threshold,
		fingerprint: fingerprint,
	}
}

// Fingerprint computes the verification fingerprint for a platform escrow
// key. Recorded alongside the share set at generation time.
func Fingerprint(key []byte) []byte {
	sum := sha256.Sum256(key)
	return sum[:]
}

// SubmitShare adds one share toward the quorum, reconstructing the key when
// the quorum is reached.
func (l *lockedCustodian) SubmitShare(share []byte) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.unlocked {
		return true, custodianDomain.ErrCustodianUnlocked
	}
	if len(share) == 0 {
		return false, custodianDomain.ErrInvalidShare
	}
	for _, pending := range l.pending {
		if bytes.Equal(pending, share) {
			return false, apperrors.Wrap(custodianDomain.ErrInvalidShare, "duplicate share")
		}
	}

	l.pending = append(l.pending, bytes.Clone(share))
	if len(l.pending) < l.threshold {
		return false, nil
	}

	key, err := l.splitter.Reconstruct(l.pending, l.threshold)
	if err != nil {
		l.discardPending()
		return false, err
	}
	if l.fingerprint != nil && !bytes.Equal(Fingerprint(key), l.fingerprint) {
		keysDomain.Zero(key)
		l.discardPending()
		return false, apperrors.Wrap(custodianDomain.ErrInvalidShare, "reconstructed key fingerprint mismatch")
	}

	l.discardPending()
	l.key = key
	l.unlocked = true
	return true, nil
}

// PlatformKey returns a copy of the reconstructed key.
func (l *lockedCustodian) PlatformKey() ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.unlocked {
		return nil, custodianDomain.ErrCustodianLocked
	}
	return bytes.Clone(l.key), nil
}

// Unlocked reports whether the quorum has been reached.
func (l *lockedCustodian) Unlocked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.unlocked
}

// Lock zeroes the key and returns to the locked state.
func (l *lockedCustodian) Lock() {
	l.mu.Lock()
	defer l.mu.Unlock()

	keysDomain.Zero(l.key)
	l.key = nil
	l.discardPending()
	l.unlocked = false
}

func (l *lockedCustodian) discardPending() {
	for _, share := range l.pending {
		keysDomain.Zero(share)
	}
	l.pending = nil
}
