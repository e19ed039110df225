// Package service implements Shamir secret sharing over the platform escrow
// key and the locked holder that guards it at runtime.
package service

import (
	custodianDomain "github.com/opensurvey/keyvault/internal/custodian/domain"
)

// Splitter splits and reconstructs secrets with Shamir secret sharing.
type Splitter interface {
	// Split divides secret into total shares, any threshold of which
	// reconstruct it. The caller owns zeroing the returned shares.
	Split(secret []byte, threshold, total int) (*custodianDomain.ShareSet, error)
	// Reconstruct combines shares back into the secret. threshold is the
	// reconstruction threshold recorded at split time; fewer shares than
	// that refuse with ErrInsufficientShares.
	Reconstruct(shares [][]byte, threshold int) ([]byte, error)
}

// Custodian guards the platform escrow key in process memory. It boots
// locked; custodians submit shares until a quorum is reached, at which point
// the key becomes available to the escrow wrap path until Lock is called or
// the process exits.
type Custodian interface {
	// SubmitShare adds one custodian share toward the unlock quorum. It
	// returns true once the quorum is reached and the key reconstructed.
	SubmitShare(share []byte) (unlocked bool, err error)
	// PlatformKey returns a copy of the reconstructed platform escrow key,
	// or ErrCustodianLocked before the quorum is reached. The caller owns
	// zeroing the copy.
	PlatformKey() ([]byte, error)
	// Unlocked reports whether the quorum has been reached.
	Unlocked() bool
	// Lock zeroes the reconstructed key and returns to the locked state.
	Lock()
}
