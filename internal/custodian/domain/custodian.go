// Package domain contains the custodian share model for the platform escrow
// key. The platform escrow key is never persisted anywhere: it is split into
// shares held offline by individual custodians, and only ever reconstructed
// in process memory when a quorum of custodians submits their shares.
package domain

import (
	apperrors "github.com/opensurvey/keyvault/internal/errors"
)

// Default quorum geometry for a fresh deployment.
const (
	DefaultTotalShares = 5
	DefaultThreshold   = 3
)

// Share bounds accepted when generating a custodian set.
const (
	MinThreshold = 2
	MaxShares    = 255
)

var (
	// ErrInsufficientShares indicates fewer valid shares were combined than
	// the reconstruction threshold requires.
	ErrInsufficientShares = apperrors.Wrap(apperrors.ErrInvalidInput, "insufficient custodian shares")
	// ErrInvalidShareGeometry indicates an unusable threshold/total pairing.
	ErrInvalidShareGeometry = apperrors.Wrap(apperrors.ErrInvalidInput, "invalid custodian share geometry")
	// ErrCustodianLocked indicates the platform escrow key has not been
	// reconstructed yet in this process.
	ErrCustodianLocked = apperrors.Wrap(apperrors.ErrUnauthorized, "custodian service is locked")
	// ErrCustodianUnlocked indicates a share was submitted after the quorum
	// was already reached.
	ErrCustodianUnlocked = apperrors.Wrap(apperrors.ErrConflict, "custodian service is already unlocked")
	// ErrInvalidShare indicates a malformed or duplicate share submission.
	ErrInvalidShare = apperrors.Wrap(apperrors.ErrInvalidInput, "invalid custodian share")
)

// ShareSet is the output of splitting a platform escrow key. The shares are
// handed to custodians through an out-of-band channel and the slice must be
// zeroed afterwards; the process keeps nothing.
type ShareSet struct {
	Shares    [][]byte
	Threshold int
}

// ValidateGeometry checks a threshold/total pairing before splitting.
func ValidateGeometry(threshold, total int) error {
	if threshold < MinThreshold || total > MaxShares || threshold > total {
		return ErrInvalidShareGeometry
	}
	return nil
}
