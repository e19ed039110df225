package service

import (
	"github.com/hashicorp/vault/shamir"

	custodianDomain "github.com/opensurvey/keyvault/internal/custodian/domain"
	apperrors "github.com/opensurvey/keyvault/internal/errors"
	keysDomain "github.com/opensurvey/keyvault/internal/keys/domain"
)

// shamirSplitter implements Splitter over GF(2^8) Shamir secret sharing.
type shamirSplitter struct{}

// NewShamirSplitter creates a new Splitter.
func NewShamirSplitter() Splitter {
	return &shamirSplitter{}
}

// Split divides secret into total shares with the given reconstruction
// threshold.
func (s *shamirSplitter) Split(secret []byte, threshold, total int) (*custodianDomain.ShareSet, error) {
	if len(secret) != keysDomain.SurveyKeySize {
		return nil, apperrors.Wrap(keysDomain.ErrInvalidKeySize, "platform escrow key must be 32 bytes")
	}
	if err := custodianDomain.ValidateGeometry(threshold, total); err != nil {
		return nil, err
	}

	shares, err := shamir.Split(secret, total, threshold)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to split platform escrow key")
	}
	return &custodianDomain.ShareSet{Shares: shares, Threshold: threshold}, nil
}

// Reconstruct combines shares back into the secret. Shamir itself combines
// any two or more shares into some value; the threshold check here is what
// turns a below-quorum attempt into an error instead of a silently wrong key.
func (s *shamirSplitter) Reconstruct(shares [][]byte, threshold int) ([]byte, error) {
	if threshold < custodianDomain.MinThreshold {
		return nil, custodianDomain.ErrInvalidShareGeometry
	}
	if len(shares) < threshold {
		return nil, custodianDomain.ErrInsufficientShares
	}

	secret, err := shamir.Combine(shares)
	if err != nil {
		return nil, apperrors.Wrap(custodianDomain.ErrInsufficientShares, err.Error())
	}
	if len(secret) != keysDomain.SurveyKeySize {
		keysDomain.Zero(secret)
		return nil, custodianDomain.ErrInsufficientShares
	}
	return secret, nil
}
