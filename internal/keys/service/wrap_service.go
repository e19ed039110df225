package service

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"

	keysDomain "github.com/opensurvey/keyvault/internal/keys/domain"
)

// wrapService implements WrapService.
//
// The plaintext survey key passes through here only transiently; callers own
// its lifetime and are responsible for zeroing it after use. Derived wrapping
// keys are zeroed before returning.
type wrapService struct {
	aeadManager AEADManager
	nonces      *NonceSource
}

// NewWrapService creates a WrapService using the provided AEADManager.
func NewWrapService(aeadManager AEADManager) (WrapService, error) {
	nonces, err := NewNonceSource()
	if err != nil {
		return nil, err
	}
	return &wrapService{aeadManager: aeadManager, nonces: nonces}, nil
}

// GenerateSurveyKey returns a fresh cryptographically random 256-bit key.
func (s *wrapService) GenerateSurveyKey() ([]byte, error) {
	key := make([]byte, keysDomain.SurveyKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate survey key: %w", err)
	}
	return key, nil
}

// wrapAAD binds a wrap's ciphertext to its survey and factor so it cannot be
// replayed for a different survey or presented as a different factor's wrap.
func wrapAAD(surveyID uuid.UUID, factorType keysDomain.FactorType) []byte {
	aad := make([]byte, 0, len(surveyID)+len(factorType))
	aad = append(aad, surveyID[:]...)
	aad = append(aad, factorType...)
	return aad
}

// Wrap seals surveyKey under the given factor.
func (s *wrapService) Wrap(
	surveyID uuid.UUID,
	surveyKey []byte,
	factorType keysDomain.FactorType,
	factorSecret []byte,
	alg keysDomain.Algorithm,
) (keysDomain.KeyWrap, error) {
	if len(surveyKey) != keysDomain.SurveyKeySize {
		return keysDomain.KeyWrap{}, keysDomain.ErrInvalidKeySize
	}
	if !factorType.Valid() {
		return keysDomain.KeyWrap{}, keysDomain.ErrFactorUnavailable
	}

	var (
		wrappingKey []byte
		kdfParams   *keysDomain.KDFParams
	)

	if factorType.DerivesFromSecret() {
		params, err := NewKDFParams()
		if err != nil {
			return keysDomain.KeyWrap{}, err
		}
		kdfParams = params
		wrappingKey = DeriveWrappingKey(factorSecret, params)
		defer keysDomain.Zero(wrappingKey)
	} else {
		if len(factorSecret) != keysDomain.SurveyKeySize {
			return keysDomain.KeyWrap{}, keysDomain.ErrInvalidKeySize
		}
		wrappingKey = factorSecret
	}

	aead, err := s.aeadManager.CreateCipher(wrappingKey, alg)
	if err != nil {
		return keysDomain.KeyWrap{}, err
	}

	nonce := s.nonces.Next()
	ciphertext, err := aead.Seal(surveyKey, nonce, wrapAAD(surveyID, factorType))
	if err != nil {
		return keysDomain.KeyWrap{}, fmt.Errorf("failed to seal survey key: %w", err)
	}

	return keysDomain.KeyWrap{
		ID:          uuid.Must(uuid.NewV7()),
		SurveyID:    surveyID,
		FactorType:  factorType,
		Algorithm:   alg,
		Ciphertext:  ciphertext,
		Nonce:       nonce,
		KDFParams:   kdfParams,
		WrapVersion: 1,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// Unwrap reverses Wrap. Every failure mode collapses into ErrWrongFactor: the
// external signaling must not reveal why decryption failed.
func (s *wrapService) Unwrap(wrap *keysDomain.KeyWrap, factorSecret []byte) ([]byte, error) {
	var wrappingKey []byte

	if wrap.FactorType.DerivesFromSecret() {
		if wrap.KDFParams == nil {
			return nil, keysDomain.ErrWrongFactor
		}
		wrappingKey = DeriveWrappingKey(factorSecret, wrap.KDFParams)
		defer keysDomain.Zero(wrappingKey)
	} else {
		if len(factorSecret) != keysDomain.SurveyKeySize {
			return nil, keysDomain.ErrWrongFactor
		}
		wrappingKey = factorSecret
	}

	aead, err := s.aeadManager.CreateCipher(wrappingKey, wrap.Algorithm)
	if err != nil {
		return nil, keysDomain.ErrWrongFactor
	}

	surveyKey, err := aead.Open(wrap.Ciphertext, wrap.Nonce, wrapAAD(wrap.SurveyID, wrap.FactorType))
	if err != nil {
		return nil, keysDomain.ErrWrongFactor
	}

	return surveyKey, nil
}
