package service

import (
	keysDomain "github.com/opensurvey/keyvault/internal/keys/domain"
)

// aeadManager implements AEADManager by dispatching on algorithm.
type aeadManager struct{}

// NewAEADManager creates an AEADManager supporting AES-256-GCM and
// ChaCha20-Poly1305.
func NewAEADManager() AEADManager {
	return &aeadManager{}
}

// CreateCipher creates an AEAD cipher instance for the specified algorithm.
func (m *aeadManager) CreateCipher(key []byte, alg keysDomain.Algorithm) (AEAD, error) {
	if len(key) != keysDomain.SurveyKeySize {
		return nil, keysDomain.ErrInvalidKeySize
	}

	switch alg {
	case keysDomain.AESGCM:
		return NewAESGCM(key)
	case keysDomain.ChaCha20:
		return NewChaCha20Poly1305(key)
	default:
		return nil, keysDomain.ErrUnsupportedAlgorithm
	}
}
