// Package service provides the cryptographic services behind the key hierarchy:
// AEAD ciphers (AES-256-GCM, ChaCha20-Poly1305), the memory-hard KDF for
// secret-derived factors, and the wrap/unwrap operations on survey keys.
package service

import (
	"context"

	"github.com/google/uuid"

	keysDomain "github.com/opensurvey/keyvault/internal/keys/domain"
)

// AEAD defines the interface for authenticated encryption with associated data.
// Nonces are supplied by the caller: wrap operations derive them from a
// monotonic per-process counter plus random salt (see NonceSource), which makes
// reuse for the same key infeasible across the key's lifetime.
type AEAD interface {
	// Seal encrypts plaintext under the given nonce and AAD.
	Seal(plaintext, nonce, aad []byte) ([]byte, error)

	// Open decrypts ciphertext using the given nonce and AAD.
	Open(ciphertext, nonce, aad []byte) ([]byte, error)
}

// AEADManager creates AEAD cipher instances for a key and algorithm.
type AEADManager interface {
	CreateCipher(key []byte, alg keysDomain.Algorithm) (AEAD, error)
}

// WrapService implements the key hierarchy's wrap/unwrap primitives.
type WrapService interface {
	// GenerateSurveyKey returns a fresh cryptographically random 256-bit key.
	GenerateSurveyKey() ([]byte, error)

	// Wrap seals surveyKey under the given factor. For password and
	// recovery_phrase factors the wrapping key is derived from factorSecret via
	// Argon2id; the other factors supply 32-byte key material directly.
	Wrap(
		surveyID uuid.UUID,
		surveyKey []byte,
		factorType keysDomain.FactorType,
		factorSecret []byte,
		alg keysDomain.Algorithm,
	) (keysDomain.KeyWrap, error)

	// Unwrap reverses Wrap. Any failure surfaces as the single uniform
	// ErrWrongFactor; callers cannot distinguish a wrong secret from tampered
	// ciphertext.
	Unwrap(wrap *keysDomain.KeyWrap, factorSecret []byte) ([]byte, error)
}

// KeeperService opens KMS keepers protecting organization master keys at rest.
type KeeperService interface {
	// OpenKeeper opens a keeper for the configured KMS provider URI.
	OpenKeeper(ctx context.Context, keyURI string) (keysDomain.Keeper, error)
}
