package service

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/argon2"

	keysDomain "github.com/opensurvey/keyvault/internal/keys/domain"
)

// Argon2id defaults for deriving wrapping keys from passwords and recovery
// phrases. 64 MiB memory cost keeps large-scale guessing expensive while a
// single pass keeps interactive unlock latency acceptable.
const (
	kdfTime     = 1
	kdfMemory   = 64 * 1024 // KiB
	kdfThreads  = 4
	kdfSaltSize = 16
)

// NewKDFParams returns fresh Argon2id parameters with a random salt.
func NewKDFParams() (*keysDomain.KDFParams, error) {
	salt := make([]byte, kdfSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate KDF salt: %w", err)
	}

	return &keysDomain.KDFParams{
		Time:    kdfTime,
		Memory:  kdfMemory,
		Threads: kdfThreads,
		Salt:    salt,
	}, nil
}

// DeriveWrappingKey derives a 256-bit wrapping key from a factor secret using
// Argon2id with the given parameters. Unwrap must use the exact parameters
// persisted with the wrap to re-derive the identical key.
//
// No verifier hash of the secret is ever stored: a verifier would let a caller
// tell a wrong secret apart from tampered ciphertext, and the unwrap path must
// fail uniformly.
func DeriveWrappingKey(secret []byte, params *keysDomain.KDFParams) []byte {
	return argon2.IDKey(secret, params.Salt, params.Time, params.Memory, params.Threads, keysDomain.SurveyKeySize)
}
