package domain

import (
	"github.com/opensurvey/keyvault/internal/errors"
)

// Key hierarchy error definitions.
//
// These domain-specific errors wrap standard errors from internal/errors so the
// error handling layer can map them to HTTP status codes.
var (
	// ErrWrongFactor indicates an unwrap failed authentication. The single
	// uniform label deliberately does not distinguish a wrong secret from
	// tampered ciphertext, to avoid giving callers a decryption oracle.
	ErrWrongFactor = errors.Wrap(errors.ErrUnauthorized, "wrong factor")

	// ErrFactorUnavailable indicates the requested factor type is not
	// applicable to the survey's tier or ownership configuration, or no wrap
	// exists for it.
	ErrFactorUnavailable = errors.Wrap(errors.ErrInvalidInput, "factor unavailable")

	// ErrUnsupportedAlgorithm indicates an unknown AEAD algorithm was requested.
	ErrUnsupportedAlgorithm = errors.Wrap(errors.ErrInvalidInput, "unsupported algorithm")

	// ErrInvalidKeySize indicates key material is not exactly 32 bytes.
	ErrInvalidKeySize = errors.Wrap(errors.ErrInvalidInput, "invalid key size")

	// ErrSurveyKeyExists indicates a survey key was already generated for the
	// survey. Keys are generated exactly once, at first publish.
	ErrSurveyKeyExists = errors.Wrap(errors.ErrConflict, "survey key already exists")

	// ErrOrgMasterKeyNotFound indicates no master key exists for the organization.
	ErrOrgMasterKeyNotFound = errors.Wrap(errors.ErrNotFound, "organization master key not found")
)
