// Package escrow stores escrow-wrapped survey keys in an external secret
// store. The payloads written here are already sealed under the platform
// escrow key, so the store only ever sees ciphertext; its availability
// affects recovery, never confidentiality.
package escrow

import (
	"context"

	"github.com/google/uuid"

	apperrors "github.com/opensurvey/keyvault/internal/errors"
)

var (
	// ErrEscrowUnavailable indicates the escrow store could not be reached.
	// Survey key creation degrades gracefully on this error; recovery does
	// not.
	ErrEscrowUnavailable = apperrors.Wrap(apperrors.ErrUnavailable, "escrow store unavailable")
	// ErrEscrowEntryNotFound indicates no escrow entry exists for the survey.
	ErrEscrowEntryNotFound = apperrors.Wrap(apperrors.ErrNotFound, "escrow entry not found")
)

// Entry is one escrow-wrapped survey key payload.
type Entry struct {
	SurveyID   uuid.UUID
	Ciphertext []byte
	Nonce      []byte
	Version    int
}

// Store persists escrow entries.
type Store interface {
	// Put writes an entry, returning the store version token for the write.
	Put(ctx context.Context, entry *Entry) (version int, err error)
	// Get retrieves the latest entry for a survey.
	Get(ctx context.Context, surveyID uuid.UUID) (*Entry, error)
	// Delete destroys the entry for a survey.
	Delete(ctx context.Context, surveyID uuid.UUID) error
}
