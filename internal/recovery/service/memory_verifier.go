package service

import (
	"context"
	"sync"

	"github.com/google/uuid"

	apperrors "github.com/opensurvey/keyvault/internal/errors"
	recoveryUseCase "github.com/opensurvey/keyvault/internal/recovery/usecase"
)

// MemoryVerifier is an in-process Verifier for development and tests. It
// holds evidence in memory and keeps every submission pending until a verdict
// is recorded through SetResult.
type MemoryVerifier struct {
	mu       sync.Mutex
	evidence map[string][]byte
	results  map[string]*recoveryUseCase.VerificationResult
}

// NewMemoryVerifier creates an empty MemoryVerifier.
func NewMemoryVerifier() *MemoryVerifier {
	return &MemoryVerifier{
		evidence: make(map[string][]byte),
		results:  make(map[string]*recoveryUseCase.VerificationResult),
	}
}

// SubmitEvidence stores the evidence blob and returns its reference.
func (m *MemoryVerifier) SubmitEvidence(
	_ context.Context,
	requestID uuid.UUID,
	evidence []byte,
) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ref := evidencePath(requestID)
	m.evidence[ref] = append([]byte(nil), evidence...)
	return ref, nil
}

// GetVerificationResult returns the recorded verdict, or ErrReviewPending
// when none has been recorded yet.
func (m *MemoryVerifier) GetVerificationResult(
	_ context.Context,
	evidenceRef string,
) (*recoveryUseCase.VerificationResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.evidence[evidenceRef]; !ok {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "evidence not found")
	}
	if result, ok := m.results[evidenceRef]; ok {
		out := *result
		return &out, nil
	}
	return nil, ErrReviewPending
}

// SetResult records the reviewer's verdict for the given evidence reference.
func (m *MemoryVerifier) SetResult(evidenceRef string, approved bool, reviewerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.results[evidenceRef] = &recoveryUseCase.VerificationResult{
		Approved:   approved,
		ReviewerID: reviewerID,
	}
}
