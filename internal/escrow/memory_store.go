package escrow

import (
	"bytes"
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used by tests and local development.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*Entry

	// FailPuts makes every Put fail with ErrEscrowUnavailable, for
	// exercising graceful degradation.
	FailPuts bool
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[uuid.UUID]*Entry)}
}

// Put writes an entry, bumping the version.
func (m *MemoryStore) Put(ctx context.Context, entry *Entry) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailPuts {
		return 0, ErrEscrowUnavailable
	}

	version := 1
	if existing, ok := m.entries[entry.SurveyID]; ok {
		version = existing.Version + 1
	}
	m.entries[entry.SurveyID] = &Entry{
		SurveyID:   entry.SurveyID,
		Ciphertext: bytes.Clone(entry.Ciphertext),
		Nonce:      bytes.Clone(entry.Nonce),
		Version:    version,
	}
	return version, nil
}

// Get retrieves the latest entry for a survey.
func (m *MemoryStore) Get(ctx context.Context, surveyID uuid.UUID) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[surveyID]
	if !ok {
		return nil, ErrEscrowEntryNotFound
	}
	return &Entry{
		SurveyID:   entry.SurveyID,
		Ciphertext: bytes.Clone(entry.Ciphertext),
		Nonce:      bytes.Clone(entry.Nonce),
		Version:    entry.Version,
	}, nil
}

// Delete destroys the entry for a survey.
func (m *MemoryStore) Delete(ctx context.Context, surveyID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, surveyID)
	return nil
}
