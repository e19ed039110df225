package escrow

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/opensurvey/keyvault/internal/errors"
)

// flakyStore fails the first n calls with ErrEscrowUnavailable, then
// delegates to a MemoryStore.
type flakyStore struct {
	*MemoryStore
	failures int
}

func (f *flakyStore) Put(ctx context.Context, entry *Entry) (int, error) {
	if f.failures > 0 {
		f.failures--
		return 0, ErrEscrowUnavailable
	}
	return f.MemoryStore.Put(ctx, entry)
}

func TestRetryingStoreRecoversFromTransientFailures(t *testing.T) {
	inner := &flakyStore{MemoryStore: NewMemoryStore(), failures: 2}
	store := NewRetryingStore(inner, 5*time.Second)

	entry := &Entry{
		SurveyID:   uuid.New(),
		Ciphertext: []byte("sealed"),
		Nonce:      []byte("nonce-bytes!"),
	}

	version, err := store.Put(context.Background(), entry)
	require.NoError(t, err)
	assert.Equal(t, 1, version)

	got, err := store.Get(context.Background(), entry.SurveyID)
	require.NoError(t, err)
	assert.Equal(t, entry.Ciphertext, got.Ciphertext)
}

func TestRetryingStoreGivesUpAfterMaxElapsed(t *testing.T) {
	inner := NewMemoryStore()
	inner.FailPuts = true
	store := NewRetryingStore(inner, 50*time.Millisecond)

	_, err := store.Put(context.Background(), &Entry{SurveyID: uuid.New()})
	assert.ErrorIs(t, err, ErrEscrowUnavailable)
	assert.ErrorIs(t, err, apperrors.ErrUnavailable)
}

func TestRetryingStoreDoesNotRetryNotFound(t *testing.T) {
	store := NewRetryingStore(NewMemoryStore(), 5*time.Second)

	start := time.Now()
	_, err := store.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrEscrowEntryNotFound)
	assert.Less(t, time.Since(start), time.Second)
}

func TestMemoryStoreVersioning(t *testing.T) {
	store := NewMemoryStore()
	entry := &Entry{SurveyID: uuid.New(), Ciphertext: []byte("a"), Nonce: []byte("n")}

	v1, err := store.Put(context.Background(), entry)
	require.NoError(t, err)
	v2, err := store.Put(context.Background(), entry)
	require.NoError(t, err)
	assert.Equal(t, 1, v1)
	assert.Equal(t, 2, v2)

	require.NoError(t, store.Delete(context.Background(), entry.SurveyID))
	_, err = store.Get(context.Background(), entry.SurveyID)
	assert.ErrorIs(t, err, ErrEscrowEntryNotFound)
}
