package escrow

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	apperrors "github.com/opensurvey/keyvault/internal/errors"
)

// RetryingStore decorates a Store with exponential backoff on transient
// failures. Not-found results pass through untouched; only availability
// errors are retried.
type RetryingStore struct {
	inner      Store
	maxElapsed time.Duration
}

// NewRetryingStore decorates inner with retries up to maxElapsed total wait.
func NewRetryingStore(inner Store, maxElapsed time.Duration) *RetryingStore {
	return &RetryingStore{inner: inner, maxElapsed: maxElapsed}
}

func (r *RetryingStore) newBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = r.maxElapsed
	return backoff.WithContext(b, ctx)
}

// retryable marks non-availability errors permanent so backoff stops on them.
func retryable(err error) error {
	if err == nil {
		return nil
	}
	if apperrors.Is(err, ErrEscrowUnavailable) {
		return err
	}
	return backoff.Permanent(err)
}

// Put writes an entry, retrying on availability errors.
func (r *RetryingStore) Put(ctx context.Context, entry *Entry) (int, error) {
	var version int
	operation := func() error {
		var err error
		version, err = r.inner.Put(ctx, entry)
		return retryable(err)
	}
	if err := backoff.Retry(operation, r.newBackoff(ctx)); err != nil {
		return 0, err
	}
	return version, nil
}

// Get retrieves an entry, retrying on availability errors.
func (r *RetryingStore) Get(ctx context.Context, surveyID uuid.UUID) (*Entry, error) {
	var entry *Entry
	operation := func() error {
		var err error
		entry, err = r.inner.Get(ctx, surveyID)
		return retryable(err)
	}
	if err := backoff.Retry(operation, r.newBackoff(ctx)); err != nil {
		return nil, err
	}
	return entry, nil
}

// Delete destroys an entry, retrying on availability errors.
func (r *RetryingStore) Delete(ctx context.Context, surveyID uuid.UUID) error {
	operation := func() error {
		return retryable(r.inner.Delete(ctx, surveyID))
	}
	return backoff.Retry(operation, r.newBackoff(ctx))
}
