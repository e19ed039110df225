package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	auditDomain "github.com/opensurvey/keyvault/internal/audit/domain"
	apperrors "github.com/opensurvey/keyvault/internal/errors"
	"github.com/opensurvey/keyvault/internal/notification/domain"
	"github.com/opensurvey/keyvault/internal/testutil"
)

type memoryEventRepository struct {
	mu     sync.Mutex
	events []*domain.Event
}

func (m *memoryEventRepository) Create(ctx context.Context, event *domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *event
	m.events = append(m.events, &clone)
	return nil
}

func (m *memoryEventRepository) GetPendingEvents(ctx context.Context, limit int) ([]*domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var pending []*domain.Event
	for _, event := range m.events {
		if event.Status == domain.EventStatusPending && len(pending) < limit {
			clone := *event
			pending = append(pending, &clone)
		}
	}
	return pending, nil
}

func (m *memoryEventRepository) Update(ctx context.Context, event *domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.events {
		if existing.ID == event.ID {
			clone := *event
			m.events[i] = &clone
			return nil
		}
	}
	return apperrors.ErrNotFound
}

type countingDispatcher struct {
	mu       sync.Mutex
	failures int
	count    int
}

func (d *countingDispatcher) Dispatch(ctx context.Context, event *domain.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.count++
	if d.failures > 0 {
		d.failures--
		return apperrors.New("provider unavailable")
	}
	return nil
}

type countingAuditor struct {
	mu      sync.Mutex
	actions []auditDomain.Action
}

func (a *countingAuditor) Record(ctx context.Context, actor string, action auditDomain.Action, subjectRef string, detail any) (*auditDomain.Entry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.actions = append(a.actions, action)
	return &auditDomain.Entry{Action: action}, nil
}

func newTestNotification(dispatcher Dispatcher, auditor Auditor) (*NotificationUseCase, *memoryEventRepository) {
	repo := &memoryEventRepository{}
	uc := NewNotificationUseCase(
		Config{Interval: 10 * time.Millisecond, BatchSize: 10, MaxRetries: 2},
		testutil.NoopTxManager(),
		repo,
		dispatcher,
		auditor,
		testutil.NewTestLogger(),
	)
	return uc, repo
}

func TestNotificationDeliverySuccess(t *testing.T) {
	auditor := &countingAuditor{}
	uc, repo := newTestNotification(&countingDispatcher{}, auditor)
	ctx := context.Background()

	require.NoError(t, uc.Enqueue(ctx, "recovery_submitted", "user-1", map[string]string{"request_id": "r1"}))
	require.NoError(t, uc.ProcessEvents(ctx))

	assert.Equal(t, domain.EventStatusProcessed, repo.events[0].Status)
	assert.NotNil(t, repo.events[0].ProcessedAt)
	assert.Contains(t, auditor.actions, auditDomain.ActionNotificationSent)
}

func TestNotificationDeliveryRetriesThenFails(t *testing.T) {
	auditor := &countingAuditor{}
	dispatcher := &countingDispatcher{failures: 5}
	uc, repo := newTestNotification(dispatcher, auditor)
	ctx := context.Background()

	require.NoError(t, uc.Enqueue(ctx, "recovery_cancelled", "user-2", nil))

	// First attempt fails but stays pending.
	require.NoError(t, uc.ProcessEvents(ctx))
	assert.Equal(t, domain.EventStatusPending, repo.events[0].Status)
	assert.Equal(t, 1, repo.events[0].Retries)

	// Second failure hits MaxRetries and parks the event.
	require.NoError(t, uc.ProcessEvents(ctx))
	assert.Equal(t, domain.EventStatusFailed, repo.events[0].Status)
	require.NotNil(t, repo.events[0].LastError)

	// Failed events are not retried again.
	require.NoError(t, uc.ProcessEvents(ctx))
	assert.Equal(t, 2, dispatcher.count)

	// Every attempt was audit-logged.
	failedAttempts := 0
	for _, action := range auditor.actions {
		if action == auditDomain.ActionNotificationFailed {
			failedAttempts++
		}
	}
	assert.Equal(t, 2, failedAttempts)
}

func TestNotificationStartStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	uc, _ := newTestNotification(&countingDispatcher{}, &countingAuditor{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- uc.Start(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("processor did not stop")
	}
}
