package usecase

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auditDomain "github.com/opensurvey/keyvault/internal/audit/domain"
	auditService "github.com/opensurvey/keyvault/internal/audit/service"
	apperrors "github.com/opensurvey/keyvault/internal/errors"
)

// memoryAuditRepository is an in-process Repository for exercising the chain
// logic without a database.
type memoryAuditRepository struct {
	mu      sync.Mutex
	entries []*auditDomain.Entry
}

func (m *memoryAuditRepository) Create(ctx context.Context, entry *auditDomain.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *entry
	m.entries = append(m.entries, &clone)
	return nil
}

func (m *memoryAuditRepository) GetHead(ctx context.Context) (*auditDomain.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) == 0 {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "audit ledger is empty")
	}
	clone := *m.entries[len(m.entries)-1]
	return &clone, nil
}

func (m *memoryAuditRepository) List(ctx context.Context, afterSeq uint64, limit int) ([]*auditDomain.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*auditDomain.Entry
	for _, entry := range m.entries {
		if entry.Seq > afterSeq && len(out) < limit {
			clone := *entry
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (m *memoryAuditRepository) ListBySubject(ctx context.Context, subjectRef string, limit int) ([]*auditDomain.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*auditDomain.Entry
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if m.entries[i].SubjectRef == subjectRef {
			clone := *m.entries[i]
			out = append(out, &clone)
		}
	}
	return out, nil
}

func newTestAudit() (*AuditUseCase, *memoryAuditRepository) {
	repo := &memoryAuditRepository{}
	return NewAuditUseCase(repo, auditService.NewChainHasher()), repo
}

func TestAuditUseCaseRecordBuildsChain(t *testing.T) {
	uc, _ := newTestAudit()
	ctx := context.Background()
	surveyRef := "survey:" + uuid.NewString()

	first, err := uc.Record(ctx, "user:alice", auditDomain.ActionSurveyKeyCreated, surveyRef, map[string]string{"tier": "pro"})
	require.NoError(t, err)
	second, err := uc.Record(ctx, "user:alice", auditDomain.ActionSurveyKeyUnlocked, surveyRef, nil)
	require.NoError(t, err)

	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, make([]byte, auditDomain.HashSize), first.PrevHash)
	assert.Equal(t, uint64(2), second.Seq)
	assert.Equal(t, first.ThisHash, second.PrevHash)
	assert.Len(t, second.ThisHash, auditDomain.HashSize)

	report, err := uc.VerifyChain(ctx)
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Equal(t, uint64(2), report.Entries)
	assert.Equal(t, second.ThisHash, report.HeadHash)

	recent, err := uc.ListBySubject(ctx, surveyRef, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, auditDomain.ActionSurveyKeyUnlocked, recent[0].Action)
}

func TestAuditUseCaseVerifyDetectsSingleByteTamper(t *testing.T) {
	uc, repo := newTestAudit()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := uc.Record(ctx, "system", auditDomain.ActionRecoverySubmitted, "recovery:r1", nil)
		require.NoError(t, err)
	}

	// Flip one bit in a middle entry's recorded actor.
	repo.entries[2].Actor = "systeM"

	report, err := uc.VerifyChain(ctx)
	require.NoError(t, err)
	assert.False(t, report.Valid)
	require.NotNil(t, report.BrokenSeq)
	assert.Equal(t, uint64(3), *report.BrokenSeq)
}

func TestAuditUseCaseVerifyDetectsDeletedEntry(t *testing.T) {
	uc, repo := newTestAudit()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := uc.Record(ctx, "system", auditDomain.ActionRecoveryApproved, "recovery:r2", nil)
		require.NoError(t, err)
	}

	// Remove a middle entry, leaving a sequence gap.
	repo.entries = append(repo.entries[:1], repo.entries[2:]...)

	report, err := uc.VerifyChain(ctx)
	require.NoError(t, err)
	assert.False(t, report.Valid)
	require.NotNil(t, report.BrokenSeq)
	assert.Equal(t, uint64(3), *report.BrokenSeq)
}

func TestAuditUseCaseVerifyEmptyLedger(t *testing.T) {
	uc, _ := newTestAudit()

	report, err := uc.VerifyChain(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Zero(t, report.Entries)
}
