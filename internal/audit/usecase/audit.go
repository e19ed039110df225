// Package usecase implements audit ledger orchestration: serialized appends
// and full-chain verification.
package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/opensurvey/keyvault/internal/audit/domain"
	auditService "github.com/opensurvey/keyvault/internal/audit/service"
	apperrors "github.com/opensurvey/keyvault/internal/errors"
)

const verifyPageSize = 500

// Repository defines audit entry persistence. Append-only by construction.
type Repository interface {
	Create(ctx context.Context, entry *auditDomain.Entry) error
	GetHead(ctx context.Context) (*auditDomain.Entry, error)
	List(ctx context.Context, afterSeq uint64, limit int) ([]*auditDomain.Entry, error)
	ListBySubject(ctx context.Context, subjectRef string, limit int) ([]*auditDomain.Entry, error)
}

// Reader is the read-side surface of the ledger consumed by transport layers.
// Implemented by AuditUseCase.
type Reader interface {
	VerifyChain(ctx context.Context) (*auditDomain.VerificationReport, error)
	ListBySubject(ctx context.Context, subjectRef string, limit int) ([]*auditDomain.Entry, error)
}

// AuditUseCase appends to and verifies the hash-chained audit ledger.
//
// Record participates in whatever transaction rides on the context, which is
// how callers make "audit entry committed with the state change" atomic: the
// entry insert and the state mutation share one transaction, and a failure of
// either rolls back both.
type AuditUseCase struct {
	repository Repository
	hasher     auditService.ChainHasher

	// Appends are serialized so concurrent writers extend the chain one at
	// a time; the unique seq constraint backstops this across processes.
	mu sync.Mutex
}

// NewAuditUseCase creates a new AuditUseCase.
func NewAuditUseCase(repository Repository, hasher auditService.ChainHasher) *AuditUseCase {
	return &AuditUseCase{repository: repository, hasher: hasher}
}

// Record appends one entry to the ledger. detail may be nil or any
// JSON-serializable value; it must never contain key material or factor
// secrets.
func (a *AuditUseCase) Record(
	ctx context.Context,
	actor string,
	action auditDomain.Action,
	subjectRef string,
	detail any,
) (*auditDomain.Entry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var detailBytes []byte
	if detail != nil {
		var err error
		detailBytes, err = json.Marshal(detail)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to marshal audit detail")
		}
	}

	var (
		seq      uint64 = 1
		prevHash []byte
	)
	head, err := a.repository.GetHead(ctx)
	switch {
	case err == nil:
		seq = head.Seq + 1
		prevHash = head.ThisHash
	case apperrors.Is(err, apperrors.ErrNotFound):
		// Genesis entry, all-zero previous hash.
	default:
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to generate audit entry id")
	}

	entry := &auditDomain.Entry{
		ID:         id,
		Seq:        seq,
		PrevHash:   prevHash,
		Actor:      actor,
		Action:     action,
		SubjectRef: subjectRef,
		Detail:     detailBytes,
		CreatedAt:  time.Now().UTC(),
	}
	if entry.PrevHash == nil {
		entry.PrevHash = make([]byte, auditDomain.HashSize)
	}

	entry.ThisHash, err = a.hasher.Hash(entry.PrevHash, entry)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to hash audit entry")
	}

	if err := a.repository.Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// VerifyChain walks the full ledger in sequence order, recomputing every
// hash. It reports the first broken sequence rather than erroring, so
// operators get a position to investigate.
func (a *AuditUseCase) VerifyChain(ctx context.Context) (*auditDomain.VerificationReport, error) {
	report := &auditDomain.VerificationReport{Valid: true, CheckedAt: time.Now().UTC()}

	var (
		afterSeq uint64
		prevHash []byte
	)
	for {
		entries, err := a.repository.List(ctx, afterSeq, verifyPageSize)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			return report, nil
		}

		for _, entry := range entries {
			if entry.Seq != report.HeadSeq+1 {
				brokenSeq := entry.Seq
				report.Valid = false
				report.BrokenSeq = &brokenSeq
				return report, nil
			}
			if err := a.hasher.Check(prevHash, entry); err != nil {
				if apperrors.Is(err, auditDomain.ErrChainTampered) {
					brokenSeq := entry.Seq
					report.Valid = false
					report.BrokenSeq = &brokenSeq
					return report, nil
				}
				return nil, err
			}
			report.Entries++
			report.HeadSeq = entry.Seq
			report.HeadHash = entry.ThisHash
			prevHash = entry.ThisHash
		}
		afterSeq = report.HeadSeq
	}
}

// ListBySubject returns the newest ledger entries referencing a subject.
func (a *AuditUseCase) ListBySubject(ctx context.Context, subjectRef string, limit int) ([]*auditDomain.Entry, error) {
	return a.repository.ListBySubject(ctx, subjectRef, limit)
}
