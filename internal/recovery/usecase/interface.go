// Package usecase implements the recovery workflow engine: intake, identity
// verification, dual approval, the mandatory time delay and completion, each
// as a short synchronous transition over durable state.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/opensurvey/keyvault/internal/audit/domain"
	recoveryDomain "github.com/opensurvey/keyvault/internal/recovery/domain"
)

// Repository defines recovery request persistence.
type Repository interface {
	Create(ctx context.Context, request *recoveryDomain.RecoveryRequest) error
	Get(ctx context.Context, id uuid.UUID) (*recoveryDomain.RecoveryRequest, error)
	GetForUpdate(ctx context.Context, id uuid.UUID) (*recoveryDomain.RecoveryRequest, error)
	ListDueForCompletion(ctx context.Context, now time.Time, limit int) ([]*recoveryDomain.RecoveryRequest, error)
	UpdateState(ctx context.Context, request *recoveryDomain.RecoveryRequest, fromState recoveryDomain.State) (bool, error)
}

// Auditor appends to the audit ledger. Implementations must honor any
// transaction riding on the context so the entry commits atomically with the
// transition.
type Auditor interface {
	Record(ctx context.Context, actor string, action auditDomain.Action, subjectRef string, detail any) (*auditDomain.Entry, error)
}

// Notifier enqueues outbound notifications. Enqueue joins the transition's
// transaction; actual delivery happens asynchronously and never blocks a
// transition.
type Notifier interface {
	Enqueue(ctx context.Context, templateID string, recipient string, variables map[string]string) error
}

// ApproverDirectory answers whether an admin may approve recovery requests
// in a scope. Injected rather than read from shared state so the engine owns
// no admin roster.
type ApproverDirectory interface {
	IsAuthorizedApprover(ctx context.Context, adminID uuid.UUID, orgID *uuid.UUID) (bool, error)
}

// VerificationResult is the outcome of an identity verification review.
type VerificationResult struct {
	Approved   bool
	ReviewerID string
}

// Verifier is the external identity verification collaborator. The engine
// treats evidence and review as opaque; only the boolean outcome drives the
// state machine.
type Verifier interface {
	SubmitEvidence(ctx context.Context, requestID uuid.UUID, evidence []byte) (evidenceRef string, err error)
	GetVerificationResult(ctx context.Context, evidenceRef string) (*VerificationResult, error)
}

// KeyRecoverer releases a survey key through the platform escrow path. The
// engine never touches ciphertext itself.
type KeyRecoverer interface {
	EscrowUnwrap(ctx context.Context, surveyID uuid.UUID) ([]byte, error)
}

// Engine is the handler-facing surface of the recovery workflow. Implemented
// by RecoveryUseCase; extracted so transport layers can be tested against a
// fake engine.
type Engine interface {
	Submit(ctx context.Context, surveyID uuid.UUID, orgID *uuid.UUID, subjectUserID uuid.UUID, verificationMethod string) (*recoveryDomain.RecoveryRequest, error)
	AcceptIntake(ctx context.Context, requestID uuid.UUID) (*recoveryDomain.RecoveryRequest, error)
	SubmitEvidence(ctx context.Context, requestID uuid.UUID, evidence []byte) (*recoveryDomain.RecoveryRequest, error)
	ResolveVerification(ctx context.Context, requestID uuid.UUID) (*recoveryDomain.RecoveryRequest, error)
	Approve(ctx context.Context, requestID uuid.UUID, adminID uuid.UUID, role recoveryDomain.ApproverRole) (*recoveryDomain.RecoveryRequest, error)
	Reject(ctx context.Context, requestID uuid.UUID, adminID uuid.UUID) (*recoveryDomain.RecoveryRequest, error)
	Object(ctx context.Context, requestID uuid.UUID) (*recoveryDomain.RecoveryRequest, error)
	Complete(ctx context.Context, requestID uuid.UUID) (*recoveryDomain.RecoveryRequest, error)
	ClaimRecoveredKey(ctx context.Context, requestID uuid.UUID) ([]byte, error)
	Get(ctx context.Context, requestID uuid.UUID) (*recoveryDomain.RecoveryRequest, error)
}
