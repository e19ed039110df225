package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/opensurvey/keyvault/internal/metrics"
	recoveryDomain "github.com/opensurvey/keyvault/internal/recovery/domain"
)

// engineWithMetrics decorates the recovery Engine with metrics instrumentation.
type engineWithMetrics struct {
	next    Engine
	metrics metrics.BusinessMetrics
}

// NewEngineWithMetrics wraps a recovery Engine with metrics recording.
func NewEngineWithMetrics(engine Engine, m metrics.BusinessMetrics) Engine {
	return &engineWithMetrics{
		next:    engine,
		metrics: m,
	}
}

func (e *engineWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	e.metrics.RecordOperation(ctx, "recovery", operation, status)
	e.metrics.RecordDuration(ctx, "recovery", operation, time.Since(start), status)
}

// Submit records metrics for recovery request submission.
func (e *engineWithMetrics) Submit(
	ctx context.Context,
	surveyID uuid.UUID,
	orgID *uuid.UUID,
	subjectUserID uuid.UUID,
	verificationMethod string,
) (*recoveryDomain.RecoveryRequest, error) {
	start := time.Now()
	request, err := e.next.Submit(ctx, surveyID, orgID, subjectUserID, verificationMethod)
	e.record(ctx, "recovery_submit", start, err)
	return request, err
}

// AcceptIntake records metrics for intake acceptance.
func (e *engineWithMetrics) AcceptIntake(
	ctx context.Context, requestID uuid.UUID,
) (*recoveryDomain.RecoveryRequest, error) {
	start := time.Now()
	request, err := e.next.AcceptIntake(ctx, requestID)
	e.record(ctx, "recovery_accept_intake", start, err)
	return request, err
}

// SubmitEvidence records metrics for identity evidence submission.
func (e *engineWithMetrics) SubmitEvidence(
	ctx context.Context, requestID uuid.UUID, evidence []byte,
) (*recoveryDomain.RecoveryRequest, error) {
	start := time.Now()
	request, err := e.next.SubmitEvidence(ctx, requestID, evidence)
	e.record(ctx, "recovery_submit_evidence", start, err)
	return request, err
}

// ResolveVerification records metrics for verification resolution.
func (e *engineWithMetrics) ResolveVerification(
	ctx context.Context, requestID uuid.UUID,
) (*recoveryDomain.RecoveryRequest, error) {
	start := time.Now()
	request, err := e.next.ResolveVerification(ctx, requestID)
	e.record(ctx, "recovery_resolve_verification", start, err)
	return request, err
}

// Approve records metrics for admin approvals.
func (e *engineWithMetrics) Approve(
	ctx context.Context,
	requestID uuid.UUID,
	adminID uuid.UUID,
	role recoveryDomain.ApproverRole,
) (*recoveryDomain.RecoveryRequest, error) {
	start := time.Now()
	request, err := e.next.Approve(ctx, requestID, adminID, role)
	e.record(ctx, "recovery_approve", start, err)
	return request, err
}

// Reject records metrics for admin rejections.
func (e *engineWithMetrics) Reject(
	ctx context.Context, requestID uuid.UUID, adminID uuid.UUID,
) (*recoveryDomain.RecoveryRequest, error) {
	start := time.Now()
	request, err := e.next.Reject(ctx, requestID, adminID)
	e.record(ctx, "recovery_reject", start, err)
	return request, err
}

// Object records metrics for subject objections.
func (e *engineWithMetrics) Object(
	ctx context.Context, requestID uuid.UUID,
) (*recoveryDomain.RecoveryRequest, error) {
	start := time.Now()
	request, err := e.next.Object(ctx, requestID)
	e.record(ctx, "recovery_object", start, err)
	return request, err
}

// Complete records metrics for request completion.
func (e *engineWithMetrics) Complete(
	ctx context.Context, requestID uuid.UUID,
) (*recoveryDomain.RecoveryRequest, error) {
	start := time.Now()
	request, err := e.next.Complete(ctx, requestID)
	e.record(ctx, "recovery_complete", start, err)
	return request, err
}

// ClaimRecoveredKey records metrics for key release.
func (e *engineWithMetrics) ClaimRecoveredKey(ctx context.Context, requestID uuid.UUID) ([]byte, error) {
	start := time.Now()
	key, err := e.next.ClaimRecoveredKey(ctx, requestID)
	e.record(ctx, "recovery_claim_key", start, err)
	return key, err
}

// Get passes through without instrumentation, reads are not a tracked operation.
func (e *engineWithMetrics) Get(
	ctx context.Context, requestID uuid.UUID,
) (*recoveryDomain.RecoveryRequest, error) {
	return e.next.Get(ctx, requestID)
}
