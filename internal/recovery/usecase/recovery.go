package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/opensurvey/keyvault/internal/audit/domain"
	"github.com/opensurvey/keyvault/internal/database"
	apperrors "github.com/opensurvey/keyvault/internal/errors"
	keysDomain "github.com/opensurvey/keyvault/internal/keys/domain"
	recoveryDomain "github.com/opensurvey/keyvault/internal/recovery/domain"
)

const sweepBatchSize = 100

// Notification template IDs emitted at transitions.
const (
	templateRecoverySubmitted = "recovery_submitted"
	templateRecoveryVerified  = "recovery_verified"
	templateRecoveryRejected  = "recovery_rejected"
	templateRecoveryDelay     = "recovery_time_delay_started"
	templateRecoveryCancelled = "recovery_cancelled"
	templateRecoveryCompleted = "recovery_completed"
)

// RecoveryUseCase drives recovery requests through the state machine.
//
// Every transition runs inside one transaction: the request row is locked,
// the objection flag is checked before anything else, the audit entry is
// written, and the state change is applied with a compare-and-swap on the
// prior state. A failure at any point rolls the whole transition back, which
// is what makes the audit-before-commit ordering hold.
type RecoveryUseCase struct {
	txManager    database.TxManager
	repository   Repository
	auditor      Auditor
	notifier     Notifier
	approvers    ApproverDirectory
	verifier     Verifier
	keyRecoverer KeyRecoverer
	delay        time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// NewRecoveryUseCase creates a new RecoveryUseCase. delay is the configured
// time-delay window; config clamps it to the enforced minimum before it gets
// here.
func NewRecoveryUseCase(
	txManager database.TxManager,
	repository Repository,
	auditor Auditor,
	notifier Notifier,
	approvers ApproverDirectory,
	verifier Verifier,
	keyRecoverer KeyRecoverer,
	delay time.Duration,
	logger *slog.Logger,
) *RecoveryUseCase {
	return &RecoveryUseCase{
		txManager:    txManager,
		repository:   repository,
		auditor:      auditor,
		notifier:     notifier,
		approvers:    approvers,
		verifier:     verifier,
		keyRecoverer: keyRecoverer,
		delay:        delay,
		logger:       logger,
		now:          time.Now,
	}
}

// WithClock overrides the engine's clock. Test hook.
func (r *RecoveryUseCase) WithClock(now func() time.Time) *RecoveryUseCase {
	r.now = now
	return r
}

// Submit opens a new recovery request for a survey. The unique-active
// constraint refuses a second request while one is in flight.
func (r *RecoveryUseCase) Submit(
	ctx context.Context,
	surveyID uuid.UUID,
	orgID *uuid.UUID,
	subjectUserID uuid.UUID,
	verificationMethod string,
) (*recoveryDomain.RecoveryRequest, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to generate recovery request id")
	}

	request := &recoveryDomain.RecoveryRequest{
		ID:                 id,
		SurveyID:           surveyID,
		OrgID:              orgID,
		SubjectUserID:      subjectUserID,
		State:              recoveryDomain.StateSubmitted,
		VerificationMethod: verificationMethod,
		CreatedAt:          r.now().UTC(),
	}

	err = r.txManager.WithTx(ctx, func(ctx context.Context) error {
		if _, err := r.auditor.Record(
			ctx,
			"user:"+subjectUserID.String(),
			auditDomain.ActionRecoverySubmitted,
			request.SubjectRef(),
			map[string]string{"survey_id": surveyID.String(), "verification_method": verificationMethod},
		); err != nil {
			return err
		}
		if err := r.repository.Create(ctx, request); err != nil {
			return err
		}
		return r.notifier.Enqueue(ctx, templateRecoverySubmitted, subjectUserID.String(), map[string]string{
			"request_id": request.ID.String(),
			"survey_id":  surveyID.String(),
		})
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

// mutation inspects the locked request and mutates it toward its next state,
// returning the audit action and detail for the transition.
type mutation func(request *recoveryDomain.RecoveryRequest) (action auditDomain.Action, detail any, err error)

// transition runs one guarded state transition. The objection flag is
// checked before the requested mutation so an objection recorded by a
// concurrent writer always wins over whatever this transition wanted.
func (r *RecoveryUseCase) transition(
	ctx context.Context,
	requestID uuid.UUID,
	actor string,
	mutate mutation,
) (*recoveryDomain.RecoveryRequest, error) {
	var request *recoveryDomain.RecoveryRequest

	err := r.txManager.WithTx(ctx, func(ctx context.Context) error {
		var err error
		request, err = r.repository.GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}

		if request.ObjectionFlag && !request.State.Terminal() {
			// Refuse without writing anything: returning an error rolls
			// this transaction back, and a write here would vanish with it.
			// The cancellation itself is persisted by Object, whose commit
			// is what set the flag this transaction observed.
			return apperrors.Wrap(recoveryDomain.ErrInvalidTransition, "request cancelled by objection")
		}

		fromState := request.State
		action, detail, err := mutate(request)
		if err != nil {
			return err
		}

		if fromState != request.State {
			if !fromState.CanTransitionTo(request.State) {
				return recoveryDomain.ErrInvalidTransition
			}
			if request.State.Terminal() {
				terminalAt := r.now().UTC()
				request.TerminalAt = &terminalAt
			}
		}

		if _, err := r.auditor.Record(ctx, actor, action, request.SubjectRef(), detail); err != nil {
			return err
		}

		applied, err := r.repository.UpdateState(ctx, request, fromState)
		if err != nil {
			return err
		}
		if !applied {
			return recoveryDomain.ErrInvalidTransition
		}
		return r.notifyTransition(ctx, request)
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

func (r *RecoveryUseCase) notifyTransition(ctx context.Context, request *recoveryDomain.RecoveryRequest) error {
	var templateID string
	switch request.State {
	case recoveryDomain.StateVerified:
		templateID = templateRecoveryVerified
	case recoveryDomain.StateRejected:
		templateID = templateRecoveryRejected
	case recoveryDomain.StateTimeDelay:
		templateID = templateRecoveryDelay
	case recoveryDomain.StateCancelled:
		templateID = templateRecoveryCancelled
	case recoveryDomain.StateCompleted:
		templateID = templateRecoveryCompleted
	default:
		return nil
	}
	variables := map[string]string{
		"request_id": request.ID.String(),
		"survey_id":  request.SurveyID.String(),
		"state":      string(request.State),
	}
	if request.TimeDelayEnd != nil {
		variables["time_delay_end"] = request.TimeDelayEnd.UTC().Format(time.RFC3339)
	}
	return r.notifier.Enqueue(ctx, templateID, request.SubjectUserID.String(), variables)
}

// AcceptIntake moves a submitted request into identity verification.
func (r *RecoveryUseCase) AcceptIntake(ctx context.Context, requestID uuid.UUID) (*recoveryDomain.RecoveryRequest, error) {
	return r.transition(ctx, requestID, "system", func(request *recoveryDomain.RecoveryRequest) (auditDomain.Action, any, error) {
		if request.State != recoveryDomain.StateSubmitted {
			return "", nil, recoveryDomain.ErrInvalidTransition
		}
		request.State = recoveryDomain.StateVerificationPending
		return auditDomain.ActionRecoveryEvidence, map[string]string{"intake": "accepted"}, nil
	})
}

// SubmitEvidence hands verification evidence to the external verifier and
// records the returned reference. The request stays in VERIFICATION_PENDING
// until the review outcome is resolved.
func (r *RecoveryUseCase) SubmitEvidence(
	ctx context.Context,
	requestID uuid.UUID,
	evidence []byte,
) (*recoveryDomain.RecoveryRequest, error) {
	evidenceRef, err := r.verifier.SubmitEvidence(ctx, requestID, evidence)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to submit verification evidence")
	}

	return r.transition(ctx, requestID, "system", func(request *recoveryDomain.RecoveryRequest) (auditDomain.Action, any, error) {
		if request.State != recoveryDomain.StateVerificationPending {
			return "", nil, recoveryDomain.ErrInvalidTransition
		}
		request.VerificationEvidenceRef = evidenceRef
		return auditDomain.ActionRecoveryEvidence, map[string]string{"evidence_ref": evidenceRef}, nil
	})
}

// ResolveVerification fetches the review outcome for the stored evidence and
// applies VERIFIED or REJECTED accordingly.
func (r *RecoveryUseCase) ResolveVerification(ctx context.Context, requestID uuid.UUID) (*recoveryDomain.RecoveryRequest, error) {
	current, err := r.repository.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if current.VerificationEvidenceRef == "" {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "no verification evidence submitted")
	}

	result, err := r.verifier.GetVerificationResult(ctx, current.VerificationEvidenceRef)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to get verification result")
	}

	return r.transition(ctx, requestID, "reviewer:"+result.ReviewerID, func(request *recoveryDomain.RecoveryRequest) (auditDomain.Action, any, error) {
		if request.State != recoveryDomain.StateVerificationPending {
			return "", nil, recoveryDomain.ErrInvalidTransition
		}
		if result.Approved {
			request.State = recoveryDomain.StateVerified
			return auditDomain.ActionRecoveryVerified, map[string]string{"reviewer_id": result.ReviewerID}, nil
		}
		request.State = recoveryDomain.StateRejected
		return auditDomain.ActionRecoveryRejected, map[string]string{"reviewer_id": result.ReviewerID, "reason": "verification_rejected"}, nil
	})
}

// Approve records one admin approval. The primary approval moves VERIFIED to
// AWAITING_SECONDARY_APPROVAL; the secondary, from a distinct admin, starts
// the time delay.
func (r *RecoveryUseCase) Approve(
	ctx context.Context,
	requestID uuid.UUID,
	adminID uuid.UUID,
	role recoveryDomain.ApproverRole,
) (*recoveryDomain.RecoveryRequest, error) {
	return r.transition(ctx, requestID, "admin:"+adminID.String(), func(request *recoveryDomain.RecoveryRequest) (auditDomain.Action, any, error) {
		authorized, err := r.approvers.IsAuthorizedApprover(ctx, adminID, request.OrgID)
		if err != nil {
			return "", nil, err
		}
		if !authorized {
			return "", nil, recoveryDomain.ErrApproverNotAuthorized
		}

		switch role {
		case recoveryDomain.RolePrimary:
			if request.State != recoveryDomain.StateVerified {
				return "", nil, recoveryDomain.ErrInvalidTransition
			}
			request.PrimaryApproverID = &adminID
			request.State = recoveryDomain.StateAwaitingSecondary
			return auditDomain.ActionRecoveryApproved, map[string]string{"role": "primary", "admin_id": adminID.String()}, nil

		case recoveryDomain.RoleSecondary:
			if request.State != recoveryDomain.StateAwaitingSecondary {
				return "", nil, recoveryDomain.ErrInvalidTransition
			}
			if request.PrimaryApproverID != nil && *request.PrimaryApproverID == adminID {
				// Audited by the caller path as a security anomaly.
				return "", nil, recoveryDomain.ErrSingleApproverViolation
			}
			start := r.now().UTC()
			end := start.Add(r.delay)
			request.SecondaryApproverID = &adminID
			request.TimeDelayStart = &start
			request.TimeDelayEnd = &end
			request.State = recoveryDomain.StateTimeDelay
			return auditDomain.ActionRecoveryDelayBegan, map[string]string{
				"role":           "secondary",
				"admin_id":       adminID.String(),
				"time_delay_end": end.Format(time.RFC3339),
			}, nil

		default:
			return "", nil, apperrors.Wrap(apperrors.ErrInvalidInput, "unknown approver role")
		}
	})
}

// Reject records an admin rejection from either approval stage.
func (r *RecoveryUseCase) Reject(ctx context.Context, requestID uuid.UUID, adminID uuid.UUID) (*recoveryDomain.RecoveryRequest, error) {
	return r.transition(ctx, requestID, "admin:"+adminID.String(), func(request *recoveryDomain.RecoveryRequest) (auditDomain.Action, any, error) {
		authorized, err := r.approvers.IsAuthorizedApprover(ctx, adminID, request.OrgID)
		if err != nil {
			return "", nil, err
		}
		if !authorized {
			return "", nil, recoveryDomain.ErrApproverNotAuthorized
		}
		if request.State != recoveryDomain.StateVerified && request.State != recoveryDomain.StateAwaitingSecondary {
			return "", nil, recoveryDomain.ErrInvalidTransition
		}
		request.State = recoveryDomain.StateRejected
		return auditDomain.ActionRecoveryRejected, map[string]string{"admin_id": adminID.String(), "reason": "admin_rejected"}, nil
	})
}

// Object records the owner's objection. It wins from any pre-COMPLETED state
// and is treated as a security event: the subject account is flagged for
// follow-up review in the audit detail.
func (r *RecoveryUseCase) Object(ctx context.Context, requestID uuid.UUID) (*recoveryDomain.RecoveryRequest, error) {
	var request *recoveryDomain.RecoveryRequest

	err := r.txManager.WithTx(ctx, func(ctx context.Context) error {
		var err error
		request, err = r.repository.GetForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if request.State == recoveryDomain.StateCompleted {
			return apperrors.Wrap(recoveryDomain.ErrInvalidTransition, "request already completed")
		}
		if request.State.Terminal() {
			// Objecting to an already-cancelled or rejected request is a no-op.
			return nil
		}

		fromState := request.State
		terminalAt := r.now().UTC()
		request.ObjectionFlag = true
		request.State = recoveryDomain.StateCancelled
		request.TerminalAt = &terminalAt

		if _, err := r.auditor.Record(
			ctx,
			"user:"+request.SubjectUserID.String(),
			auditDomain.ActionRecoveryObjected,
			request.SubjectRef(),
			map[string]any{"account_flagged": true, "preempted_state": string(fromState)},
		); err != nil {
			return err
		}
		applied, err := r.repository.UpdateState(ctx, request, fromState)
		if err != nil {
			return err
		}
		if !applied {
			return recoveryDomain.ErrInvalidTransition
		}
		return r.notifyTransition(ctx, request)
	})
	if err != nil {
		return nil, err
	}
	return request, nil
}

// Complete finishes a request whose time delay has elapsed. Callers that
// poll (the sweeper) treat ErrDelayNotElapsed as retry-later.
func (r *RecoveryUseCase) Complete(ctx context.Context, requestID uuid.UUID) (*recoveryDomain.RecoveryRequest, error) {
	return r.transition(ctx, requestID, "system", func(request *recoveryDomain.RecoveryRequest) (auditDomain.Action, any, error) {
		if request.State != recoveryDomain.StateTimeDelay {
			return "", nil, recoveryDomain.ErrInvalidTransition
		}
		if request.TimeDelayEnd == nil || r.now().Before(*request.TimeDelayEnd) {
			return "", nil, recoveryDomain.ErrDelayNotElapsed
		}
		request.State = recoveryDomain.StateCompleted
		return auditDomain.ActionRecoveryCompleted, map[string]string{"survey_id": request.SurveyID.String()}, nil
	})
}

// SweepDue completes every request whose delay has elapsed. Idempotent: a
// request completed or cancelled since it was listed simply loses its CAS
// and is skipped.
func (r *RecoveryUseCase) SweepDue(ctx context.Context) (int, error) {
	due, err := r.repository.ListDueForCompletion(ctx, r.now().UTC(), sweepBatchSize)
	if err != nil {
		return 0, err
	}

	completed := 0
	for _, request := range due {
		_, err := r.Complete(ctx, request.ID)
		switch {
		case err == nil:
			completed++
		case apperrors.Is(err, recoveryDomain.ErrDelayNotElapsed),
			apperrors.Is(err, recoveryDomain.ErrInvalidTransition):
			// Raced with an objection, another sweep, or a clock skewed
			// listing. Nothing to do.
		default:
			return completed, err
		}
	}
	return completed, nil
}

// ClaimRecoveredKey releases the survey key for a completed request through
// the platform escrow path. The key goes to the caller's session only; the
// caller must rotate the survey's factors immediately after.
func (r *RecoveryUseCase) ClaimRecoveredKey(ctx context.Context, requestID uuid.UUID) ([]byte, error) {
	request, err := r.repository.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.State != recoveryDomain.StateCompleted {
		return nil, recoveryDomain.ErrNotClaimable
	}

	key, err := r.keyRecoverer.EscrowUnwrap(ctx, request.SurveyID)
	if err != nil {
		return nil, err
	}

	if _, err := r.auditor.Record(
		ctx,
		"user:"+request.SubjectUserID.String(),
		auditDomain.ActionSurveyKeyUnlocked,
		request.SubjectRef(),
		map[string]string{"survey_id": request.SurveyID.String(), "path": "escrow_recovery"},
	); err != nil {
		keysDomain.Zero(key)
		r.logger.ErrorContext(ctx, "failed to audit recovered key release", "error", err)
		return nil, err
	}
	return key, nil
}

// Get retrieves a request by ID.
func (r *RecoveryUseCase) Get(ctx context.Context, requestID uuid.UUID) (*recoveryDomain.RecoveryRequest, error) {
	return r.repository.Get(ctx, requestID)
}
