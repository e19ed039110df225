// Package domain contains the recovery request model and its state machine.
//
// A recovery request moves through intake, identity verification, dual admin
// approval and a mandatory time delay before the escrowed survey key may be
// released. Transitions are monotonic: nothing outside the transition table
// is ever applied, terminal states are final, and an owner objection forces
// CANCELLED from any state short of COMPLETED.
package domain

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/opensurvey/keyvault/internal/errors"
)

// State is a recovery request lifecycle state.
type State string

// Recovery request states.
const (
	StateSubmitted           State = "SUBMITTED"
	StateVerificationPending State = "VERIFICATION_PENDING"
	StateVerified            State = "VERIFIED"
	StateAwaitingSecondary   State = "AWAITING_SECONDARY_APPROVAL"
	StateTimeDelay           State = "TIME_DELAY"
	StateCompleted           State = "COMPLETED"
	StateRejected            State = "REJECTED"
	StateCancelled           State = "CANCELLED"
)

// ApproverRole distinguishes the two required approvals.
type ApproverRole string

// Approver roles.
const (
	RolePrimary   ApproverRole = "primary"
	RoleSecondary ApproverRole = "secondary"
)

var (
	// ErrRequestNotFound indicates no recovery request exists with the ID.
	ErrRequestNotFound = apperrors.Wrap(apperrors.ErrNotFound, "recovery request not found")
	// ErrRequestAlreadyActive indicates the survey already has a non-terminal
	// recovery request.
	ErrRequestAlreadyActive = apperrors.Wrap(apperrors.ErrConflict, "active recovery request already exists for survey")
	// ErrInvalidTransition indicates the attempted transition is not in the
	// state machine, or lost a concurrent state race.
	ErrInvalidTransition = apperrors.Wrap(apperrors.ErrConflict, "invalid recovery state transition")
	// ErrSingleApproverViolation indicates one admin attempted both approvals.
	ErrSingleApproverViolation = apperrors.Wrap(apperrors.ErrForbidden, "primary and secondary approver must differ")
	// ErrApproverNotAuthorized indicates the admin is not an authorized
	// approver for the request's scope.
	ErrApproverNotAuthorized = apperrors.Wrap(apperrors.ErrForbidden, "admin is not an authorized approver")
	// ErrDelayNotElapsed indicates completion was attempted before
	// time_delay_end. The sweeper treats this as retry-later, not failure.
	ErrDelayNotElapsed = apperrors.Wrap(apperrors.ErrConflict, "recovery time delay has not elapsed")
	// ErrNotClaimable indicates a key claim on a request that is not
	// COMPLETED.
	ErrNotClaimable = apperrors.Wrap(apperrors.ErrConflict, "recovery request is not completed")
)

// transitions is the complete allowed-transition table.
var transitions = map[State][]State{
	StateSubmitted:           {StateVerificationPending, StateCancelled},
	StateVerificationPending: {StateVerified, StateRejected, StateCancelled},
	StateVerified:            {StateAwaitingSecondary, StateRejected, StateCancelled},
	StateAwaitingSecondary:   {StateTimeDelay, StateRejected, StateCancelled},
	StateTimeDelay:           {StateCompleted, StateCancelled},
}

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateRejected, StateCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the state machine permits moving from s to
// next.
func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// RecoveryRequest is one account recovery attempt for a survey.
type RecoveryRequest struct {
	ID                      uuid.UUID  `json:"id"`
	SurveyID                uuid.UUID  `json:"survey_id"`
	OrgID                   *uuid.UUID `json:"org_id,omitempty"`
	SubjectUserID           uuid.UUID  `json:"subject_user_id"`
	State                   State      `json:"state"`
	VerificationMethod      string     `json:"verification_method"`
	VerificationEvidenceRef string     `json:"verification_evidence_ref,omitempty"`
	PrimaryApproverID       *uuid.UUID `json:"primary_approver_id,omitempty"`
	SecondaryApproverID     *uuid.UUID `json:"secondary_approver_id,omitempty"`
	TimeDelayStart          *time.Time `json:"time_delay_start,omitempty"`
	TimeDelayEnd            *time.Time `json:"time_delay_end,omitempty"`
	ObjectionFlag           bool       `json:"objection_flag"`
	CreatedAt               time.Time  `json:"created_at"`
	TerminalAt              *time.Time `json:"terminal_at,omitempty"`
}

// SubjectRef is the audit ledger subject reference for this request.
func (r *RecoveryRequest) SubjectRef() string {
	return "recovery:" + r.ID.String()
}
