// Package domain contains the append-only audit ledger model. Every entry is
// hash-chained to its predecessor, so truncation or in-place edits of the
// ledger are detectable by recomputing the chain.
package domain

import (
	"time"

	"github.com/google/uuid"

	apperrors "github.com/opensurvey/keyvault/internal/errors"
)

// Action identifies the audited operation.
type Action string

// Audited actions.
const (
	ActionSurveyKeyCreated   Action = "survey_key.created"
	ActionSurveyKeyUnlocked  Action = "survey_key.unlocked"
	ActionSurveyKeyRotated   Action = "survey_key.rotated"
	ActionEscrowWrapStored   Action = "escrow.wrap_stored"
	ActionEscrowStoreFailed  Action = "escrow.store_failed"
	ActionEscrowReEscrowed   Action = "escrow.re_escrowed"
	ActionCustodianShare     Action = "custodian.share_accepted"
	ActionCustodianRejected  Action = "custodian.share_rejected"
	ActionCustodianUnlocked  Action = "custodian.unlocked"
	ActionOrgMasterCreated   Action = "org_master.created"
	ActionOrgMasterRotated   Action = "org_master.rotated"
	ActionRecoverySubmitted  Action = "recovery.submitted"
	ActionRecoveryEvidence   Action = "recovery.evidence_submitted"
	ActionRecoveryVerified   Action = "recovery.identity_verified"
	ActionRecoveryRejected   Action = "recovery.rejected"
	ActionRecoveryApproved   Action = "recovery.approved"
	ActionRecoveryObjected   Action = "recovery.objected"
	ActionRecoveryDelayBegan Action = "recovery.delay_began"
	ActionRecoveryCompleted  Action = "recovery.completed"
	ActionRecoveryExpired    Action = "recovery.expired"
	ActionNotificationSent   Action = "notification.sent"
	ActionNotificationFailed Action = "notification.failed"
)

// HashSize is the size of chain hashes in bytes (SHA-256).
const HashSize = 32

var (
	// ErrChainTampered indicates the recomputed hash chain diverges from the
	// stored one.
	ErrChainTampered = apperrors.Wrap(apperrors.ErrIntegrity, "audit chain tampered")
	// ErrChainGap indicates missing sequence numbers in the ledger.
	ErrChainGap = apperrors.Wrap(apperrors.ErrIntegrity, "audit chain has sequence gap")
)

// Entry is one immutable audit ledger record. PrevHash is all zeroes for the
// first entry of a chain; ThisHash covers PrevHash and every other field, so
// each entry commits to the full history before it.
type Entry struct {
	ID         uuid.UUID `json:"id"`
	Seq        uint64    `json:"seq"`
	PrevHash   []byte    `json:"prev_hash"`
	ThisHash   []byte    `json:"this_hash"`
	Actor      string    `json:"actor"`
	Action     Action    `json:"action"`
	SubjectRef string    `json:"subject_ref"`
	Detail     []byte    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// VerificationReport is the result of walking the full chain.
type VerificationReport struct {
	Entries   uint64    `json:"entries"`
	HeadSeq   uint64    `json:"head_seq"`
	HeadHash  []byte    `json:"head_hash"`
	Valid     bool      `json:"valid"`
	BrokenSeq *uint64   `json:"broken_seq,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}
