// Package usecase exposes the custodian quorum to the operational surface.
// Shares arrive one at a time from individual custodians after a restart;
// every submission is audit-logged, and reaching the quorum is recorded as
// its own event because it arms the escrow wrap and recovery paths.
package usecase

import (
	"context"
	"log/slog"

	auditDomain "github.com/opensurvey/keyvault/internal/audit/domain"
	custodianService "github.com/opensurvey/keyvault/internal/custodian/service"
)

const platformKeyRef = "custodian:platform_escrow_key"

// Auditor appends to the audit ledger.
type Auditor interface {
	Record(ctx context.Context, actor string, action auditDomain.Action, subjectRef string, detail any) (*auditDomain.Entry, error)
}

// Status describes the quorum state of the platform escrow key holder.
type Status struct {
	Unlocked  bool
	Threshold int
}

// CustodianUseCase drives share submission against the locked key holder.
type CustodianUseCase struct {
	custodian custodianService.Custodian
	threshold int
	auditor   Auditor
	logger    *slog.Logger
}

// NewCustodianUseCase creates a new CustodianUseCase.
func NewCustodianUseCase(
	custodian custodianService.Custodian,
	threshold int,
	auditor Auditor,
	logger *slog.Logger,
) *CustodianUseCase {
	return &CustodianUseCase{
		custodian: custodian,
		threshold: threshold,
		auditor:   auditor,
		logger:    logger,
	}
}

// SubmitShare hands one custodian's share to the key holder. It returns
// true when this share completed the quorum. Rejected shares are audited;
// the share bytes themselves never reach the log.
func (u *CustodianUseCase) SubmitShare(ctx context.Context, custodianID string, share []byte) (bool, error) {
	actor := "custodian:" + custodianID

	unlocked, err := u.custodian.SubmitShare(share)
	if err != nil {
		if _, auditErr := u.auditor.Record(ctx, actor, auditDomain.ActionCustodianRejected, platformKeyRef, map[string]string{
			"error": err.Error(),
		}); auditErr != nil {
			u.logger.ErrorContext(ctx, "failed to audit rejected custodian share", "error", auditErr)
		}
		return false, err
	}

	if _, err := u.auditor.Record(ctx, actor, auditDomain.ActionCustodianShare, platformKeyRef, nil); err != nil {
		return unlocked, err
	}
	if unlocked {
		u.logger.InfoContext(ctx, "custodian quorum reached, platform escrow key reconstructed")
		if _, err := u.auditor.Record(ctx, actor, auditDomain.ActionCustodianUnlocked, platformKeyRef, map[string]int{
			"threshold": u.threshold,
		}); err != nil {
			return unlocked, err
		}
	}
	return unlocked, nil
}

// Status reports the current quorum state.
func (u *CustodianUseCase) Status() Status {
	return Status{
		Unlocked:  u.custodian.Unlocked(),
		Threshold: u.threshold,
	}
}
