package usecase

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	auditDomain "github.com/opensurvey/keyvault/internal/audit/domain"
	"github.com/opensurvey/keyvault/internal/database"
	apperrors "github.com/opensurvey/keyvault/internal/errors"
	"github.com/opensurvey/keyvault/internal/escrow"
	keysDomain "github.com/opensurvey/keyvault/internal/keys/domain"
	keysService "github.com/opensurvey/keyvault/internal/keys/service"
)

type surveyKeyUseCase struct {
	txManager   database.TxManager
	wrapRepo    KeyWrapRepository
	wrapService keysService.WrapService
	orgMaster   OrgMasterUseCase
	custodian   PlatformKeyHolder
	escrowStore escrow.Store
	auditor     Auditor
	logger      *slog.Logger
}

// NewSurveyKeyUseCase creates a new SurveyKeyUseCase.
func NewSurveyKeyUseCase(
	txManager database.TxManager,
	wrapRepo KeyWrapRepository,
	wrapService keysService.WrapService,
	orgMaster OrgMasterUseCase,
	custodian PlatformKeyHolder,
	escrowStore escrow.Store,
	auditor Auditor,
	logger *slog.Logger,
) SurveyKeyUseCase {
	return &surveyKeyUseCase{
		txManager:   txManager,
		wrapRepo:    wrapRepo,
		wrapService: wrapService,
		orgMaster:   orgMaster,
		custodian:   custodian,
		escrowStore: escrowStore,
		auditor:     auditor,
		logger:      logger,
	}
}

func surveySubjectRef(surveyID uuid.UUID) string {
	return "survey:" + surveyID.String()
}

// CreateSurveyKey generates the survey's key and wraps it under every
// supplied factor plus, when the tier carries it, the platform escrow key.
// The key is generated exactly once per survey; a second call is refused.
//
// Escrow coverage is produced in the same call as the user-facing wraps. If
// the escrow store is down the personal wraps still commit: the failure is
// audit-logged and the survey degrades to personal-factor-only recovery
// until an operator re-escrows it.
func (s *surveyKeyUseCase) CreateSurveyKey(
	ctx context.Context,
	actor string,
	surveyID uuid.UUID,
	orgID *uuid.UUID,
	tier keysDomain.Tier,
	factors []FactorInput,
) error {
	if len(factors) == 0 {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "at least one wrap factor is required")
	}
	for _, factor := range factors {
		if !tier.AllowsFactor(factor.FactorType, orgID != nil) {
			return keysDomain.ErrFactorUnavailable
		}
	}

	surveyKey, err := s.wrapService.GenerateSurveyKey()
	if err != nil {
		return err
	}
	defer keysDomain.Zero(surveyKey)

	wraps := make([]*keysDomain.KeyWrap, 0, len(factors))
	for _, factor := range factors {
		secret, err := s.resolveFactorSecret(ctx, factor, orgID)
		if err != nil {
			return err
		}
		wrap, err := s.wrapService.Wrap(surveyID, surveyKey, factor.FactorType, secret, keysDomain.AESGCM)
		if factor.FactorType == keysDomain.FactorOrgMaster {
			keysDomain.Zero(secret)
		}
		if err != nil {
			return err
		}
		wrap.OrgID = orgID
		wraps = append(wraps, &wrap)
	}

	escrowWrap, escrowErr := s.buildEscrowWrap(surveyID, surveyKey, tier)

	err = s.txManager.WithTx(ctx, func(ctx context.Context) error {
		exists, err := s.wrapRepo.ExistsForSurvey(ctx, surveyID)
		if err != nil {
			return err
		}
		if exists {
			return keysDomain.ErrSurveyKeyExists
		}

		factorNames := make([]string, 0, len(wraps))
		for _, wrap := range wraps {
			if err := s.wrapRepo.Create(ctx, wrap); err != nil {
				return err
			}
			factorNames = append(factorNames, string(wrap.FactorType))
		}

		if _, err := s.auditor.Record(ctx, actor, auditDomain.ActionSurveyKeyCreated, surveySubjectRef(surveyID), map[string]any{
			"factors": factorNames,
			"tier":    string(tier.Kind),
		}); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	if escrowWrap != nil {
		s.storeEscrowWrap(ctx, surveyID, escrowWrap)
	} else if escrowErr != nil {
		s.recordEscrowFailure(ctx, surveyID, escrowErr)
	}
	return nil
}

// resolveFactorSecret returns the wrapping secret for a factor, resolving
// the organization master key for org_master wraps. The returned slice is
// caller-owned for org_master and caller-supplied otherwise.
func (s *surveyKeyUseCase) resolveFactorSecret(ctx context.Context, factor FactorInput, orgID *uuid.UUID) ([]byte, error) {
	if factor.FactorType != keysDomain.FactorOrgMaster {
		return factor.Secret, nil
	}
	if orgID == nil {
		return nil, keysDomain.ErrFactorUnavailable
	}
	return s.orgMaster.ResolveOrgMasterKey(ctx, *orgID)
}

// buildEscrowWrap seals the survey key under the platform escrow key. A nil
// wrap with nil error means the tier carries no escrow coverage.
func (s *surveyKeyUseCase) buildEscrowWrap(surveyID uuid.UUID, surveyKey []byte, tier keysDomain.Tier) (*keysDomain.KeyWrap, error) {
	if !tier.AllowsFactor(keysDomain.FactorPlatformEscrow, false) {
		return nil, nil
	}

	platformKey, err := s.custodian.PlatformKey()
	if err != nil {
		return nil, err
	}
	defer keysDomain.Zero(platformKey)

	wrap, err := s.wrapService.Wrap(surveyID, surveyKey, keysDomain.FactorPlatformEscrow, platformKey, keysDomain.AESGCM)
	if err != nil {
		return nil, err
	}
	return &wrap, nil
}

// storeEscrowWrap writes the escrow wrap to the external store with the
// degrade-on-failure contract.
func (s *surveyKeyUseCase) storeEscrowWrap(ctx context.Context, surveyID uuid.UUID, wrap *keysDomain.KeyWrap) {
	version, err := s.escrowStore.Put(ctx, &escrow.Entry{
		SurveyID:   surveyID,
		Ciphertext: wrap.Ciphertext,
		Nonce:      wrap.Nonce,
	})
	if err != nil {
		s.recordEscrowFailure(ctx, surveyID, err)
		return
	}

	if _, err := s.auditor.Record(ctx, "system", auditDomain.ActionEscrowWrapStored, surveySubjectRef(surveyID), map[string]any{
		"escrow_version": version,
	}); err != nil {
		s.logger.ErrorContext(ctx, "failed to audit escrow store", "survey_id", surveyID, "error", err)
	}
}

func (s *surveyKeyUseCase) recordEscrowFailure(ctx context.Context, surveyID uuid.UUID, cause error) {
	s.logger.WarnContext(ctx, "escrow coverage unavailable, survey degrades to personal factors",
		"survey_id", surveyID, "error", cause)
	if _, err := s.auditor.Record(ctx, "system", auditDomain.ActionEscrowStoreFailed, surveySubjectRef(surveyID), map[string]any{
		"error": cause.Error(),
	}); err != nil {
		s.logger.ErrorContext(ctx, "failed to audit escrow failure", "survey_id", surveyID, "error", err)
	}
}

// Unlock recovers the survey key with one personal factor. Every
// decryption failure surfaces as the single WrongFactor label.
func (s *surveyKeyUseCase) Unlock(
	ctx context.Context,
	actor string,
	surveyID uuid.UUID,
	factorType keysDomain.FactorType,
	secret []byte,
) ([]byte, error) {
	if factorType == keysDomain.FactorOrgMaster || factorType == keysDomain.FactorPlatformEscrow {
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "factor type requires its dedicated unlock path")
	}

	wrap, err := s.wrapRepo.Get(ctx, surveyID, factorType)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, keysDomain.ErrFactorUnavailable
		}
		return nil, err
	}

	surveyKey, err := s.wrapService.Unwrap(wrap, secret)
	if err != nil {
		return nil, err
	}

	if _, err := s.auditor.Record(ctx, actor, auditDomain.ActionSurveyKeyUnlocked, surveySubjectRef(surveyID), map[string]string{
		"factor_type": string(factorType),
	}); err != nil {
		keysDomain.Zero(surveyKey)
		return nil, err
	}
	return surveyKey, nil
}

// UnlockWithOrgMaster recovers the survey key through the organization
// master key, for organization-admin assisted recovery.
func (s *surveyKeyUseCase) UnlockWithOrgMaster(ctx context.Context, actor string, surveyID uuid.UUID) ([]byte, error) {
	wrap, err := s.wrapRepo.Get(ctx, surveyID, keysDomain.FactorOrgMaster)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return nil, keysDomain.ErrFactorUnavailable
		}
		return nil, err
	}
	if wrap.OrgID == nil {
		return nil, keysDomain.ErrFactorUnavailable
	}

	masterKey, err := s.orgMaster.ResolveOrgMasterKey(ctx, *wrap.OrgID)
	if err != nil {
		return nil, err
	}
	defer keysDomain.Zero(masterKey)

	surveyKey, err := s.wrapService.Unwrap(wrap, masterKey)
	if err != nil {
		return nil, err
	}

	if _, err := s.auditor.Record(ctx, actor, auditDomain.ActionSurveyKeyUnlocked, surveySubjectRef(surveyID), map[string]string{
		"factor_type": string(keysDomain.FactorOrgMaster),
	}); err != nil {
		keysDomain.Zero(surveyKey)
		return nil, err
	}
	return surveyKey, nil
}

// EscrowUnwrap recovers the survey key through the platform escrow path.
// Requires the custodian quorum to have unlocked the platform key in this
// process. Only the recovery engine calls this, after its workflow has run
// to completion.
func (s *surveyKeyUseCase) EscrowUnwrap(ctx context.Context, surveyID uuid.UUID) ([]byte, error) {
	platformKey, err := s.custodian.PlatformKey()
	if err != nil {
		return nil, err
	}
	defer keysDomain.Zero(platformKey)

	entry, err := s.escrowStore.Get(ctx, surveyID)
	if err != nil {
		return nil, err
	}

	wrap := &keysDomain.KeyWrap{
		SurveyID:   surveyID,
		FactorType: keysDomain.FactorPlatformEscrow,
		Algorithm:  keysDomain.AESGCM,
		Ciphertext: entry.Ciphertext,
		Nonce:      entry.Nonce,
	}
	return s.wrapService.Unwrap(wrap, platformKey)
}

// Rotate replaces every wrap for a survey atomically: all new wraps commit
// and all old ones are erased, or nothing changes. currentKey must be the
// survey key obtained from a prior unlock; rotation re-wraps it rather than
// minting a new key so already-encrypted survey data stays readable.
func (s *surveyKeyUseCase) Rotate(
	ctx context.Context,
	actor string,
	surveyID uuid.UUID,
	orgID *uuid.UUID,
	tier keysDomain.Tier,
	currentKey []byte,
	factors []FactorInput,
) error {
	if len(currentKey) != keysDomain.SurveyKeySize {
		return keysDomain.ErrInvalidKeySize
	}
	if len(factors) == 0 {
		return apperrors.Wrap(apperrors.ErrInvalidInput, "at least one wrap factor is required")
	}
	for _, factor := range factors {
		if !tier.AllowsFactor(factor.FactorType, orgID != nil) {
			return keysDomain.ErrFactorUnavailable
		}
	}

	wraps := make([]*keysDomain.KeyWrap, 0, len(factors))
	for _, factor := range factors {
		secret, err := s.resolveFactorSecret(ctx, factor, orgID)
		if err != nil {
			return err
		}
		wrap, err := s.wrapService.Wrap(surveyID, currentKey, factor.FactorType, secret, keysDomain.AESGCM)
		if factor.FactorType == keysDomain.FactorOrgMaster {
			keysDomain.Zero(secret)
		}
		if err != nil {
			return err
		}
		wrap.OrgID = orgID
		wraps = append(wraps, &wrap)
	}

	escrowWrap, escrowErr := s.buildEscrowWrap(surveyID, currentKey, tier)

	err := s.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := s.wrapRepo.DeleteBySurvey(ctx, surveyID); err != nil {
			return err
		}

		factorNames := make([]string, 0, len(wraps))
		for _, wrap := range wraps {
			if err := s.wrapRepo.Create(ctx, wrap); err != nil {
				return err
			}
			factorNames = append(factorNames, string(wrap.FactorType))
		}

		if _, err := s.auditor.Record(ctx, actor, auditDomain.ActionSurveyKeyRotated, surveySubjectRef(surveyID), map[string]any{
			"factors": factorNames,
		}); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return err
	}

	if escrowWrap != nil {
		s.storeEscrowWrap(ctx, surveyID, escrowWrap)
	} else if escrowErr != nil {
		s.recordEscrowFailure(ctx, surveyID, escrowErr)
	}
	return nil
}

// ReEscrow restores escrow coverage for a survey whose escrow write failed,
// closing the gap a degraded creation or rotation left behind. currentKey is
// the unwrapped survey key from a prior unlock, the same possession proof
// Rotate takes. Unlike creation, a store failure here is a hard error: the
// caller is explicitly trying to fix coverage and needs to know it is still
// missing.
func (s *surveyKeyUseCase) ReEscrow(ctx context.Context, actor string, surveyID uuid.UUID, currentKey []byte) error {
	if len(currentKey) != keysDomain.SurveyKeySize {
		return keysDomain.ErrInvalidKeySize
	}

	exists, err := s.wrapRepo.ExistsForSurvey(ctx, surveyID)
	if err != nil {
		return err
	}
	if !exists {
		return apperrors.Wrap(apperrors.ErrNotFound, "survey has no key wraps")
	}

	platformKey, err := s.custodian.PlatformKey()
	if err != nil {
		return err
	}
	defer keysDomain.Zero(platformKey)

	wrap, err := s.wrapService.Wrap(surveyID, currentKey, keysDomain.FactorPlatformEscrow, platformKey, keysDomain.AESGCM)
	if err != nil {
		return err
	}

	version, err := s.escrowStore.Put(ctx, &escrow.Entry{
		SurveyID:   surveyID,
		Ciphertext: wrap.Ciphertext,
		Nonce:      wrap.Nonce,
	})
	if err != nil {
		s.recordEscrowFailure(ctx, surveyID, err)
		return err
	}

	if _, err := s.auditor.Record(ctx, actor, auditDomain.ActionEscrowReEscrowed, surveySubjectRef(surveyID), map[string]any{
		"escrow_version": version,
	}); err != nil {
		return err
	}
	return nil
}

// DestroySurveyKey erases every wrap for the survey, including the escrow
// copy, which cryptographically erases the survey key. Used on hard
// deletion.
func (s *surveyKeyUseCase) DestroySurveyKey(ctx context.Context, actor string, surveyID uuid.UUID) error {
	err := s.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := s.wrapRepo.DeleteBySurvey(ctx, surveyID); err != nil {
			return err
		}
		_, err := s.auditor.Record(ctx, actor, auditDomain.ActionSurveyKeyRotated, surveySubjectRef(surveyID), map[string]string{
			"operation": "destroy",
		})
		return err
	})
	if err != nil {
		return err
	}

	if err := s.escrowStore.Delete(ctx, surveyID); err != nil {
		// The DB wraps are gone so the key is unrecoverable either way;
		// the orphaned escrow ciphertext is flagged for operator cleanup.
		s.recordEscrowFailure(ctx, surveyID, err)
	}
	return nil
}
