package usecase

import (
	"context"
	"crypto/rand"
	"log/slog"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/opensurvey/keyvault/internal/audit/domain"
	"github.com/opensurvey/keyvault/internal/database"
	apperrors "github.com/opensurvey/keyvault/internal/errors"
	keysDomain "github.com/opensurvey/keyvault/internal/keys/domain"
	keysService "github.com/opensurvey/keyvault/internal/keys/service"
)

type orgMasterUseCase struct {
	txManager   database.TxManager
	keyRepo     OrgMasterKeyRepository
	wrapRepo    KeyWrapRepository
	wrapService keysService.WrapService
	keeper      keysDomain.Keeper
	keeperURI   string
	auditor     Auditor
	logger      *slog.Logger
}

// NewOrgMasterUseCase creates a new OrgMasterUseCase. keeper seals master
// keys at rest under the configured KMS key.
func NewOrgMasterUseCase(
	txManager database.TxManager,
	keyRepo OrgMasterKeyRepository,
	wrapRepo KeyWrapRepository,
	wrapService keysService.WrapService,
	keeper keysDomain.Keeper,
	keeperURI string,
	auditor Auditor,
	logger *slog.Logger,
) OrgMasterUseCase {
	return &orgMasterUseCase{
		txManager:   txManager,
		keyRepo:     keyRepo,
		wrapRepo:    wrapRepo,
		wrapService: wrapService,
		keeper:      keeper,
		keeperURI:   keeperURI,
		auditor:     auditor,
		logger:      logger,
	}
}

func orgSubjectRef(orgID uuid.UUID) string {
	return "org:" + orgID.String()
}

func (o *orgMasterUseCase) generateSealedKey(ctx context.Context, orgID uuid.UUID, version uint) (*keysDomain.OrganizationMasterKey, error) {
	plaintext := make([]byte, keysDomain.SurveyKeySize)
	if _, err := rand.Read(plaintext); err != nil {
		return nil, apperrors.Wrap(err, "failed to generate organization master key")
	}
	defer keysDomain.Zero(plaintext)

	sealed, err := o.keeper.Encrypt(ctx, plaintext)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to seal organization master key")
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to generate master key id")
	}

	return &keysDomain.OrganizationMasterKey{
		ID:           id,
		OrgID:        orgID,
		EncryptedKey: sealed,
		KeeperURI:    o.keeperURI,
		Version:      version,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// CreateOrgMasterKey mints the organization's first master key version.
func (o *orgMasterUseCase) CreateOrgMasterKey(ctx context.Context, actor string, orgID uuid.UUID) error {
	key, err := o.generateSealedKey(ctx, orgID, 1)
	if err != nil {
		return err
	}

	return o.txManager.WithTx(ctx, func(ctx context.Context) error {
		if _, err := o.auditor.Record(ctx, actor, auditDomain.ActionOrgMasterCreated, orgSubjectRef(orgID), map[string]any{
			"version": key.Version,
		}); err != nil {
			return err
		}
		return o.keyRepo.Create(ctx, key)
	})
}

// ResolveOrgMasterKey unseals the organization's active master key. The
// caller owns zeroing the returned key.
func (o *orgMasterUseCase) ResolveOrgMasterKey(ctx context.Context, orgID uuid.UUID) ([]byte, error) {
	key, err := o.keyRepo.GetActiveByOrg(ctx, orgID)
	if err != nil {
		return nil, err
	}

	plaintext, err := o.keeper.Decrypt(ctx, key.EncryptedKey)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to unseal organization master key")
	}
	if len(plaintext) != keysDomain.SurveyKeySize {
		keysDomain.Zero(plaintext)
		return nil, keysDomain.ErrInvalidKeySize
	}
	return plaintext, nil
}

// RotateOrgMasterKey mints a new master key version and re-wraps every
// dependent survey key under it, all in one transaction. Old versions are
// erased once the last dependent wrap has moved, which is what makes the
// rotation cryptographically complete.
func (o *orgMasterUseCase) RotateOrgMasterKey(ctx context.Context, actor string, orgID uuid.UUID) error {
	current, err := o.keyRepo.GetActiveByOrg(ctx, orgID)
	if err != nil {
		return err
	}

	oldKey, err := o.keeper.Decrypt(ctx, current.EncryptedKey)
	if err != nil {
		return apperrors.Wrap(err, "failed to unseal organization master key")
	}
	defer keysDomain.Zero(oldKey)

	next, err := o.generateSealedKey(ctx, orgID, current.Version+1)
	if err != nil {
		return err
	}

	newKey, err := o.keeper.Decrypt(ctx, next.EncryptedKey)
	if err != nil {
		return apperrors.Wrap(err, "failed to unseal new organization master key")
	}
	defer keysDomain.Zero(newKey)

	return o.txManager.WithTx(ctx, func(ctx context.Context) error {
		if err := o.keyRepo.Create(ctx, next); err != nil {
			return err
		}

		wraps, err := o.wrapRepo.ListByOrg(ctx, orgID)
		if err != nil {
			return err
		}

		for _, wrap := range wraps {
			surveyKey, err := o.wrapService.Unwrap(wrap, oldKey)
			if err != nil {
				return apperrors.Wrap(err, "failed to unwrap survey key during rotation")
			}

			replacement, err := o.wrapService.Wrap(wrap.SurveyID, surveyKey, keysDomain.FactorOrgMaster, newKey, wrap.Algorithm)
			keysDomain.Zero(surveyKey)
			if err != nil {
				return err
			}
			replacement.OrgID = &orgID

			if err := o.wrapRepo.Delete(ctx, wrap.ID); err != nil {
				return err
			}
			if err := o.wrapRepo.Create(ctx, &replacement); err != nil {
				return err
			}
		}

		if _, err := o.auditor.Record(ctx, actor, auditDomain.ActionOrgMasterRotated, orgSubjectRef(orgID), map[string]any{
			"version":        next.Version,
			"rewrapped_keys": len(wraps),
		}); err != nil {
			return err
		}

		return o.keyRepo.DeleteOlderVersions(ctx, orgID, next.Version)
	})
}
