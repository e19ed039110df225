// Package usecase orchestrates the survey key hierarchy: key issuance,
// factor wraps, escrow coverage, unlocking and rotation. This package
// exclusively owns survey key lifecycle; the recovery engine and HTTP layer
// only ever reach key material through it.
package usecase

import (
	"context"

	"github.com/google/uuid"

	auditDomain "github.com/opensurvey/keyvault/internal/audit/domain"
	keysDomain "github.com/opensurvey/keyvault/internal/keys/domain"
)

// KeyWrapRepository defines key wrap persistence.
type KeyWrapRepository interface {
	Create(ctx context.Context, wrap *keysDomain.KeyWrap) error
	Get(ctx context.Context, surveyID uuid.UUID, factorType keysDomain.FactorType) (*keysDomain.KeyWrap, error)
	ListBySurvey(ctx context.Context, surveyID uuid.UUID) ([]*keysDomain.KeyWrap, error)
	ListByOrg(ctx context.Context, orgID uuid.UUID) ([]*keysDomain.KeyWrap, error)
	DeleteBySurvey(ctx context.Context, surveyID uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	ExistsForSurvey(ctx context.Context, surveyID uuid.UUID) (bool, error)
}

// OrgMasterKeyRepository defines organization master key persistence.
type OrgMasterKeyRepository interface {
	Create(ctx context.Context, key *keysDomain.OrganizationMasterKey) error
	GetActiveByOrg(ctx context.Context, orgID uuid.UUID) (*keysDomain.OrganizationMasterKey, error)
	DeleteOlderVersions(ctx context.Context, orgID uuid.UUID, keepVersion uint) error
}

// Auditor appends to the audit ledger inside the caller's transaction.
type Auditor interface {
	Record(ctx context.Context, actor string, action auditDomain.Action, subjectRef string, detail any) (*auditDomain.Entry, error)
}

// PlatformKeyHolder exposes the custodian-guarded platform escrow key.
type PlatformKeyHolder interface {
	PlatformKey() ([]byte, error)
	Unlocked() bool
}

// FactorInput is one factor to wrap a survey key under.
type FactorInput struct {
	FactorType keysDomain.FactorType
	// Secret is the low-entropy secret for derived factors or the direct
	// 32-byte key material for the rest. Never retained past the call.
	Secret []byte
}

// SurveyKeyUseCase is the consumer-facing surface of the key hierarchy.
type SurveyKeyUseCase interface {
	CreateSurveyKey(ctx context.Context, actor string, surveyID uuid.UUID, orgID *uuid.UUID, tier keysDomain.Tier, factors []FactorInput) error
	Unlock(ctx context.Context, actor string, surveyID uuid.UUID, factorType keysDomain.FactorType, secret []byte) ([]byte, error)
	UnlockWithOrgMaster(ctx context.Context, actor string, surveyID uuid.UUID) ([]byte, error)
	EscrowUnwrap(ctx context.Context, surveyID uuid.UUID) ([]byte, error)
	Rotate(ctx context.Context, actor string, surveyID uuid.UUID, orgID *uuid.UUID, tier keysDomain.Tier, currentKey []byte, factors []FactorInput) error
	ReEscrow(ctx context.Context, actor string, surveyID uuid.UUID, currentKey []byte) error
	DestroySurveyKey(ctx context.Context, actor string, surveyID uuid.UUID) error
}

// OrgMasterUseCase manages organization master keys.
type OrgMasterUseCase interface {
	CreateOrgMasterKey(ctx context.Context, actor string, orgID uuid.UUID) error
	RotateOrgMasterKey(ctx context.Context, actor string, orgID uuid.UUID) error
	ResolveOrgMasterKey(ctx context.Context, orgID uuid.UUID) ([]byte, error)
}
