package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	keysDomain "github.com/opensurvey/keyvault/internal/keys/domain"
	"github.com/opensurvey/keyvault/internal/metrics"
)

// surveyKeyUseCaseWithMetrics decorates SurveyKeyUseCase with metrics instrumentation.
type surveyKeyUseCaseWithMetrics struct {
	next    SurveyKeyUseCase
	metrics metrics.BusinessMetrics
}

// NewSurveyKeyUseCaseWithMetrics wraps a SurveyKeyUseCase with metrics recording.
func NewSurveyKeyUseCaseWithMetrics(useCase SurveyKeyUseCase, m metrics.BusinessMetrics) SurveyKeyUseCase {
	return &surveyKeyUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (s *surveyKeyUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	s.metrics.RecordOperation(ctx, "keys", operation, status)
	s.metrics.RecordDuration(ctx, "keys", operation, time.Since(start), status)
}

// CreateSurveyKey records metrics for survey key provisioning.
func (s *surveyKeyUseCaseWithMetrics) CreateSurveyKey(
	ctx context.Context,
	actor string,
	surveyID uuid.UUID,
	orgID *uuid.UUID,
	tier keysDomain.Tier,
	factors []FactorInput,
) error {
	start := time.Now()
	err := s.next.CreateSurveyKey(ctx, actor, surveyID, orgID, tier, factors)
	s.record(ctx, "survey_key_create", start, err)
	return err
}

// Unlock records metrics for single-factor unlock operations.
func (s *surveyKeyUseCaseWithMetrics) Unlock(
	ctx context.Context,
	actor string,
	surveyID uuid.UUID,
	factorType keysDomain.FactorType,
	secret []byte,
) ([]byte, error) {
	start := time.Now()
	key, err := s.next.Unlock(ctx, actor, surveyID, factorType, secret)
	s.record(ctx, "survey_key_unlock", start, err)
	return key, err
}

// UnlockWithOrgMaster records metrics for organization master unlock operations.
func (s *surveyKeyUseCaseWithMetrics) UnlockWithOrgMaster(
	ctx context.Context,
	actor string,
	surveyID uuid.UUID,
) ([]byte, error) {
	start := time.Now()
	key, err := s.next.UnlockWithOrgMaster(ctx, actor, surveyID)
	s.record(ctx, "survey_key_unlock_org", start, err)
	return key, err
}

// EscrowUnwrap records metrics for escrow recovery unwraps.
func (s *surveyKeyUseCaseWithMetrics) EscrowUnwrap(ctx context.Context, surveyID uuid.UUID) ([]byte, error) {
	start := time.Now()
	key, err := s.next.EscrowUnwrap(ctx, surveyID)
	s.record(ctx, "survey_key_escrow_unwrap", start, err)
	return key, err
}

// Rotate records metrics for wrap set rotation.
func (s *surveyKeyUseCaseWithMetrics) Rotate(
	ctx context.Context,
	actor string,
	surveyID uuid.UUID,
	orgID *uuid.UUID,
	tier keysDomain.Tier,
	currentKey []byte,
	factors []FactorInput,
) error {
	start := time.Now()
	err := s.next.Rotate(ctx, actor, surveyID, orgID, tier, currentKey, factors)
	s.record(ctx, "survey_key_rotate", start, err)
	return err
}

// ReEscrow records metrics for escrow coverage restoration.
func (s *surveyKeyUseCaseWithMetrics) ReEscrow(
	ctx context.Context,
	actor string,
	surveyID uuid.UUID,
	currentKey []byte,
) error {
	start := time.Now()
	err := s.next.ReEscrow(ctx, actor, surveyID, currentKey)
	s.record(ctx, "survey_key_re_escrow", start, err)
	return err
}

// DestroySurveyKey records metrics for survey key destruction.
func (s *surveyKeyUseCaseWithMetrics) DestroySurveyKey(
	ctx context.Context,
	actor string,
	surveyID uuid.UUID,
) error {
	start := time.Now()
	err := s.next.DestroySurveyKey(ctx, actor, surveyID)
	s.record(ctx, "survey_key_destroy", start, err)
	return err
}
