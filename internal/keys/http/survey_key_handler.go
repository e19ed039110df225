// Package http provides HTTP handlers for survey key hierarchy operations.
// Survey keys are sealed under per-factor wraps and never persisted in
// plaintext; unlock responses carry raw key material and require HTTPS.
package http

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/opensurvey/keyvault/internal/httputil"
	keysDomain "github.com/opensurvey/keyvault/internal/keys/domain"
	"github.com/opensurvey/keyvault/internal/keys/http/dto"
	keysUseCase "github.com/opensurvey/keyvault/internal/keys/usecase"
	customValidation "github.com/opensurvey/keyvault/internal/validation"
)

// SurveyKeyHandler handles HTTP requests for survey key lifecycle operations.
type SurveyKeyHandler struct {
	surveyKeyUseCase keysUseCase.SurveyKeyUseCase
	logger           *slog.Logger
}

// NewSurveyKeyHandler creates a new survey key handler with required dependencies.
func NewSurveyKeyHandler(
	surveyKeyUseCase keysUseCase.SurveyKeyUseCase,
	logger *slog.Logger,
) *SurveyKeyHandler {
	return &SurveyKeyHandler{
		surveyKeyUseCase: surveyKeyUseCase,
		logger:           logger,
	}
}

// CreateHandler provisions a survey key with the requested factor wraps.
// POST /v1/surveys/:survey_id/key
// Returns 201 Created with metadata only (the key never leaves the server here).
func (h *SurveyKeyHandler) CreateHandler(c *gin.Context) {
	surveyID, ok := surveyIDParam(c, h.logger)
	if !ok {
		return
	}

	var req dto.CreateSurveyKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	tier, err := parseTier(req.Tier, req.TeamSize)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	orgID, err := parseOptionalUUID(req.OrgID)
	if err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid org_id: %w", err), h.logger)
		return
	}

	factors, err := decodeFactors(req.Factors)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	defer zeroFactors(factors)

	if err := h.surveyKeyUseCase.CreateSurveyKey(
		c.Request.Context(), actorFrom(c), surveyID, orgID, tier, factors,
	); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapSurveyKeyCreated(surveyID, len(req.Factors), nowUTC()))
}

// UnlockHandler unwraps a survey key with a single factor.
// POST /v1/surveys/:survey_id/key/unlock
// Returns 200 OK with the raw survey key. The org_master factor resolves the
// wrapping key server side and ignores the secret field.
// SECURITY: Key material is zeroed after the response is mapped.
func (h *SurveyKeyHandler) UnlockHandler(c *gin.Context) {
	surveyID, ok := surveyIDParam(c, h.logger)
	if !ok {
		return
	}

	var req dto.UnlockSurveyKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	factorType := keysDomain.FactorType(req.FactorType)
	if !factorType.Valid() {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("unknown factor type %q", req.FactorType), h.logger)
		return
	}

	var key []byte
	var err error

	if factorType == keysDomain.FactorOrgMaster {
		key, err = h.surveyKeyUseCase.UnlockWithOrgMaster(c.Request.Context(), actorFrom(c), surveyID)
	} else {
		var secret []byte
		secret, err = base64.StdEncoding.DecodeString(req.Secret)
		if err != nil {
			httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid base64 secret: %w", err), h.logger)
			return
		}
		key, err = h.surveyKeyUseCase.Unlock(c.Request.Context(), actorFrom(c), surveyID, factorType, secret)
		keysDomain.Zero(secret)
	}
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	response := dto.MapSurveyKey(surveyID, key)
	keysDomain.Zero(key)
	c.JSON(http.StatusOK, response)
}

// RotateHandler replaces the full wrap set of a survey key.
// POST /v1/surveys/:survey_id/key/rotate
// The caller proves possession by sending the current unwrapped key. The key
// itself does not change, so stored responses remain decryptable.
func (h *SurveyKeyHandler) RotateHandler(c *gin.Context) {
	surveyID, ok := surveyIDParam(c, h.logger)
	if !ok {
		return
	}

	var req dto.RotateSurveyKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	tier, err := parseTier(req.Tier, req.TeamSize)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	orgID, err := parseOptionalUUID(req.OrgID)
	if err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid org_id: %w", err), h.logger)
		return
	}

	currentKey, err := base64.StdEncoding.DecodeString(req.CurrentKey)
	if err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid base64 current_key: %w", err), h.logger)
		return
	}
	defer keysDomain.Zero(currentKey)

	factors, err := decodeFactors(req.Factors)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	defer zeroFactors(factors)

	if err := h.surveyKeyUseCase.Rotate(
		c.Request.Context(), actorFrom(c), surveyID, orgID, tier, currentKey, factors,
	); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapSurveyKeyCreated(surveyID, len(req.Factors), nowUTC()))
}

// DestroyHandler deletes every wrap of a survey key, making the survey's
// responses permanently unreadable.
// DELETE /v1/surveys/:survey_id/key
func (h *SurveyKeyHandler) DestroyHandler(c *gin.Context) {
	surveyID, ok := surveyIDParam(c, h.logger)
	if !ok {
		return
	}

	if err := h.surveyKeyUseCase.DestroySurveyKey(c.Request.Context(), actorFrom(c), surveyID); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}

// ReEscrowHandler restores escrow coverage for a degraded survey.
// POST /v1/surveys/:survey_id/key/escrow
// The caller proves possession by sending the current unwrapped key; the
// response carries metadata only.
func (h *SurveyKeyHandler) ReEscrowHandler(c *gin.Context) {
	surveyID, ok := surveyIDParam(c, h.logger)
	if !ok {
		return
	}

	var req dto.ReEscrowSurveyKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	currentKey, err := base64.StdEncoding.DecodeString(req.CurrentKey)
	if err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid base64 current_key: %w", err), h.logger)
		return
	}
	defer keysDomain.Zero(currentKey)

	if err := h.surveyKeyUseCase.ReEscrow(c.Request.Context(), actorFrom(c), surveyID, currentKey); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Status(http.StatusNoContent)
}

// surveyIDParam extracts and parses the survey_id URL parameter. Writes a
// validation error response and returns false when the parameter is invalid.
func surveyIDParam(c *gin.Context, logger *slog.Logger) (uuid.UUID, bool) {
	surveyID, err := uuid.Parse(c.Param("survey_id"))
	if err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid survey_id: %w", err), logger)
		return uuid.Nil, false
	}
	return surveyID, true
}

// parseTier maps the wire tier name onto the capability table entry.
func parseTier(kind string, teamSize int) (keysDomain.Tier, error) {
	switch keysDomain.TierKind(kind) {
	case keysDomain.TierFree, keysDomain.TierPro, keysDomain.TierTeam,
		keysDomain.TierOrganization, keysDomain.TierEnterprise:
		return keysDomain.Tier{Kind: keysDomain.TierKind(kind), TeamSize: teamSize}, nil
	}
	return keysDomain.Tier{}, fmt.Errorf("unknown tier %q", kind)
}

// parseOptionalUUID parses an optional UUID string, returning nil for empty input.
func parseOptionalUUID(s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// decodeFactors converts wire factors into use case inputs, decoding the
// base64 secrets. Callers must zero the returned secrets after use.
func decodeFactors(reqs []dto.FactorRequest) ([]keysUseCase.FactorInput, error) {
	factors := make([]keysUseCase.FactorInput, 0, len(reqs))
	for _, fr := range reqs {
		factorType := keysDomain.FactorType(fr.FactorType)
		if !factorType.Valid() {
			return nil, fmt.Errorf("unknown factor type %q", fr.FactorType)
		}
		secret, err := base64.StdEncoding.DecodeString(fr.Secret)
		if err != nil {
			return nil, fmt.Errorf("invalid base64 secret for factor %q: %w", fr.FactorType, err)
		}
		factors = append(factors, keysUseCase.FactorInput{FactorType: factorType, Secret: secret})
	}
	return factors, nil
}

// zeroFactors zeroes every decoded factor secret.
func zeroFactors(factors []keysUseCase.FactorInput) {
	for i := range factors {
		keysDomain.Zero(factors[i].Secret)
	}
}
