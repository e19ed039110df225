// Package http provides HTTP handlers for the ethical key recovery workflow.
// Every state transition is driven by the recovery engine; handlers only
// parse, validate and map.
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
	recoveryDomain "github.com/opensurvey/keyvault/internal/recovery/domain"
	"github.com/opensurvey/keyvault/internal/recovery/http/dto"
	recoveryUseCase "github.com/opensurvey/keyvault/internal/recovery/usecase"
	customValidation "github.com/opensurvey/keyvault/internal/validation"
)

// RecoveryHandler handles HTTP requests for recovery request operations.
type RecoveryHandler struct {
	recoveryUseCase recoveryUseCase.Engine
	logger          *slog.Logger
}

// NewRecoveryHandler creates a new recovery handler with required dependencies.
func NewRecoveryHandler(
	useCase recoveryUseCase.Engine,
	logger *slog.Logger,
) *RecoveryHandler {
	return &RecoveryHandler{
		recoveryUseCase: useCase,
		logger:          logger,
	}
}

// SubmitHandler opens a recovery request and accepts it into verification.
// POST /v1/recovery-requests
// Returns 201 Created in VERIFICATION_PENDING, or 409 Conflict when the
// survey already has an active request.
func (h *RecoveryHandler) SubmitHandler(c *gin.Context) {
	var req dto.SubmitRecoveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	surveyID, err := uuid.Parse(req.SurveyID)
	if err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid survey_id: %w", err), h.logger)
		return
	}
	subjectUserID, err := uuid.Parse(req.SubjectUserID)
	if err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid subject_user_id: %w", err), h.logger)
		return
	}

	var orgID *uuid.UUID
	if req.OrgID != "" {
		id, err := uuid.Parse(req.OrgID)
		if err != nil {
			httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid org_id: %w", err), h.logger)
			return
		}
		orgID = &id
	}

	request, err := h.recoveryUseCase.Submit(
		c.Request.Context(), surveyID, orgID, subjectUserID, req.VerificationMethod,
	)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	// Intake acceptance is immediate: the request is queued for identity
	// verification as soon as it exists.
	request, err = h.recoveryUseCase.AcceptIntake(c.Request.Context(), request.ID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapRecoveryRequest(request))
}

// GetHandler returns the current state of a recovery request.
// GET /v1/recovery-requests/:request_id
func (h *RecoveryHandler) GetHandler(c *gin.Context) {
	requestID, ok := requestIDParam(c, h.logger)
	if !ok {
		return
	}

	request, err := h.recoveryUseCase.Get(c.Request.Context(), requestID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapRecoveryRequest(request))
}

// EvidenceHandler stores identity evidence for review.
// POST /v1/recovery-requests/:request_id/evidence
func (h *RecoveryHandler) EvidenceHandler(c *gin.Context) {
	requestID, ok := requestIDParam(c, h.logger)
	if !ok {
		return
	}

	var req dto.SubmitEvidenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	evidence, err := base64.StdEncoding.DecodeString(req.Evidence)
	if err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid base64 evidence: %w", err), h.logger)
		return
	}

	request, err := h.recoveryUseCase.SubmitEvidence(c.Request.Context(), requestID, evidence)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapRecoveryRequest(request))
}

// ResolveVerificationHandler applies the reviewer's verdict on the stored
// evidence, moving the request to VERIFIED or REJECTED.
// POST /v1/recovery-requests/:request_id/resolve-verification
func (h *RecoveryHandler) ResolveVerificationHandler(c *gin.Context) {
	requestID, ok := requestIDParam(c, h.logger)
	if !ok {
		return
	}

	request, err := h.recoveryUseCase.ResolveVerification(c.Request.Context(), requestID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapRecoveryRequest(request))
}

// ApproveHandler records one admin approval.
// POST /v1/recovery-requests/:request_id/approve
// The secondary approval must come from a different admin than the primary
// and starts the mandatory time delay.
func (h *RecoveryHandler) ApproveHandler(c *gin.Context) {
	requestID, ok := requestIDParam(c, h.logger)
	if !ok {
		return
	}

	var req dto.ApproveRecoveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	adminID, err := uuid.Parse(req.AdminID)
	if err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid admin_id: %w", err), h.logger)
		return
	}

	request, err := h.recoveryUseCase.Approve(
		c.Request.Context(), requestID, adminID, recoveryDomain.ApproverRole(req.Role),
	)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapRecoveryRequest(request))
}

// RejectHandler records an admin rejection, a terminal outcome.
// POST /v1/recovery-requests/:request_id/reject
func (h *RecoveryHandler) RejectHandler(c *gin.Context) {
	requestID, ok := requestIDParam(c, h.logger)
	if !ok {
		return
	}

	var req dto.RejectRecoveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	adminID, err := uuid.Parse(req.AdminID)
	if err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid admin_id: %w", err), h.logger)
		return
	}

	request, err := h.recoveryUseCase.Reject(c.Request.Context(), requestID, adminID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapRecoveryRequest(request))
}

// ObjectionHandler records the subject's objection. The objection cancels the
// request from any non-terminal state and flags the account.
// POST /v1/recovery-requests/:request_id/objection
func (h *RecoveryHandler) ObjectionHandler(c *gin.Context) {
	requestID, ok := requestIDParam(c, h.logger)
	if !ok {
		return
	}

	request, err := h.recoveryUseCase.Object(c.Request.Context(), requestID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapRecoveryRequest(request))
}

// ClaimHandler releases the recovered survey key to the subject's session
// once the request has completed.
// POST /v1/recovery-requests/:request_id/claim
// SECURITY: Key material is zeroed after the response is mapped.
func (h *RecoveryHandler) ClaimHandler(c *gin.Context) {
	requestID, ok := requestIDParam(c, h.logger)
	if !ok {
		return
	}

	key, err := h.recoveryUseCase.ClaimRecoveredKey(c.Request.Context(), requestID)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	response := dto.RecoveredKeyResponse{RequestID: requestID.String()}
	response.Key = make([]byte, len(key))
	copy(response.Key, key)
	keysDomain.Zero(key)

	c.JSON(http.StatusOK, response)
}

// requestIDParam extracts and parses the request_id URL parameter.
func requestIDParam(c *gin.Context, logger *slog.Logger) (uuid.UUID, bool) {
	requestID, err := uuid.Parse(c.Param("request_id"))
	if err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid request_id: %w", err), logger)
		return uuid.Nil, false
	}
	return requestID, true
}
