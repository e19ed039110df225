// Package http provides HTTP handlers for custodian quorum operations.
// After a process restart the platform escrow key only exists as offline
// shares; these endpoints are how custodians bring it back, one share per
// call, until the quorum unlocks the key in memory.
package http

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/opensurvey/keyvault/internal/custodian/http/dto"
	custodianUseCase "github.com/opensurvey/keyvault/internal/custodian/usecase"
	"github.com/opensurvey/keyvault/internal/httputil"
	keysDomain "github.com/opensurvey/keyvault/internal/keys/domain"
	customValidation "github.com/opensurvey/keyvault/internal/validation"
)

// CustodianHandler handles HTTP requests for custodian share submission.
type CustodianHandler struct {
	custodianUseCase *custodianUseCase.CustodianUseCase
	logger           *slog.Logger
}

// NewCustodianHandler creates a new custodian handler with required dependencies.
func NewCustodianHandler(
	useCase *custodianUseCase.CustodianUseCase,
	logger *slog.Logger,
) *CustodianHandler {
	return &CustodianHandler{
		custodianUseCase: useCase,
		logger:           logger,
	}
}

// StatusHandler reports whether the quorum has been reached.
// GET /v1/custodian/status
func (h *CustodianHandler) StatusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, dto.MapStatus(h.custodianUseCase.Status()))
}

// SubmitShareHandler accepts one custodian share toward the unlock quorum.
// POST /v1/custodian/shares
// Returns 200 OK with the quorum outcome, 409 Conflict once the key is
// already unlocked, or 422 for a malformed or duplicate share.
func (h *CustodianHandler) SubmitShareHandler(c *gin.Context) {
	var req dto.SubmitShareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	share, err := base64.StdEncoding.DecodeString(req.Share)
	if err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid base64 share: %w", err), h.logger)
		return
	}
	defer keysDomain.Zero(share)

	unlocked, err := h.custodianUseCase.SubmitShare(c.Request.Context(), req.CustodianID, share)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.SubmitShareResponse{Accepted: true, Unlocked: unlocked})
}
