package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/opensurvey/keyvault/internal/httputil"
	"github.com/opensurvey/keyvault/internal/keys/http/dto"
	keysUseCase "github.com/opensurvey/keyvault/internal/keys/usecase"
)

// OrgMasterHandler handles HTTP requests for organization master key operations.
// The master key itself is sealed by the external keeper and never exposed.
type OrgMasterHandler struct {
	orgMasterUseCase keysUseCase.OrgMasterUseCase
	logger           *slog.Logger
}

// NewOrgMasterHandler creates a new organization master key handler.
func NewOrgMasterHandler(
	orgMasterUseCase keysUseCase.OrgMasterUseCase,
	logger *slog.Logger,
) *OrgMasterHandler {
	return &OrgMasterHandler{
		orgMasterUseCase: orgMasterUseCase,
		logger:           logger,
	}
}

// CreateHandler mints the first master key version for an organization.
// POST /v1/orgs/:org_id/master-key
func (h *OrgMasterHandler) CreateHandler(c *gin.Context) {
	orgID, ok := orgIDParam(c, h.logger)
	if !ok {
		return
	}

	if err := h.orgMasterUseCase.CreateOrgMasterKey(c.Request.Context(), actorFrom(c), orgID); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.OrgMasterKeyResponse{OrgID: orgID.String()})
}

// RotateHandler mints the next master key version and rewraps every dependent
// survey key wrap under it.
// POST /v1/orgs/:org_id/master-key/rotate
func (h *OrgMasterHandler) RotateHandler(c *gin.Context) {
	orgID, ok := orgIDParam(c, h.logger)
	if !ok {
		return
	}

	if err := h.orgMasterUseCase.RotateOrgMasterKey(c.Request.Context(), actorFrom(c), orgID); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.OrgMasterKeyResponse{OrgID: orgID.String()})
}

// orgIDParam extracts and parses the org_id URL parameter.
func orgIDParam(c *gin.Context, logger *slog.Logger) (uuid.UUID, bool) {
	orgID, err := uuid.Parse(c.Param("org_id"))
	if err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid org_id: %w", err), logger)
		return uuid.Nil, false
	}
	return orgID, true
}
