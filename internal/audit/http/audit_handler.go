// Package http provides HTTP handlers for reading and verifying the audit ledger.
package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/opensurvey/keyvault/internal/audit/http/dto"
	auditUseCase "github.com/opensurvey/keyvault/internal/audit/usecase"
	"github.com/opensurvey/keyvault/internal/httputil"
)

// AuditHandler handles HTTP requests for audit ledger queries.
// The ledger is append-only; this surface is strictly read-side.
type AuditHandler struct {
	auditUseCase auditUseCase.Reader
	logger       *slog.Logger
}

// NewAuditHandler creates a new audit handler with required dependencies.
func NewAuditHandler(useCase auditUseCase.Reader, logger *slog.Logger) *AuditHandler {
	return &AuditHandler{
		auditUseCase: useCase,
		logger:       logger,
	}
}

// ListBySubjectHandler returns the newest audit entries for one subject.
// GET /v1/audit-entries?subject=recovery:<id>&limit=N
func (h *AuditHandler) ListBySubjectHandler(c *gin.Context) {
	subject := c.Query("subject")
	if subject == "" {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("subject query parameter is required"), h.logger)
		return
	}

	_, limit, err := httputil.ParsePagination(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	entries, err := h.auditUseCase.ListBySubject(c.Request.Context(), subject, limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": dto.MapAuditEntries(entries)})
}

// VerifyChainHandler walks the full ledger and reports its integrity.
// GET /v1/audit-entries/verify
// A tampered or gapped chain still returns 200 OK with valid=false and the
// first broken sequence number.
func (h *AuditHandler) VerifyChainHandler(c *gin.Context) {
	report, err := h.auditUseCase.VerifyChain(c.Request.Context())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapVerificationReport(report))
}
