// Package http provides HTTP server implementation and request handlers.
package http

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	auditHTTP "github.com/opensurvey/keyvault/internal/audit/http"
	custodianHTTP "github.com/opensurvey/keyvault/internal/custodian/http"
	keysHTTP "github.com/opensurvey/keyvault/internal/keys/http"
	"github.com/opensurvey/keyvault/internal/metrics"
	recoveryHTTP "github.com/opensurvey/keyvault/internal/recovery/http"
)

// Server represents the API HTTP server.
type Server struct {
	db     *sql.DB
	host   string
	port   int
	logger *slog.Logger
	router *gin.Engine
	server *http.Server
}

// NewServer creates a new HTTP server. The router is assembled separately via
// SetupRouter once the handlers exist.
func NewServer(
	db *sql.DB,
	host string,
	port int,
	logger *slog.Logger,
) *Server {
	return &Server{
		db:     db,
		host:   host,
		port:   port,
		logger: logger,
	}
}

// RouterDeps carries everything SetupRouter needs to assemble the API routes.
type RouterDeps struct {
	SurveyKeyHandler *keysHTTP.SurveyKeyHandler
	OrgMasterHandler *keysHTTP.OrgMasterHandler
	RecoveryHandler  *recoveryHTTP.RecoveryHandler
	AuditHandler     *auditHTTP.AuditHandler
	CustodianHandler *custodianHTTP.CustodianHandler

	// MeterProvider enables per-request metrics when non-nil.
	MeterProvider    metric.MeterProvider
	MetricsNamespace string

	CORSEnabled      bool
	CORSAllowOrigins string

	// UnlockRateLimiter throttles the unlock endpoint when non-nil.
	UnlockRateLimiter gin.HandlerFunc
}

// SetupRouter assembles the Gin router with middleware and all API routes.
func (s *Server) SetupRouter(deps RouterDeps) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if deps.MeterProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(deps.MeterProvider, deps.MetricsNamespace))
	}

	if corsMiddleware := createCORSMiddleware(deps.CORSEnabled, deps.CORSAllowOrigins, s.logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	v1 := router.Group("/v1")

	if deps.SurveyKeyHandler != nil {
		surveys := v1.Group("/surveys/:survey_id")
		surveys.POST("/key", deps.SurveyKeyHandler.CreateHandler)
		surveys.POST("/key/rotate", deps.SurveyKeyHandler.RotateHandler)
		surveys.POST("/key/escrow", deps.SurveyKeyHandler.ReEscrowHandler)
		surveys.DELETE("/key", deps.SurveyKeyHandler.DestroyHandler)

		unlock := surveys.Group("/key/unlock")
		if deps.UnlockRateLimiter != nil {
			unlock.Use(deps.UnlockRateLimiter)
		}
		unlock.POST("", deps.SurveyKeyHandler.UnlockHandler)
	}

	if deps.OrgMasterHandler != nil {
		orgs := v1.Group("/orgs/:org_id")
		orgs.POST("/master-key", deps.OrgMasterHandler.CreateHandler)
		orgs.POST("/master-key/rotate", deps.OrgMasterHandler.RotateHandler)
	}

	if deps.RecoveryHandler != nil {
		v1.POST("/recovery-requests", deps.RecoveryHandler.SubmitHandler)

		requests := v1.Group("/recovery-requests/:request_id")
		requests.GET("", deps.RecoveryHandler.GetHandler)
		requests.POST("/evidence", deps.RecoveryHandler.EvidenceHandler)
		requests.POST("/resolve-verification", deps.RecoveryHandler.ResolveVerificationHandler)
		requests.POST("/approve", deps.RecoveryHandler.ApproveHandler)
		requests.POST("/reject", deps.RecoveryHandler.RejectHandler)
		requests.POST("/objection", deps.RecoveryHandler.ObjectionHandler)
		requests.POST("/claim", deps.RecoveryHandler.ClaimHandler)
	}

	if deps.CustodianHandler != nil {
		custodian := v1.Group("/custodian")
		custodian.GET("/status", deps.CustodianHandler.StatusHandler)
		custodian.POST("/shares", deps.CustodianHandler.SubmitShareHandler)
	}

	if deps.AuditHandler != nil {
		v1.GET("/audit-entries", deps.AuditHandler.ListBySubjectHandler)
		v1.GET("/audit-entries/verify", deps.AuditHandler.VerifyChainHandler)
	}

	s.router = router
}

// healthHandler reports process liveness.
func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler reports whether the server can take traffic. The database
// must be reachable; an unreachable database returns 503 with per-component
// detail.
func (s *Server) readinessHandler(c *gin.Context) {
	components := gin.H{}
	ready := true

	if s.db == nil {
		components["database"] = "error"
		ready = false
	} else if err := s.db.PingContext(c.Request.Context()); err != nil {
		components["database"] = "error"
		ready = false
	} else {
		components["database"] = "ok"
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "components": components})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready", "components": components})
}

// Start starts the HTTP server. SetupRouter must have been called first.
func (s *Server) Start(ctx context.Context) error {
	if s.router == nil {
		return fmt.Errorf("router not initialized, call SetupRouter first")
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.host, s.port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}
