// Package app provides dependency injection container for assembling application components.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"

	vaultapi "github.com/hashicorp/vault/api"

	auditHTTP "github.com/opensurvey/keyvault/internal/audit/http"
	auditUseCase "github.com/opensurvey/keyvault/internal/audit/usecase"
	"github.com/opensurvey/keyvault/internal/config"
	custodianHTTP "github.com/opensurvey/keyvault/internal/custodian/http"
	custodianService "github.com/opensurvey/keyvault/internal/custodian/service"
	custodianUseCase "github.com/opensurvey/keyvault/internal/custodian/usecase"
	"github.com/opensurvey/keyvault/internal/database"
	"github.com/opensurvey/keyvault/internal/escrow"
	"github.com/opensurvey/keyvault/internal/http"
	keysDomain "github.com/opensurvey/keyvault/internal/keys/domain"
	keysHTTP "github.com/opensurvey/keyvault/internal/keys/http"
	keysService "github.com/opensurvey/keyvault/internal/keys/service"
	keysUseCase "github.com/opensurvey/keyvault/internal/keys/usecase"
	"github.com/opensurvey/keyvault/internal/metrics"
	notificationUseCase "github.com/opensurvey/keyvault/internal/notification/usecase"
	recoveryHTTP "github.com/opensurvey/keyvault/internal/recovery/http"
	recoveryService "github.com/opensurvey/keyvault/internal/recovery/service"
	recoveryUseCase "github.com/opensurvey/keyvault/internal/recovery/usecase"
)

// Container holds all application dependencies and provides methods to access them.
// It follows the lazy initialization pattern - components are created on first access.
type Container struct {
	// Configuration
	config *config.Config

	// Infrastructure
	logger      *slog.Logger
	db          *sql.DB
	vaultClient *vaultapi.Client

	// Managers
	txManager database.TxManager

	// Metrics
	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics

	// Custodian quorum and escrow
	splitter         custodianService.Splitter
	custodian        custodianService.Custodian
	custodianUseCase *custodianUseCase.CustodianUseCase
	custodianHandler *custodianHTTP.CustodianHandler
	escrowStore      escrow.Store

	// Key hierarchy
	wrapService            keysService.WrapService
	keeper                 keysDomain.Keeper
	keyWrapRepository      keysUseCase.KeyWrapRepository
	orgMasterKeyRepository keysUseCase.OrgMasterKeyRepository
	orgMasterUseCase       keysUseCase.OrgMasterUseCase
	surveyKeyUseCase       keysUseCase.SurveyKeyUseCase
	surveyKeyHandler       *keysHTTP.SurveyKeyHandler
	orgMasterHandler       *keysHTTP.OrgMasterHandler

	// Audit ledger
	auditRepository auditUseCase.Repository
	auditUseCase    *auditUseCase.AuditUseCase
	auditHandler    *auditHTTP.AuditHandler

	// Recovery workflow
	recoveryRepository recoveryUseCase.Repository
	approverDirectory  *recoveryService.AllowlistDirectory
	verifier           recoveryUseCase.Verifier
	recoveryUseCase    *recoveryUseCase.RecoveryUseCase
	recoveryEngine     recoveryUseCase.Engine
	sweeper            *recoveryUseCase.Sweeper
	recoveryHandler    *recoveryHTTP.RecoveryHandler

	// Notification outbox
	notificationRepository notificationUseCase.EventRepository
	notificationUseCase    *notificationUseCase.NotificationUseCase

	// Servers
	httpServer    *http.Server
	metricsServer *http.MetricsServer

	// Initialization flags and mutex for thread-safety
	mu                         sync.Mutex
	loggerInit                 sync.Once
	dbInit                     sync.Once
	vaultClientInit            sync.Once
	txManagerInit              sync.Once
	metricsProviderInit        sync.Once
	businessMetricsInit        sync.Once
	splitterInit               sync.Once
	custodianInit              sync.Once
	custodianUseCaseInit       sync.Once
	custodianHandlerInit       sync.Once
	escrowStoreInit            sync.Once
	wrapServiceInit            sync.Once
	keeperInit                 sync.Once
	keyWrapRepositoryInit      sync.Once
	orgMasterKeyRepositoryInit sync.Once
	orgMasterUseCaseInit       sync.Once
	surveyKeyUseCaseInit       sync.Once
	surveyKeyHandlerInit       sync.Once
	orgMasterHandlerInit       sync.Once
	auditRepositoryInit        sync.Once
	auditUseCaseInit           sync.Once
	auditHandlerInit           sync.Once
	recoveryRepositoryInit     sync.Once
	approverDirectoryInit      sync.Once
	verifierInit               sync.Once
	recoveryUseCaseInit        sync.Once
	recoveryEngineInit         sync.Once
	sweeperInit                sync.Once
	recoveryHandlerInit        sync.Once
	notificationRepoInit       sync.Once
	notificationUseCaseInit    sync.Once
	httpServerInit             sync.Once
	metricsServerInit          sync.Once
	initErrors                 map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	return &Container{
		config:     cfg,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the configured logger instance.
// It creates a new logger on first access based on the log level in configuration.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// DB returns the database connection.
// It creates and configures the database connection on first access.
func (c *Container) DB() (*sql.DB, error) {
	var err error
	c.dbInit.Do(func() {
		c.db, err = c.initDB()
		if err != nil {
			c.initErrors["db"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["db"]; exists {
		return nil, storedErr
	}
	return c.db, nil
}

// VaultClient returns the shared HashiCorp Vault client used by the escrow
// store and the evidence verifier.
func (c *Container) VaultClient() (*vaultapi.Client, error) {
	var err error
	c.vaultClientInit.Do(func() {
		c.vaultClient, err = c.initVaultClient()
		if err != nil {
			c.initErrors["vaultClient"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["vaultClient"]; exists {
		return nil, storedErr
	}
	return c.vaultClient, nil
}

// TxManager returns the transaction manager.
// It requires a database connection to be initialized first.
func (c *Container) TxManager() (database.TxManager, error) {
	var err error
	c.txManagerInit.Do(func() {
		c.txManager, err = c.initTxManager()
		if err != nil {
			c.initErrors["txManager"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["txManager"]; exists {
		return nil, storedErr
	}
	return c.txManager, nil
}

// MetricsProvider returns the OpenTelemetry metrics provider.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	var err error
	c.metricsProviderInit.Do(func() {
		c.metricsProvider, err = metrics.NewProvider(c.config.MetricsNamespace)
		if err != nil {
			c.initErrors["metricsProvider"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsProvider"]; exists {
		return nil, storedErr
	}
	return c.metricsProvider, nil
}

// BusinessMetrics returns the business metrics recorder.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	var err error
	c.businessMetricsInit.Do(func() {
		c.businessMetrics, err = c.initBusinessMetrics()
		if err != nil {
			c.initErrors["businessMetrics"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["businessMetrics"]; exists {
		return nil, storedErr
	}
	return c.businessMetrics, nil
}

// HTTPServer returns the HTTP server instance with all routes assembled.
func (c *Container) HTTPServer() (*http.Server, error) {
	var err error
	c.httpServerInit.Do(func() {
		c.httpServer, err = c.initHTTPServer()
		if err != nil {
			c.initErrors["httpServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["httpServer"]; exists {
		return nil, storedErr
	}
	return c.httpServer, nil
}

// MetricsServer returns the Prometheus metrics server instance.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	var err error
	c.metricsServerInit.Do(func() {
		c.metricsServer, err = c.initMetricsServer()
		if err != nil {
			c.initErrors["metricsServer"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["metricsServer"]; exists {
		return nil, storedErr
	}
	return c.metricsServer, nil
}

// Shutdown performs cleanup of all initialized resources.
// It should be called when the application is shutting down.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var shutdownErrors []error

	// Shutdown HTTP server if initialized
	if c.httpServer != nil {
		if err := c.httpServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("http server shutdown: %w", err))
		}
	}

	// Shutdown metrics server if initialized
	if c.metricsServer != nil {
		if err := c.metricsServer.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}

	// Flush pending metrics if the provider was initialized
	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	// Zero the reconstructed platform escrow key if the custodian was unlocked
	if c.custodian != nil {
		c.custodian.Lock()
	}

	// Close database connection if initialized
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	// Return combined errors if any occurred
	if len(shutdownErrors) > 0 {
		return fmt.Errorf("shutdown errors: %v", shutdownErrors)
	}

	return nil
}

// initLogger creates and configures a structured logger based on the log level.
func (c *Container) initLogger() *slog.Logger {
	var logLevel slog.Level
	switch c.config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(handler)
}

// initDB creates and configures the database connection.
func (c *Container) initDB() (*sql.DB, error) {
	db, err := database.Connect(database.Config{
		Driver:             c.config.DBDriver,
		ConnectionString:   c.config.DBConnectionString,
		MaxOpenConnections: c.config.DBMaxOpenConnections,
		MaxIdleConnections: c.config.DBMaxIdleConnections,
		ConnMaxLifetime:    c.config.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// initVaultClient creates the Vault client from the escrow configuration.
func (c *Container) initVaultClient() (*vaultapi.Client, error) {
	if c.config.EscrowVaultAddress == "" {
		return nil, fmt.Errorf("vault address not configured")
	}

	vaultConfig := vaultapi.DefaultConfig()
	vaultConfig.Address = c.config.EscrowVaultAddress

	client, err := vaultapi.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	client.SetToken(c.config.EscrowVaultToken)

	return client, nil
}

// initTxManager creates the transaction manager using the database connection.
func (c *Container) initTxManager() (database.TxManager, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for tx manager: %w", err)
	}
	return database.NewTxManager(db), nil
}

// initBusinessMetrics creates the business metrics recorder from the meter provider.
func (c *Container) initBusinessMetrics() (metrics.BusinessMetrics, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for business metrics: %w", err)
	}
	businessMetrics, err := metrics.NewBusinessMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create business metrics: %w", err)
	}
	return businessMetrics, nil
}

// initHTTPServer creates the HTTP server with all its dependencies.
func (c *Container) initHTTPServer() (*http.Server, error) {
	logger := c.Logger()

	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for http server: %w", err)
	}

	surveyKeyHandler, err := c.SurveyKeyHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get survey key handler for http server: %w", err)
	}

	orgMasterHandler, err := c.OrgMasterHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get org master handler for http server: %w", err)
	}

	recoveryHandler, err := c.RecoveryHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get recovery handler for http server: %w", err)
	}

	auditHandler, err := c.AuditHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit handler for http server: %w", err)
	}

	custodianHandler, err := c.CustodianHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get custodian handler for http server: %w", err)
	}

	deps := http.RouterDeps{
		SurveyKeyHandler: surveyKeyHandler,
		OrgMasterHandler: orgMasterHandler,
		RecoveryHandler:  recoveryHandler,
		AuditHandler:     auditHandler,
		CustodianHandler: custodianHandler,
		MetricsNamespace: c.config.MetricsNamespace,
		CORSEnabled:      c.config.CORSEnabled,
		CORSAllowOrigins: c.config.CORSAllowOrigins,
	}

	if c.config.MetricsEnabled {
		provider, err := c.MetricsProvider()
		if err != nil {
			return nil, fmt.Errorf("failed to get metrics provider for http server: %w", err)
		}
		deps.MeterProvider = provider.MeterProvider()
	}

	if c.config.RateLimitUnlockEnabled {
		deps.UnlockRateLimiter = http.UnlockRateLimitMiddleware(
			c.config.RateLimitUnlockRequestsPerSec,
			c.config.RateLimitUnlockBurst,
		)
	}

	server := http.NewServer(db, c.config.ServerHost, c.config.ServerPort, logger)
	server.SetupRouter(deps)

	return server, nil
}

// initMetricsServer creates the Prometheus metrics server.
func (c *Container) initMetricsServer() (*http.MetricsServer, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for metrics server: %w", err)
	}

	return http.NewMetricsServer(
		c.config.ServerHost,
		c.config.MetricsPort,
		c.Logger(),
		provider,
	), nil
}
