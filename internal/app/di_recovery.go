package app

import (
	"fmt"

	recoveryHTTP "github.com/opensurvey/keyvault/internal/recovery/http"
	recoveryRepository "github.com/opensurvey/keyvault/internal/recovery/repository"
	recoveryService "github.com/opensurvey/keyvault/internal/recovery/service"
	recoveryUC "github.com/opensurvey/keyvault/internal/recovery/usecase"
)

// RecoveryRepository returns the recovery request repository based on database driver.
func (c *Container) RecoveryRepository() (recoveryUC.Repository, error) {
	var err error
	c.recoveryRepositoryInit.Do(func() {
		c.recoveryRepository, err = c.initRecoveryRepository()
		if err != nil {
			c.initErrors["recoveryRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["recoveryRepository"]; exists {
		return nil, storedErr
	}
	return c.recoveryRepository, nil
}

// ApproverDirectory returns the configured recovery approver allowlist.
func (c *Container) ApproverDirectory() *recoveryService.AllowlistDirectory {
	c.approverDirectoryInit.Do(func() {
		c.approverDirectory = recoveryService.NewAllowlistDirectory(c.config.RecoveryApproverIDs)
	})
	return c.approverDirectory
}

// Verifier returns the identity evidence verifier.
func (c *Container) Verifier() (recoveryUC.Verifier, error) {
	var err error
	c.verifierInit.Do(func() {
		c.verifier, err = c.initVerifier()
		if err != nil {
			c.initErrors["verifier"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["verifier"]; exists {
		return nil, storedErr
	}
	return c.verifier, nil
}

// RecoveryUseCase returns the recovery workflow engine.
func (c *Container) RecoveryUseCase() (*recoveryUC.RecoveryUseCase, error) {
	var err error
	c.recoveryUseCaseInit.Do(func() {
		c.recoveryUseCase, err = c.initRecoveryUseCase()
		if err != nil {
			c.initErrors["recoveryUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["recoveryUseCase"]; exists {
		return nil, storedErr
	}
	return c.recoveryUseCase, nil
}

// RecoveryEngine returns the handler-facing recovery engine, wrapped with
// metrics when enabled.
func (c *Container) RecoveryEngine() (recoveryUC.Engine, error) {
	var err error
	c.recoveryEngineInit.Do(func() {
		c.recoveryEngine, err = c.initRecoveryEngine()
		if err != nil {
			c.initErrors["recoveryEngine"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["recoveryEngine"]; exists {
		return nil, storedErr
	}
	return c.recoveryEngine, nil
}

// Sweeper returns the background worker completing matured recovery requests.
func (c *Container) Sweeper() (*recoveryUC.Sweeper, error) {
	var err error
	c.sweeperInit.Do(func() {
		c.sweeper, err = c.initSweeper()
		if err != nil {
			c.initErrors["sweeper"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["sweeper"]; exists {
		return nil, storedErr
	}
	return c.sweeper, nil
}

// RecoveryHandler returns the HTTP handler for recovery workflow operations.
func (c *Container) RecoveryHandler() (*recoveryHTTP.RecoveryHandler, error) {
	var err error
	c.recoveryHandlerInit.Do(func() {
		c.recoveryHandler, err = c.initRecoveryHandler()
		if err != nil {
			c.initErrors["recoveryHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["recoveryHandler"]; exists {
		return nil, storedErr
	}
	return c.recoveryHandler, nil
}

// initRecoveryRepository creates the recovery repository based on the database driver.
func (c *Container) initRecoveryRepository() (recoveryUC.Repository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for recovery repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return recoveryRepository.NewPostgreSQLRecoveryRepository(db), nil
	case "mysql":
		return recoveryRepository.NewMySQLRecoveryRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initVerifier creates the evidence verifier. A configured Vault address gets
// the Vault-backed verifier; otherwise the in-memory stand-in is used, which
// only suits development since evidence and verdicts vanish on restart.
func (c *Container) initVerifier() (recoveryUC.Verifier, error) {
	if c.config.EscrowVaultAddress == "" {
		c.Logger().Warn("escrow vault address not configured, using in-memory evidence verifier")
		return recoveryService.NewMemoryVerifier(), nil
	}

	client, err := c.VaultClient()
	if err != nil {
		return nil, fmt.Errorf("failed to get vault client for verifier: %w", err)
	}

	return recoveryService.NewVaultVerifier(client, c.config.EvidenceVaultMount), nil
}

// initRecoveryUseCase creates the recovery engine with all its dependencies.
func (c *Container) initRecoveryUseCase() (*recoveryUC.RecoveryUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for recovery use case: %w", err)
	}

	repository, err := c.RecoveryRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get recovery repository for recovery use case: %w", err)
	}

	auditor, err := c.AuditUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit use case for recovery use case: %w", err)
	}

	notifier, err := c.NotificationUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get notification use case for recovery use case: %w", err)
	}

	verifier, err := c.Verifier()
	if err != nil {
		return nil, fmt.Errorf("failed to get verifier for recovery use case: %w", err)
	}

	keyRecoverer, err := c.SurveyKeyUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get survey key use case for recovery use case: %w", err)
	}

	return recoveryUC.NewRecoveryUseCase(
		txManager,
		repository,
		auditor,
		notifier,
		c.ApproverDirectory(),
		verifier,
		keyRecoverer,
		c.config.RecoveryDelay,
		c.Logger(),
	), nil
}

// initRecoveryEngine wraps the recovery use case with metrics when enabled.
func (c *Container) initRecoveryEngine() (recoveryUC.Engine, error) {
	useCase, err := c.RecoveryUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get recovery use case for recovery engine: %w", err)
	}

	// Wrap with metrics if enabled
	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for recovery engine: %w", err)
		}
		return recoveryUC.NewEngineWithMetrics(useCase, businessMetrics), nil
	}

	return useCase, nil
}

// initSweeper creates the background sweeper over the recovery engine.
func (c *Container) initSweeper() (*recoveryUC.Sweeper, error) {
	useCase, err := c.RecoveryUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get recovery use case for sweeper: %w", err)
	}

	return recoveryUC.NewSweeper(useCase, c.config.RecoverySweepInterval, c.Logger()), nil
}

// initRecoveryHandler creates the recovery HTTP handler with all its dependencies.
func (c *Container) initRecoveryHandler() (*recoveryHTTP.RecoveryHandler, error) {
	engine, err := c.RecoveryEngine()
	if err != nil {
		return nil, fmt.Errorf("failed to get recovery engine for recovery handler: %w", err)
	}

	return recoveryHTTP.NewRecoveryHandler(engine, c.Logger()), nil
}
