package app

import (
	"context"
	"fmt"

	keysDomain "github.com/opensurvey/keyvault/internal/keys/domain"
	keysHTTP "github.com/opensurvey/keyvault/internal/keys/http"
	keysRepository "github.com/opensurvey/keyvault/internal/keys/repository"
	keysService "github.com/opensurvey/keyvault/internal/keys/service"
	keysUseCase "github.com/opensurvey/keyvault/internal/keys/usecase"
)

// WrapService returns the factor wrap service.
func (c *Container) WrapService() (keysService.WrapService, error) {
	var err error
	c.wrapServiceInit.Do(func() {
		c.wrapService, err = keysService.NewWrapService(keysService.NewAEADManager())
		if err != nil {
			c.initErrors["wrapService"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["wrapService"]; exists {
		return nil, storedErr
	}
	return c.wrapService, nil
}

// Keeper returns the KMS keeper sealing organization master keys at rest.
func (c *Container) Keeper() (keysDomain.Keeper, error) {
	var err error
	c.keeperInit.Do(func() {
		c.keeper, err = c.initKeeper()
		if err != nil {
			c.initErrors["keeper"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["keeper"]; exists {
		return nil, storedErr
	}
	return c.keeper, nil
}

// KeyWrapRepository returns the key wrap repository based on database driver.
func (c *Container) KeyWrapRepository() (keysUseCase.KeyWrapRepository, error) {
	var err error
	c.keyWrapRepositoryInit.Do(func() {
		c.keyWrapRepository, err = c.initKeyWrapRepository()
		if err != nil {
			c.initErrors["keyWrapRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["keyWrapRepository"]; exists {
		return nil, storedErr
	}
	return c.keyWrapRepository, nil
}

// OrgMasterKeyRepository returns the organization master key repository based
// on database driver.
func (c *Container) OrgMasterKeyRepository() (keysUseCase.OrgMasterKeyRepository, error) {
	var err error
	c.orgMasterKeyRepositoryInit.Do(func() {
		c.orgMasterKeyRepository, err = c.initOrgMasterKeyRepository()
		if err != nil {
			c.initErrors["orgMasterKeyRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["orgMasterKeyRepository"]; exists {
		return nil, storedErr
	}
	return c.orgMasterKeyRepository, nil
}

// OrgMasterUseCase returns the organization master key use case.
func (c *Container) OrgMasterUseCase() (keysUseCase.OrgMasterUseCase, error) {
	var err error
	c.orgMasterUseCaseInit.Do(func() {
		c.orgMasterUseCase, err = c.initOrgMasterUseCase()
		if err != nil {
			c.initErrors["orgMasterUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["orgMasterUseCase"]; exists {
		return nil, storedErr
	}
	return c.orgMasterUseCase, nil
}

// SurveyKeyUseCase returns the survey key use case.
func (c *Container) SurveyKeyUseCase() (keysUseCase.SurveyKeyUseCase, error) {
	var err error
	c.surveyKeyUseCaseInit.Do(func() {
		c.surveyKeyUseCase, err = c.initSurveyKeyUseCase()
		if err != nil {
			c.initErrors["surveyKeyUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["surveyKeyUseCase"]; exists {
		return nil, storedErr
	}
	return c.surveyKeyUseCase, nil
}

// SurveyKeyHandler returns the HTTP handler for survey key operations.
func (c *Container) SurveyKeyHandler() (*keysHTTP.SurveyKeyHandler, error) {
	var err error
	c.surveyKeyHandlerInit.Do(func() {
		c.surveyKeyHandler, err = c.initSurveyKeyHandler()
		if err != nil {
			c.initErrors["surveyKeyHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["surveyKeyHandler"]; exists {
		return nil, storedErr
	}
	return c.surveyKeyHandler, nil
}

// OrgMasterHandler returns the HTTP handler for organization master key operations.
func (c *Container) OrgMasterHandler() (*keysHTTP.OrgMasterHandler, error) {
	var err error
	c.orgMasterHandlerInit.Do(func() {
		c.orgMasterHandler, err = c.initOrgMasterHandler()
		if err != nil {
			c.initErrors["orgMasterHandler"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["orgMasterHandler"]; exists {
		return nil, storedErr
	}
	return c.orgMasterHandler, nil
}

// initKeeper opens the keeper at the configured KMS key URI.
func (c *Container) initKeeper() (keysDomain.Keeper, error) {
	if c.config.KMSKeyURI == "" {
		return nil, fmt.Errorf("kms key uri not configured")
	}
	keeper, err := keysService.NewKeeperService().OpenKeeper(context.Background(), c.config.KMSKeyURI)
	if err != nil {
		return nil, fmt.Errorf("failed to open keeper: %w", err)
	}
	return keeper, nil
}

// initKeyWrapRepository creates the key wrap repository based on the database driver.
func (c *Container) initKeyWrapRepository() (keysUseCase.KeyWrapRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for key wrap repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return keysRepository.NewPostgreSQLKeyWrapRepository(db), nil
	case "mysql":
		return keysRepository.NewMySQLKeyWrapRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initOrgMasterKeyRepository creates the organization master key repository
// based on the database driver.
func (c *Container) initOrgMasterKeyRepository() (keysUseCase.OrgMasterKeyRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for org master key repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return keysRepository.NewPostgreSQLOrgMasterKeyRepository(db), nil
	case "mysql":
		return keysRepository.NewMySQLOrgMasterKeyRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initOrgMasterUseCase creates the organization master key use case with all
// its dependencies.
func (c *Container) initOrgMasterUseCase() (keysUseCase.OrgMasterUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for org master use case: %w", err)
	}

	keyRepo, err := c.OrgMasterKeyRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get org master key repository for org master use case: %w", err)
	}

	wrapRepo, err := c.KeyWrapRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get key wrap repository for org master use case: %w", err)
	}

	wrapService, err := c.WrapService()
	if err != nil {
		return nil, fmt.Errorf("failed to get wrap service for org master use case: %w", err)
	}

	keeper, err := c.Keeper()
	if err != nil {
		return nil, fmt.Errorf("failed to get keeper for org master use case: %w", err)
	}

	auditor, err := c.AuditUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit use case for org master use case: %w", err)
	}

	return keysUseCase.NewOrgMasterUseCase(
		txManager,
		keyRepo,
		wrapRepo,
		wrapService,
		keeper,
		c.config.KMSKeyURI,
		auditor,
		c.Logger(),
	), nil
}

// initSurveyKeyUseCase creates the survey key use case with all its dependencies.
func (c *Container) initSurveyKeyUseCase() (keysUseCase.SurveyKeyUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for survey key use case: %w", err)
	}

	wrapRepo, err := c.KeyWrapRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get key wrap repository for survey key use case: %w", err)
	}

	wrapService, err := c.WrapService()
	if err != nil {
		return nil, fmt.Errorf("failed to get wrap service for survey key use case: %w", err)
	}

	orgMaster, err := c.OrgMasterUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get org master use case for survey key use case: %w", err)
	}

	custodian, err := c.Custodian()
	if err != nil {
		return nil, fmt.Errorf("failed to get custodian for survey key use case: %w", err)
	}

	escrowStore, err := c.EscrowStore()
	if err != nil {
		return nil, fmt.Errorf("failed to get escrow store for survey key use case: %w", err)
	}

	auditor, err := c.AuditUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit use case for survey key use case: %w", err)
	}

	baseUseCase := keysUseCase.NewSurveyKeyUseCase(
		txManager,
		wrapRepo,
		wrapService,
		orgMaster,
		custodian,
		escrowStore,
		auditor,
		c.Logger(),
	)

	// Wrap with metrics if enabled
	if c.config.MetricsEnabled {
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			return nil, fmt.Errorf("failed to get business metrics for survey key use case: %w", err)
		}
		return keysUseCase.NewSurveyKeyUseCaseWithMetrics(baseUseCase, businessMetrics), nil
	}

	return baseUseCase, nil
}

// initSurveyKeyHandler creates the survey key HTTP handler with all its dependencies.
func (c *Container) initSurveyKeyHandler() (*keysHTTP.SurveyKeyHandler, error) {
	surveyKeyUC, err := c.SurveyKeyUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get survey key use case for survey key handler: %w", err)
	}

	return keysHTTP.NewSurveyKeyHandler(surveyKeyUC, c.Logger()), nil
}

// initOrgMasterHandler creates the organization master key HTTP handler with
// all its dependencies.
func (c *Container) initOrgMasterHandler() (*keysHTTP.OrgMasterHandler, error) {
	orgMasterUC, err := c.OrgMasterUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get org master use case for org master handler: %w", err)
	}

	return keysHTTP.NewOrgMasterHandler(orgMasterUC, c.Logger()), nil
}
