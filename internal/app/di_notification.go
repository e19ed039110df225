package app

import (
	"fmt"

	notificationRepository "github.com/opensurvey/keyvault/internal/notification/repository"
	notificationUC "github.com/opensurvey/keyvault/internal/notification/usecase"
)

// NotificationRepository returns the notification event repository based on
// database driver.
func (c *Container) NotificationRepository() (notificationUC.EventRepository, error) {
	var err error
	c.notificationRepoInit.Do(func() {
		c.notificationRepository, err = c.initNotificationRepository()
		if err != nil {
			c.initErrors["notificationRepository"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["notificationRepository"]; exists {
		return nil, storedErr
	}
	return c.notificationRepository, nil
}

// NotificationUseCase returns the notification use case.
func (c *Container) NotificationUseCase() (*notificationUC.NotificationUseCase, error) {
	var err error
	c.notificationUseCaseInit.Do(func() {
		c.notificationUseCase, err = c.initNotificationUseCase()
		if err != nil {
			c.initErrors["notificationUseCase"] = err
		}
	})
	if err != nil {
		return nil, err
	}
	if storedErr, exists := c.initErrors["notificationUseCase"]; exists {
		return nil, storedErr
	}
	return c.notificationUseCase, nil
}

// initNotificationRepository creates the notification repository based on the
// database driver.
func (c *Container) initNotificationRepository() (notificationUC.EventRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for notification repository: %w", err)
	}

	switch c.config.DBDriver {
	case "postgres":
		return notificationRepository.NewPostgreSQLNotificationRepository(db), nil
	case "mysql":
		return notificationRepository.NewMySQLNotificationRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

// initNotificationUseCase creates the notification use case with all its dependencies.
func (c *Container) initNotificationUseCase() (*notificationUC.NotificationUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for notification use case: %w", err)
	}

	repository, err := c.NotificationRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get notification repository for notification use case: %w", err)
	}

	auditor, err := c.AuditUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get audit use case for notification use case: %w", err)
	}

	cfg := notificationUC.Config{
		Interval:   c.config.OutboxInterval,
		BatchSize:  c.config.OutboxBatchSize,
		MaxRetries: c.config.OutboxMaxRetries,
	}

	dispatcher := notificationUC.NewLogDispatcher(c.Logger())

	return notificationUC.NewNotificationUseCase(
		cfg,
		txManager,
		repository,
		dispatcher,
		auditor,
		c.Logger(),
	), nil
}
