// Package usecase implements notification enqueueing and asynchronous
// delivery over the transactional outbox.
package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	auditDomain "github.com/opensurvey/keyvault/internal/audit/domain"
	"github.com/opensurvey/keyvault/internal/database"
	apperrors "github.com/opensurvey/keyvault/internal/errors"
	"github.com/opensurvey/keyvault/internal/notification/domain"
)

// Config holds notification processor configuration.
type Config struct {
	Interval   time.Duration
	BatchSize  int
	MaxRetries int
}

// EventRepository defines notification event persistence.
type EventRepository interface {
	Create(ctx context.Context, event *domain.Event) error
	GetPendingEvents(ctx context.Context, limit int) ([]*domain.Event, error)
	Update(ctx context.Context, event *domain.Event) error
}

// Dispatcher performs the actual delivery of one notification. External to
// this module; implementations talk to mail or push providers.
type Dispatcher interface {
	Dispatch(ctx context.Context, event *domain.Event) error
}

// Auditor appends delivery-attempt entries to the audit ledger.
type Auditor interface {
	Record(ctx context.Context, actor string, action auditDomain.Action, subjectRef string, detail any) (*auditDomain.Entry, error)
}

// NotificationUseCase enqueues notification events and drives their
// asynchronous delivery. Every delivery attempt, success or failure, is
// audit-logged; failures are retried up to the configured maximum and then
// parked as failed.
type NotificationUseCase struct {
	config     Config
	txManager  database.TxManager
	repository EventRepository
	dispatcher Dispatcher
	auditor    Auditor
	logger     *slog.Logger
}

// NewNotificationUseCase creates a new NotificationUseCase.
func NewNotificationUseCase(
	config Config,
	txManager database.TxManager,
	repository EventRepository,
	dispatcher Dispatcher,
	auditor Auditor,
	logger *slog.Logger,
) *NotificationUseCase {
	return &NotificationUseCase{
		config:     config,
		txManager:  txManager,
		repository: repository,
		dispatcher: dispatcher,
		auditor:    auditor,
		logger:     logger,
	}
}

// Enqueue queues one notification. It joins any transaction on the context,
// which is how workflow transitions make "state changed" and "notification
// queued" atomic.
func (uc *NotificationUseCase) Enqueue(
	ctx context.Context,
	templateID string,
	recipient string,
	variables map[string]string,
) error {
	id, err := uuid.NewV7()
	if err != nil {
		return apperrors.Wrap(err, "failed to generate notification event id")
	}

	event := &domain.Event{
		ID:         id,
		TemplateID: templateID,
		Recipient:  recipient,
		Variables:  variables,
		Status:     domain.EventStatusPending,
	}
	return uc.repository.Create(ctx, event)
}

// Start starts the notification delivery loop.
func (uc *NotificationUseCase) Start(ctx context.Context) error {
	if uc.logger != nil {
		uc.logger.Info("starting notification processor",
			slog.Duration("interval", uc.config.Interval),
			slog.Int("batch_size", uc.config.BatchSize),
		)
	}

	ticker := time.NewTicker(uc.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if uc.logger != nil {
				uc.logger.Info("stopping notification processor")
			}
			return ctx.Err()
		case <-ticker.C:
			if err := uc.ProcessEvents(ctx); err != nil {
				if uc.logger != nil {
					uc.logger.Error("failed to process notification events", slog.Any("error", err))
				}
			}
		}
	}
}

// ProcessEvents delivers a batch of pending events in a transaction.
func (uc *NotificationUseCase) ProcessEvents(ctx context.Context) error {
	return uc.txManager.WithTx(ctx, func(ctx context.Context) error {
		events, err := uc.repository.GetPendingEvents(ctx, uc.config.BatchSize)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			return nil
		}

		for _, event := range events {
			if err := uc.deliver(ctx, event); err != nil {
				return err
			}
		}
		return nil
	})
}

// deliver attempts one event and records the outcome. A dispatch failure
// updates retry bookkeeping and is audit-logged, but never fails the batch.
func (uc *NotificationUseCase) deliver(ctx context.Context, event *domain.Event) error {
	subjectRef := "notification:" + event.ID.String()

	if err := uc.dispatcher.Dispatch(ctx, event); err != nil {
		if uc.logger != nil {
			uc.logger.Error("failed to dispatch notification",
				slog.String("event_id", event.ID.String()),
				slog.String("template_id", event.TemplateID),
				slog.Any("error", err),
			)
		}

		event.Retries++
		errorMsg := err.Error()
		event.LastError = &errorMsg
		if event.Retries >= uc.config.MaxRetries {
			event.Status = domain.EventStatusFailed
		}

		if _, auditErr := uc.auditor.Record(ctx, "system", auditDomain.ActionNotificationFailed, subjectRef, map[string]any{
			"template_id": event.TemplateID,
			"retries":     event.Retries,
			"error":       errorMsg,
		}); auditErr != nil {
			return auditErr
		}
		return uc.repository.Update(ctx, event)
	}

	now := time.Now()
	event.Status = domain.EventStatusProcessed
	event.ProcessedAt = &now

	if _, err := uc.auditor.Record(ctx, "system", auditDomain.ActionNotificationSent, subjectRef, map[string]string{
		"template_id": event.TemplateID,
	}); err != nil {
		return err
	}
	return uc.repository.Update(ctx, event)
}

// LogDispatcher is a Dispatcher that only logs, for deployments without a
// delivery provider wired in.
type LogDispatcher struct {
	logger *slog.Logger
}

// NewLogDispatcher creates a new LogDispatcher.
func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

// Dispatch logs the notification.
func (d *LogDispatcher) Dispatch(ctx context.Context, event *domain.Event) error {
	if d.logger != nil {
		d.logger.Info("notification",
			slog.String("template_id", event.TemplateID),
			slog.String("recipient", event.Recipient),
			slog.Any("variables", event.Variables),
		)
	}
	return nil
}
