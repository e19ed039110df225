package repository

import (
	"context"
	"database/sql"

	"github.com/opensurvey/keyvault/internal/database"
	apperrors "github.com/opensurvey/keyvault/internal/errors"
	"github.com/opensurvey/keyvault/internal/notification/domain"
)

// MySQLNotificationRepository handles notification event persistence for
// MySQL.
type MySQLNotificationRepository struct {
	db *sql.DB
}

// NewMySQLNotificationRepository creates a new MySQLNotificationRepository.
func NewMySQLNotificationRepository(db *sql.DB) *MySQLNotificationRepository {
	return &MySQLNotificationRepository{db: db}
}

// Create inserts a new notification event.
func (r *MySQLNotificationRepository) Create(ctx context.Context, event *domain.Event) error {
	querier := database.GetTx(ctx, r.db)

	variables, err := marshalVariables(event.Variables)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal notification variables")
	}

	query := `INSERT INTO notification_events (id, template_id, recipient, variables, status, retries, last_error, processed_at, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, NOW(), NOW())`

	_, err = querier.ExecContext(ctx, query, event.ID, event.TemplateID, event.Recipient, variables,
		event.Status, event.Retries, event.LastError, event.ProcessedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to create notification event")
	}
	return nil
}

// GetPendingEvents retrieves pending events with limit, skipping rows locked
// by a concurrent processor.
func (r *MySQLNotificationRepository) GetPendingEvents(ctx context.Context, limit int) ([]*domain.Event, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, template_id, recipient, variables, status, retries, last_error, processed_at, created_at, updated_at
			  FROM notification_events
			  WHERE status = ?
			  ORDER BY created_at ASC
			  LIMIT ?
			  FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, query, domain.EventStatusPending, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to get pending notification events")
	}
	defer func() { _ = rows.Close() }()

	return collectEvents(rows)
}

// Update updates a notification event's delivery bookkeeping.
func (r *MySQLNotificationRepository) Update(ctx context.Context, event *domain.Event) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE notification_events
			  SET status = ?, retries = ?, last_error = ?, processed_at = ?, updated_at = NOW()
			  WHERE id = ?`

	_, err := querier.ExecContext(ctx, query, event.Status, event.Retries, event.LastError, event.ProcessedAt, event.ID)
	if err != nil {
		return apperrors.Wrap(err, "failed to update notification event")
	}
	return nil
}
