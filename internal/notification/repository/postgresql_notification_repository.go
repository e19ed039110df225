// Package repository provides persistence for queued notification events.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/opensurvey/keyvault/internal/database"
	apperrors "github.com/opensurvey/keyvault/internal/errors"
	"github.com/opensurvey/keyvault/internal/notification/domain"
)

// PostgreSQLNotificationRepository handles notification event persistence
// for PostgreSQL.
type PostgreSQLNotificationRepository struct {
	db *sql.DB
}

// NewPostgreSQLNotificationRepository creates a new
// PostgreSQLNotificationRepository.
func NewPostgreSQLNotificationRepository(db *sql.DB) *PostgreSQLNotificationRepository {
	return &PostgreSQLNotificationRepository{db: db}
}

func marshalVariables(variables map[string]string) ([]byte, error) {
	if variables == nil {
		variables = map[string]string{}
	}
	return json.Marshal(variables)
}

// Create inserts a new notification event.
func (r *PostgreSQLNotificationRepository) Create(ctx context.Context, event *domain.Event) error {
	querier := database.GetTx(ctx, r.db)

	variables, err := marshalVariables(event.Variables)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal notification variables")
	}

	query := `INSERT INTO notification_events (id, template_id, recipient, variables, status, retries, last_error, processed_at, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())`

	_, err = querier.ExecContext(ctx, query, event.ID, event.TemplateID, event.Recipient, variables,
		event.Status, event.Retries, event.LastError, event.ProcessedAt)
	if err != nil {
		return apperrors.Wrap(err, "failed to create notification event")
	}
	return nil
}

// GetPendingEvents retrieves pending events with limit, skipping rows locked
// by a concurrent processor.
func (r *PostgreSQLNotificationRepository) GetPendingEvents(ctx context.Context, limit int) ([]*domain.Event, error) {
	querier := database.GetTx(ctx, r.db)

	query := `SELECT id, template_id, recipient, variables, status, retries, last_error, processed_at, created_at, updated_at
			  FROM notification_events
			  WHERE status = $1
			  ORDER BY created_at ASC
			  LIMIT $2
			  FOR UPDATE SKIP LOCKED`

	rows, err := querier.QueryContext(ctx, query, domain.EventStatusPending, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to get pending notification events")
	}
	defer func() { _ = rows.Close() }()

	return collectEvents(rows)
}

// Update updates a notification event's delivery bookkeeping.
func (r *PostgreSQLNotificationRepository) Update(ctx context.Context, event *domain.Event) error {
	querier := database.GetTx(ctx, r.db)

	query := `UPDATE notification_events
			  SET status = $1, retries = $2, last_error = $3, processed_at = $4, updated_at = NOW()
			  WHERE id = $5`

	_, err := querier.ExecContext(ctx, query, event.Status, event.Retries, event.LastError, event.ProcessedAt, event.ID)
	if err != nil {
		return apperrors.Wrap(err, "failed to update notification event")
	}
	return nil
}

func collectEvents(rows *sql.Rows) ([]*domain.Event, error) {
	var events []*domain.Event
	for rows.Next() {
		var (
			event        domain.Event
			rawVariables []byte
		)
		err := rows.Scan(&event.ID, &event.TemplateID, &event.Recipient, &rawVariables, &event.Status,
			&event.Retries, &event.LastError, &event.ProcessedAt, &event.CreatedAt, &event.UpdatedAt)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan notification event")
		}
		if len(rawVariables) > 0 {
			if err := json.Unmarshal(rawVariables, &event.Variables); err != nil {
				return nil, apperrors.Wrap(err, "failed to unmarshal notification variables")
			}
		}
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}
