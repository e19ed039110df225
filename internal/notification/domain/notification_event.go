// Package domain defines the outbound notification event model. Events are
// written through a transactional outbox: the enqueue rides the workflow
// transition's transaction, and delivery happens asynchronously so it can
// never block or fail a transition.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventStatus represents the delivery status of a notification event.
type EventStatus string

// Notification event statuses.
const (
	EventStatusPending   EventStatus = "pending"
	EventStatusProcessed EventStatus = "processed"
	EventStatusFailed    EventStatus = "failed"
)

// Event is one queued notification.
type Event struct {
	ID          uuid.UUID
	TemplateID  string
	Recipient   string
	Variables   map[string]string
	Status      EventStatus
	Retries     int
	LastError   *string
	ProcessedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
