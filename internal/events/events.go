// Package events defines the domain events the API publishes to RabbitMQ.
// Each topic is a durable queue of the same name on the default exchange.
package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	TopicTechniciansAssigned = "technicians.assigned"
	TopicOrderCreated        = "order.created"
	TopicOrderUpdated        = "order.updated"
	TopicOrderDeleted        = "order.deleted"
	TopicUserApproved        = "user.approved"
)

// TechniciansAssigned is published after an assignment transaction commits.
type TechniciansAssigned struct {
	LocationID    uuid.UUID   `json:"location_id"`
	ActorID       uuid.UUID   `json:"actor_id"`
	TechnicianIDs []uuid.UUID `json:"technician_ids"`
	Added         []uuid.UUID `json:"added"`
	Removed       []uuid.UUID `json:"removed"`
	SelfDetach    bool        `json:"self_detach"`
	OccurredAt    time.Time   `json:"occurred_at"`
}

type OrderChanged struct {
	OrderID      uuid.UUID  `json:"order_id"`
	UserID       uuid.UUID  `json:"user_id"`
	LocationID   *uuid.UUID `json:"location_id,omitempty"`
	PictureCount int        `json:"picture_count"`
	OccurredAt   time.Time  `json:"occurred_at"`
}

type UserApproved struct {
	UserID     uuid.UUID `json:"user_id"`
	Email      string    `json:"email"`
	ApprovedBy uuid.UUID `json:"approved_by"`
	OccurredAt time.Time `json:"occurred_at"`
}
