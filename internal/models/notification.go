package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

// NotificationType identifies the booking outcome being announced.
type NotificationType string

const (
	NotificationBookingApproved NotificationType = "approved"
	NotificationBookingRejected NotificationType = "rejected"
)

// NotificationStatus tracks outbox delivery.
type NotificationStatus string

const (
	NotificationStatusPending     NotificationStatus = "pending"
	NotificationStatusDispatching NotificationStatus = "dispatching"
	NotificationStatusDelivered   NotificationStatus = "delivered"
	NotificationStatusFailed      NotificationStatus = "failed"
)

// NotificationEvent is a durable outbox row consumed by the dispatcher.
type NotificationEvent struct {
	ID          string             `db:"id" json:"id"`
	Type        NotificationType   `db:"type" json:"type"`
	BookingID   string             `db:"booking_id" json:"booking_id"`
	RecipientID string             `db:"recipient_id" json:"recipient_id"`
	Payload     types.JSONText     `db:"payload" json:"payload"`
	Status      NotificationStatus `db:"status" json:"status"`
	Attempts    int                `db:"attempts" json:"attempts"`
	LastError   *string            `db:"last_error" json:"last_error,omitempty"`
	AvailableAt time.Time          `db:"available_at" json:"available_at"`
	CreatedAt   time.Time          `db:"created_at" json:"created_at"`
	DeliveredAt *time.Time         `db:"delivered_at" json:"delivered_at,omitempty"`
}
