package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/facility-booking-api/internal/models"
)

const outboxColumns = `id, type, booking_id, recipient_id, payload, status, attempts, last_error, available_at, created_at, delivered_at`

// NotificationOutboxRepository persists booking outcome events until the dispatcher delivers them.
type NotificationOutboxRepository struct {
	db *sqlx.DB
}

// NewNotificationOutboxRepository builds the repository.
func NewNotificationOutboxRepository(db *sqlx.DB) *NotificationOutboxRepository {
	return &NotificationOutboxRepository{db: db}
}

// Append stores a pending event.
func (r *NotificationOutboxRepository) Append(ctx context.Context, event *models.NotificationEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	if event.AvailableAt.IsZero() {
		event.AvailableAt = event.CreatedAt
	}
	if event.Status == "" {
		event.Status = models.NotificationStatusPending
	}
	if len(event.Payload) == 0 {
		event.Payload = []byte("{}")
	}

	const query = `INSERT INTO notification_outbox (id, type, booking_id, recipient_id, payload, status, attempts, last_error, available_at, created_at, delivered_at)
VALUES (:id, :type, :booking_id, :recipient_id, :payload, :status, :attempts, :last_error, :available_at, :created_at, :delivered_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("append notification: %w", err)
	}
	return nil
}

// ClaimBatch moves up to limit due pending events to dispatching and returns them. A dispatching row is
// never claimed again: only MarkFailed and Release put it back to pending, so each event is sent at most once.
func (r *NotificationOutboxRepository) ClaimBatch(ctx context.Context, limit int, now time.Time) (events []models.NotificationEvent, err error) {
	if limit <= 0 {
		limit = 20
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin claim notifications: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `SELECT ` + outboxColumns + ` FROM notification_outbox
WHERE status = 'pending' AND available_at <= $1
ORDER BY available_at ASC LIMIT $2 FOR UPDATE SKIP LOCKED`
	if err = tx.SelectContext(ctx, &events, query, now, limit); err != nil {
		return nil, fmt.Errorf("select due notifications: %w", err)
	}

	for i := range events {
		if _, err = tx.ExecContext(ctx, `UPDATE notification_outbox SET status = 'dispatching' WHERE id = $1`, events[i].ID); err != nil {
			return nil, fmt.Errorf("claim notification: %w", err)
		}
		events[i].Status = models.NotificationStatusDispatching
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit claim notifications: %w", err)
	}
	return events, nil
}

// Release returns claimed events that were never handed to the notifier to pending.
func (r *NotificationOutboxRepository) Release(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	const query = `UPDATE notification_outbox SET status = 'pending' WHERE id = ANY($1) AND status = 'dispatching'`
	if _, err := r.db.ExecContext(ctx, query, pq.StringArray(ids)); err != nil {
		return fmt.Errorf("release notifications: %w", err)
	}
	return nil
}

// MarkDelivered records a successful delivery.
func (r *NotificationOutboxRepository) MarkDelivered(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE notification_outbox SET status = 'delivered', delivered_at = $2, attempts = attempts + 1, last_error = NULL WHERE id = $1 AND status = 'dispatching'`
	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("mark notification delivered: %w", err)
	}
	return nil
}

// MarkFailed records a failed attempt. The event becomes pending again at retryAt unless final is set.
func (r *NotificationOutboxRepository) MarkFailed(ctx context.Context, id, reason string, retryAt time.Time, final bool) error {
	status := models.NotificationStatusPending
	if final {
		status = models.NotificationStatusFailed
	}
	const query = `UPDATE notification_outbox SET status = $2, attempts = attempts + 1, last_error = $3, available_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, reason, retryAt); err != nil {
		return fmt.Errorf("mark notification failed: %w", err)
	}
	return nil
}
