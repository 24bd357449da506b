package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/facility-booking-api/internal/models"
)

const bookingColumns = `id, facility_id, requester_id, start_time, end_time, status, purpose, attendees, notes, approved_by, approval_date, rejection_reason, created_at, updated_at`

// BookingTx is the set of booking writes performed while a facility lock is held.
type BookingTx interface {
	ListActiveInRange(ctx context.Context, facilityID string, start, end time.Time, excludeID string) ([]models.Booking, error)
	Insert(ctx context.Context, booking *models.Booking) error
	UpdateInterval(ctx context.Context, id string, start, end, updatedAt time.Time) error
}

type bookingQueries struct {
	exec sqlx.ExtContext
}

func activeStatuses() pq.StringArray {
	out := make(pq.StringArray, 0, len(models.ActiveBookingStatuses))
	for _, s := range models.ActiveBookingStatuses {
		out = append(out, string(s))
	}
	return out
}

// ListActiveInRange returns pending/approved bookings of a facility intersecting [start, end).
func (q bookingQueries) ListActiveInRange(ctx context.Context, facilityID string, start, end time.Time, excludeID string) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE facility_id = $1 AND status = ANY($2) AND start_time < $3 AND end_time > $4`
	args := []interface{}{facilityID, activeStatuses(), end, start}
	if excludeID != "" {
		query += " AND id <> $5"
		args = append(args, excludeID)
	}
	query += " ORDER BY start_time ASC"

	var bookings []models.Booking
	if err := sqlx.SelectContext(ctx, q.exec, &bookings, query, args...); err != nil {
		return nil, fmt.Errorf("list active bookings: %w", err)
	}
	return bookings, nil
}

// Insert stores a new booking row.
func (q bookingQueries) Insert(ctx context.Context, booking *models.Booking) error {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	if booking.UpdatedAt.IsZero() {
		booking.UpdatedAt = booking.CreatedAt
	}

	const query = `INSERT INTO bookings (id, facility_id, requester_id, start_time, end_time, status, purpose, attendees, notes, approved_by, approval_date, rejection_reason, created_at, updated_at)
VALUES (:id, :facility_id, :requester_id, :start_time, :end_time, :status, :purpose, :attendees, :notes, :approved_by, :approval_date, :rejection_reason, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, q.exec, query, booking); err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

// UpdateInterval moves a still-pending booking to a new interval. It returns sql.ErrNoRows when the row is gone or no longer pending.
func (q bookingQueries) UpdateInterval(ctx context.Context, id string, start, end, updatedAt time.Time) error {
	const query = `UPDATE bookings SET start_time = $2, end_time = $3, updated_at = $4 WHERE id = $1 AND status = 'pending'`
	res, err := q.exec.ExecContext(ctx, query, id, start, end, updatedAt)
	if err != nil {
		return fmt.Errorf("update booking interval: %w", err)
	}
	return expectAffected(res)
}

// BookingRepository provides persistence for bookings.
type BookingRepository struct {
	db *sqlx.DB
	bookingQueries
}

// NewBookingRepository creates a booking repository.
func NewBookingRepository(db *sqlx.DB) *BookingRepository {
	return &BookingRepository{db: db, bookingQueries: bookingQueries{exec: db}}
}

// WithFacilityLock runs fn in a transaction holding a Postgres advisory lock scoped to the facility,
// so conflict checks and the following write are serialised per facility.
func (r *BookingRepository) WithFacilityLock(ctx context.Context, facilityID string, fn func(ctx context.Context, tx BookingTx) error) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin booking transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "facility:"+facilityID); err != nil {
		return fmt.Errorf("acquire facility lock: %w", err)
	}

	if err = fn(ctx, bookingQueries{exec: tx}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit booking transaction: %w", err)
	}
	return nil
}

// FindByID loads a booking by id.
func (r *BookingRepository) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	var booking models.Booking
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		return nil, err
	}
	return &booking, nil
}

// List returns bookings with optional filtering and pagination. From/To select bookings intersecting the range.
func (r *BookingRepository) List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error) {
	base := "FROM bookings WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.FacilityID != "" {
		args = append(args, filter.FacilityID)
		conditions = append(conditions, fmt.Sprintf("facility_id = $%d", len(args)))
	}
	if filter.RequesterID != "" {
		args = append(args, filter.RequesterID)
		conditions = append(conditions, fmt.Sprintf("requester_id = $%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		statuses := make(pq.StringArray, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		args = append(args, statuses)
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("start_time < $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("end_time > $%d", len(args)))
	}
	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 500 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY start_time ASC LIMIT %d OFFSET %d", bookingColumns, base, size, offset)
	var bookings []models.Booking
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}
	return bookings, total, nil
}

// UpdateStatus applies a guarded status change. sql.ErrNoRows means the booking left params.From concurrently.
func (r *BookingRepository) UpdateStatus(ctx context.Context, params models.UpdateBookingStatusParams) error {
	const query = `UPDATE bookings SET status = :to_status,
approved_by = COALESCE(:approved_by, approved_by),
approval_date = COALESCE(:approval_date, approval_date),
rejection_reason = COALESCE(:rejection_reason, rejection_reason),
updated_at = :updated_at
WHERE id = :id AND status = :from_status`
	res, err := r.db.NamedExecContext(ctx, query, params)
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	return expectAffected(res)
}

// Delete hard-deletes a booking.
func (r *BookingRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}
	return expectAffected(res)
}

// CompleteElapsed marks approved bookings whose start has passed as completed.
func (r *BookingRepository) CompleteElapsed(ctx context.Context, now time.Time) (int64, error) {
	const query = `UPDATE bookings SET status = 'completed', updated_at = $1 WHERE status = 'approved' AND start_time <= $1`
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("complete elapsed bookings: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("complete elapsed bookings: %w", err)
	}
	return affected, nil
}

func expectAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
