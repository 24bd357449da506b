package models

import (
	"fmt"
	"math"
	"time"
)

// BookingStatus represents a phase of the booking approval lifecycle.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusApproved  BookingStatus = "approved"
	BookingStatusRejected  BookingStatus = "rejected"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:   {BookingStatusApproved, BookingStatusRejected, BookingStatusCancelled},
	BookingStatusApproved:  {BookingStatusCompleted},
	BookingStatusRejected:  {},
	BookingStatusCancelled: {},
	BookingStatusCompleted: {},
}

// ActiveBookingStatuses are the statuses that block overlapping requests.
var ActiveBookingStatuses = []BookingStatus{BookingStatusPending, BookingStatusApproved}

// IsValid returns true for a recognised status.
func (s BookingStatus) IsValid() bool {
	_, ok := bookingTransitions[s]
	return ok
}

// IsActive reports whether the status participates in conflict detection.
func (s BookingStatus) IsActive() bool {
	return s == BookingStatusPending || s == BookingStatusApproved
}

// IsTerminal returns true when no further transitions exist.
func (s BookingStatus) IsTerminal() bool {
	next, ok := bookingTransitions[s]
	return !ok || len(next) == 0
}

// CanTransitionTo reports whether the status graph has an edge to target.
func (s BookingStatus) CanTransitionTo(target BookingStatus) bool {
	for _, next := range bookingTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// ParseBookingStatus converts raw input to a BookingStatus.
func ParseBookingStatus(raw string) (BookingStatus, error) {
	status := BookingStatus(raw)
	if !status.IsValid() {
		return "", fmt.Errorf("invalid booking status: %s", raw)
	}
	return status, nil
}

// BookingAction is a caller-requested lifecycle move.
type BookingAction string

const (
	BookingActionApprove  BookingAction = "approve"
	BookingActionReject   BookingAction = "reject"
	BookingActionCancel   BookingAction = "cancel"
	BookingActionComplete BookingAction = "complete"
)

// Booking is a reservation of a facility over the half-open interval [StartTime, EndTime).
type Booking struct {
	ID              string        `db:"id" json:"id"`
	FacilityID      string        `db:"facility_id" json:"facility_id"`
	RequesterID     string        `db:"requester_id" json:"requester_id"`
	StartTime       time.Time     `db:"start_time" json:"start_time"`
	EndTime         time.Time     `db:"end_time" json:"end_time"`
	Status          BookingStatus `db:"status" json:"status"`
	Purpose         string        `db:"purpose" json:"purpose,omitempty"`
	Attendees       *int          `db:"attendees" json:"attendees,omitempty"`
	Notes           string        `db:"notes" json:"notes,omitempty"`
	ApprovedBy      *string       `db:"approved_by" json:"approved_by,omitempty"`
	ApprovalDate    *time.Time    `db:"approval_date" json:"approval_date,omitempty"`
	RejectionReason *string       `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// DurationMinutes is the booking length rounded to whole minutes.
func (b Booking) DurationMinutes() int {
	return int(math.Round(b.EndTime.Sub(b.StartTime).Minutes()))
}

// BookingFilter describes listing criteria for bookings.
type BookingFilter struct {
	FacilityID  string
	RequesterID string
	Statuses    []BookingStatus
	From        *time.Time
	To          *time.Time
	Page        int
	PageSize    int
}

// UpdateBookingStatusParams carries a guarded status change. The update only applies while the row is still in From.
type UpdateBookingStatusParams struct {
	ID              string        `db:"id"`
	From            BookingStatus `db:"from_status"`
	To              BookingStatus `db:"to_status"`
	ApprovedBy      *string       `db:"approved_by"`
	ApprovalDate    *time.Time    `db:"approval_date"`
	RejectionReason *string       `db:"rejection_reason"`
	UpdatedAt       time.Time     `db:"updated_at"`
}
