package dto

import (
	"time"
)

// CreateBookingRequest is the payload for requesting a facility slot.
type CreateBookingRequest struct {
	FacilityID string    `json:"facility_id" validate:"required"`
	StartTime  time.Time `json:"start_time" validate:"required"`
	EndTime    time.Time `json:"end_time" validate:"required"`
	Purpose    string    `json:"purpose" validate:"omitempty,max=500"`
	Attendees  *int      `json:"attendees" validate:"omitempty,min=1"`
	Notes      string    `json:"notes" validate:"omitempty,max=2000"`
}

// TransitionBookingRequest carries the optional reason for a lifecycle action. Rejections require it.
type TransitionBookingRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=1000"`
}

// RescheduleBookingRequest moves a pending booking to a new interval.
type RescheduleBookingRequest struct {
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required"`
}

// BookingQuery filters the caller's own bookings.
type BookingQuery struct {
	Status   string `form:"status"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

// FacilityBookingsQuery selects a facility's bookings intersecting [From, To).
type FacilityBookingsQuery struct {
	From string `form:"from"`
	To   string `form:"to"`
}

// FacilityQuery filters the facility catalogue.
type FacilityQuery struct {
	Type          string `form:"type"`
	AvailableOnly bool   `form:"available_only"`
	Page          int    `form:"page"`
	PageSize      int    `form:"page_size"`
}

// TimeBlock is a busy range on a facility calendar.
type TimeBlock struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Kind   string    `json:"kind"`
	Label  string    `json:"label,omitempty"`
	Status string    `json:"status,omitempty"`
}

// FacilityAvailability is the calendar view of one facility-local day.
type FacilityAvailability struct {
	FacilityID string      `json:"facility_id"`
	Date       string      `json:"date"`
	Timezone   string      `json:"timezone"`
	Open       bool        `json:"open"`
	OpensAt    *time.Time  `json:"opens_at,omitempty"`
	ClosesAt   *time.Time  `json:"closes_at,omitempty"`
	Busy       []TimeBlock `json:"busy"`
}

// CompleteElapsedResult reports how many approved bookings were completed.
type CompleteElapsedResult struct {
	Completed int64     `json:"completed"`
	RanAt     time.Time `json:"ran_at"`
}
