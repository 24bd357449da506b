package models

import (
	"strings"
	"time"
)

// DayHours is a facility-local opening window in "HH:MM" form.
type DayHours struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// OperatingHours maps lowercase English weekday names ("monday" … "sunday") to opening windows.
// A missing weekday means the facility is closed that day.
type OperatingHours map[string]DayHours

// For returns the window configured for the weekday.
func (h OperatingHours) For(day time.Weekday) (DayHours, bool) {
	if h == nil {
		return DayHours{}, false
	}
	hours, ok := h[WeekdayKey(day)]
	return hours, ok
}

// WeekdayKey returns the OperatingHours key for a weekday.
func WeekdayKey(day time.Weekday) string {
	return strings.ToLower(day.String())
}

// MaintenanceWindow blocks bookings on a facility.
type MaintenanceWindow struct {
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	Reason    string    `json:"reason"`
}

// BookingRules constrain the shape of requests a facility accepts.
type BookingRules struct {
	MinDurationMinutes int        `json:"minDurationMinutes"`
	MaxDurationMinutes int        `json:"maxDurationMinutes"`
	AdvanceBookingDays int        `json:"advanceBookingDays"`
	MinAdvanceHours    int        `json:"minAdvanceHours"`
	AllowedRoles       []UserRole `json:"allowedRoles"`
}

// Facility is a bookable shared resource such as a pool, court or hall.
type Facility struct {
	ID                  string              `json:"id"`
	Name                string              `json:"name"`
	Type                string              `json:"type"`
	Description         string              `json:"description,omitempty"`
	Capacity            int                 `json:"capacity"`
	Availability        bool                `json:"availability"`
	Timezone            string              `json:"timezone,omitempty"`
	BookingRules        BookingRules        `json:"bookingRules"`
	OperatingHours      OperatingHours      `json:"operatingHours"`
	MaintenanceSchedule []MaintenanceWindow `json:"maintenanceSchedule"`
	CreatedAt           time.Time           `json:"createdAt"`
	UpdatedAt           time.Time           `json:"updatedAt"`
}

// AllowsRole reports whether the role may request this facility. An empty list admits every role.
func (f *Facility) AllowsRole(role UserRole) bool {
	if len(f.BookingRules.AllowedRoles) == 0 {
		return true
	}
	for _, allowed := range f.BookingRules.AllowedRoles {
		if strings.EqualFold(string(allowed), string(role)) {
			return true
		}
	}
	return false
}

// TimeLocation resolves the facility timezone, falling back when unset or unknown.
func (f *Facility) TimeLocation(fallback *time.Location) *time.Location {
	if fallback == nil {
		fallback = time.UTC
	}
	if f == nil || f.Timezone == "" {
		return fallback
	}
	loc, err := time.LoadLocation(f.Timezone)
	if err != nil {
		return fallback
	}
	return loc
}

// FacilityFilter narrows facility listings.
type FacilityFilter struct {
	Type          string
	AvailableOnly bool
	Page          int
	PageSize      int
}
