package models

import (
	"fmt"
	"strings"
	"time"
)

// Rule violation codes reported by booking validation.
const (
	ViolationInvalidInterval       = "INVALID_INTERVAL"
	ViolationDurationTooShort      = "DURATION_TOO_SHORT"
	ViolationDurationTooLong       = "DURATION_TOO_LONG"
	ViolationLeadTimeTooShort      = "LEAD_TIME_TOO_SHORT"
	ViolationLeadTimeTooLong       = "LEAD_TIME_TOO_LONG"
	ViolationStartInPast           = "START_IN_PAST"
	ViolationSpansMidnight         = "SPANS_MIDNIGHT"
	ViolationClosedOnDay           = "CLOSED_ON_DAY"
	ViolationOutsideOperatingHours = "OUTSIDE_OPERATING_HOURS"
	ViolationMaintenance           = "MAINTENANCE_BLACKOUT"
	ViolationFacilityUnavailable   = "FACILITY_UNAVAILABLE"
	ViolationCapacityExceeded      = "CAPACITY_EXCEEDED"
	ViolationReasonRequired        = "REASON_REQUIRED"
)

// RuleViolation is one failed booking rule.
type RuleViolation struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BookingValidationError aggregates every violated rule of a request.
type BookingValidationError struct {
	Violations []RuleViolation `json:"violations"`
}

// Error implements the error interface.
func (e *BookingValidationError) Error() string {
	if e == nil || len(e.Violations) == 0 {
		return "booking validation failed"
	}
	codes := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		codes = append(codes, v.Code)
	}
	return "booking validation failed: " + strings.Join(codes, ", ")
}

// Has reports whether a violation with code is present.
func (e *BookingValidationError) Has(code string) bool {
	if e == nil {
		return false
	}
	for _, v := range e.Violations {
		if v.Code == code {
			return true
		}
	}
	return false
}

// BookingConflict describes an existing active booking overlapping a candidate interval.
type BookingConflict struct {
	BookingID   string        `json:"booking_id"`
	FacilityID  string        `json:"facility_id"`
	RequesterID string        `json:"requester_id"`
	StartTime   time.Time     `json:"start_time"`
	EndTime     time.Time     `json:"end_time"`
	Status      BookingStatus `json:"status"`
}

// BookingConflictError is returned when a candidate interval overlaps active bookings.
type BookingConflictError struct {
	Message   string            `json:"message"`
	Conflicts []BookingConflict `json:"conflicts"`
}

// Error implements the error interface.
func (e *BookingConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

// InvalidTransitionError reports a lifecycle move the state table does not permit.
type InvalidTransitionError struct {
	From   BookingStatus `json:"from"`
	To     BookingStatus `json:"to"`
	Action BookingAction `json:"action,omitempty"`
	Reason string        `json:"reason,omitempty"`
}

// Error implements the error interface.
func (e *InvalidTransitionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("cannot move booking from %s to %s", e.From, e.To)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}
