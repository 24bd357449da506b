package service

import (
	"fmt"
	"time"

	"github.com/noah-isme/facility-booking-api/internal/models"
)

// RuleValidator checks candidate intervals against a facility's booking rules and calendar.
type RuleValidator struct {
	defaultLoc *time.Location
}

// NewRuleValidator builds a validator. defaultTimezone applies to facilities without their own zone;
// unknown zones fall back to UTC.
func NewRuleValidator(defaultTimezone string) *RuleValidator {
	loc := time.UTC
	if defaultTimezone != "" {
		if loaded, err := time.LoadLocation(defaultTimezone); err == nil {
			loc = loaded
		}
	}
	return &RuleValidator{defaultLoc: loc}
}

// Location resolves the facility-local zone.
func (v *RuleValidator) Location(facility *models.Facility) *time.Location {
	return facility.TimeLocation(v.defaultLoc)
}

// Validate evaluates every booking rule and returns all violations. An empty result means the interval is admissible.
// Duration bounds and the advance window are skipped when configured as zero.
func (v *RuleValidator) Validate(facility *models.Facility, start, end, now time.Time) []models.RuleViolation {
	rules := facility.BookingRules
	var violations []models.RuleViolation

	duration := DurationMinutes(start, end)
	if rules.MinDurationMinutes > 0 && duration < rules.MinDurationMinutes {
		violations = append(violations, models.RuleViolation{
			Code:    models.ViolationDurationTooShort,
			Message: fmt.Sprintf("booking must last at least %d minutes", rules.MinDurationMinutes),
		})
	}
	if rules.MaxDurationMinutes > 0 && duration > rules.MaxDurationMinutes {
		violations = append(violations, models.RuleViolation{
			Code:    models.ViolationDurationTooLong,
			Message: fmt.Sprintf("booking cannot exceed %d minutes", rules.MaxDurationMinutes),
		})
	}

	lead := start.Sub(now)
	if lead < time.Duration(rules.MinAdvanceHours)*time.Hour {
		violations = append(violations, models.RuleViolation{
			Code:    models.ViolationLeadTimeTooShort,
			Message: fmt.Sprintf("booking must be made at least %d hours in advance", rules.MinAdvanceHours),
		})
	}
	if rules.AdvanceBookingDays > 0 && lead > time.Duration(rules.AdvanceBookingDays)*24*time.Hour {
		violations = append(violations, models.RuleViolation{
			Code:    models.ViolationLeadTimeTooLong,
			Message: fmt.Sprintf("booking cannot be made more than %d days in advance", rules.AdvanceBookingDays),
		})
	}

	if start.Before(now) {
		violations = append(violations, models.RuleViolation{
			Code:    models.ViolationStartInPast,
			Message: "booking cannot start in the past",
		})
	}
	return violations
}

// WithinOperatingHours checks the facility calendar and stops at the first failure.
// Maintenance windows are treated as half-open; a window ending exactly at local midnight blocks that whole date.
func (v *RuleValidator) WithinOperatingHours(facility *models.Facility, start, end time.Time) *models.RuleViolation {
	loc := v.Location(facility)
	localStart := start.In(loc)
	localEnd := end.In(loc)

	if !sameDate(localStart, localEnd.Add(-time.Nanosecond)) {
		return &models.RuleViolation{Code: models.ViolationSpansMidnight, Message: "booking must start and end on the same day"}
	}

	hours, ok := facility.OperatingHours.For(localStart.Weekday())
	if !ok {
		return &models.RuleViolation{
			Code:    models.ViolationClosedOnDay,
			Message: fmt.Sprintf("facility is closed on %s", localStart.Weekday()),
		}
	}

	open, err := clockOn(localStart, hours.Start)
	if err != nil {
		return &models.RuleViolation{Code: models.ViolationOutsideOperatingHours, Message: "facility operating hours are misconfigured"}
	}
	closing, err := clockOn(localStart, hours.End)
	if err != nil {
		return &models.RuleViolation{Code: models.ViolationOutsideOperatingHours, Message: "facility operating hours are misconfigured"}
	}
	if localStart.Before(open) || localEnd.After(closing) {
		return &models.RuleViolation{
			Code:    models.ViolationOutsideOperatingHours,
			Message: fmt.Sprintf("booking must be within operating hours %s-%s", hours.Start, hours.End),
		}
	}

	candidate := Interval{Start: start, End: end}
	for _, window := range facility.MaintenanceSchedule {
		if candidate.Overlaps(maintenanceInterval(window, loc)) {
			msg := "facility is under maintenance"
			if window.Reason != "" {
				msg += ": " + window.Reason
			}
			return &models.RuleViolation{Code: models.ViolationMaintenance, Message: msg}
		}
	}
	return nil
}

func maintenanceInterval(window models.MaintenanceWindow, loc *time.Location) Interval {
	end := window.EndDate
	if isLocalMidnight(end.In(loc)) {
		end = end.In(loc).AddDate(0, 0, 1)
	}
	return Interval{Start: window.StartDate, End: end}
}

func isLocalMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// clockOn applies an "HH:MM" wall clock to day's date in day's location. "24:00" means the following midnight.
func clockOn(day time.Time, hhmm string) (time.Time, error) {
	y, m, d := day.Date()
	if hhmm == "24:00" {
		return time.Date(y, m, d+1, 0, 0, 0, 0, day.Location()), nil
	}
	if len(hhmm) < 5 {
		return time.Time{}, fmt.Errorf("invalid time string: %s", hhmm)
	}
	clock, err := time.Parse("15:04", hhmm[:5])
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(y, m, d, clock.Hour(), clock.Minute(), 0, 0, day.Location()), nil
}
