package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/facility-booking-api/internal/models"
)

func weekdayHours(start, end string, days ...time.Weekday) models.OperatingHours {
	hours := models.OperatingHours{}
	for _, day := range days {
		hours[models.WeekdayKey(day)] = models.DayHours{Start: start, End: end}
	}
	return hours
}

var everyDay = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday}

func testFacility() *models.Facility {
	return &models.Facility{
		ID:           "fac-1",
		Name:         "Court A",
		Capacity:     10,
		Availability: true,
		BookingRules: models.BookingRules{
			MinDurationMinutes: 60,
			MaxDurationMinutes: 120,
			AdvanceBookingDays: 30,
			MinAdvanceHours:    2,
		},
		OperatingHours: weekdayHours("08:00", "22:00", time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday),
	}
}

func codes(violations []models.RuleViolation) []string {
	out := make([]string, 0, len(violations))
	for _, v := range violations {
		out = append(out, v.Code)
	}
	return out
}

func TestValidateDurationBounds(t *testing.T) {
	v := NewRuleValidator("UTC")
	facility := testFacility()
	now := time.Date(2024, 6, 9, 8, 0, 0, 0, time.UTC)
	start := time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC)

	short := v.Validate(facility, start, start.Add(30*time.Minute), now)
	assert.Equal(t, []string{models.ViolationDurationTooShort}, codes(short))

	long := v.Validate(facility, start, start.Add(180*time.Minute), now)
	assert.Equal(t, []string{models.ViolationDurationTooLong}, codes(long))

	assert.Empty(t, v.Validate(facility, start, start.Add(90*time.Minute), now))
}

func TestValidateLeadTime(t *testing.T) {
	v := NewRuleValidator("UTC")
	facility := testFacility()
	now := time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)

	tooSoon := now.Add(time.Hour)
	assert.Equal(t, []string{models.ViolationLeadTimeTooShort}, codes(v.Validate(facility, tooSoon, tooSoon.Add(time.Hour), now)))

	tooFar := now.AddDate(0, 0, 31)
	assert.Equal(t, []string{models.ViolationLeadTimeTooLong}, codes(v.Validate(facility, tooFar, tooFar.Add(time.Hour), now)))
}

func TestValidatePastStartReportsBothRules(t *testing.T) {
	v := NewRuleValidator("UTC")
	facility := testFacility()
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	start := now.Add(-3 * time.Hour)

	got := codes(v.Validate(facility, start, start.Add(time.Hour), now))
	assert.ElementsMatch(t, []string{models.ViolationLeadTimeTooShort, models.ViolationStartInPast}, got)
}

func TestValidateCollectsAllViolations(t *testing.T) {
	v := NewRuleValidator("UTC")
	facility := testFacility()
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	start := now.Add(-time.Hour)

	got := codes(v.Validate(facility, start, start.Add(10*time.Minute), now))
	assert.ElementsMatch(t, []string{models.ViolationDurationTooShort, models.ViolationLeadTimeTooShort, models.ViolationStartInPast}, got)
}

func TestWithinOperatingHoursClosedSunday(t *testing.T) {
	v := NewRuleValidator("UTC")
	facility := testFacility()

	for _, hour := range []int{0, 9, 15, 21} {
		start := time.Date(2024, 6, 9, hour, 0, 0, 0, time.UTC)
		violation := v.WithinOperatingHours(facility, start, start.Add(time.Hour))
		require.NotNil(t, violation)
		assert.Equal(t, models.ViolationClosedOnDay, violation.Code)
	}
}

func TestWithinOperatingHoursWindow(t *testing.T) {
	v := NewRuleValidator("UTC")
	facility := testFacility()

	inside := time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC)
	assert.Nil(t, v.WithinOperatingHours(facility, inside, time.Date(2024, 6, 10, 22, 0, 0, 0, time.UTC)))

	early := time.Date(2024, 6, 10, 7, 30, 0, 0, time.UTC)
	violation := v.WithinOperatingHours(facility, early, early.Add(time.Hour))
	require.NotNil(t, violation)
	assert.Equal(t, models.ViolationOutsideOperatingHours, violation.Code)

	late := time.Date(2024, 6, 10, 21, 30, 0, 0, time.UTC)
	violation = v.WithinOperatingHours(facility, late, late.Add(time.Hour))
	require.NotNil(t, violation)
	assert.Equal(t, models.ViolationOutsideOperatingHours, violation.Code)
}

func TestWithinOperatingHoursRejectsMidnightSpan(t *testing.T) {
	v := NewRuleValidator("UTC")
	facility := testFacility()
	facility.OperatingHours = weekdayHours("00:00", "24:00", everyDay...)

	start := time.Date(2024, 6, 10, 23, 0, 0, 0, time.UTC)
	violation := v.WithinOperatingHours(facility, start, start.Add(2*time.Hour))
	require.NotNil(t, violation)
	assert.Equal(t, models.ViolationSpansMidnight, violation.Code)

	assert.Nil(t, v.WithinOperatingHours(facility, start, start.Add(time.Hour)), "ending exactly at midnight stays on the same day")
}

func TestWithinOperatingHoursUsesFacilityTimezone(t *testing.T) {
	v := NewRuleValidator("UTC")
	facility := testFacility()
	facility.Timezone = "Asia/Jakarta"

	// 02:00 UTC is 09:00 in Jakarta on the same Monday.
	start := time.Date(2024, 6, 10, 2, 0, 0, 0, time.UTC)
	assert.Nil(t, v.WithinOperatingHours(facility, start, start.Add(time.Hour)))

	// 23:00 UTC Monday is 06:00 Tuesday in Jakarta, before opening.
	start = time.Date(2024, 6, 10, 23, 0, 0, 0, time.UTC)
	violation := v.WithinOperatingHours(facility, start, start.Add(time.Hour))
	require.NotNil(t, violation)
	assert.Equal(t, models.ViolationOutsideOperatingHours, violation.Code)
}

func TestWithinOperatingHoursMaintenanceBlackout(t *testing.T) {
	v := NewRuleValidator("UTC")
	facility := testFacility()
	facility.OperatingHours = weekdayHours("08:00", "22:00", everyDay...)
	facility.MaintenanceSchedule = []models.MaintenanceWindow{{
		StartDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC),
		Reason:    "resurfacing",
	}}

	during := time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC)
	violation := v.WithinOperatingHours(facility, during, during.Add(time.Hour))
	require.NotNil(t, violation)
	assert.Equal(t, models.ViolationMaintenance, violation.Code)
	assert.Contains(t, violation.Message, "resurfacing")

	lastDay := time.Date(2024, 6, 3, 20, 0, 0, 0, time.UTC)
	violation = v.WithinOperatingHours(facility, lastDay, lastDay.Add(time.Hour))
	require.NotNil(t, violation, "a date-only end blocks the whole final day")

	after := time.Date(2024, 6, 4, 8, 0, 0, 0, time.UTC)
	assert.Nil(t, v.WithinOperatingHours(facility, after, after.Add(time.Hour)))
}

func TestWithinOperatingHoursMaintenanceBoundaryIsHalfOpen(t *testing.T) {
	v := NewRuleValidator("UTC")
	facility := testFacility()
	facility.MaintenanceSchedule = []models.MaintenanceWindow{{
		StartDate: time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2024, 6, 10, 14, 0, 0, 0, time.UTC),
	}}

	before := time.Date(2024, 6, 10, 11, 0, 0, 0, time.UTC)
	assert.Nil(t, v.WithinOperatingHours(facility, before, before.Add(time.Hour)), "ending at maintenance start is allowed")

	after := time.Date(2024, 6, 10, 14, 0, 0, 0, time.UTC)
	assert.Nil(t, v.WithinOperatingHours(facility, after, after.Add(time.Hour)), "starting at maintenance end is allowed")

	overlapping := time.Date(2024, 6, 10, 13, 30, 0, 0, time.UTC)
	assert.NotNil(t, v.WithinOperatingHours(facility, overlapping, overlapping.Add(time.Hour)))
}
