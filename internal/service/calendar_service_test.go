package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/facility-booking-api/internal/models"
	appErrors "github.com/noah-isme/facility-booking-api/pkg/errors"
)

func newTestCalendarService(store *memoryBookingStore, facility *models.Facility) *CalendarService {
	registry := facilityGetterStub{facilities: map[string]*models.Facility{facility.ID: facility}}
	return NewCalendarService(registry, store, NewRuleValidator("UTC"), nil)
}

func TestCalendarAvailability(t *testing.T) {
	facility := testFacility()
	facility.MaintenanceSchedule = []models.MaintenanceWindow{{
		StartDate: at(6, 0),
		EndDate:   at(9, 0),
		Reason:    "cleaning",
	}}
	store := newMemoryBookingStore(
		bookingAt("bk-1", models.BookingStatusApproved, at(10, 0), at(11, 0)),
		bookingAt("bk-2", models.BookingStatusCancelled, at(12, 0), at(13, 0)),
		bookingAt("bk-3", models.BookingStatusPending, at(14, 0), at(15, 0)),
	)
	svc := newTestCalendarService(store, facility)

	view, err := svc.Availability(context.Background(), "fac-1", "2024-06-10", resident)
	require.NoError(t, err)
	assert.True(t, view.Open)
	require.NotNil(t, view.OpensAt)
	assert.Equal(t, at(8, 0), *view.OpensAt)
	assert.Equal(t, at(22, 0), *view.ClosesAt)

	require.Len(t, view.Busy, 3)
	assert.Equal(t, "maintenance", view.Busy[0].Kind)
	assert.Equal(t, "cleaning", view.Busy[0].Label)
	assert.Equal(t, "booking", view.Busy[1].Kind)
	assert.Empty(t, view.Busy[1].Label, "residents do not see requester ids")
	assert.Equal(t, "pending", view.Busy[2].Status)

	adminView, err := svc.Availability(context.Background(), "fac-1", "2024-06-10", admin)
	require.NoError(t, err)
	assert.Equal(t, "res-1", adminView.Busy[1].Label)
}

func TestCalendarAvailabilityClosedDay(t *testing.T) {
	svc := newTestCalendarService(newMemoryBookingStore(), testFacility())

	view, err := svc.Availability(context.Background(), "fac-1", "2024-06-09", resident)
	require.NoError(t, err)
	assert.False(t, view.Open)
	assert.Nil(t, view.OpensAt)
	assert.Empty(t, view.Busy)
}

func TestCalendarAvailabilityRejectsBadDate(t *testing.T) {
	svc := newTestCalendarService(newMemoryBookingStore(), testFacility())

	_, err := svc.Availability(context.Background(), "fac-1", "10/06/2024", resident)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestCalendarDaySheetCSV(t *testing.T) {
	store := newMemoryBookingStore(
		bookingAt("bk-1", models.BookingStatusApproved, at(10, 0), at(11, 0)),
		bookingAt("bk-2", models.BookingStatusCancelled, at(12, 0), at(13, 0)),
	)
	svc := newTestCalendarService(store, testFacility())

	_, err := svc.DaySheet(context.Background(), "fac-1", "2024-06-10", "csv", resident)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	file, err := svc.DaySheet(context.Background(), "fac-1", "2024-06-10", "csv", admin)
	require.NoError(t, err)
	assert.Equal(t, "fac-1-2024-06-10.csv", file.Filename)
	assert.Equal(t, "text/csv", file.ContentType)
	body := string(file.Data)
	assert.True(t, strings.HasPrefix(body, "Start,End,Status,Requester,Purpose,Attendees"))
	assert.Contains(t, body, "10:00,11:00,approved,res-1")
	assert.Contains(t, body, "cancelled")

	_, err = svc.DaySheet(context.Background(), "fac-1", "2024-06-10", "xlsx", admin)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestCalendarDaySheetPDF(t *testing.T) {
	svc := newTestCalendarService(newMemoryBookingStore(bookingAt("bk-1", models.BookingStatusApproved, at(10, 0), at(11, 0))), testFacility())

	file, err := svc.DaySheet(context.Background(), "fac-1", "2024-06-10", "pdf", admin)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, strings.HasPrefix(string(file.Data), "%PDF"))
}
