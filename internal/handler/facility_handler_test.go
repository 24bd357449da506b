package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/facility-booking-api/internal/dto"
	"github.com/noah-isme/facility-booking-api/internal/middleware"
	"github.com/noah-isme/facility-booking-api/internal/models"
	"github.com/noah-isme/facility-booking-api/internal/service"
	appErrors "github.com/noah-isme/facility-booking-api/pkg/errors"
)

type facilityServiceMock struct {
	query   dto.FacilityQuery
	evicted string
}

func (m *facilityServiceMock) Lookup(ctx context.Context, id string) (*models.Facility, bool, error) {
	if id == "missing" {
		return nil, false, appErrors.Clone(appErrors.ErrNotFound, "facility not found")
	}
	return &models.Facility{ID: id, Name: "Pool"}, id == "cached", nil
}

func (m *facilityServiceMock) List(ctx context.Context, query dto.FacilityQuery) ([]models.Facility, *models.Pagination, error) {
	m.query = query
	return []models.Facility{{ID: "fac-1"}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, nil
}

func (m *facilityServiceMock) Evict(ctx context.Context, id string, actor service.Actor) error {
	if !actor.IsAdmin() {
		return appErrors.ErrForbidden
	}
	m.evicted = id
	return nil
}

type facilityBookingListerMock struct {
	from, to time.Time
}

func (m *facilityBookingListerMock) ListByFacility(ctx context.Context, facilityID string, from, to time.Time, actor service.Actor) ([]models.Booking, error) {
	m.from, m.to = from, to
	return []models.Booking{}, nil
}

type calendarMock struct {
	date   string
	format string
	err    error
}

func (m *calendarMock) Availability(ctx context.Context, facilityID, date string, actor service.Actor) (*dto.FacilityAvailability, error) {
	m.date = date
	return &dto.FacilityAvailability{FacilityID: facilityID, Date: date, Busy: []dto.TimeBlock{}}, m.err
}

func (m *calendarMock) DaySheet(ctx context.Context, facilityID, date, format string, actor service.Actor) (*service.ExportFile, error) {
	m.date, m.format = date, format
	if m.err != nil {
		return nil, m.err
	}
	return &service.ExportFile{Filename: facilityID + "-" + date + ".csv", ContentType: "text/csv", Data: []byte("Start,End\n")}, nil
}

var adminClaims = &models.JWTClaims{UserID: "adm-1", Role: models.RoleAdmin}

func TestFacilityHandlerListBindsFilters(t *testing.T) {
	facilities := &facilityServiceMock{}
	handler := NewFacilityHandler(facilities, &facilityBookingListerMock{}, &calendarMock{})
	c, w := newBookingContext(http.MethodGet, "/facilities?type=pool&available_only=true&page_size=5", nil, residentClaims)

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pool", facilities.query.Type)
	assert.True(t, facilities.query.AvailableOnly)
	assert.Equal(t, 5, facilities.query.PageSize)
}

func TestFacilityHandlerGetNotFound(t *testing.T) {
	handler := NewFacilityHandler(&facilityServiceMock{}, &facilityBookingListerMock{}, &calendarMock{})
	c, w := newBookingContext(http.MethodGet, "/facilities/missing", nil, residentClaims)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestFacilityHandlerGetReportsCacheHitInMeta(t *testing.T) {
	handler := NewFacilityHandler(&facilityServiceMock{}, &facilityBookingListerMock{}, &calendarMock{})
	c, w := newBookingContext(http.MethodGet, "/facilities/cached", nil, residentClaims)
	c.Params = gin.Params{{Key: "id", Value: "cached"}}
	middleware.WithResponseMeta()(c)

	handler.Get(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.Contains(t, envelope.Meta, "processing_time_ms")
}

func TestFacilityHandlerGetWithoutMetaMiddleware(t *testing.T) {
	handler := NewFacilityHandler(&facilityServiceMock{}, &facilityBookingListerMock{}, &calendarMock{})
	c, w := newBookingContext(http.MethodGet, "/facilities/fac-1", nil, residentClaims)
	c.Params = gin.Params{{Key: "id", Value: "fac-1"}}

	handler.Get(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"cache_hit":false`)
}

func TestFacilityHandlerBookingsParsesRange(t *testing.T) {
	lister := &facilityBookingListerMock{}
	handler := NewFacilityHandler(&facilityServiceMock{}, lister, &calendarMock{})
	c, w := newBookingContext(http.MethodGet, "/facilities/fac-1/bookings?from=2024-06-10T00:00:00Z&to=2024-06-11T00:00:00Z", nil, adminClaims)
	c.Params = gin.Params{{Key: "id", Value: "fac-1"}}

	handler.Bookings(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), lister.from.UTC())
	assert.Equal(t, time.Date(2024, 6, 11, 0, 0, 0, 0, time.UTC), lister.to.UTC())
}

func TestFacilityHandlerBookingsRejectsBadRange(t *testing.T) {
	handler := NewFacilityHandler(&facilityServiceMock{}, &facilityBookingListerMock{}, &calendarMock{})

	c, w := newBookingContext(http.MethodGet, "/facilities/fac-1/bookings?from=yesterday&to=2024-06-11T00:00:00Z", nil, adminClaims)
	handler.Bookings(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newBookingContext(http.MethodGet, "/facilities/fac-1/bookings", nil, adminClaims)
	handler.Bookings(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFacilityHandlerAvailabilityRequiresDate(t *testing.T) {
	calendar := &calendarMock{}
	handler := NewFacilityHandler(&facilityServiceMock{}, &facilityBookingListerMock{}, calendar)

	c, w := newBookingContext(http.MethodGet, "/facilities/fac-1/availability", nil, residentClaims)
	handler.Availability(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newBookingContext(http.MethodGet, "/facilities/fac-1/availability?date=2024-06-10", nil, residentClaims)
	c.Params = gin.Params{{Key: "id", Value: "fac-1"}}
	handler.Availability(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2024-06-10", calendar.date)
}

func TestFacilityHandlerDaySheetStreamsAttachment(t *testing.T) {
	calendar := &calendarMock{}
	handler := NewFacilityHandler(&facilityServiceMock{}, &facilityBookingListerMock{}, calendar)
	c, w := newBookingContext(http.MethodGet, "/facilities/fac-1/day-sheet?date=2024-06-10", nil, adminClaims)
	c.Params = gin.Params{{Key: "id", Value: "fac-1"}}

	handler.DaySheet(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "csv", calendar.format)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="fac-1-2024-06-10.csv"`)
	assert.Equal(t, "Start,End\n", w.Body.String())
}

func TestFacilityHandlerDaySheetError(t *testing.T) {
	handler := NewFacilityHandler(&facilityServiceMock{}, &facilityBookingListerMock{}, &calendarMock{err: errors.New("render failed")})
	c, w := newBookingContext(http.MethodGet, "/facilities/fac-1/day-sheet?date=2024-06-10&format=pdf", nil, adminClaims)

	handler.DaySheet(c)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestFacilityHandlerEvict(t *testing.T) {
	facilities := &facilityServiceMock{}
	handler := NewFacilityHandler(facilities, &facilityBookingListerMock{}, &calendarMock{})

	c, w := newBookingContext(http.MethodPost, "/facilities/fac-1/cache/evict", nil, residentClaims)
	c.Params = gin.Params{{Key: "id", Value: "fac-1"}}
	handler.Evict(c)
	assert.Equal(t, http.StatusForbidden, w.Code)

	c, w = newBookingContext(http.MethodPost, "/facilities/fac-1/cache/evict", nil, adminClaims)
	c.Params = gin.Params{{Key: "id", Value: "fac-1"}}
	handler.Evict(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "fac-1", facilities.evicted)
}
