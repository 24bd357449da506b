package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/facility-booking-api/internal/dto"
	"github.com/noah-isme/facility-booking-api/internal/middleware"
	"github.com/noah-isme/facility-booking-api/internal/models"
	"github.com/noah-isme/facility-booking-api/internal/service"
	appErrors "github.com/noah-isme/facility-booking-api/pkg/errors"
	"github.com/noah-isme/facility-booking-api/pkg/response"
)

type facilityService interface {
	Lookup(ctx context.Context, id string) (*models.Facility, bool, error)
	List(ctx context.Context, query dto.FacilityQuery) ([]models.Facility, *models.Pagination, error)
	Evict(ctx context.Context, id string, actor service.Actor) error
}

type facilityBookingLister interface {
	ListByFacility(ctx context.Context, facilityID string, from, to time.Time, actor service.Actor) ([]models.Booking, error)
}

type facilityCalendar interface {
	Availability(ctx context.Context, facilityID, date string, actor service.Actor) (*dto.FacilityAvailability, error)
	DaySheet(ctx context.Context, facilityID, date, format string, actor service.Actor) (*service.ExportFile, error)
}

// FacilityHandler exposes the facility catalogue and calendar endpoints.
type FacilityHandler struct {
	facilities facilityService
	bookings   facilityBookingLister
	calendar   facilityCalendar
}

// NewFacilityHandler constructs the handler.
func NewFacilityHandler(facilities facilityService, bookings facilityBookingLister, calendar facilityCalendar) *FacilityHandler {
	return &FacilityHandler{facilities: facilities, bookings: bookings, calendar: calendar}
}

// List godoc
// @Summary List facilities
// @Tags Facilities
// @Produce json
// @Param type query string false "Facility type"
// @Param available_only query bool false "Only bookable facilities"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /facilities [get]
func (h *FacilityHandler) List(c *gin.Context) {
	var query dto.FacilityQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	facilities, pagination, err := h.facilities.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, facilities, pagination, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get a facility with its booking rules
// @Tags Facilities
// @Produce json
// @Param id path string true "Facility ID"
// @Success 200 {object} response.Envelope
// @Router /facilities/{id} [get]
func (h *FacilityHandler) Get(c *gin.Context) {
	facility, hit, err := h.facilities.Lookup(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, facility, nil, middleware.ExtractMeta(c))
}

// Bookings godoc
// @Summary List a facility's bookings intersecting a range
// @Tags Facilities
// @Produce json
// @Param id path string true "Facility ID"
// @Param from query string true "RFC3339 range start"
// @Param to query string true "RFC3339 range end"
// @Success 200 {object} response.Envelope
// @Router /facilities/{id}/bookings [get]
func (h *FacilityHandler) Bookings(c *gin.Context) {
	var query dto.FacilityBookingsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	if query.From == "" || query.To == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from and to required"))
		return
	}
	from, err := time.Parse(time.RFC3339, query.From)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must be RFC3339"))
		return
	}
	to, err := time.Parse(time.RFC3339, query.To)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "to must be RFC3339"))
		return
	}
	bookings, err := h.bookings.ListByFacility(c.Request.Context(), c.Param("id"), from, to, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bookings, nil)
}

// Availability godoc
// @Summary Busy blocks of a facility for one local day
// @Tags Facilities
// @Produce json
// @Param id path string true "Facility ID"
// @Param date query string true "Date (YYYY-MM-DD) in the facility timezone"
// @Success 200 {object} response.Envelope
// @Router /facilities/{id}/availability [get]
func (h *FacilityHandler) Availability(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date required"))
		return
	}
	availability, err := h.calendar.Availability(c.Request.Context(), c.Param("id"), date, actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, availability, nil, middleware.ExtractMeta(c))
}

// DaySheet godoc
// @Summary Export a facility's day sheet
// @Tags Facilities
// @Produce application/pdf
// @Produce text/csv
// @Param id path string true "Facility ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Router /facilities/{id}/day-sheet [get]
func (h *FacilityHandler) DaySheet(c *gin.Context) {
	date := c.Query("date")
	if date == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date required"))
		return
	}
	file, err := h.calendar.DaySheet(c.Request.Context(), c.Param("id"), date, c.DefaultQuery("format", "csv"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Data)
}

// Evict godoc
// @Summary Drop the cached copy of a facility
// @Tags Facilities
// @Param id path string true "Facility ID"
// @Success 204
// @Router /facilities/{id}/cache/evict [post]
func (h *FacilityHandler) Evict(c *gin.Context) {
	if err := h.facilities.Evict(c.Request.Context(), c.Param("id"), actorFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
