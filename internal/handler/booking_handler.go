package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/facility-booking-api/internal/dto"
	"github.com/noah-isme/facility-booking-api/internal/models"
	"github.com/noah-isme/facility-booking-api/internal/service"
	appErrors "github.com/noah-isme/facility-booking-api/pkg/errors"
	"github.com/noah-isme/facility-booking-api/pkg/response"
)

type bookingService interface {
	CreateBooking(ctx context.Context, actor service.Actor, req dto.CreateBookingRequest) (*models.Booking, error)
	TransitionBooking(ctx context.Context, bookingID string, actor service.Actor, action models.BookingAction, reason string) (*models.Booking, error)
	RescheduleBooking(ctx context.Context, bookingID string, actor service.Actor, req dto.RescheduleBookingRequest) (*models.Booking, error)
	DeleteBooking(ctx context.Context, bookingID string, actor service.Actor) error
	Get(ctx context.Context, bookingID string, actor service.Actor) (*models.Booking, error)
	ListMine(ctx context.Context, actor service.Actor, query dto.BookingQuery) ([]models.Booking, *models.Pagination, error)
	CompleteElapsed(ctx context.Context, actor service.Actor) (*dto.CompleteElapsedResult, error)
}

// BookingHandler exposes booking request and approval endpoints.
type BookingHandler struct {
	service bookingService
}

// NewBookingHandler builds a new handler.
func NewBookingHandler(service bookingService) *BookingHandler {
	return &BookingHandler{service: service}
}

// Create godoc
// @Summary Request a facility booking
// @Tags Bookings
// @Accept json
// @Produce json
// @Param payload body dto.CreateBookingRequest true "Booking payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings [post]
func (h *BookingHandler) Create(c *gin.Context) {
	var req dto.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid booking payload"))
		return
	}
	booking, err := h.service.CreateBooking(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, booking)
}

// Mine godoc
// @Summary List the caller's bookings
// @Tags Bookings
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /bookings [get]
func (h *BookingHandler) Mine(c *gin.Context) {
	var query dto.BookingQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	bookings, pagination, err := h.service.ListMine(c.Request.Context(), actorFromContext(c), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, bookings, pagination)
}

// Get godoc
// @Summary Get a booking
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /bookings/{id} [get]
func (h *BookingHandler) Get(c *gin.Context) {
	booking, err := h.service.Get(c.Request.Context(), c.Param("id"), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}

// Reschedule godoc
// @Summary Move a pending booking to a new interval
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param payload body dto.RescheduleBookingRequest true "New interval"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /bookings/{id} [put]
func (h *BookingHandler) Reschedule(c *gin.Context) {
	var req dto.RescheduleBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reschedule payload"))
		return
	}
	booking, err := h.service.RescheduleBooking(c.Request.Context(), c.Param("id"), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}

// Approve godoc
// @Summary Approve a pending booking
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Router /bookings/{id}/approve [post]
func (h *BookingHandler) Approve(c *gin.Context) {
	h.transition(c, models.BookingActionApprove)
}

// Reject godoc
// @Summary Reject a pending booking
// @Tags Bookings
// @Accept json
// @Produce json
// @Param id path string true "Booking ID"
// @Param payload body dto.TransitionBookingRequest true "Rejection reason"
// @Success 200 {object} response.Envelope
// @Router /bookings/{id}/reject [post]
func (h *BookingHandler) Reject(c *gin.Context) {
	h.transition(c, models.BookingActionReject)
}

// Cancel godoc
// @Summary Cancel one of the caller's pending bookings
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Router /bookings/{id}/cancel [post]
func (h *BookingHandler) Cancel(c *gin.Context) {
	h.transition(c, models.BookingActionCancel)
}

// Complete godoc
// @Summary Mark an approved booking as completed
// @Tags Bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Success 200 {object} response.Envelope
// @Router /bookings/{id}/complete [post]
func (h *BookingHandler) Complete(c *gin.Context) {
	h.transition(c, models.BookingActionComplete)
}

func (h *BookingHandler) transition(c *gin.Context, action models.BookingAction) {
	var req dto.TransitionBookingRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid transition payload"))
			return
		}
	}
	booking, err := h.service.TransitionBooking(c.Request.Context(), c.Param("id"), actorFromContext(c), action, req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, booking, nil)
}

// Delete godoc
// @Summary Hard delete a booking
// @Tags Bookings
// @Param id path string true "Booking ID"
// @Success 204
// @Router /bookings/{id} [delete]
func (h *BookingHandler) Delete(c *gin.Context) {
	if err := h.service.DeleteBooking(c.Request.Context(), c.Param("id"), actorFromContext(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CompleteElapsed godoc
// @Summary Complete approved bookings whose start has passed
// @Tags Bookings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/bookings/complete-elapsed [post]
func (h *BookingHandler) CompleteElapsed(c *gin.Context) {
	result, err := h.service.CompleteElapsed(c.Request.Context(), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
