package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/facility-booking-api/internal/dto"
	"github.com/noah-isme/facility-booking-api/internal/models"
	"github.com/noah-isme/facility-booking-api/internal/repository"
	appErrors "github.com/noah-isme/facility-booking-api/pkg/errors"
)

type bookingStore interface {
	WithFacilityLock(ctx context.Context, facilityID string, fn func(ctx context.Context, tx repository.BookingTx) error) error
	FindByID(ctx context.Context, id string) (*models.Booking, error)
	List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error)
	UpdateStatus(ctx context.Context, params models.UpdateBookingStatusParams) error
	Delete(ctx context.Context, id string) error
	CompleteElapsed(ctx context.Context, now time.Time) (int64, error)
}

type facilityGetter interface {
	Get(ctx context.Context, id string) (*models.Facility, error)
}

type notificationAppender interface {
	Append(ctx context.Context, event *models.NotificationEvent) error
}

// BookingServiceParams groups constructor dependencies.
type BookingServiceParams struct {
	Store      bookingStore
	Facilities facilityGetter
	Outbox     notificationAppender
	Rules      *RuleValidator
	Lifecycle  *LifecycleManager
	Metrics    *MetricsService
	Validator  *validator.Validate
	Logger     *zap.Logger
}

// BookingServiceOption configures the service.
type BookingServiceOption func(*BookingService)

// WithBookingClock overrides the time source.
func WithBookingClock(now func() time.Time) BookingServiceOption {
	return func(s *BookingService) {
		if now != nil {
			s.now = now
		}
	}
}

// BookingService is the scheduler facade: it validates, detects conflicts and drives the booking lifecycle.
type BookingService struct {
	store      bookingStore
	facilities facilityGetter
	outbox     notificationAppender
	rules      *RuleValidator
	lifecycle  *LifecycleManager
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewBookingService constructs the facade with sane defaults.
func NewBookingService(params BookingServiceParams, opts ...BookingServiceOption) *BookingService {
	if params.Rules == nil {
		params.Rules = NewRuleValidator("UTC")
	}
	if params.Lifecycle == nil {
		params.Lifecycle = NewLifecycleManager()
	}
	if params.Validator == nil {
		params.Validator = validator.New()
	}
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	svc := &BookingService{
		store:      params.Store,
		facilities: params.Facilities,
		outbox:     params.Outbox,
		rules:      params.Rules,
		lifecycle:  params.Lifecycle,
		metrics:    params.Metrics,
		validator:  params.Validator,
		logger:     params.Logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// CreateBooking validates the request against the facility and stores it as pending.
// The conflict check and insert run under the facility lock so overlapping requests cannot both succeed.
func (s *BookingService) CreateBooking(ctx context.Context, actor Actor, req dto.CreateBookingRequest) (*models.Booking, error) {
	booking, err := s.createBooking(ctx, actor, req)
	s.metrics.RecordBookingRequest(outcomeOf(err, "created"))
	if err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *BookingService) createBooking(ctx context.Context, actor Actor, req dto.CreateBookingRequest) (*models.Booking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}
	interval, err := NewInterval(req.StartTime, req.EndTime)
	if err != nil {
		return nil, bookingError(invalidIntervalError(), "")
	}

	facility, err := s.facilities.Get(ctx, req.FacilityID)
	if err != nil {
		return nil, err
	}
	if err := s.lifecycle.AuthorizeCreate(facility, actor); err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.checkAdmissible(facility, interval, req.Attendees, now); err != nil {
		s.logger.Info("booking rejected by rules", zap.String("facility_id", facility.ID), zap.String("requester_id", actor.UserID), zap.Error(err))
		return nil, bookingError(err, "")
	}

	booking := &models.Booking{
		FacilityID:  facility.ID,
		RequesterID: actor.UserID,
		StartTime:   interval.Start.UTC(),
		EndTime:     interval.End.UTC(),
		Status:      models.BookingStatusPending,
		Purpose:     strings.TrimSpace(req.Purpose),
		Attendees:   req.Attendees,
		Notes:       strings.TrimSpace(req.Notes),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err = s.store.WithFacilityLock(ctx, facility.ID, func(ctx context.Context, tx repository.BookingTx) error {
		conflicts, err := FindConflicts(ctx, tx, facility.ID, interval, "")
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return newConflictError(conflicts)
		}
		return tx.Insert(ctx, booking)
	})
	if err != nil {
		var conflictErr *models.BookingConflictError
		if errors.As(err, &conflictErr) {
			s.logger.Info("booking conflict", zap.String("facility_id", facility.ID), zap.Int("conflicts", len(conflictErr.Conflicts)))
		}
		return nil, bookingError(err, "failed to create booking")
	}

	s.logger.Info("booking requested",
		zap.String("booking_id", booking.ID),
		zap.String("facility_id", booking.FacilityID),
		zap.String("requester_id", booking.RequesterID),
		zap.String("status", string(booking.Status)),
	)
	return booking, nil
}

// TransitionBooking applies an approve, reject, cancel or complete action.
// Approvals and rejections append a notification event; failing to record it never undoes the transition.
func (s *BookingService) TransitionBooking(ctx context.Context, bookingID string, actor Actor, action models.BookingAction, reason string) (*models.Booking, error) {
	booking, err := s.transitionBooking(ctx, bookingID, actor, action, reason)
	s.metrics.RecordBookingTransition(string(action), outcomeOf(err, "applied"))
	if err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *BookingService) transitionBooking(ctx context.Context, bookingID string, actor Actor, action models.BookingAction, reason string) (*models.Booking, error) {
	if actor.UserID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	if err := s.validator.Struct(dto.TransitionBookingRequest{Reason: reason}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid transition payload")
	}
	booking, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	params, err := s.lifecycle.Plan(booking, action, actor, reason, now)
	if err != nil {
		return nil, bookingError(err, "")
	}

	if err := s.store.UpdateStatus(ctx, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// The row left params.From between the read and the guarded update.
			current, loadErr := s.load(ctx, bookingID)
			if loadErr != nil {
				return nil, loadErr
			}
			return nil, bookingError(&models.InvalidTransitionError{From: current.Status, To: params.To, Action: action}, "")
		}
		return nil, bookingError(err, "failed to update booking")
	}
	s.lifecycle.Apply(booking, params)

	s.logger.Info("booking transitioned",
		zap.String("booking_id", booking.ID),
		zap.String("facility_id", booking.FacilityID),
		zap.String("action", string(action)),
		zap.String("from", string(params.From)),
		zap.String("status", string(booking.Status)),
		zap.String("actor_id", actor.UserID),
	)

	s.notify(ctx, booking, action)
	return booking, nil
}

// RescheduleBooking moves a pending booking owned by actor. The new interval is revalidated and checked for
// conflicts against every other booking under the facility lock; on any failure the booking keeps its old interval.
func (s *BookingService) RescheduleBooking(ctx context.Context, bookingID string, actor Actor, req dto.RescheduleBookingRequest) (*models.Booking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reschedule payload")
	}
	interval, err := NewInterval(req.StartTime, req.EndTime)
	if err != nil {
		return nil, bookingError(invalidIntervalError(), "")
	}

	booking, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := s.lifecycle.AuthorizeReschedule(booking, actor); err != nil {
		return nil, bookingError(err, "")
	}

	facility, err := s.facilities.Get(ctx, booking.FacilityID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.checkAdmissible(facility, interval, booking.Attendees, now); err != nil {
		return nil, bookingError(err, "")
	}

	err = s.store.WithFacilityLock(ctx, facility.ID, func(ctx context.Context, tx repository.BookingTx) error {
		conflicts, err := FindConflicts(ctx, tx, facility.ID, interval, booking.ID)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return newConflictError(conflicts)
		}
		if err := tx.UpdateInterval(ctx, booking.ID, interval.Start.UTC(), interval.End.UTC(), now); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return &models.InvalidTransitionError{From: models.BookingStatusPending, To: models.BookingStatusPending, Reason: "booking is no longer pending"}
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, bookingError(err, "failed to reschedule booking")
	}

	booking.StartTime = interval.Start.UTC()
	booking.EndTime = interval.End.UTC()
	booking.UpdatedAt = now
	s.logger.Info("booking rescheduled", zap.String("booking_id", booking.ID), zap.String("facility_id", booking.FacilityID))
	return booking, nil
}

// DeleteBooking hard-deletes a booking in any status. Administrators only.
func (s *BookingService) DeleteBooking(ctx context.Context, bookingID string, actor Actor) error {
	if err := s.lifecycle.AuthorizeDelete(actor); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, bookingID); err != nil {
		return bookingError(err, "failed to delete booking")
	}
	s.logger.Info("booking deleted", zap.String("booking_id", bookingID), zap.String("actor_id", actor.UserID))
	return nil
}

// Get returns a booking visible to the actor.
func (s *BookingService) Get(ctx context.Context, bookingID string, actor Actor) (*models.Booking, error) {
	booking, err := s.load(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !s.lifecycle.CanView(booking, actor) {
		return nil, appErrors.ErrForbidden
	}
	return booking, nil
}

// ListMine lists the actor's own bookings, optionally narrowed to a comma separated status list.
func (s *BookingService) ListMine(ctx context.Context, actor Actor, query dto.BookingQuery) ([]models.Booking, *models.Pagination, error) {
	if actor.UserID == "" {
		return nil, nil, appErrors.ErrUnauthorized
	}
	filter := models.BookingFilter{RequesterID: actor.UserID, Page: query.Page, PageSize: query.PageSize}
	if query.Status != "" {
		for _, raw := range strings.Split(query.Status, ",") {
			status, err := models.ParseBookingStatus(strings.ToLower(strings.TrimSpace(raw)))
			if err != nil {
				return nil, nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}

	bookings, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}
	page, size := normalisePage(filter.Page, filter.PageSize, 50, 500)
	return bookings, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// ListByFacility returns the bookings of a facility intersecting [from, to). Administrators only.
func (s *BookingService) ListByFacility(ctx context.Context, facilityID string, from, to time.Time, actor Actor) ([]models.Booking, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	if !to.After(from) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "to must be after from")
	}
	if _, err := s.facilities.Get(ctx, facilityID); err != nil {
		return nil, err
	}
	bookings, err := listAllBookings(ctx, s.store, models.BookingFilter{FacilityID: facilityID, From: &from, To: &to})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list facility bookings")
	}
	return bookings, nil
}

// CompleteElapsed marks approved bookings whose start has passed as completed.
func (s *BookingService) CompleteElapsed(ctx context.Context, actor Actor) (*dto.CompleteElapsedResult, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	now := s.now()
	completed, err := s.store.CompleteElapsed(ctx, now)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to complete elapsed bookings")
	}
	if completed > 0 {
		s.metrics.AddCompletedBookings(completed)
		s.logger.Info("elapsed bookings completed", zap.Int64("count", completed))
	}
	return &dto.CompleteElapsedResult{Completed: completed, RanAt: now}, nil
}

func (s *BookingService) load(ctx context.Context, bookingID string) (*models.Booking, error) {
	if strings.TrimSpace(bookingID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "booking id is required")
	}
	booking, err := s.store.FindByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}
	return booking, nil
}

// checkAdmissible runs every request-level check and returns them together.
func (s *BookingService) checkAdmissible(facility *models.Facility, interval Interval, attendees *int, now time.Time) error {
	var violations []models.RuleViolation
	if !facility.Availability {
		violations = append(violations, models.RuleViolation{Code: models.ViolationFacilityUnavailable, Message: "facility is not accepting bookings"})
	}
	if attendees != nil && *attendees > facility.Capacity {
		violations = append(violations, models.RuleViolation{Code: models.ViolationCapacityExceeded, Message: "attendees exceed facility capacity"})
	}
	violations = append(violations, s.rules.Validate(facility, interval.Start, interval.End, now)...)
	if violation := s.rules.WithinOperatingHours(facility, interval.Start, interval.End); violation != nil {
		violations = append(violations, *violation)
	}
	if len(violations) > 0 {
		return &models.BookingValidationError{Violations: violations}
	}
	return nil
}

func (s *BookingService) notify(ctx context.Context, booking *models.Booking, action models.BookingAction) {
	var eventType models.NotificationType
	switch action {
	case models.BookingActionApprove:
		eventType = models.NotificationBookingApproved
	case models.BookingActionReject:
		eventType = models.NotificationBookingRejected
	default:
		return
	}
	if s.outbox == nil {
		return
	}

	payload, err := json.Marshal(notificationPayload{
		BookingID:       booking.ID,
		FacilityID:      booking.FacilityID,
		Status:          booking.Status,
		StartTime:       booking.StartTime,
		EndTime:         booking.EndTime,
		RejectionReason: booking.RejectionReason,
	})
	if err != nil {
		payload = []byte("{}")
	}
	event := &models.NotificationEvent{
		Type:        eventType,
		BookingID:   booking.ID,
		RecipientID: booking.RequesterID,
		Payload:     payload,
	}
	if err := s.outbox.Append(ctx, event); err != nil {
		s.metrics.RecordNotification("enqueue_failed")
		s.logger.Warn("failed to record booking notification", zap.String("booking_id", booking.ID), zap.String("type", string(eventType)), zap.Error(err))
		return
	}
	s.metrics.RecordNotification("enqueued")
}

type notificationPayload struct {
	BookingID       string               `json:"booking_id"`
	FacilityID      string               `json:"facility_id"`
	Status          models.BookingStatus `json:"status"`
	StartTime       time.Time            `json:"start_time"`
	EndTime         time.Time            `json:"end_time"`
	RejectionReason *string              `json:"rejection_reason,omitempty"`
}

func invalidIntervalError() *models.BookingValidationError {
	return &models.BookingValidationError{Violations: []models.RuleViolation{{
		Code:    models.ViolationInvalidInterval,
		Message: ErrInvalidInterval.Error(),
	}}}
}

// bookingError maps scheduler errors onto the API error contract.
func bookingError(err error, message string) error {
	var (
		validationErr *models.BookingValidationError
		conflictErr   *models.BookingConflictError
		transitionErr *models.InvalidTransitionError
		appErr        *appErrors.Error
	)
	switch {
	case errors.As(err, &validationErr):
		return appErrors.WithDetails(
			appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "booking request violates facility rules"),
			validationErr.Violations,
		)
	case errors.As(err, &conflictErr):
		return appErrors.WithDetails(
			appErrors.Wrap(err, appErrors.ErrBookingConflict.Code, appErrors.ErrBookingConflict.Status, conflictErr.Message),
			conflictErr.Conflicts,
		)
	case errors.As(err, &transitionErr):
		return appErrors.WithDetails(
			appErrors.Wrap(err, appErrors.ErrInvalidTransition.Code, appErrors.ErrInvalidTransition.Status, transitionErr.Error()),
			map[string]string{"from": string(transitionErr.From), "to": string(transitionErr.To)},
		)
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.Clone(appErrors.ErrNotFound, "booking not found")
	}
	if message == "" {
		message = appErrors.ErrInternal.Message
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

// outcomeOf labels an operation result for metrics.
func outcomeOf(err error, success string) string {
	if err == nil {
		return success
	}
	switch {
	case errors.Is(err, appErrors.ErrValidation):
		return "invalid"
	case errors.Is(err, appErrors.ErrBookingConflict):
		return "conflict"
	case errors.Is(err, appErrors.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, appErrors.ErrForbidden), errors.Is(err, appErrors.ErrUnauthorized):
		return "forbidden"
	case errors.Is(err, appErrors.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}

const bookingScanPageSize = 500

// listAllBookings walks every page of filter so range views are never truncated.
func listAllBookings(ctx context.Context, src bookingRangeLister, filter models.BookingFilter) ([]models.Booking, error) {
	filter.PageSize = bookingScanPageSize
	var out []models.Booking
	for page := 1; ; page++ {
		filter.Page = page
		items, total, err := src.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
		if len(items) < bookingScanPageSize || len(out) >= total {
			return out, nil
		}
	}
}

func normalisePage(page, size, def, max int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > max {
		size = def
	}
	return page, size
}
