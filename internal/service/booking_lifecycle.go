package service

import (
	"strings"
	"time"

	"github.com/noah-isme/facility-booking-api/internal/models"
	appErrors "github.com/noah-isme/facility-booking-api/pkg/errors"
)

// Actor is the authenticated caller as supplied by the identity service.
type Actor struct {
	UserID string
	Role   models.UserRole
}

// ActorFromClaims converts verified token claims into an Actor.
func ActorFromClaims(claims *models.JWTClaims) Actor {
	if claims == nil {
		return Actor{}
	}
	return Actor{UserID: claims.UserID, Role: claims.Role}
}

// IsAdmin reports whether the actor may decide on bookings.
func (a Actor) IsAdmin() bool {
	return a.Role.IsAdmin()
}

type actorCheck func(actor Actor, booking *models.Booking) bool

func adminOnly(actor Actor, _ *models.Booking) bool { return actor.IsAdmin() }

func ownerOnly(actor Actor, booking *models.Booking) bool {
	return actor.UserID != "" && actor.UserID == booking.RequesterID
}

type lifecycleRule struct {
	from        models.BookingStatus
	to          models.BookingStatus
	allowed     actorCheck
	needsReason bool
	beforeStart bool
	afterStart  bool
}

// lifecycleRules is the single table of permitted moves and who may make them.
var lifecycleRules = map[models.BookingAction]lifecycleRule{
	models.BookingActionApprove:  {from: models.BookingStatusPending, to: models.BookingStatusApproved, allowed: adminOnly},
	models.BookingActionReject:   {from: models.BookingStatusPending, to: models.BookingStatusRejected, allowed: adminOnly, needsReason: true},
	models.BookingActionCancel:   {from: models.BookingStatusPending, to: models.BookingStatusCancelled, allowed: ownerOnly, beforeStart: true},
	models.BookingActionComplete: {from: models.BookingStatusApproved, to: models.BookingStatusCompleted, allowed: adminOnly, afterStart: true},
}

// LifecycleManager owns the booking state machine and the permissions attached to each move.
type LifecycleManager struct{}

// NewLifecycleManager returns a lifecycle manager.
func NewLifecycleManager() *LifecycleManager {
	return &LifecycleManager{}
}

// Target returns the status an action leads to.
func (m *LifecycleManager) Target(action models.BookingAction) (models.BookingStatus, bool) {
	rule, ok := lifecycleRules[action]
	return rule.to, ok
}

// Plan checks that actor may apply action to booking and returns the guarded update to persist.
// The current status is checked before the actor so a stale request always reports the invalid move.
func (m *LifecycleManager) Plan(booking *models.Booking, action models.BookingAction, actor Actor, reason string, now time.Time) (models.UpdateBookingStatusParams, error) {
	rule, ok := lifecycleRules[action]
	if !ok {
		return models.UpdateBookingStatusParams{}, appErrors.Clone(appErrors.ErrValidation, "unsupported booking action: "+string(action))
	}

	if booking.Status != rule.from || !booking.Status.CanTransitionTo(rule.to) {
		return models.UpdateBookingStatusParams{}, &models.InvalidTransitionError{From: booking.Status, To: rule.to, Action: action}
	}
	if !rule.allowed(actor, booking) {
		return models.UpdateBookingStatusParams{}, appErrors.Clone(appErrors.ErrForbidden, "not permitted to "+string(action)+" this booking")
	}

	reason = strings.TrimSpace(reason)
	if rule.needsReason && reason == "" {
		return models.UpdateBookingStatusParams{}, &models.BookingValidationError{Violations: []models.RuleViolation{{
			Code:    models.ViolationReasonRequired,
			Message: "a reason is required to " + string(action) + " a booking",
		}}}
	}
	if rule.beforeStart && !now.Before(booking.StartTime) {
		return models.UpdateBookingStatusParams{}, &models.InvalidTransitionError{From: booking.Status, To: rule.to, Action: action, Reason: "booking has already started"}
	}
	if rule.afterStart && now.Before(booking.StartTime) {
		return models.UpdateBookingStatusParams{}, &models.InvalidTransitionError{From: booking.Status, To: rule.to, Action: action, Reason: "booking has not started yet"}
	}

	params := models.UpdateBookingStatusParams{
		ID:        booking.ID,
		From:      booking.Status,
		To:        rule.to,
		UpdatedAt: now,
	}
	switch action {
	case models.BookingActionApprove:
		approver := actor.UserID
		approvedAt := now
		params.ApprovedBy = &approver
		params.ApprovalDate = &approvedAt
	case models.BookingActionReject:
		params.RejectionReason = &reason
	}
	return params, nil
}

// Apply copies a persisted plan onto the in-memory booking.
func (m *LifecycleManager) Apply(booking *models.Booking, params models.UpdateBookingStatusParams) {
	booking.Status = params.To
	booking.UpdatedAt = params.UpdatedAt
	if params.ApprovedBy != nil {
		booking.ApprovedBy = params.ApprovedBy
	}
	if params.ApprovalDate != nil {
		booking.ApprovalDate = params.ApprovalDate
	}
	if params.RejectionReason != nil {
		booking.RejectionReason = params.RejectionReason
	}
}

// AuthorizeCreate checks the facility's allowed roles.
func (m *LifecycleManager) AuthorizeCreate(facility *models.Facility, actor Actor) error {
	if actor.UserID == "" {
		return appErrors.ErrUnauthorized
	}
	if !facility.AllowsRole(actor.Role) {
		return appErrors.Clone(appErrors.ErrForbidden, "role "+string(actor.Role)+" may not book this facility")
	}
	return nil
}

// AuthorizeReschedule permits the owner to move a booking that is still pending.
func (m *LifecycleManager) AuthorizeReschedule(booking *models.Booking, actor Actor) error {
	if booking.Status != models.BookingStatusPending {
		return &models.InvalidTransitionError{From: booking.Status, To: booking.Status, Reason: "only pending bookings can be rescheduled"}
	}
	if !ownerOnly(actor, booking) {
		return appErrors.Clone(appErrors.ErrForbidden, "only the requester can reschedule this booking")
	}
	return nil
}

// AuthorizeDelete permits administrators to hard-delete bookings in any status.
func (m *LifecycleManager) AuthorizeDelete(actor Actor) error {
	if !actor.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "only administrators can delete bookings")
	}
	return nil
}

// CanView reports whether the actor may read the booking.
func (m *LifecycleManager) CanView(booking *models.Booking, actor Actor) bool {
	return actor.IsAdmin() || ownerOnly(actor, booking)
}
