package service

import (
	"context"
	"fmt"
	"time"

	"github.com/noah-isme/facility-booking-api/internal/models"
)

// activeBookingLister is the store query the conflict detector needs.
type activeBookingLister interface {
	ListActiveInRange(ctx context.Context, facilityID string, start, end time.Time, excludeID string) ([]models.Booking, error)
}

// FindConflicts returns the active bookings of facilityID overlapping candidate, skipping excludeID.
// The store narrows by range; overlap is re-checked here so the result never depends on query boundaries.
func FindConflicts(ctx context.Context, src activeBookingLister, facilityID string, candidate Interval, excludeID string) ([]models.BookingConflict, error) {
	existing, err := src.ListActiveInRange(ctx, facilityID, candidate.Start, candidate.End, excludeID)
	if err != nil {
		return nil, fmt.Errorf("load active bookings: %w", err)
	}

	var conflicts []models.BookingConflict
	for _, booking := range existing {
		if excludeID != "" && booking.ID == excludeID {
			continue
		}
		if !booking.Status.IsActive() {
			continue
		}
		if !candidate.Overlaps(Interval{Start: booking.StartTime, End: booking.EndTime}) {
			continue
		}
		conflicts = append(conflicts, models.BookingConflict{
			BookingID:   booking.ID,
			FacilityID:  booking.FacilityID,
			RequesterID: booking.RequesterID,
			StartTime:   booking.StartTime,
			EndTime:     booking.EndTime,
			Status:      booking.Status,
		})
	}
	return conflicts, nil
}

func newConflictError(conflicts []models.BookingConflict) *models.BookingConflictError {
	msg := "requested time overlaps an existing booking"
	if len(conflicts) > 1 {
		msg = fmt.Sprintf("requested time overlaps %d existing bookings", len(conflicts))
	}
	return &models.BookingConflictError{Message: msg, Conflicts: conflicts}
}
