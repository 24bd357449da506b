package service

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/facility-booking-api/internal/dto"
	"github.com/noah-isme/facility-booking-api/internal/models"
	appErrors "github.com/noah-isme/facility-booking-api/pkg/errors"
	"github.com/noah-isme/facility-booking-api/pkg/export"
)

const calendarDateLayout = "2006-01-02"

type bookingRangeLister interface {
	List(ctx context.Context, filter models.BookingFilter) ([]models.Booking, int, error)
}

// ExportFile is a rendered export ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// CalendarService builds lock-free calendar views of a facility day.
type CalendarService struct {
	facilities facilityGetter
	bookings   bookingRangeLister
	rules      *RuleValidator
	logger     *zap.Logger
}

// NewCalendarService constructs the service.
func NewCalendarService(facilities facilityGetter, bookings bookingRangeLister, rules *RuleValidator, logger *zap.Logger) *CalendarService {
	if rules == nil {
		rules = NewRuleValidator("UTC")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarService{facilities: facilities, bookings: bookings, rules: rules, logger: logger}
}

// Availability returns the opening window and busy blocks of one facility-local day.
// Requester identities are only shown to administrators.
func (s *CalendarService) Availability(ctx context.Context, facilityID, date string, actor Actor) (*dto.FacilityAvailability, error) {
	facility, day, err := s.resolveDay(ctx, facilityID, date)
	if err != nil {
		return nil, err
	}
	loc := day.Start.Location()

	result := &dto.FacilityAvailability{
		FacilityID: facility.ID,
		Date:       day.Start.Format(calendarDateLayout),
		Timezone:   loc.String(),
		Busy:       []dto.TimeBlock{},
	}
	if hours, ok := facility.OperatingHours.For(day.Start.Weekday()); ok && facility.Availability {
		open, openErr := clockOn(day.Start, hours.Start)
		closing, closeErr := clockOn(day.Start, hours.End)
		if openErr == nil && closeErr == nil {
			result.Open = true
			result.OpensAt = &open
			result.ClosesAt = &closing
		}
	}

	for _, window := range facility.MaintenanceSchedule {
		blocked := maintenanceInterval(window, loc)
		if !blocked.Overlaps(day) {
			continue
		}
		result.Busy = append(result.Busy, dto.TimeBlock{
			Start: maxTime(blocked.Start, day.Start).In(loc),
			End:   minTime(blocked.End, day.End).In(loc),
			Kind:  "maintenance",
			Label: window.Reason,
		})
	}

	bookings, err := s.dayBookings(ctx, facility.ID, day, models.ActiveBookingStatuses)
	if err != nil {
		return nil, err
	}
	for _, booking := range bookings {
		block := dto.TimeBlock{
			Start:  booking.StartTime.In(loc),
			End:    booking.EndTime.In(loc),
			Kind:   "booking",
			Status: string(booking.Status),
		}
		if actor.IsAdmin() {
			block.Label = booking.RequesterID
		}
		result.Busy = append(result.Busy, block)
	}

	sort.SliceStable(result.Busy, func(i, j int) bool {
		return result.Busy[i].Start.Before(result.Busy[j].Start)
	})
	return result, nil
}

// DaySheet renders every booking of a facility-local day as CSV or PDF. Administrators only.
func (s *CalendarService) DaySheet(ctx context.Context, facilityID, date, format string, actor Actor) (*ExportFile, error) {
	if !actor.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	parsedFormat, err := export.ParseFormat(format)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	facility, day, err := s.resolveDay(ctx, facilityID, date)
	if err != nil {
		return nil, err
	}
	bookings, err := s.dayBookings(ctx, facility.ID, day, nil)
	if err != nil {
		return nil, err
	}

	loc := day.Start.Location()
	dataset := export.Dataset{
		Title:    facility.Name,
		Subtitle: fmt.Sprintf("Bookings for %s (%s)", day.Start.Format(calendarDateLayout), loc.String()),
		Headers:  []string{"Start", "End", "Status", "Requester", "Purpose", "Attendees"},
	}
	for _, booking := range bookings {
		attendees := ""
		if booking.Attendees != nil {
			attendees = strconv.Itoa(*booking.Attendees)
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Start":     booking.StartTime.In(loc).Format("15:04"),
			"End":       booking.EndTime.In(loc).Format("15:04"),
			"Status":    string(booking.Status),
			"Requester": booking.RequesterID,
			"Purpose":   booking.Purpose,
			"Attendees": attendees,
		})
	}

	renderer := export.RendererFor(parsedFormat)
	data, err := renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render day sheet")
	}
	s.logger.Debug("day sheet rendered", zap.String("facility_id", facility.ID), zap.String("format", string(parsedFormat)), zap.Int("rows", len(dataset.Rows)))
	return &ExportFile{
		Filename:    fmt.Sprintf("%s-%s.%s", facility.ID, day.Start.Format(calendarDateLayout), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Data:        data,
	}, nil
}

func (s *CalendarService) resolveDay(ctx context.Context, facilityID, date string) (*models.Facility, Interval, error) {
	facility, err := s.facilities.Get(ctx, facilityID)
	if err != nil {
		return nil, Interval{}, err
	}
	loc := s.rules.Location(facility)
	start, err := time.ParseInLocation(calendarDateLayout, date, loc)
	if err != nil {
		return nil, Interval{}, appErrors.Clone(appErrors.ErrValidation, "date must be formatted as YYYY-MM-DD")
	}
	return facility, Interval{Start: start, End: start.AddDate(0, 0, 1)}, nil
}

func (s *CalendarService) dayBookings(ctx context.Context, facilityID string, day Interval, statuses []models.BookingStatus) ([]models.Booking, error) {
	from, to := day.Start.UTC(), day.End.UTC()
	bookings, err := listAllBookings(ctx, s.bookings, models.BookingFilter{
		FacilityID: facilityID,
		Statuses:   statuses,
		From:       &from,
		To:         &to,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load facility bookings")
	}
	return bookings, nil
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
