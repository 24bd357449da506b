package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"

	"github.com/noah-isme/facility-booking-api/internal/models"
)

const facilityColumns = `id, name, type, description, capacity, availability, timezone,
min_duration_minutes, max_duration_minutes, advance_booking_days, min_advance_hours, allowed_roles,
operating_hours, maintenance_schedule, created_at, updated_at`

type facilityRow struct {
	ID                  string         `db:"id"`
	Name                string         `db:"name"`
	Type                string         `db:"type"`
	Description         string         `db:"description"`
	Capacity            int            `db:"capacity"`
	Availability        bool           `db:"availability"`
	Timezone            string         `db:"timezone"`
	MinDurationMinutes  int            `db:"min_duration_minutes"`
	MaxDurationMinutes  int            `db:"max_duration_minutes"`
	AdvanceBookingDays  int            `db:"advance_booking_days"`
	MinAdvanceHours     int            `db:"min_advance_hours"`
	AllowedRoles        pq.StringArray `db:"allowed_roles"`
	OperatingHours      types.JSONText `db:"operating_hours"`
	MaintenanceSchedule types.JSONText `db:"maintenance_schedule"`
	CreatedAt           time.Time      `db:"created_at"`
	UpdatedAt           time.Time      `db:"updated_at"`
}

func (r facilityRow) toModel() (*models.Facility, error) {
	facility := &models.Facility{
		ID:           r.ID,
		Name:         r.Name,
		Type:         r.Type,
		Description:  r.Description,
		Capacity:     r.Capacity,
		Availability: r.Availability,
		Timezone:     r.Timezone,
		BookingRules: models.BookingRules{
			MinDurationMinutes: r.MinDurationMinutes,
			MaxDurationMinutes: r.MaxDurationMinutes,
			AdvanceBookingDays: r.AdvanceBookingDays,
			MinAdvanceHours:    r.MinAdvanceHours,
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	for _, role := range r.AllowedRoles {
		facility.BookingRules.AllowedRoles = append(facility.BookingRules.AllowedRoles, models.UserRole(strings.ToUpper(role)))
	}
	if len(r.OperatingHours) > 0 {
		if err := json.Unmarshal(r.OperatingHours, &facility.OperatingHours); err != nil {
			return nil, fmt.Errorf("decode operating hours for facility %s: %w", r.ID, err)
		}
	}
	if len(r.MaintenanceSchedule) > 0 {
		if err := json.Unmarshal(r.MaintenanceSchedule, &facility.MaintenanceSchedule); err != nil {
			return nil, fmt.Errorf("decode maintenance schedule for facility %s: %w", r.ID, err)
		}
	}
	return facility, nil
}

// FacilityRepository reads facilities from the registry tables. The scheduler never writes them.
type FacilityRepository struct {
	db *sqlx.DB
}

// NewFacilityRepository creates a facility repository.
func NewFacilityRepository(db *sqlx.DB) *FacilityRepository {
	return &FacilityRepository{db: db}
}

// FindByID loads a facility. Missing rows surface as sql.ErrNoRows.
func (r *FacilityRepository) FindByID(ctx context.Context, id string) (*models.Facility, error) {
	query := `SELECT ` + facilityColumns + ` FROM facilities WHERE id = $1`
	var row facilityRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		return nil, err
	}
	return row.toModel()
}

// List returns facilities ordered by name.
func (r *FacilityRepository) List(ctx context.Context, filter models.FacilityFilter) ([]models.Facility, int, error) {
	base := "FROM facilities WHERE 1=1"
	var args []interface{}
	if filter.Type != "" {
		args = append(args, filter.Type)
		base += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if filter.AvailableOnly {
		base += " AND availability = TRUE"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY name ASC LIMIT %d OFFSET %d", facilityColumns, base, size, offset)
	var rows []facilityRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list facilities: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count facilities: %w", err)
	}

	facilities := make([]models.Facility, 0, len(rows))
	for _, row := range rows {
		facility, err := row.toModel()
		if err != nil {
			return nil, 0, err
		}
		facilities = append(facilities, *facility)
	}
	return facilities, total, nil
}
