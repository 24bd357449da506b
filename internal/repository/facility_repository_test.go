package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/facility-booking-api/internal/models"
)

var facilityRowColumns = []string{"id", "name", "type", "description", "capacity", "availability", "timezone",
	"min_duration_minutes", "max_duration_minutes", "advance_booking_days", "min_advance_hours", "allowed_roles",
	"operating_hours", "maintenance_schedule", "created_at", "updated_at"}

func newFacilityRepoMock(t *testing.T) (*FacilityRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewFacilityRepository(sqlx.NewDb(db, "sqlmock")), mock, func() { db.Close() }
}

func TestFacilityRepositoryFindByIDDecodesJSONColumns(t *testing.T) {
	repo, mock, cleanup := newFacilityRepoMock(t)
	defer cleanup()

	now := time.Now().UTC()
	rows := sqlmock.NewRows(facilityRowColumns).AddRow(
		"fac-1", "Main Pool", "pool", "", 20, true, "Asia/Jakarta",
		60, 120, 30, 2, "{resident,admin}",
		[]byte(`{"monday":{"start":"08:00","end":"20:00"}}`),
		[]byte(`[{"startDate":"2024-06-01T00:00:00Z","endDate":"2024-06-03T00:00:00Z","reason":"cleaning"}]`),
		now, now,
	)
	mock.ExpectQuery(regexp.QuoteMeta("FROM facilities WHERE id = $1")).
		WithArgs("fac-1").
		WillReturnRows(rows)

	facility, err := repo.FindByID(context.Background(), "fac-1")
	require.NoError(t, err)
	assert.Equal(t, 20, facility.Capacity)
	assert.Equal(t, []models.UserRole{models.RoleResident, models.RoleAdmin}, facility.BookingRules.AllowedRoles)
	assert.Equal(t, "20:00", facility.OperatingHours["monday"].End)
	require.Len(t, facility.MaintenanceSchedule, 1)
	assert.Equal(t, "cleaning", facility.MaintenanceSchedule[0].Reason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFacilityRepositoryFindByIDNotFound(t *testing.T) {
	repo, mock, cleanup := newFacilityRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("FROM facilities WHERE id = $1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestFacilityRepositoryList(t *testing.T) {
	repo, mock, cleanup := newFacilityRepoMock(t)
	defer cleanup()

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("FROM facilities WHERE 1=1 AND type = $1 AND availability = TRUE ORDER BY name ASC LIMIT 20 OFFSET 0")).
		WithArgs("court").
		WillReturnRows(sqlmock.NewRows(facilityRowColumns).AddRow(
			"fac-2", "Court A", "court", "", 4, true, "", 30, 90, 14, 1, "{}", []byte(`{}`), []byte(`[]`), now, now,
		))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM facilities")).
		WithArgs("court").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	facilities, total, err := repo.List(context.Background(), models.FacilityFilter{Type: "court", AvailableOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, facilities, 1)
	assert.Empty(t, facilities[0].BookingRules.AllowedRoles)
	assert.NoError(t, mock.ExpectationsWereMet())
}
