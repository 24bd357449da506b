package database

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"testing/fstest"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadMigrationsEmbedded(t *testing.T) {
	migrations, err := LoadMigrations()
	require.NoError(t, err)
	require.Len(t, migrations, 3)
	assert.Equal(t, "0001_facilities", migrations[0].Version)
	assert.Equal(t, "0003_notification_outbox", migrations[2].Version)
	assert.Contains(t, migrations[1].SQL, "bookings_interval_check")
	assert.Contains(t, migrations[0].SQL, "CHECK (capacity >= 1)")
	assert.Contains(t, migrations[0].SQL, "min_duration_minutes <= max_duration_minutes")
	assert.Contains(t, migrations[2].SQL, "'dispatching'")
}

func TestLoadMigrationsOrdersAndSkipsNonSQL(t *testing.T) {
	fsys := fstest.MapFS{
		"m/0002_b.sql": {Data: []byte("SELECT 2;")},
		"m/0001_a.sql": {Data: []byte("SELECT 1;")},
		"m/README.md":  {Data: []byte("notes")},
		"m/0003_c.sql": {Data: []byte("SELECT 3;")},
		"m/sub/0.sql":  {Data: []byte("SELECT 0;")},
	}
	migrations, err := loadMigrations(fsys, "m")
	require.NoError(t, err)
	require.Len(t, migrations, 3)
	assert.Equal(t, []string{"0001_a", "0002_b", "0003_c"}, []string{migrations[0].Version, migrations[1].Version, migrations[2].Version})
}

func TestLoadMigrationsRejectsEmptyFile(t *testing.T) {
	_, err := loadMigrations(fstest.MapFS{"m/0001_a.sql": {Data: []byte("  \n")}}, "m")
	assert.Error(t, err)
}

func TestApplyMigrationsSkipsApplied(t *testing.T) {
	raw, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer raw.Close()
	db := sqlx.NewDb(raw, "sqlmock")

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("0001_a"))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE b")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_migrations (version) VALUES ($1)")).
		WithArgs("0002_b").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err = applyMigrations(context.Background(), db, []Migration{
		{Version: "0001_a", SQL: "CREATE TABLE a ()"},
		{Version: "0002_b", SQL: "CREATE TABLE b ()"},
	}, zap.NewNop())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyMigrationsRollsBackFailure(t *testing.T) {
	raw, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer raw.Close()
	db := sqlx.NewDb(raw, "sqlmock")

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE a")).WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	err = applyMigrations(context.Background(), db, []Migration{{Version: "0001_a", SQL: "CREATE TABLE a ()"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "0001_a")
	assert.NoError(t, mock.ExpectationsWereMet())
}
