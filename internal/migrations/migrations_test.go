package migrations

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMigrator(t *testing.T, driver string) (*Migrator, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
		assert.NoError(t, mock.ExpectationsWereMet())
	})
	logger, _ := test.NewNullLogger()
	return New(db, driver, logger), mock
}

func expectVersion(mock sqlmock.Sqlmock, version interface{}) {
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS schema_migrations`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT MAX(version) FROM schema_migrations`)).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(version))
}

func TestMigrationsAreOrdered(t *testing.T) {
	ms := All()
	require.NotEmpty(t, ms)
	for i, m := range ms {
		assert.Equal(t, i+1, m.Version)
		for _, driver := range []string{"postgres", "mysql"} {
			assert.NotEmpty(t, m.Up[driver], "migration %d up for %s", m.Version, driver)
			assert.NotEmpty(t, m.Down[driver], "migration %d down for %s", m.Version, driver)
		}
	}
}

func TestTaskIDsAre64Bit(t *testing.T) {
	create := All()[0]
	assert.Contains(t, create.Up["postgres"], "id BIGSERIAL")
	assert.Contains(t, create.Up["mysql"], "id BIGINT")
	for _, stmt := range create.Up {
		assert.False(t, strings.Contains(stmt, " SERIAL "), stmt)
	}
}

func TestUpFromEmptySchema(t *testing.T) {
	m, mock := newMigrator(t, "postgres")
	expectVersion(mock, nil)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS tasks`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO schema_migrations (version, name) VALUES ($1, $2)`)).
		WithArgs(1, "create_tasks").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`ALTER TABLE tasks ADD COLUMN description TEXT NULL`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO schema_migrations`)).
		WithArgs(2, "add_task_description").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := m.Up(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestUpSkipsAppliedMigrations(t *testing.T) {
	m, mock := newMigrator(t, "mysql")
	expectVersion(mock, 1)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`ALTER TABLE tasks ADD COLUMN description`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`)).
		WithArgs(2, "add_task_description").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	n, err := m.Up(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUpRollsBackFailedMigration(t *testing.T) {
	m, mock := newMigrator(t, "postgres")
	expectVersion(mock, 1)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`ALTER TABLE tasks`)).WillReturnError(errors.New("column already exists"))
	mock.ExpectRollback()

	n, err := m.Up(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, n)
	assert.Contains(t, err.Error(), "add_task_description")
}

func TestDownRollsBackLatest(t *testing.T) {
	m, mock := newMigrator(t, "postgres")
	expectVersion(mock, 2)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`ALTER TABLE tasks DROP COLUMN description`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM schema_migrations WHERE version = $1`)).
		WithArgs(2).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	v, err := m.Down(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestDownWithNothingApplied(t *testing.T) {
	m, mock := newMigrator(t, "postgres")
	expectVersion(mock, nil)

	v, err := m.Down(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, v)
}

func TestUpReportsUnrecordedMySQLMigration(t *testing.T) {
	m, mock := newMigrator(t, "mysql")
	expectVersion(mock, 1)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`ALTER TABLE tasks ADD COLUMN description`)).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`)).
		WithArgs(2, "add_task_description").
		WillReturnError(errors.New("lock wait timeout exceeded"))
	mock.ExpectRollback()

	n, err := m.Up(context.Background())
	require.Error(t, err)
	assert.Equal(t, 0, n)
	assert.Contains(t, err.Error(), "migration 2 (add_task_description) failed")
	assert.Contains(t, err.Error(), "lock wait timeout")
}
