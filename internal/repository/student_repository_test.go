package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hw-lee/chulseok-api/internal/models"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func studentColumns() []string {
	return []string{"id", "number", "name", "class_name", "grade", "active", "created_at", "updated_at"}
}

func TestStudentRepositoryList(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewStudentRepository(db)

	rows := sqlmock.NewRows(studentColumns()).
		AddRow("s1", 1, "Kim", "3-2", 3, true, int64(1), int64(1)).
		AddRow("s2", 2, "Lee", "3-2", 3, true, int64(1), int64(1))

	mock.ExpectQuery(`SELECT id, number, name, class_name, grade, active, created_at, updated_at`).
		WithArgs("3-2", true).
		WillReturnRows(rows)

	active := true
	students, err := repo.List(context.Background(), models.StudentFilter{ClassName: "3-2", Active: &active})
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, "Kim", students[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryFindByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewStudentRepository(db)

	mock.ExpectQuery(`SELECT id, number, name, class_name, grade, active, created_at, updated_at`).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows(studentColumns()).
			AddRow("s1", 7, "Kim", "3-2", 3, true, int64(1), int64(1)))

	student, err := repo.FindByID(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 7, student.Number)

	mock.ExpectQuery(`SELECT id, number, name, class_name, grade, active, created_at, updated_at`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err = repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryFindActiveByClassAndNumber(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewStudentRepository(db)

	mock.ExpectQuery(`FROM students WHERE class_name = \? AND number = \? AND active = \? AND id <> \?`).
		WithArgs("3-2", 7, true, "s9").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindActiveByClassAndNumber(context.Background(), "3-2", 7, "s9")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewStudentRepository(db)

	query := `INSERT INTO students (id, number, name, class_name, grade, active, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	mock.ExpectExec(regexp.QuoteMeta(query)).
		WithArgs("s1", 7, "Kim", "3-2", 3, true, int64(100), int64(100)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.Create(context.Background(), &models.Student{
		ID: "s1", Number: 7, Name: "Kim", ClassName: "3-2", Grade: 3,
		Active: true, CreatedAt: 100, UpdatedAt: 100,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryUpdateMissingRow(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewStudentRepository(db)

	mock.ExpectExec(`UPDATE students SET`).
		WithArgs(7, "Kim", "3-2", 3, true, int64(200), "missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.Student{
		ID: "missing", Number: 7, Name: "Kim", ClassName: "3-2", Grade: 3,
		Active: true, UpdatedAt: 200,
	})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryDeactivate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewStudentRepository(db)

	mock.ExpectExec(`UPDATE students SET active = \?, updated_at = \? WHERE id = \?`).
		WithArgs(false, int64(300), "s1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Deactivate(context.Background(), "s1", 300)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
