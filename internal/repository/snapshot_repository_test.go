package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hw-lee/chulseok-api/internal/models"
)

func TestSnapshotRepositoryRestoreOverwrite(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSnapshotRepository(db)

	payload := &models.SnapshotPayload{
		Students: []models.Student{
			{ID: "s1", Number: 1, Name: "Kim", ClassName: "3-2", Grade: 3, Active: true, CreatedAt: 1, UpdatedAt: 1},
		},
		AttendanceEntries: []models.AttendanceEntry{
			{ID: "a1", StudentID: "s1", Date: "2026-03-02", Status: models.StatusPresent, Timestamp: 1, LastModified: 1},
		},
		ExportedAt: 1700000000000,
		Version:    models.SnapshotVersion,
	}

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM attendance_entries`).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`DELETE FROM students`).WillReturnResult(sqlmock.NewResult(0, 2))

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM students WHERE id = \?`).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`INSERT INTO students`).
		WithArgs("s1", 1, "Kim", "3-2", 3, true, int64(1), int64(1)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM attendance_entries WHERE id = \?`).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`INSERT INTO attendance_entries`).
		WithArgs("a1", "s1", "2026-03-02", nil, "present", nil, int64(1), int64(1)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectExec(`INSERT INTO history_logs`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	stats, err := repo.Restore(context.Background(), payload, models.RestoreOptions{Overwrite: true})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Students)
	assert.Equal(t, 1, stats.Attendances)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepositoryRestoreSkipDuplicates(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSnapshotRepository(db)

	payload := &models.SnapshotPayload{
		Students: []models.Student{
			{ID: "s1", Number: 1, Name: "Kim", ClassName: "3-2", Grade: 3, Active: true, CreatedAt: 1, UpdatedAt: 1},
		},
		ExportedAt: 1700000000000,
		Version:    models.SnapshotVersion,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM students WHERE id = \?`).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectExec(`INSERT INTO history_logs`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	stats, err := repo.Restore(context.Background(), payload, models.RestoreOptions{SkipDuplicates: true})
	require.NoError(t, err)
	assert.Zero(t, stats.Students, "existing record is left untouched")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepositoryRestoreRollsBackOnFailure(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSnapshotRepository(db)

	payload := &models.SnapshotPayload{
		Students: []models.Student{
			{ID: "s1", Number: 1, Name: "Kim", ClassName: "3-2", Grade: 3, Active: true, CreatedAt: 1, UpdatedAt: 1},
		},
		ExportedAt: 1700000000000,
		Version:    models.SnapshotVersion,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM students WHERE id = \?`).
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`INSERT INTO students`).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := repo.Restore(context.Background(), payload, models.RestoreOptions{})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotRepositoryReorderStudents(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSnapshotRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE students SET number = \?, updated_at = \? WHERE id = \?`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE students SET number = \?, updated_at = \? WHERE id = \?`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO history_logs`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.ReorderStudents(context.Background(), "3-2", []RollAssignment{
		{StudentID: "s1", Number: 1},
		{StudentID: "s2", Number: 2},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
