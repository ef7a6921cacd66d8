package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/hw-lee/chulseok-api/internal/models"
)

// SnapshotRepository owns the two multi-record transactional paths: restoring
// a snapshot and reassigning roll numbers. Either every record is applied or
// none is.
type SnapshotRepository struct {
	db *sqlx.DB
}

// NewSnapshotRepository constructs the repository.
func NewSnapshotRepository(db *sqlx.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// Restore applies a snapshot payload atomically. With Overwrite set, existing
// student and attendance records are cleared first; settings are preserved.
// With SkipDuplicates set, records whose id already exists are left untouched;
// otherwise incoming records replace same-id rows.
func (r *SnapshotRepository) Restore(ctx context.Context, payload *models.SnapshotPayload, opts models.RestoreOptions) (*models.RestoreStats, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin restore: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if opts.Overwrite {
		if _, err := tx.ExecContext(ctx, `DELETE FROM attendance_entries`); err != nil {
			return nil, fmt.Errorf("clear attendance: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM students`); err != nil {
			return nil, fmt.Errorf("clear students: %w", err)
		}
	}

	stats := &models.RestoreStats{}

	for i := range payload.Students {
		applied, err := r.restoreStudent(ctx, tx, &payload.Students[i], opts.SkipDuplicates)
		if err != nil {
			return nil, err
		}
		if applied {
			stats.Students++
		}
	}

	for i := range payload.AttendanceEntries {
		applied, err := r.restoreEntry(ctx, tx, &payload.AttendanceEntries[i], opts.SkipDuplicates)
		if err != nil {
			return nil, err
		}
		if applied {
			stats.Attendances++
		}
	}

	for i := range payload.Settings {
		if err := r.restoreSettings(ctx, tx, &payload.Settings[i]); err != nil {
			return nil, err
		}
		stats.Settings++
	}

	changes, _ := json.Marshal(map[string]interface{}{
		"studentsCount":    stats.Students,
		"attendancesCount": stats.Attendances,
		"sourceExportedAt": payload.ExportedAt,
		"overwrite":        opts.Overwrite,
		"skipDuplicates":   opts.SkipDuplicates,
	})
	if err := r.appendHistory(ctx, tx, models.HistoryActionBulkImport, models.EntityStudent, "restore", changes); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit restore: %w", err)
	}
	committed = true
	return stats, nil
}

func (r *SnapshotRepository) restoreStudent(ctx context.Context, tx *sqlx.Tx, student *models.Student, skipDuplicates bool) (bool, error) {
	var count int
	if err := tx.GetContext(ctx, &count, r.db.Rebind(`SELECT COUNT(*) FROM students WHERE id = ?`), student.ID); err != nil {
		return false, fmt.Errorf("check student %s: %w", student.ID, err)
	}
	if count > 0 {
		if skipDuplicates {
			return false, nil
		}
		query := `UPDATE students SET number = ?, name = ?, class_name = ?, grade = ?, active = ?, created_at = ?, updated_at = ?
WHERE id = ?`
		if _, err := tx.ExecContext(ctx, r.db.Rebind(query),
			student.Number, student.Name, student.ClassName, student.Grade,
			student.Active, student.CreatedAt, student.UpdatedAt, student.ID); err != nil {
			return false, fmt.Errorf("restore student %s: %w", student.ID, err)
		}
		return true, nil
	}
	query := `INSERT INTO students (id, number, name, class_name, grade, active, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, r.db.Rebind(query),
		student.ID, student.Number, student.Name, student.ClassName, student.Grade,
		student.Active, student.CreatedAt, student.UpdatedAt); err != nil {
		return false, fmt.Errorf("restore student %s: %w", student.ID, err)
	}
	return true, nil
}

func (r *SnapshotRepository) restoreEntry(ctx context.Context, tx *sqlx.Tx, entry *models.AttendanceEntry, skipDuplicates bool) (bool, error) {
	var count int
	if err := tx.GetContext(ctx, &count, r.db.Rebind(`SELECT COUNT(*) FROM attendance_entries WHERE id = ?`), entry.ID); err != nil {
		return false, fmt.Errorf("check attendance %s: %w", entry.ID, err)
	}
	if count > 0 {
		if skipDuplicates {
			return false, nil
		}
		query := `UPDATE attendance_entries SET student_id = ?, date = ?, period = ?, status = ?, reason = ?, timestamp = ?, last_modified = ?
WHERE id = ?`
		if _, err := tx.ExecContext(ctx, r.db.Rebind(query),
			entry.StudentID, entry.Date, entry.Period, entry.Status, entry.Reason,
			entry.Timestamp, entry.LastModified, entry.ID); err != nil {
			return false, fmt.Errorf("restore attendance %s: %w", entry.ID, err)
		}
		return true, nil
	}
	query := `INSERT INTO attendance_entries (id, student_id, date, period, status, reason, timestamp, last_modified)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, r.db.Rebind(query),
		entry.ID, entry.StudentID, entry.Date, entry.Period, entry.Status,
		entry.Reason, entry.Timestamp, entry.LastModified); err != nil {
		return false, fmt.Errorf("restore attendance %s: %w", entry.ID, err)
	}
	return true, nil
}

func (r *SnapshotRepository) restoreSettings(ctx context.Context, tx *sqlx.Tx, settings *models.Settings) error {
	if _, err := tx.ExecContext(ctx, r.db.Rebind(`DELETE FROM settings WHERE id = ?`), settings.ID); err != nil {
		return fmt.Errorf("restore settings: %w", err)
	}
	query := `INSERT INTO settings (` + settingsColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, r.db.Rebind(query),
		settings.ID, settings.SchoolName, settings.TeacherName, settings.ClassNameDefault,
		settings.AutobackupIntervalMin, settings.BackupRetention, settings.MaxPeriodsPerDay,
		settings.SchoolStartTime, settings.LateThresholdMin, settings.ExportFormat); err != nil {
		return fmt.Errorf("restore settings: %w", err)
	}
	return nil
}

// RollAssignment pairs a student with their new roll number.
type RollAssignment struct {
	StudentID string
	Number    int
}

// ReorderStudents rewrites roll numbers for a class in one transaction.
func (r *SnapshotRepository) ReorderStudents(ctx context.Context, className string, assignments []RollAssignment) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reorder: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UnixMilli()
	for _, assignment := range assignments {
		query := `UPDATE students SET number = ?, updated_at = ? WHERE id = ?`
		if _, err := tx.ExecContext(ctx, r.db.Rebind(query), assignment.Number, now, assignment.StudentID); err != nil {
			return fmt.Errorf("reorder student %s: %w", assignment.StudentID, err)
		}
	}

	changes, _ := json.Marshal(map[string]interface{}{
		"className":      className,
		"reorderedCount": len(assignments),
	})
	if err := r.appendHistory(ctx, tx, models.HistoryActionBulkImport, models.EntityStudent, "reorder", changes); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reorder: %w", err)
	}
	committed = true
	return nil
}

func (r *SnapshotRepository) appendHistory(ctx context.Context, tx *sqlx.Tx, action, entityType, entityID string, changes []byte) error {
	query := `INSERT INTO history_logs (id, action, entity_type, entity_id, changes, timestamp)
VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, r.db.Rebind(query),
		uuid.NewString(), action, entityType, entityID, changes, time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("append restore history: %w", err)
	}
	return nil
}
