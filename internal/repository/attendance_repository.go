package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/hw-lee/chulseok-api/internal/models"
)

const attendanceColumns = "id, student_id, date, period, status, reason, timestamp, last_modified"

// AttendanceRepository handles persistence for attendance entries.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// FindByTriple looks up the unique entry for (student, date, period).
// Returns sql.ErrNoRows when the triple has no entry yet.
func (r *AttendanceRepository) FindByTriple(ctx context.Context, studentID, date string, period *int) (*models.AttendanceEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_entries WHERE student_id = ? AND date = ?`, attendanceColumns)
	args := []interface{}{studentID, date}
	if period == nil {
		query += " AND period IS NULL"
	} else {
		query += " AND period = ?"
		args = append(args, *period)
	}
	var entry models.AttendanceEntry
	if err := r.db.GetContext(ctx, &entry, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindByID returns one entry or sql.ErrNoRows.
func (r *AttendanceRepository) FindByID(ctx context.Context, id string) (*models.AttendanceEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_entries WHERE id = ?`, attendanceColumns)
	var entry models.AttendanceEntry
	if err := r.db.GetContext(ctx, &entry, r.db.Rebind(query), id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ListByDate returns every entry recorded on one calendar date.
func (r *AttendanceRepository) ListByDate(ctx context.Context, date string) ([]models.AttendanceEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_entries WHERE date = ?`, attendanceColumns)
	var entries []models.AttendanceEntry
	if err := r.db.SelectContext(ctx, &entries, r.db.Rebind(query), date); err != nil {
		return nil, fmt.Errorf("list attendance by date: %w", err)
	}
	return entries, nil
}

// ListByStudentAndDate returns a student's entries for one date.
func (r *AttendanceRepository) ListByStudentAndDate(ctx context.Context, studentID, date string) ([]models.AttendanceEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_entries WHERE student_id = ? AND date = ?`, attendanceColumns)
	var entries []models.AttendanceEntry
	if err := r.db.SelectContext(ctx, &entries, r.db.Rebind(query), studentID, date); err != nil {
		return nil, fmt.Errorf("list attendance by student and date: %w", err)
	}
	return entries, nil
}

// ListByRange returns every entry inside the date range without pagination.
// Exports render whole ranges at once and must not be cut off at a page size.
func (r *AttendanceRepository) ListByRange(ctx context.Context, dateFrom, dateTo string) ([]models.AttendanceEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_entries
		WHERE date >= ? AND date <= ?
		ORDER BY date, student_id, period`, attendanceColumns)

	var entries []models.AttendanceEntry
	if err := r.db.SelectContext(ctx, &entries, r.db.Rebind(query), dateFrom, dateTo); err != nil {
		return nil, fmt.Errorf("list attendance by range: %w", err)
	}
	return entries, nil
}

// ListByStudentRange returns a student's entries within an inclusive range.
func (r *AttendanceRepository) ListByStudentRange(ctx context.Context, studentID, dateFrom, dateTo string) ([]models.AttendanceEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_entries WHERE student_id = ? AND date >= ? AND date <= ? ORDER BY date`, attendanceColumns)
	var entries []models.AttendanceEntry
	if err := r.db.SelectContext(ctx, &entries, r.db.Rebind(query), studentID, dateFrom, dateTo); err != nil {
		return nil, fmt.Errorf("list attendance by student range: %w", err)
	}
	return entries, nil
}

// List returns filtered, paginated entries plus the unpaginated total.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceEntry, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.DateFrom != "" {
		where = append(where, "date >= ?")
		args = append(args, filter.DateFrom)
	}
	if filter.DateTo != "" {
		where = append(where, "date <= ?")
		args = append(args, filter.DateTo)
	}
	if filter.StudentID != "" {
		where = append(where, "student_id = ?")
		args = append(args, filter.StudentID)
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			placeholders[i] = "?"
			args = append(args, status)
		}
		where = append(where, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ", ")))
	}
	if len(filter.Periods) > 0 {
		placeholders := make([]string, len(filter.Periods))
		for i, period := range filter.Periods {
			placeholders[i] = "?"
			args = append(args, period)
		}
		where = append(where, fmt.Sprintf("(period IS NULL OR period IN (%s))", strings.Join(placeholders, ", ")))
	}
	whereClause := strings.Join(where, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM attendance_entries WHERE %s ORDER BY date DESC, period LIMIT %d OFFSET %d`,
		attendanceColumns, whereClause, size, offset)

	var entries []models.AttendanceEntry
	if err := r.db.SelectContext(ctx, &entries, r.db.Rebind(query), args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM attendance_entries WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(countQuery), args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}
	return entries, total, nil
}

// Insert stores a new entry.
func (r *AttendanceRepository) Insert(ctx context.Context, entry *models.AttendanceEntry) error {
	query := `INSERT INTO attendance_entries (id, student_id, date, period, status, reason, timestamp, last_modified)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		entry.ID, entry.StudentID, entry.Date, entry.Period, entry.Status,
		entry.Reason, entry.Timestamp, entry.LastModified); err != nil {
		return fmt.Errorf("insert attendance: %w", err)
	}
	return nil
}

// Update refreshes status, reason and last_modified, preserving the original
// id and timestamp.
func (r *AttendanceRepository) Update(ctx context.Context, id string, status models.AttendanceStatus, reason *string, lastModified int64) error {
	query := `UPDATE attendance_entries SET status = ?, reason = ?, last_modified = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), status, reason, lastModified, id); err != nil {
		return fmt.Errorf("update attendance: %w", err)
	}
	return nil
}

// Delete removes one entry, reporting whether a row existed.
func (r *AttendanceRepository) Delete(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM attendance_entries WHERE id = ?`), id)
	if err != nil {
		return false, fmt.Errorf("delete attendance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete attendance: %w", err)
	}
	return affected > 0, nil
}

// ListAll returns every entry for snapshots and integrity checks.
func (r *AttendanceRepository) ListAll(ctx context.Context) ([]models.AttendanceEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_entries ORDER BY date, student_id, period`, attendanceColumns)
	var entries []models.AttendanceEntry
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("list all attendance: %w", err)
	}
	return entries, nil
}
