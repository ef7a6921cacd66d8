package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/hw-lee/chulseok-api/internal/models"
)

// StudentRepository handles persistence for roster records. Queries use `?`
// placeholders rebound per driver so the same code serves SQLite and Postgres.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the provided filter.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.ClassName != "" {
		where = append(where, "class_name = ?")
		args = append(args, filter.ClassName)
	}
	if filter.Active != nil {
		where = append(where, "active = ?")
		args = append(args, *filter.Active)
	}

	sortColumn := "number"
	if filter.SortBy == "name" {
		sortColumn = "name"
	}
	order := "ASC"
	if strings.EqualFold(filter.SortOrder, "desc") {
		order = "DESC"
	}

	query := fmt.Sprintf(`SELECT id, number, name, class_name, grade, active, created_at, updated_at
FROM students WHERE %s ORDER BY %s %s`, strings.Join(where, " AND "), sortColumn, order)

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// FindByID returns one student or sql.ErrNoRows.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	query := `SELECT id, number, name, class_name, grade, active, created_at, updated_at
FROM students WHERE id = ?`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, r.db.Rebind(query), id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindActiveByClassAndNumber looks up the active holder of a roll number
// within one class, excluding excludeID when non-empty.
func (r *StudentRepository) FindActiveByClassAndNumber(ctx context.Context, className string, number int, excludeID string) (*models.Student, error) {
	query := `SELECT id, number, name, class_name, grade, active, created_at, updated_at
FROM students WHERE class_name = ? AND number = ? AND active = ?`
	args := []interface{}{className, number, true}
	if excludeID != "" {
		query += " AND id <> ?"
		args = append(args, excludeID)
	}
	var student models.Student
	if err := r.db.GetContext(ctx, &student, r.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	return &student, nil
}

// Create inserts a new student row.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	query := `INSERT INTO students (id, number, name, class_name, grade, active, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		student.ID, student.Number, student.Name, student.ClassName, student.Grade,
		student.Active, student.CreatedAt, student.UpdatedAt); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update rewrites the full student row.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	query := `UPDATE students SET number = ?, name = ?, class_name = ?, grade = ?, active = ?, updated_at = ?
WHERE id = ?`
	res, err := r.db.ExecContext(ctx, r.db.Rebind(query),
		student.Number, student.Name, student.ClassName, student.Grade,
		student.Active, student.UpdatedAt, student.ID)
	if err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("update student %s: no row", student.ID)
	}
	return nil
}

// Deactivate flips the active flag without removing the row.
func (r *StudentRepository) Deactivate(ctx context.Context, id string, updatedAt int64) error {
	query := `UPDATE students SET active = ?, updated_at = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), false, updatedAt, id); err != nil {
		return fmt.Errorf("deactivate student: %w", err)
	}
	return nil
}

// ListAll returns every roster record, active or not, for snapshots and
// integrity checks.
func (r *StudentRepository) ListAll(ctx context.Context) ([]models.Student, error) {
	var students []models.Student
	query := `SELECT id, number, name, class_name, grade, active, created_at, updated_at FROM students ORDER BY class_name, number`
	if err := r.db.SelectContext(ctx, &students, query); err != nil {
		return nil, fmt.Errorf("list all students: %w", err)
	}
	return students, nil
}
