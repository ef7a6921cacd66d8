package database

import (
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Statements are restricted to the SQL dialect both engines accept.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS students (
		id TEXT PRIMARY KEY,
		number INTEGER NOT NULL,
		name TEXT NOT NULL,
		class_name TEXT NOT NULL,
		grade INTEGER NOT NULL,
		active BOOLEAN NOT NULL,
		created_at BIGINT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_students_class ON students (class_name, number)`,
	`CREATE TABLE IF NOT EXISTS attendance_entries (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		date TEXT NOT NULL,
		period INTEGER,
		status TEXT NOT NULL,
		reason TEXT,
		timestamp BIGINT NOT NULL,
		last_modified BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_student_date ON attendance_entries (student_id, date)`,
	`CREATE INDEX IF NOT EXISTS idx_attendance_date ON attendance_entries (date)`,
	`CREATE TABLE IF NOT EXISTS history_logs (
		id TEXT PRIMARY KEY,
		action TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		changes TEXT NOT NULL,
		timestamp BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_history_timestamp ON history_logs (timestamp)`,
	`CREATE TABLE IF NOT EXISTS backup_files (
		id TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		size BIGINT NOT NULL,
		checksum TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		timestamp BIGINT NOT NULL,
		read BOOLEAN NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		id TEXT PRIMARY KEY,
		school_name TEXT NOT NULL,
		teacher_name TEXT NOT NULL,
		class_name_default TEXT NOT NULL,
		autobackup_interval_min INTEGER NOT NULL,
		backup_retention INTEGER NOT NULL,
		max_periods_per_day INTEGER NOT NULL,
		school_start_time TEXT NOT NULL,
		late_threshold_min INTEGER NOT NULL,
		export_format TEXT NOT NULL
	)`,
}

// Migrate creates the collections when they are missing. Uniqueness of the
// (student, date, period) triple and of active roll numbers is enforced in
// the services, since both rules are scoped in ways a plain unique index
// cannot express across engines.
func Migrate(db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}
