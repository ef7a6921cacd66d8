package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/hw-lee/chulseok-api/internal/models"
)

const settingsColumns = `id, school_name, teacher_name, class_name_default, autobackup_interval_min,
backup_retention, max_periods_per_day, school_start_time, late_threshold_min, export_format`

// SettingsRepository persists the singleton settings record.
type SettingsRepository struct {
	db *sqlx.DB
}

// NewSettingsRepository constructs the repository.
func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the settings record keyed by models.SettingsID.
func (r *SettingsRepository) Get(ctx context.Context) (*models.Settings, error) {
	query := fmt.Sprintf(`SELECT %s FROM settings WHERE id = ?`, settingsColumns)
	var settings models.Settings
	if err := r.db.GetContext(ctx, &settings, r.db.Rebind(query), models.SettingsID); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Put inserts or replaces the settings record.
func (r *SettingsRepository) Put(ctx context.Context, settings *models.Settings) error {
	del := `DELETE FROM settings WHERE id = ?`
	ins := `INSERT INTO settings (` + settingsColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settings put: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if _, err := tx.ExecContext(ctx, r.db.Rebind(del), settings.ID); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	if _, err := tx.ExecContext(ctx, r.db.Rebind(ins),
		settings.ID, settings.SchoolName, settings.TeacherName, settings.ClassNameDefault,
		settings.AutobackupIntervalMin, settings.BackupRetention, settings.MaxPeriodsPerDay,
		settings.SchoolStartTime, settings.LateThresholdMin, settings.ExportFormat); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settings put: %w", err)
	}
	committed = true
	return nil
}

// EnsureDefaults seeds the default record when no settings exist yet.
func (r *SettingsRepository) EnsureDefaults(ctx context.Context) (*models.Settings, error) {
	settings, err := r.Get(ctx)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	seeded := models.DefaultSettings()
	if err := r.Put(ctx, &seeded); err != nil {
		return nil, err
	}
	return &seeded, nil
}

// ListAll returns settings as a slice for the snapshot payload shape.
func (r *SettingsRepository) ListAll(ctx context.Context) ([]models.Settings, error) {
	var all []models.Settings
	query := fmt.Sprintf(`SELECT %s FROM settings`, settingsColumns)
	if err := r.db.SelectContext(ctx, &all, query); err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	return all, nil
}
