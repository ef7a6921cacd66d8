package models

// SettingsID keys the singleton settings record.
const SettingsID = "default"

// Settings is the singleton application configuration record.
type Settings struct {
	ID                    string `db:"id" json:"id"`
	SchoolName            string `db:"school_name" json:"schoolName"`
	TeacherName           string `db:"teacher_name" json:"teacherName"`
	ClassNameDefault      string `db:"class_name_default" json:"classNameDefault"`
	AutobackupIntervalMin int    `db:"autobackup_interval_min" json:"autobackupIntervalMin"`
	BackupRetention       int    `db:"backup_retention" json:"backupRetention"`
	MaxPeriodsPerDay      int    `db:"max_periods_per_day" json:"maxPeriodsPerDay"`
	SchoolStartTime       string `db:"school_start_time" json:"schoolStartTime"`
	LateThresholdMin      int    `db:"late_threshold_min" json:"lateThresholdMin"`
	ExportFormat          string `db:"export_format" json:"exportFormat"`
}

// DefaultSettings returns the seed record created on first start.
func DefaultSettings() Settings {
	return Settings{
		ID:                    SettingsID,
		ClassNameDefault:      "6-1",
		AutobackupIntervalMin: 5,
		BackupRetention:       20,
		MaxPeriodsPerDay:      6,
		SchoolStartTime:       "09:00",
		LateThresholdMin:      10,
		ExportFormat:          "csvA",
	}
}
