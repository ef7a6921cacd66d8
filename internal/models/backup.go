package models

// Backup snapshot types.
const (
	BackupTypeManual = "manual"
	BackupTypeAuto   = "auto"
)

// SnapshotVersion tags the serialized payload format.
const SnapshotVersion = "1.0.0"

// BackupFile holds metadata for one stored snapshot. The payload itself lives
// in external storage under Filename.
type BackupFile struct {
	ID        string `db:"id" json:"id"`
	Filename  string `db:"filename" json:"filename"`
	CreatedAt int64  `db:"created_at" json:"createdAt"`
	Size      int64  `db:"size" json:"size"`
	Checksum  string `db:"checksum" json:"checksum"`
}

// SnapshotPayload is the full point-in-time export written to a backup file.
// The JSON shape is the interchange format other tools parse.
type SnapshotPayload struct {
	Students          []Student         `json:"students"`
	AttendanceEntries []AttendanceEntry `json:"attendanceEntries"`
	Settings          []Settings        `json:"settings"`
	ExportedAt        int64             `json:"exportedAt"`
	Version           string            `json:"version"`
	Description       string            `json:"description,omitempty"`
	Type              string            `json:"type,omitempty"`
}

// RestoreOptions control how an incoming snapshot is applied.
type RestoreOptions struct {
	Overwrite      bool `json:"overwrite"`
	SkipDuplicates bool `json:"skipDuplicates"`
}

// RestoreStats reports how many records a restore applied.
type RestoreStats struct {
	Students    int `json:"students"`
	Attendances int `json:"attendances"`
	Settings    int `json:"settings"`
}

// IntegrityReport carries advisory findings from snapshot validation. Issues
// are surfaced to the caller, who decides whether to proceed.
type IntegrityReport struct {
	Valid  bool     `json:"valid"`
	Issues []string `json:"issues"`
}
