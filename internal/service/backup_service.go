package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hw-lee/chulseok-api/internal/models"
	appErrors "github.com/hw-lee/chulseok-api/pkg/errors"
)

type backupRepository interface {
	Insert(ctx context.Context, backup *models.BackupFile) error
	List(ctx context.Context) ([]models.BackupFile, error)
	FindByID(ctx context.Context, id string) (*models.BackupFile, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type snapshotRestorer interface {
	Restore(ctx context.Context, payload *models.SnapshotPayload, opts models.RestoreOptions) (*models.RestoreStats, error)
}

type studentsLister interface {
	ListAll(ctx context.Context) ([]models.Student, error)
}

type attendanceLister interface {
	ListAll(ctx context.Context) ([]models.AttendanceEntry, error)
}

type settingsLister interface {
	ListAll(ctx context.Context) ([]models.Settings, error)
}

type payloadStore interface {
	Save(filename string, data []byte) (string, error)
	Read(filename string) ([]byte, error)
	Delete(filename string) error
}

// BackupService owns the snapshot lifecycle: export, checksum, retention
// pruning, integrity validation, and restore.
type BackupService struct {
	repo       backupRepository
	students   studentsLister
	attendance attendanceLister
	settings   settingsLister
	restorer   snapshotRestorer
	store      payloadStore
	notify     notifier
	retention  int
	logger     *zap.Logger
}

// NewBackupService constructs the backup service. A retention of zero or less
// disables pruning.
func NewBackupService(repo backupRepository, students studentsLister, attendance attendanceLister, settings settingsLister, restorer snapshotRestorer, store payloadStore, notify notifier, retention int, logger *zap.Logger) *BackupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BackupService{
		repo:       repo,
		students:   students,
		attendance: attendance,
		settings:   settings,
		restorer:   restorer,
		store:      store,
		notify:     notify,
		retention:  retention,
		logger:     logger,
	}
}

// CreateSnapshot exports the full dataset to a timestamped file, records its
// metadata with a SHA-256 checksum, prunes backups beyond the retention
// count, and emits a success notification.
func (s *BackupService) CreateSnapshot(ctx context.Context, backupType, description string) (*models.BackupFile, error) {
	if backupType != models.BackupTypeManual && backupType != models.BackupTypeAuto {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported backup type %q", backupType))
	}

	payload, err := s.buildPayload(ctx, backupType, description)
	if err != nil {
		s.emit(ctx, models.NotificationError, "backup failed", err.Error())
		return nil, err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to serialize snapshot")
	}

	now := time.Now()
	id := uuid.NewString()
	filename := fmt.Sprintf("backup-%s-%s-%s.json", backupType, now.UTC().Format("20060102-150405"), id[:8])
	if _, err := s.store.Save(filename, data); err != nil {
		s.emit(ctx, models.NotificationError, "backup failed", err.Error())
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write snapshot file")
	}

	sum := sha256.Sum256(data)
	backup := &models.BackupFile{
		ID:        id,
		Filename:  filename,
		CreatedAt: now.UnixMilli(),
		Size:      int64(len(data)),
		Checksum:  hex.EncodeToString(sum[:]),
	}
	if err := s.repo.Insert(ctx, backup); err != nil {
		s.emit(ctx, models.NotificationError, "backup failed", err.Error())
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record backup metadata")
	}

	if err := s.prune(ctx); err != nil {
		s.logger.Warn("backup retention pruning", zap.Error(err))
	}

	s.emit(ctx, models.NotificationSuccess, "backup created",
		fmt.Sprintf("%s backup %s (%d bytes)", backupType, filename, backup.Size))
	s.logger.Info("snapshot created",
		zap.String("backup_id", backup.ID),
		zap.String("filename", filename),
		zap.Int64("size", backup.Size),
		zap.String("type", backupType))
	return backup, nil
}

// List returns backup metadata, newest first.
func (s *BackupService) List(ctx context.Context) ([]models.BackupFile, error) {
	backups, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list backups")
	}
	return backups, nil
}

// Delete removes one backup record and its stored payload.
func (s *BackupService) Delete(ctx context.Context, id string) error {
	backup, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "backup not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load backup")
	}
	if _, err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete backup")
	}
	if err := s.store.Delete(backup.Filename); err != nil {
		s.logger.Warn("delete backup payload", zap.String("filename", backup.Filename), zap.Error(err))
	}
	return nil
}

// Load reads and decodes a stored snapshot, verifying its checksum against
// the recorded metadata.
func (s *BackupService) Load(ctx context.Context, id string) (*models.SnapshotPayload, error) {
	backup, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "backup not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load backup")
	}
	data, err := s.store.Read(backup.Filename)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read snapshot file")
	}

	sum := sha256.Sum256(data)
	if hex.EncodeToString(sum[:]) != backup.Checksum {
		return nil, appErrors.Clone(appErrors.ErrCorrupted, "snapshot checksum mismatch")
	}

	var payload models.SnapshotPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, appErrors.Clone(appErrors.ErrCorrupted, "snapshot is not valid JSON")
	}
	return &payload, nil
}

// ValidateIntegrity runs structural checks over a decoded snapshot. Findings
// are advisory: the caller decides whether to restore anyway.
func (s *BackupService) ValidateIntegrity(payload *models.SnapshotPayload) *models.IntegrityReport {
	report := &models.IntegrityReport{Valid: true, Issues: []string{}}
	addIssue := func(format string, args ...interface{}) {
		report.Valid = false
		report.Issues = append(report.Issues, fmt.Sprintf(format, args...))
	}

	if payload.Version == "" {
		addIssue("missing snapshot version")
	}
	if payload.ExportedAt <= 0 {
		addIssue("missing export timestamp")
	}

	studentIDs := make(map[string]bool, len(payload.Students))
	for i, student := range payload.Students {
		if student.ID == "" {
			addIssue("student at index %d has no id", i)
			continue
		}
		if studentIDs[student.ID] {
			addIssue("duplicate student id %s", student.ID)
		}
		studentIDs[student.ID] = true
		if student.Name == "" {
			addIssue("student %s has no name", student.ID)
		}
	}

	entryIDs := make(map[string]bool, len(payload.AttendanceEntries))
	for i, entry := range payload.AttendanceEntries {
		if entry.ID == "" {
			addIssue("attendance entry at index %d has no id", i)
			continue
		}
		if entryIDs[entry.ID] {
			addIssue("duplicate attendance entry id %s", entry.ID)
		}
		entryIDs[entry.ID] = true
		if !entry.Status.Valid() {
			addIssue("attendance entry %s has unsupported status %q", entry.ID, entry.Status)
		}
		if !dateFormat.MatchString(entry.Date) {
			addIssue("attendance entry %s has malformed date %q", entry.ID, entry.Date)
		}
		if entry.StudentID == "" {
			addIssue("attendance entry %s has no student id", entry.ID)
		} else if !studentIDs[entry.StudentID] {
			addIssue("attendance entry %s references unknown student %s", entry.ID, entry.StudentID)
		}
	}

	return report
}

// Restore applies a stored snapshot atomically via the snapshot repository.
// A structurally invalid payload is rejected before any record is touched.
func (s *BackupService) Restore(ctx context.Context, id string, opts models.RestoreOptions) (*models.RestoreStats, error) {
	payload, err := s.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.RestorePayload(ctx, payload, opts)
}

// RestorePayload applies an uploaded snapshot without a local metadata record.
func (s *BackupService) RestorePayload(ctx context.Context, payload *models.SnapshotPayload, opts models.RestoreOptions) (*models.RestoreStats, error) {
	report := s.ValidateIntegrity(payload)
	if !report.Valid {
		s.emit(ctx, models.NotificationError, "restore rejected",
			fmt.Sprintf("snapshot failed integrity validation with %d issue(s)", len(report.Issues)))
		return nil, appErrors.Clone(appErrors.ErrCorrupted,
			fmt.Sprintf("snapshot failed integrity validation: %d issue(s)", len(report.Issues)))
	}

	stats, err := s.restorer.Restore(ctx, payload, opts)
	if err != nil {
		s.emit(ctx, models.NotificationError, "restore failed", err.Error())
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to restore snapshot")
	}

	s.emit(ctx, models.NotificationSuccess, "restore complete",
		fmt.Sprintf("restored %d students and %d attendance entries", stats.Students, stats.Attendances))
	s.logger.Info("snapshot restored",
		zap.Int("students", stats.Students),
		zap.Int("attendances", stats.Attendances),
		zap.Bool("overwrite", opts.Overwrite),
		zap.Bool("skip_duplicates", opts.SkipDuplicates))
	return stats, nil
}

func (s *BackupService) buildPayload(ctx context.Context, backupType, description string) (*models.SnapshotPayload, error) {
	students, err := s.students.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export students")
	}
	entries, err := s.attendance.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export attendance entries")
	}
	settings, err := s.settings.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export settings")
	}

	return &models.SnapshotPayload{
		Students:          students,
		AttendanceEntries: entries,
		Settings:          settings,
		ExportedAt:        time.Now().UnixMilli(),
		Version:           models.SnapshotVersion,
		Description:       description,
		Type:              backupType,
	}, nil
}

// prune removes the oldest backups beyond the retention count, metadata and
// payload both.
func (s *BackupService) prune(ctx context.Context) error {
	if s.retention <= 0 {
		return nil
	}
	backups, err := s.repo.List(ctx)
	if err != nil {
		return err
	}
	if len(backups) <= s.retention {
		return nil
	}
	// List is newest first, so everything past the retention index goes.
	for _, backup := range backups[s.retention:] {
		if _, err := s.repo.Delete(ctx, backup.ID); err != nil {
			return err
		}
		if err := s.store.Delete(backup.Filename); err != nil {
			s.logger.Warn("delete pruned payload", zap.String("filename", backup.Filename), zap.Error(err))
		}
		s.logger.Info("pruned old backup", zap.String("backup_id", backup.ID), zap.String("filename", backup.Filename))
	}
	return nil
}

func (s *BackupService) emit(ctx context.Context, kind, title, message string) {
	if s.notify == nil {
		return
	}
	s.notify.Notify(ctx, kind, title, message)
}
