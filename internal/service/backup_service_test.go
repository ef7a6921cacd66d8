package service

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hw-lee/chulseok-api/internal/models"
)

// fakeBackupRepo keeps insertion order so List can return newest first the way
// the real repository does.
type fakeBackupRepo struct {
	order   []string
	backups map[string]*models.BackupFile
}

func newFakeBackupRepo() *fakeBackupRepo {
	return &fakeBackupRepo{backups: make(map[string]*models.BackupFile)}
}

func (f *fakeBackupRepo) Insert(_ context.Context, backup *models.BackupFile) error {
	clone := *backup
	f.backups[backup.ID] = &clone
	f.order = append(f.order, backup.ID)
	return nil
}

func (f *fakeBackupRepo) List(_ context.Context) ([]models.BackupFile, error) {
	out := make([]models.BackupFile, 0, len(f.order))
	for i := len(f.order) - 1; i >= 0; i-- {
		if backup, ok := f.backups[f.order[i]]; ok {
			out = append(out, *backup)
		}
	}
	return out, nil
}

func (f *fakeBackupRepo) FindByID(_ context.Context, id string) (*models.BackupFile, error) {
	backup, ok := f.backups[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *backup
	return &clone, nil
}

func (f *fakeBackupRepo) Delete(_ context.Context, id string) (bool, error) {
	if _, ok := f.backups[id]; !ok {
		return false, nil
	}
	delete(f.backups, id)
	return true, nil
}

type fakeStore struct {
	files map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{files: make(map[string][]byte)}
}

func (f *fakeStore) Save(filename string, data []byte) (string, error) {
	f.files[filename] = data
	return filename, nil
}

func (f *fakeStore) Read(filename string) ([]byte, error) {
	data, ok := f.files[filename]
	if !ok {
		return nil, fmt.Errorf("file %s not found", filename)
	}
	return data, nil
}

func (f *fakeStore) Delete(filename string) error {
	delete(f.files, filename)
	return nil
}

type fakeRestorer struct {
	lastPayload *models.SnapshotPayload
	lastOpts    models.RestoreOptions
}

func (f *fakeRestorer) Restore(_ context.Context, payload *models.SnapshotPayload, opts models.RestoreOptions) (*models.RestoreStats, error) {
	f.lastPayload = payload
	f.lastOpts = opts
	return &models.RestoreStats{
		Students:    len(payload.Students),
		Attendances: len(payload.AttendanceEntries),
		Settings:    len(payload.Settings),
	}, nil
}

type fakeSettingsLister struct{}

func (fakeSettingsLister) ListAll(_ context.Context) ([]models.Settings, error) {
	defaults := models.DefaultSettings()
	return []models.Settings{defaults}, nil
}

func newTestBackupService(repo *fakeBackupRepo, store *fakeStore, restorer *fakeRestorer, retention int) *BackupService {
	students := newFakeStudentRepo()
	students.students["s1"] = &models.Student{ID: "s1", Number: 1, Name: "Kim", ClassName: "3-2", Grade: 3, Active: true}
	attendance := newFakeAttendanceRepo()
	return NewBackupService(repo, students, &listAllAdapter{attendance}, fakeSettingsLister{}, restorer, store, nil, retention, nil)
}

// listAllAdapter exposes the fake repo's entries through the lister shape.
type listAllAdapter struct {
	repo *fakeAttendanceRepo
}

func (a *listAllAdapter) ListAll(_ context.Context) ([]models.AttendanceEntry, error) {
	var out []models.AttendanceEntry
	for _, entry := range a.repo.entries {
		out = append(out, *entry)
	}
	return out, nil
}

func TestCreateSnapshot(t *testing.T) {
	repo := newFakeBackupRepo()
	store := newFakeStore()
	svc := newTestBackupService(repo, store, &fakeRestorer{}, 20)

	backup, err := svc.CreateSnapshot(context.Background(), models.BackupTypeManual, "before term break")
	require.NoError(t, err)

	data, ok := store.files[backup.Filename]
	require.True(t, ok, "payload written to storage")
	assert.Equal(t, int64(len(data)), backup.Size)

	sum := sha256.Sum256(data)
	assert.Equal(t, hex.EncodeToString(sum[:]), backup.Checksum)

	var payload models.SnapshotPayload
	require.NoError(t, json.Unmarshal(data, &payload))
	assert.Equal(t, models.SnapshotVersion, payload.Version)
	assert.Equal(t, models.BackupTypeManual, payload.Type)
	assert.Equal(t, "before term break", payload.Description)
	assert.Len(t, payload.Students, 1)
	assert.Len(t, payload.Settings, 1)
	assert.Positive(t, payload.ExportedAt)
}

func TestCreateSnapshotRejectsUnknownType(t *testing.T) {
	svc := newTestBackupService(newFakeBackupRepo(), newFakeStore(), &fakeRestorer{}, 20)
	_, err := svc.CreateSnapshot(context.Background(), "hourly", "")
	assert.Error(t, err)
}

func TestRetentionPrunesOldestFirst(t *testing.T) {
	repo := newFakeBackupRepo()
	store := newFakeStore()
	svc := newTestBackupService(repo, store, &fakeRestorer{}, 3)
	ctx := context.Background()

	ids := make([]string, 0, 5)
	for i := 0; i < 5; i++ {
		backup, err := svc.CreateSnapshot(ctx, models.BackupTypeAuto, fmt.Sprintf("cycle %d", i))
		require.NoError(t, err)
		// Distinct timestamps keep the ordering deterministic.
		repo.backups[backup.ID].CreatedAt = int64(1000 + i)
		ids = append(ids, backup.ID)
	}

	backups, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, backups, 3, "retention keeps the newest three")

	kept := make(map[string]bool)
	for _, backup := range backups {
		kept[backup.ID] = true
	}
	assert.False(t, kept[ids[0]])
	assert.False(t, kept[ids[1]])
	assert.True(t, kept[ids[2]])
	assert.True(t, kept[ids[3]])
	assert.True(t, kept[ids[4]])
	assert.Len(t, store.files, 3, "pruned payloads are deleted from storage")
}

func TestLoadDetectsTampering(t *testing.T) {
	repo := newFakeBackupRepo()
	store := newFakeStore()
	svc := newTestBackupService(repo, store, &fakeRestorer{}, 20)
	ctx := context.Background()

	backup, err := svc.CreateSnapshot(ctx, models.BackupTypeManual, "")
	require.NoError(t, err)

	loaded, err := svc.Load(ctx, backup.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SnapshotVersion, loaded.Version)

	store.files[backup.Filename] = append(store.files[backup.Filename], ' ')
	_, err = svc.Load(ctx, backup.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum")
}

func TestValidateIntegrity(t *testing.T) {
	svc := newTestBackupService(newFakeBackupRepo(), newFakeStore(), &fakeRestorer{}, 20)

	valid := &models.SnapshotPayload{
		Students: []models.Student{{ID: "s1", Name: "Kim"}},
		AttendanceEntries: []models.AttendanceEntry{
			{ID: "a1", StudentID: "s1", Date: "2026-03-02", Status: models.StatusPresent},
		},
		ExportedAt: 1700000000000,
		Version:    models.SnapshotVersion,
	}
	report := svc.ValidateIntegrity(valid)
	assert.True(t, report.Valid)
	assert.Empty(t, report.Issues)

	broken := &models.SnapshotPayload{
		Students: []models.Student{
			{ID: "s1", Name: "Kim"},
			{ID: "s1", Name: "Kim again"},
		},
		AttendanceEntries: []models.AttendanceEntry{
			{ID: "a1", StudentID: "ghost", Date: "2026/03/02", Status: "sick"},
		},
		ExportedAt: 1700000000000,
		Version:    models.SnapshotVersion,
	}
	report = svc.ValidateIntegrity(broken)
	assert.False(t, report.Valid)
	assert.Len(t, report.Issues, 4, "duplicate id, unknown student, bad date, bad status")
}

func TestRestoreRejectsCorruptPayload(t *testing.T) {
	restorer := &fakeRestorer{}
	svc := newTestBackupService(newFakeBackupRepo(), newFakeStore(), restorer, 20)

	_, err := svc.RestorePayload(context.Background(), &models.SnapshotPayload{}, models.RestoreOptions{})
	require.Error(t, err)
	assert.Nil(t, restorer.lastPayload, "restore never reaches the repository")
}

func TestRestorePassesOptionsThrough(t *testing.T) {
	restorer := &fakeRestorer{}
	svc := newTestBackupService(newFakeBackupRepo(), newFakeStore(), restorer, 20)

	payload := &models.SnapshotPayload{
		Students:   []models.Student{{ID: "s1", Name: "Kim"}},
		ExportedAt: 1700000000000,
		Version:    models.SnapshotVersion,
	}
	stats, err := svc.RestorePayload(context.Background(), payload, models.RestoreOptions{Overwrite: true})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Students)
	assert.True(t, restorer.lastOpts.Overwrite)
}

func TestDeleteBackupRemovesPayload(t *testing.T) {
	repo := newFakeBackupRepo()
	store := newFakeStore()
	svc := newTestBackupService(repo, store, &fakeRestorer{}, 20)
	ctx := context.Background()

	backup, err := svc.CreateSnapshot(ctx, models.BackupTypeManual, "")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, backup.ID))
	assert.Empty(t, store.files)

	err = svc.Delete(ctx, backup.ID)
	assert.Error(t, err)
}
