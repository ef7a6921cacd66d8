package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hw-lee/chulseok-api/internal/models"
)

type fakeSettingsRepo struct {
	settings *models.Settings
}

func (f *fakeSettingsRepo) Get(_ context.Context) (*models.Settings, error) {
	clone := *f.settings
	return &clone, nil
}

func (f *fakeSettingsRepo) Put(_ context.Context, settings *models.Settings) error {
	clone := *settings
	f.settings = &clone
	return nil
}

func (f *fakeSettingsRepo) EnsureDefaults(_ context.Context) (*models.Settings, error) {
	if f.settings == nil {
		defaults := models.DefaultSettings()
		f.settings = &defaults
	}
	clone := *f.settings
	return &clone, nil
}

func TestSettingsGetSeedsDefaults(t *testing.T) {
	repo := &fakeSettingsRepo{}
	svc := NewSettingsService(repo, &fakeHistory{}, nil)

	settings, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.SettingsID, settings.ID)
	assert.Equal(t, 20, settings.BackupRetention)
	assert.Equal(t, 6, settings.MaxPeriodsPerDay)
}

func TestSettingsUpdate(t *testing.T) {
	repo := &fakeSettingsRepo{}
	history := &fakeHistory{}
	svc := NewSettingsService(repo, history, nil)
	ctx := context.Background()

	updated, err := svc.Update(ctx, SettingsInput{
		SchoolName:            "Hanbit Elementary",
		TeacherName:           "Ms. Jang",
		ClassNameDefault:      "3-2",
		AutobackupIntervalMin: 10,
		BackupRetention:       30,
		MaxPeriodsPerDay:      7,
		SchoolStartTime:       "08:40",
		LateThresholdMin:      10,
		ExportFormat:          "csvB",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hanbit Elementary", updated.SchoolName)
	assert.Equal(t, 30, updated.BackupRetention)
	assert.Equal(t, []string{"update"}, history.actions())

	stored, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "csvB", stored.ExportFormat)
}

func TestSettingsUpdateValidation(t *testing.T) {
	svc := NewSettingsService(&fakeSettingsRepo{}, &fakeHistory{}, nil)
	ctx := context.Background()

	_, err := svc.Update(ctx, SettingsInput{BackupRetention: 0, MaxPeriodsPerDay: 6, ExportFormat: "csvA"})
	assert.Error(t, err, "retention below 1 is rejected")

	_, err = svc.Update(ctx, SettingsInput{BackupRetention: 20, MaxPeriodsPerDay: 11, ExportFormat: "csvA"})
	assert.Error(t, err, "periods above 10 are rejected")

	_, err = svc.Update(ctx, SettingsInput{BackupRetention: 20, MaxPeriodsPerDay: 6, ExportFormat: "xlsx"})
	assert.Error(t, err, "unknown export format is rejected")
}
