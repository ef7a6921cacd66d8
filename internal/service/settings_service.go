package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hw-lee/chulseok-api/internal/models"
	appErrors "github.com/hw-lee/chulseok-api/pkg/errors"
)

type settingsRepository interface {
	Get(ctx context.Context) (*models.Settings, error)
	Put(ctx context.Context, settings *models.Settings) error
	EnsureDefaults(ctx context.Context) (*models.Settings, error)
}

// SettingsInput carries the editable settings fields.
type SettingsInput struct {
	SchoolName            string `json:"schoolName"`
	TeacherName           string `json:"teacherName"`
	ClassNameDefault      string `json:"classNameDefault"`
	AutobackupIntervalMin int    `json:"autobackupIntervalMin" validate:"min=0"`
	BackupRetention       int    `json:"backupRetention" validate:"min=1,max=100"`
	MaxPeriodsPerDay      int    `json:"maxPeriodsPerDay" validate:"min=1,max=10"`
	SchoolStartTime       string `json:"schoolStartTime"`
	LateThresholdMin      int    `json:"lateThresholdMin" validate:"min=0"`
	ExportFormat          string `json:"exportFormat" validate:"oneof=csvA csvB"`
}

// SettingsService manages the singleton settings record.
type SettingsService struct {
	repo     settingsRepository
	history  historyAppender
	validate *validator.Validate
	logger   *zap.Logger
}

// NewSettingsService constructs the settings service.
func NewSettingsService(repo settingsRepository, history historyAppender, logger *zap.Logger) *SettingsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsService{repo: repo, history: history, validate: validator.New(), logger: logger}
}

// Get returns the current settings, seeding defaults on first access.
func (s *SettingsService) Get(ctx context.Context) (*models.Settings, error) {
	settings, err := s.repo.EnsureDefaults(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load settings")
	}
	return settings, nil
}

// Update replaces the settings record and records the transition.
func (s *SettingsService) Update(ctx context.Context, input SettingsInput) (*models.Settings, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	existing, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	updated := models.Settings{
		ID:                    models.SettingsID,
		SchoolName:            input.SchoolName,
		TeacherName:           input.TeacherName,
		ClassNameDefault:      input.ClassNameDefault,
		AutobackupIntervalMin: input.AutobackupIntervalMin,
		BackupRetention:       input.BackupRetention,
		MaxPeriodsPerDay:      input.MaxPeriodsPerDay,
		SchoolStartTime:       input.SchoolStartTime,
		LateThresholdMin:      input.LateThresholdMin,
		ExportFormat:          input.ExportFormat,
	}
	if err := s.repo.Put(ctx, &updated); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save settings")
	}

	changes, err := json.Marshal(map[string]interface{}{"from": existing, "to": updated})
	if err == nil {
		log := &models.HistoryLog{
			ID:         uuid.NewString(),
			Action:     models.HistoryActionUpdate,
			EntityType: models.EntitySettings,
			EntityID:   models.SettingsID,
			Changes:    changes,
			Timestamp:  time.Now().UnixMilli(),
		}
		if err := s.history.Insert(ctx, log); err != nil {
			s.logger.Warn("append history record", zap.Error(err))
		}
	}
	return &updated, nil
}
