package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hw-lee/chulseok-api/internal/models"
	"github.com/hw-lee/chulseok-api/internal/repository"
	appErrors "github.com/hw-lee/chulseok-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindActiveByClassAndNumber(ctx context.Context, className string, number int, excludeID string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	Deactivate(ctx context.Context, id string, updatedAt int64) error
	ListAll(ctx context.Context) ([]models.Student, error)
}

type rosterReorderer interface {
	ReorderStudents(ctx context.Context, className string, assignments []repository.RollAssignment) error
}

// StudentInput carries roster fields for create and update.
type StudentInput struct {
	Number    int    `json:"number" validate:"required,min=1"`
	Name      string `json:"name" validate:"required"`
	ClassName string `json:"className" validate:"required"`
	Grade     int    `json:"grade" validate:"required,min=1,max=12"`
}

// BulkAddFailure pairs a rejected roster input with its error message.
type BulkAddFailure struct {
	Input StudentInput `json:"input"`
	Error string       `json:"error"`
}

// BulkAddResult reports a batch roster import outcome.
type BulkAddResult struct {
	Success []models.Student `json:"success"`
	Failed  []BulkAddFailure `json:"failed"`
}

// StudentService manages the class roster. The one structural rule it guards:
// a roll number is held by at most one active student per class. Inactive
// students keep their number but do not block reuse.
type StudentService struct {
	repo      studentRepository
	reorderer rosterReorderer
	history   historyAppender
	notify    notifier
	validate  *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the student service. notify may be nil.
func NewStudentService(repo studentRepository, reorderer rosterReorderer, history historyAppender, notify notifier, logger *zap.Logger) *StudentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{
		repo:      repo,
		reorderer: reorderer,
		history:   history,
		notify:    notify,
		validate:  validator.New(),
		logger:    logger,
	}
}

// Add registers a new active student after checking the roll number is free
// within the class.
func (s *StudentService) Add(ctx context.Context, input StudentInput) (*models.Student, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if err := s.checkRollNumber(ctx, input.ClassName, input.Number, ""); err != nil {
		return nil, err
	}

	now := time.Now().UnixMilli()
	student := &models.Student{
		ID:        uuid.NewString(),
		Number:    input.Number,
		Name:      strings.TrimSpace(input.Name),
		ClassName: input.ClassName,
		Grade:     input.Grade,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, student); err != nil {
		s.emitError(ctx, "student create failed", err)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	s.appendHistory(ctx, models.HistoryActionCreate, student.ID, student)
	return student, nil
}

// Update rewrites roster fields for one student. Number changes are checked
// against the active holders of the target class.
func (s *StudentService) Update(ctx context.Context, id string, input StudentInput) (*models.Student, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if existing.Active {
		if err := s.checkRollNumber(ctx, input.ClassName, input.Number, id); err != nil {
			return nil, err
		}
	}

	updated := *existing
	updated.Number = input.Number
	updated.Name = strings.TrimSpace(input.Name)
	updated.ClassName = input.ClassName
	updated.Grade = input.Grade
	updated.UpdatedAt = time.Now().UnixMilli()

	if err := s.repo.Update(ctx, &updated); err != nil {
		s.emitError(ctx, "student update failed", err)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	s.appendHistory(ctx, models.HistoryActionUpdate, id, map[string]interface{}{
		"from": existing,
		"to":   updated,
	})
	return &updated, nil
}

// Deactivate marks a student inactive. Attendance history stays intact and
// the roll number becomes reusable.
func (s *StudentService) Deactivate(ctx context.Context, id string) error {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if !existing.Active {
		return nil
	}
	if err := s.repo.Deactivate(ctx, id, time.Now().UnixMilli()); err != nil {
		s.emitError(ctx, "student deactivate failed", err)
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate student")
	}
	s.appendHistory(ctx, models.HistoryActionDelete, id, map[string]interface{}{
		"name":      existing.Name,
		"className": existing.ClassName,
		"number":    existing.Number,
	})
	return nil
}

// Get returns one student by id.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// List returns students matching the filter. Name search is applied here as a
// case-insensitive substring match.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, error) {
	students, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	if filter.Search == "" {
		return students, nil
	}
	needle := strings.ToLower(strings.TrimSpace(filter.Search))
	matched := make([]models.Student, 0, len(students))
	for _, student := range students {
		if strings.Contains(strings.ToLower(student.Name), needle) {
			matched = append(matched, student)
		}
	}
	return matched, nil
}

// ClassStatistics aggregates roster counts per class label.
func (s *StudentService) ClassStatistics(ctx context.Context) ([]models.ClassStatistics, error) {
	students, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	byClass := make(map[string]*models.ClassStatistics)
	for _, student := range students {
		stats, ok := byClass[student.ClassName]
		if !ok {
			stats = &models.ClassStatistics{ClassName: student.ClassName}
			byClass[student.ClassName] = stats
		}
		stats.TotalStudents++
		if student.Active {
			stats.ActiveStudents++
		} else {
			stats.InactiveStudents++
		}
	}
	out := make([]models.ClassStatistics, 0, len(byClass))
	for _, stats := range byClass {
		out = append(out, *stats)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClassName < out[j].ClassName })
	return out, nil
}

// ReorderNumbers renumbers the active students of a class 1..n by their
// current sort order, in one transaction.
func (s *StudentService) ReorderNumbers(ctx context.Context, className string) ([]models.Student, error) {
	if className == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "className is required")
	}
	active := true
	students, err := s.repo.List(ctx, models.StudentFilter{ClassName: className, Active: &active})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}

	assignments := make([]repository.RollAssignment, 0, len(students))
	for i := range students {
		students[i].Number = i + 1
		assignments = append(assignments, repository.RollAssignment{StudentID: students[i].ID, Number: i + 1})
	}
	if err := s.reorderer.ReorderStudents(ctx, className, assignments); err != nil {
		s.emitError(ctx, "roster reorder failed", err)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reorder students")
	}
	return students, nil
}

// BulkAdd registers many students, collecting per-item failures, and appends
// one aggregate history record.
func (s *StudentService) BulkAdd(ctx context.Context, inputs []StudentInput) (*BulkAddResult, error) {
	result := &BulkAddResult{
		Success: make([]models.Student, 0, len(inputs)),
		Failed:  make([]BulkAddFailure, 0),
	}
	for _, input := range inputs {
		student, err := s.Add(ctx, input)
		if err != nil {
			result.Failed = append(result.Failed, BulkAddFailure{Input: input, Error: err.Error()})
			continue
		}
		result.Success = append(result.Success, *student)
	}

	changes, err := json.Marshal(map[string]interface{}{
		"successCount": len(result.Success),
		"failedCount":  len(result.Failed),
		"totalCount":   len(inputs),
	})
	if err == nil {
		log := &models.HistoryLog{
			ID:         uuid.NewString(),
			Action:     models.HistoryActionBulkImport,
			EntityType: models.EntityStudent,
			EntityID:   "bulk",
			Changes:    changes,
			Timestamp:  time.Now().UnixMilli(),
		}
		if err := s.history.Insert(ctx, log); err != nil {
			s.logger.Warn("append history record", zap.Error(err))
		}
	}
	return result, nil
}

func (s *StudentService) checkRollNumber(ctx context.Context, className string, number int, excludeID string) error {
	holder, err := s.repo.FindActiveByClassAndNumber(ctx, className, number, excludeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check roll number")
	}
	return appErrors.Clone(appErrors.ErrConflict,
		fmt.Sprintf("roll number %d in class %s is already held by %s", number, className, holder.Name))
}

func (s *StudentService) appendHistory(ctx context.Context, action, entityID string, changes interface{}) {
	payload, err := json.Marshal(changes)
	if err != nil {
		s.logger.Warn("marshal history changes", zap.Error(err))
		return
	}
	log := &models.HistoryLog{
		ID:         uuid.NewString(),
		Action:     action,
		EntityType: models.EntityStudent,
		EntityID:   entityID,
		Changes:    payload,
		Timestamp:  time.Now().UnixMilli(),
	}
	if err := s.history.Insert(ctx, log); err != nil {
		s.logger.Warn("append history record", zap.Error(err))
	}
}

func (s *StudentService) emitError(ctx context.Context, title string, err error) {
	if s.notify == nil {
		return
	}
	s.notify.Notify(ctx, models.NotificationError, title, err.Error())
}
