package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hw-lee/chulseok-api/internal/models"
	appErrors "github.com/hw-lee/chulseok-api/pkg/errors"
)

// MaintenanceService prunes aged history and read notifications on a timer
// and audits the dataset for structural problems.
type MaintenanceService struct {
	history          historyRepository
	notifications    notificationRepository
	students         studentsLister
	attendance       attendanceLister
	historyRetention time.Duration
	readNotifTTL     time.Duration
	logger           *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMaintenanceService constructs the maintenance service.
func NewMaintenanceService(history historyRepository, notifications notificationRepository, students studentsLister, attendance attendanceLister, historyRetention, readNotifTTL time.Duration, logger *zap.Logger) *MaintenanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MaintenanceService{
		history:          history,
		notifications:    notifications,
		students:         students,
		attendance:       attendance,
		historyRetention: historyRetention,
		readNotifTTL:     readNotifTTL,
		logger:           logger,
	}
}

// Start runs Cleanup on the given interval until Stop or context cancel.
func (s *MaintenanceService) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.Cleanup(ctx); err != nil {
					s.logger.Warn("maintenance cleanup", zap.Error(err))
				}
			}
		}
	}()
	s.logger.Info("maintenance started", zap.Duration("interval", interval))
}

// Stop halts the cleanup loop.
func (s *MaintenanceService) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Cleanup prunes history records past the retention window and read
// notifications past their TTL.
func (s *MaintenanceService) Cleanup(ctx context.Context) error {
	now := time.Now()
	if s.historyRetention > 0 {
		cutoff := now.Add(-s.historyRetention).UnixMilli()
		pruned, err := s.history.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("prune history: %w", err)
		}
		if pruned > 0 {
			s.logger.Info("pruned history records", zap.Int64("count", pruned))
		}
	}
	if s.readNotifTTL > 0 {
		cutoff := now.Add(-s.readNotifTTL).UnixMilli()
		pruned, err := s.notifications.DeleteReadOlderThan(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("prune notifications: %w", err)
		}
		if pruned > 0 {
			s.logger.Info("pruned read notifications", zap.Int64("count", pruned))
		}
	}
	return nil
}

// CheckIntegrity audits stored data: attendance entries pointing at unknown
// students, duplicate roll numbers among active students of a class, and
// malformed dates. Findings are advisory.
func (s *MaintenanceService) CheckIntegrity(ctx context.Context) (*models.IntegrityReport, error) {
	students, err := s.students.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	entries, err := s.attendance.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance entries")
	}

	report := &models.IntegrityReport{Valid: true, Issues: []string{}}
	addIssue := func(format string, args ...interface{}) {
		report.Valid = false
		report.Issues = append(report.Issues, fmt.Sprintf(format, args...))
	}

	known := make(map[string]bool, len(students))
	rolls := make(map[string]string)
	for _, student := range students {
		known[student.ID] = true
		if !student.Active {
			continue
		}
		key := fmt.Sprintf("%s#%d", student.ClassName, student.Number)
		if holder, dup := rolls[key]; dup {
			addIssue("roll number %d in class %s held by both %s and %s", student.Number, student.ClassName, holder, student.ID)
			continue
		}
		rolls[key] = student.ID
	}

	for _, entry := range entries {
		if !known[entry.StudentID] {
			addIssue("attendance entry %s references unknown student %s", entry.ID, entry.StudentID)
		}
		if !dateFormat.MatchString(entry.Date) {
			addIssue("attendance entry %s has malformed date %q", entry.ID, entry.Date)
		}
		if !entry.Status.Valid() {
			addIssue("attendance entry %s has unsupported status %q", entry.ID, entry.Status)
		}
	}

	return report, nil
}
