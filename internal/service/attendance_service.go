package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hw-lee/chulseok-api/internal/models"
	appErrors "github.com/hw-lee/chulseok-api/pkg/errors"
)

// DefaultMaxPeriods is the number of periods a school day is reconciled over.
const DefaultMaxPeriods = 6

var dateFormat = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

type attendanceRepository interface {
	FindByTriple(ctx context.Context, studentID, date string, period *int) (*models.AttendanceEntry, error)
	FindByID(ctx context.Context, id string) (*models.AttendanceEntry, error)
	ListByDate(ctx context.Context, date string) ([]models.AttendanceEntry, error)
	ListByStudentAndDate(ctx context.Context, studentID, date string) ([]models.AttendanceEntry, error)
	ListByStudentRange(ctx context.Context, studentID, dateFrom, dateTo string) ([]models.AttendanceEntry, error)
	ListByRange(ctx context.Context, dateFrom, dateTo string) ([]models.AttendanceEntry, error)
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceEntry, int, error)
	Insert(ctx context.Context, entry *models.AttendanceEntry) error
	Update(ctx context.Context, id string, status models.AttendanceStatus, reason *string, lastModified int64) error
	Delete(ctx context.Context, id string) (bool, error)
}

type rosterReader interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, error)
}

type historyAppender interface {
	Insert(ctx context.Context, log *models.HistoryLog) error
}

type notifier interface {
	Notify(ctx context.Context, kind, title, message string)
}

type summaryCache interface {
	GetSummary(ctx context.Context, date, className string) (*models.DaySummary, bool)
	SetSummary(ctx context.Context, date, className string, summary *models.DaySummary)
	Invalidate(ctx context.Context, date string)
}

// UpsertEntryInput carries one attendance mark.
type UpsertEntryInput struct {
	StudentID string                  `json:"studentId"`
	Date      string                  `json:"date"`
	Period    *int                    `json:"period"`
	Status    models.AttendanceStatus `json:"status"`
	Reason    *string                 `json:"reason"`
}

// BulkUpsertFailure pairs a rejected input with its error message.
type BulkUpsertFailure struct {
	Input UpsertEntryInput `json:"input"`
	Error string           `json:"error"`
}

// BulkUpsertResult reports a batch outcome without aborting on bad items.
type BulkUpsertResult struct {
	Success []models.AttendanceEntry `json:"success"`
	Failed  []BulkUpsertFailure      `json:"failed"`
}

// AttendanceService implements entry validation, upserts, final-status
// resolution, summaries, and the bulk-edit policies built on top of them.
type AttendanceService struct {
	repo    attendanceRepository
	roster  rosterReader
	history historyAppender
	notify  notifier
	cache   summaryCache
	logger  *zap.Logger
}

// NewAttendanceService constructs the attendance service. notify and cache
// may be nil.
func NewAttendanceService(repo attendanceRepository, roster rosterReader, history historyAppender, notify notifier, cache summaryCache, logger *zap.Logger) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, roster: roster, history: history, notify: notify, cache: cache, logger: logger}
}

// ValidateEntry checks one input without side effects. Late and early-leave
// describe a specific-period event, so both require a period.
func (s *AttendanceService) ValidateEntry(input UpsertEntryInput) error {
	if input.StudentID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "studentId is required")
	}
	if input.Date == "" {
		return appErrors.Clone(appErrors.ErrValidation, "date is required")
	}
	if !dateFormat.MatchString(input.Date) {
		return appErrors.Clone(appErrors.ErrValidation, "date must match YYYY-MM-DD")
	}
	if !input.Status.Valid() {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported status %q", input.Status))
	}
	if input.Period != nil && (*input.Period < 1 || *input.Period > 10) {
		return appErrors.Clone(appErrors.ErrValidation, "period must be between 1 and 10")
	}
	if input.Period == nil && (input.Status == models.StatusLate || input.Status == models.StatusEarlyLeave) {
		return appErrors.Clone(appErrors.ErrValidation, "late and early-leave entries require a period")
	}
	return nil
}

// UpsertEntry creates or updates the entry for (student, date, period). An
// existing entry keeps its id and original timestamp; status, reason and
// lastModified are refreshed. Every call appends a history record, including
// no-op updates.
func (s *AttendanceService) UpsertEntry(ctx context.Context, input UpsertEntryInput) (*models.AttendanceEntry, error) {
	if err := s.ValidateEntry(input); err != nil {
		return nil, err
	}

	now := time.Now().UnixMilli()
	existing, err := s.repo.FindByTriple(ctx, input.StudentID, input.Date, input.Period)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up attendance entry")
	}

	if existing != nil {
		if err := s.repo.Update(ctx, existing.ID, input.Status, input.Reason, now); err != nil {
			s.emitError(ctx, "attendance update failed", err)
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update attendance entry")
		}
		s.appendHistory(ctx, models.HistoryActionUpdate, existing.ID, map[string]interface{}{
			"from": map[string]interface{}{"status": existing.Status, "reason": existing.Reason},
			"to":   map[string]interface{}{"status": input.Status, "reason": input.Reason},
		})
		s.invalidate(ctx, input.Date)

		updated := *existing
		updated.Status = input.Status
		updated.Reason = input.Reason
		updated.LastModified = now
		return &updated, nil
	}

	entry := &models.AttendanceEntry{
		ID:           uuid.NewString(),
		StudentID:    input.StudentID,
		Date:         input.Date,
		Period:       input.Period,
		Status:       input.Status,
		Reason:       input.Reason,
		Timestamp:    now,
		LastModified: now,
	}
	if err := s.repo.Insert(ctx, entry); err != nil {
		s.emitError(ctx, "attendance create failed", err)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create attendance entry")
	}
	s.appendHistory(ctx, models.HistoryActionCreate, entry.ID, entry)
	s.invalidate(ctx, input.Date)
	return entry, nil
}

// Delete removes one entry and records the deleted state.
func (s *AttendanceService) Delete(ctx context.Context, id string) error {
	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "attendance entry not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance entry")
	}
	if _, err := s.repo.Delete(ctx, id); err != nil {
		s.emitError(ctx, "attendance delete failed", err)
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete attendance entry")
	}
	s.appendHistory(ctx, models.HistoryActionDelete, id, existing)
	s.invalidate(ctx, existing.Date)
	return nil
}

// List returns filtered entries with pagination metadata.
func (s *AttendanceService) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceEntry, *models.Pagination, error) {
	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance entries")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	return entries, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// ListRange returns every entry inside the date range without pagination,
// for consumers such as exports that need the full range in one pass.
func (s *AttendanceService) ListRange(ctx context.Context, dateFrom, dateTo string) ([]models.AttendanceEntry, error) {
	entries, err := s.repo.ListByRange(ctx, dateFrom, dateTo)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance range")
	}
	return entries, nil
}

// ResolveFinalStatus folds a day's entries into the single authoritative
// status. The first entry seeds the fold and any strictly higher priority
// overrides it. No entries at all reads as ordinary attendance.
func (s *AttendanceService) ResolveFinalStatus(entries []models.AttendanceEntry) models.AttendanceStatus {
	if len(entries) == 0 {
		return models.StatusPresent
	}
	final := entries[0].Status
	for _, entry := range entries[1:] {
		if entry.Status.Priority() > final.Priority() {
			final = entry.Status
		}
	}
	return final
}

// DaySummary aggregates one date across the active roster. Students without
// any entry count toward totalStudents but not toward the per-status tallies:
// "no record" is distinct from "marked present" at the aggregate level.
func (s *AttendanceService) DaySummary(ctx context.Context, date, className string) (*models.DaySummary, error) {
	if !dateFormat.MatchString(date) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date must match YYYY-MM-DD")
	}
	if s.cache != nil {
		if cached, ok := s.cache.GetSummary(ctx, date, className); ok {
			return cached, nil
		}
	}

	entries, err := s.repo.ListByDate(ctx, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance entries")
	}

	active := true
	students, err := s.roster.List(ctx, models.StudentFilter{ClassName: className, Active: &active})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}

	byStudent := make(map[string][]models.AttendanceEntry)
	for _, entry := range entries {
		byStudent[entry.StudentID] = append(byStudent[entry.StudentID], entry)
	}

	summary := &models.DaySummary{Date: date, TotalStudents: len(students)}
	recorded := 0
	for _, student := range students {
		dayEntries := byStudent[student.ID]
		if len(dayEntries) == 0 {
			continue
		}
		recorded++
		switch s.ResolveFinalStatus(dayEntries) {
		case models.StatusPresent:
			summary.Present++
		case models.StatusAbsent:
			summary.Absent++
		case models.StatusLate:
			summary.Late++
		case models.StatusEarlyLeave:
			summary.EarlyLeave++
		}
	}
	if recorded > 0 {
		summary.PresentRate = round2(float64(summary.Present) / float64(recorded) * 100)
	}

	if s.cache != nil {
		s.cache.SetSummary(ctx, date, className, summary)
	}
	return summary, nil
}

// StudentStats resolves each date in the inclusive range to its final status
// and counts occurrences per status.
func (s *AttendanceService) StudentStats(ctx context.Context, studentID, dateFrom, dateTo string) (*models.StudentStats, error) {
	if !dateFormat.MatchString(dateFrom) || !dateFormat.MatchString(dateTo) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date range must match YYYY-MM-DD")
	}
	student, err := s.roster.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	entries, err := s.repo.ListByStudentRange(ctx, studentID, dateFrom, dateTo)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance entries")
	}

	byDate := make(map[string][]models.AttendanceEntry)
	for _, entry := range entries {
		byDate[entry.Date] = append(byDate[entry.Date], entry)
	}

	stats := &models.StudentStats{StudentID: studentID, Student: *student, TotalDays: len(byDate)}
	for _, dayEntries := range byDate {
		switch s.ResolveFinalStatus(dayEntries) {
		case models.StatusPresent:
			stats.PresentDays++
		case models.StatusAbsent:
			stats.AbsentDays++
		case models.StatusLate:
			stats.LateDays++
		case models.StatusEarlyLeave:
			stats.EarlyLeaveDays++
		}
	}
	if stats.TotalDays > 0 {
		stats.PresentRate = round2(float64(stats.PresentDays) / float64(stats.TotalDays) * 100)
	}
	return stats, nil
}

// CascadeEarlyLeave writes an early-leave entry for every period after
// fromPeriod up to maxPeriods, in ascending order. A mid-day early leave
// implies non-attendance for the rest of the day, kept per-period so later
// reports retain the granularity.
func (s *AttendanceService) CascadeEarlyLeave(ctx context.Context, studentID, date string, fromPeriod, maxPeriods int, reason *string) ([]models.AttendanceEntry, error) {
	if fromPeriod < 1 || fromPeriod > 10 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "fromPeriod must be between 1 and 10")
	}
	if maxPeriods <= 0 {
		maxPeriods = DefaultMaxPeriods
	}
	// A departure in or after the last period leaves nothing to cascade.
	if fromPeriod >= maxPeriods {
		return []models.AttendanceEntry{}, nil
	}
	if reason == nil {
		auto := fmt.Sprintf("auto-cascaded from period %d early leave", fromPeriod)
		reason = &auto
	}

	written := make([]models.AttendanceEntry, 0, maxPeriods-fromPeriod)
	for period := fromPeriod + 1; period <= maxPeriods; period++ {
		p := period
		entry, err := s.UpsertEntry(ctx, UpsertEntryInput{
			StudentID: studentID,
			Date:      date,
			Period:    &p,
			Status:    models.StatusEarlyLeave,
			Reason:    reason,
		})
		if err != nil {
			return written, err
		}
		written = append(written, *entry)
	}
	return written, nil
}

// ReconcilePartialAbsence records absences for every period the student did
// not attend. A pre-existing whole-day absent entry is removed first, since
// partial attendance supersedes a blanket absence, and periods already
// covered by any entry are left untouched.
func (s *AttendanceService) ReconcilePartialAbsence(ctx context.Context, studentID, date string, presentPeriods []int) ([]models.AttendanceEntry, error) {
	existing, err := s.repo.ListByStudentAndDate(ctx, studentID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance entries")
	}

	for _, entry := range existing {
		if entry.Period == nil && entry.Status == models.StatusAbsent {
			if _, err := s.repo.Delete(ctx, entry.ID); err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove whole-day absence")
			}
			s.appendHistory(ctx, models.HistoryActionDelete, entry.ID, map[string]interface{}{
				"reason": "whole-day absence superseded by partial attendance",
			})
			s.invalidate(ctx, date)
			break
		}
	}

	present := make(map[int]bool, len(presentPeriods))
	for _, period := range presentPeriods {
		present[period] = true
	}
	covered := make(map[int]bool, len(existing))
	for _, entry := range existing {
		if entry.Period != nil {
			covered[*entry.Period] = true
		}
	}

	reason := "partial absence"
	written := make([]models.AttendanceEntry, 0, DefaultMaxPeriods)
	for period := 1; period <= DefaultMaxPeriods; period++ {
		if present[period] || covered[period] {
			continue
		}
		p := period
		entry, err := s.UpsertEntry(ctx, UpsertEntryInput{
			StudentID: studentID,
			Date:      date,
			Period:    &p,
			Status:    models.StatusAbsent,
			Reason:    &reason,
		})
		if err != nil {
			return written, err
		}
		written = append(written, *entry)
	}
	return written, nil
}

// BulkUpsert applies each input independently, collecting per-item failures
// instead of aborting the batch, and appends one aggregate history record.
func (s *AttendanceService) BulkUpsert(ctx context.Context, inputs []UpsertEntryInput) (*BulkUpsertResult, error) {
	result := &BulkUpsertResult{
		Success: make([]models.AttendanceEntry, 0, len(inputs)),
		Failed:  make([]BulkUpsertFailure, 0),
	}
	for _, input := range inputs {
		entry, err := s.UpsertEntry(ctx, input)
		if err != nil {
			result.Failed = append(result.Failed, BulkUpsertFailure{Input: input, Error: err.Error()})
			continue
		}
		result.Success = append(result.Success, *entry)
	}

	s.appendBulkHistory(ctx, models.EntityAttendance, map[string]interface{}{
		"successCount": len(result.Success),
		"failedCount":  len(result.Failed),
		"totalCount":   len(inputs),
	})
	return result, nil
}

func (s *AttendanceService) appendHistory(ctx context.Context, action, entityID string, changes interface{}) {
	payload, err := json.Marshal(changes)
	if err != nil {
		s.logger.Warn("marshal history changes", zap.Error(err))
		return
	}
	log := &models.HistoryLog{
		ID:         uuid.NewString(),
		Action:     action,
		EntityType: models.EntityAttendance,
		EntityID:   entityID,
		Changes:    payload,
		Timestamp:  time.Now().UnixMilli(),
	}
	if err := s.history.Insert(ctx, log); err != nil {
		s.logger.Warn("append history record", zap.Error(err))
	}
}

func (s *AttendanceService) appendBulkHistory(ctx context.Context, entityType string, changes interface{}) {
	payload, err := json.Marshal(changes)
	if err != nil {
		s.logger.Warn("marshal history changes", zap.Error(err))
		return
	}
	log := &models.HistoryLog{
		ID:         uuid.NewString(),
		Action:     models.HistoryActionBulkImport,
		EntityType: entityType,
		EntityID:   "bulk",
		Changes:    payload,
		Timestamp:  time.Now().UnixMilli(),
	}
	if err := s.history.Insert(ctx, log); err != nil {
		s.logger.Warn("append history record", zap.Error(err))
	}
}

func (s *AttendanceService) emitError(ctx context.Context, title string, err error) {
	if s.notify == nil {
		return
	}
	s.notify.Notify(ctx, models.NotificationError, title, err.Error())
}

func (s *AttendanceService) invalidate(ctx context.Context, date string) {
	if s.cache != nil {
		s.cache.Invalidate(ctx, date)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
