package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hw-lee/chulseok-api/internal/models"
	appErrors "github.com/hw-lee/chulseok-api/pkg/errors"
	"github.com/hw-lee/chulseok-api/pkg/export"
)

// Attendance export layouts. csvA is the long form, one row per entry; csvB
// is the wide form, one row per student with a column per date holding the
// resolved final status.
const (
	FormatCSVA = "csvA"
	FormatCSVB = "csvB"
)

// RosterRowFailure pairs a rejected CSV line with its error message.
type RosterRowFailure struct {
	Line  int    `json:"line"`
	Error string `json:"error"`
}

// RosterImportResult summarises a roster CSV import.
type RosterImportResult struct {
	Imported int                `json:"imported"`
	Updated  int                `json:"updated"`
	Skipped  int                `json:"skipped"`
	Failed   []RosterRowFailure `json:"failed"`
}

// ExportService renders CSV and PDF exports and ingests roster CSV files.
type ExportService struct {
	students   *StudentService
	attendance *AttendanceService
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
	logger     *zap.Logger
}

// NewExportService constructs the export service.
func NewExportService(students *StudentService, attendance *AttendanceService, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		students:   students,
		attendance: attendance,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		logger:     logger,
	}
}

// ImportRoster ingests a CSV of students in "number,name,className,grade"
// order. A header row is detected and skipped. When a roll number is already
// held, overwrite updates the holder in place; otherwise the row is skipped.
// Bad rows are collected, never aborting the rest of the file.
func (s *ExportService) ImportRoster(ctx context.Context, content string, overwrite bool) (*RosterImportResult, error) {
	rows, err := export.Parse(content)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if len(rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "csv contains no rows")
	}

	result := &RosterImportResult{Failed: []RosterRowFailure{}}
	for i, row := range rows {
		line := i + 1
		if i == 0 && looksLikeHeader(row) {
			continue
		}
		input, err := parseRosterRow(row)
		if err != nil {
			result.Failed = append(result.Failed, RosterRowFailure{Line: line, Error: err.Error()})
			continue
		}

		holder, err := s.activeHolder(ctx, input.ClassName, input.Number)
		if err != nil {
			result.Failed = append(result.Failed, RosterRowFailure{Line: line, Error: err.Error()})
			continue
		}
		if holder != nil {
			if !overwrite {
				result.Skipped++
				continue
			}
			if _, err := s.students.Update(ctx, holder.ID, input); err != nil {
				result.Failed = append(result.Failed, RosterRowFailure{Line: line, Error: err.Error()})
				continue
			}
			result.Updated++
			continue
		}

		if _, err := s.students.Add(ctx, input); err != nil {
			result.Failed = append(result.Failed, RosterRowFailure{Line: line, Error: err.Error()})
			continue
		}
		result.Imported++
	}

	s.logger.Info("roster import finished",
		zap.Int("imported", result.Imported),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", len(result.Failed)))
	return result, nil
}

// ExportRoster renders the roster of one class (or all classes) as CSV.
func (s *ExportService) ExportRoster(ctx context.Context, className string) ([]byte, error) {
	students, err := s.students.List(ctx, models.StudentFilter{ClassName: className})
	if err != nil {
		return nil, err
	}
	dataset := export.Dataset{
		Headers: []string{"number", "name", "className", "grade", "active"},
		Rows:    make([]map[string]string, 0, len(students)),
	}
	for _, student := range students {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"number":    strconv.Itoa(student.Number),
			"name":      student.Name,
			"className": student.ClassName,
			"grade":     strconv.Itoa(student.Grade),
			"active":    strconv.FormatBool(student.Active),
		})
	}
	data, err := s.csv.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster csv")
	}
	return data, nil
}

// ExportAttendance renders attendance for a date range in the requested
// layout.
func (s *ExportService) ExportAttendance(ctx context.Context, dateFrom, dateTo, className, format string) ([]byte, error) {
	if !dateFormat.MatchString(dateFrom) || !dateFormat.MatchString(dateTo) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "date range must match YYYY-MM-DD")
	}
	switch format {
	case FormatCSVA:
		return s.exportLong(ctx, dateFrom, dateTo, className)
	case FormatCSVB:
		return s.exportWide(ctx, dateFrom, dateTo, className)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
}

// MonthlyReportPDF renders per-student stats for one calendar month.
func (s *ExportService) MonthlyReportPDF(ctx context.Context, year, month int, className string) ([]byte, error) {
	if month < 1 || month > 12 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "month must be between 1 and 12")
	}
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1)
	dateFrom := first.Format("2006-01-02")
	dateTo := last.Format("2006-01-02")

	active := true
	students, err := s.students.List(ctx, models.StudentFilter{ClassName: className, Active: &active})
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{
		Headers: []string{"number", "name", "present", "late", "earlyLeave", "absent", "presentRate"},
		Rows:    make([]map[string]string, 0, len(students)),
	}
	for _, student := range students {
		stats, err := s.attendance.StudentStats(ctx, student.ID, dateFrom, dateTo)
		if err != nil {
			return nil, err
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"number":      strconv.Itoa(student.Number),
			"name":        student.Name,
			"present":     strconv.Itoa(stats.PresentDays),
			"late":        strconv.Itoa(stats.LateDays),
			"earlyLeave":  strconv.Itoa(stats.EarlyLeaveDays),
			"absent":      strconv.Itoa(stats.AbsentDays),
			"presentRate": fmt.Sprintf("%.2f%%", stats.PresentRate),
		})
	}

	title := fmt.Sprintf("Attendance Report %04d-%02d", year, month)
	if className != "" {
		title += " " + className
	}
	data, err := s.pdf.Render(dataset, title)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf report")
	}
	return data, nil
}

func (s *ExportService) exportLong(ctx context.Context, dateFrom, dateTo, className string) ([]byte, error) {
	entries, err := s.attendance.ListRange(ctx, dateFrom, dateTo)
	if err != nil {
		return nil, err
	}
	names, err := s.rosterIndex(ctx, className)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{
		Headers: []string{"date", "number", "name", "period", "status", "reason"},
		Rows:    make([]map[string]string, 0, len(entries)),
	}
	for _, entry := range entries {
		student, ok := names[entry.StudentID]
		if !ok {
			continue
		}
		period := ""
		if entry.Period != nil {
			period = strconv.Itoa(*entry.Period)
		}
		reason := ""
		if entry.Reason != nil {
			reason = *entry.Reason
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"date":   entry.Date,
			"number": strconv.Itoa(student.Number),
			"name":   student.Name,
			"period": period,
			"status": string(entry.Status),
			"reason": reason,
		})
	}
	data, err := s.csv.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render attendance csv")
	}
	return data, nil
}

func (s *ExportService) exportWide(ctx context.Context, dateFrom, dateTo, className string) ([]byte, error) {
	entries, err := s.attendance.ListRange(ctx, dateFrom, dateTo)
	if err != nil {
		return nil, err
	}
	active := true
	students, err := s.students.List(ctx, models.StudentFilter{ClassName: className, Active: &active})
	if err != nil {
		return nil, err
	}

	dates, err := dateRange(dateFrom, dateTo)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	byStudentDate := make(map[string]map[string][]models.AttendanceEntry)
	for _, entry := range entries {
		byDate, ok := byStudentDate[entry.StudentID]
		if !ok {
			byDate = make(map[string][]models.AttendanceEntry)
			byStudentDate[entry.StudentID] = byDate
		}
		byDate[entry.Date] = append(byDate[entry.Date], entry)
	}

	headers := append([]string{"number", "name"}, dates...)
	dataset := export.Dataset{Headers: headers, Rows: make([]map[string]string, 0, len(students))}
	for _, student := range students {
		row := map[string]string{
			"number": strconv.Itoa(student.Number),
			"name":   student.Name,
		}
		for _, date := range dates {
			dayEntries := byStudentDate[student.ID][date]
			if len(dayEntries) == 0 {
				row[date] = ""
				continue
			}
			row[date] = string(s.attendance.ResolveFinalStatus(dayEntries))
		}
		dataset.Rows = append(dataset.Rows, row)
	}
	data, err := s.csv.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render attendance csv")
	}
	return data, nil
}

func (s *ExportService) rosterIndex(ctx context.Context, className string) (map[string]models.Student, error) {
	students, err := s.students.List(ctx, models.StudentFilter{ClassName: className})
	if err != nil {
		return nil, err
	}
	index := make(map[string]models.Student, len(students))
	for _, student := range students {
		index[student.ID] = student
	}
	return index, nil
}

func (s *ExportService) activeHolder(ctx context.Context, className string, number int) (*models.Student, error) {
	active := true
	students, err := s.students.List(ctx, models.StudentFilter{ClassName: className, Active: &active})
	if err != nil {
		return nil, err
	}
	for i := range students {
		if students[i].Number == number {
			return &students[i], nil
		}
	}
	return nil, nil
}

func parseRosterRow(row []string) (StudentInput, error) {
	if len(row) < 4 {
		return StudentInput{}, fmt.Errorf("expected 4 fields, got %d", len(row))
	}
	number, err := strconv.Atoi(strings.TrimSpace(row[0]))
	if err != nil {
		return StudentInput{}, fmt.Errorf("number %q is not an integer", row[0])
	}
	grade, err := strconv.Atoi(strings.TrimSpace(row[3]))
	if err != nil {
		return StudentInput{}, fmt.Errorf("grade %q is not an integer", row[3])
	}
	return StudentInput{
		Number:    number,
		Name:      strings.TrimSpace(row[1]),
		ClassName: strings.TrimSpace(row[2]),
		Grade:     grade,
	}, nil
}

func looksLikeHeader(row []string) bool {
	if len(row) == 0 {
		return false
	}
	_, err := strconv.Atoi(strings.TrimSpace(row[0]))
	return err != nil
}

func dateRange(from, to string) ([]string, error) {
	start, err := time.Parse("2006-01-02", from)
	if err != nil {
		return nil, fmt.Errorf("parse date %q: %w", from, err)
	}
	end, err := time.Parse("2006-01-02", to)
	if err != nil {
		return nil, fmt.Errorf("parse date %q: %w", to, err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("date range end %s precedes start %s", to, from)
	}
	dates := make([]string, 0)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format("2006-01-02"))
	}
	return dates, nil
}
