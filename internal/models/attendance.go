package models

// AttendanceStatus represents the recorded state for one attendance entry.
type AttendanceStatus string

const (
	StatusPresent    AttendanceStatus = "present"
	StatusLate       AttendanceStatus = "late"
	StatusEarlyLeave AttendanceStatus = "early-leave"
	StatusAbsent     AttendanceStatus = "absent"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case StatusPresent, StatusLate, StatusEarlyLeave, StatusAbsent:
		return true
	default:
		return false
	}
}

// Priority orders statuses for final-status resolution. Any exceptional event
// dominates the day's headline status: absent > early-leave > late > present.
func (s AttendanceStatus) Priority() int {
	switch s {
	case StatusAbsent:
		return 4
	case StatusEarlyLeave:
		return 3
	case StatusLate:
		return 2
	case StatusPresent:
		return 1
	default:
		return 0
	}
}

// AttendanceEntry is one attendance record for a student on a date. A nil
// Period marks a whole-day entry, otherwise the period is 1..10. At most one
// entry exists per (student, date, period) triple.
type AttendanceEntry struct {
	ID           string           `db:"id" json:"id"`
	StudentID    string           `db:"student_id" json:"studentId"`
	Date         string           `db:"date" json:"date"`
	Period       *int             `db:"period" json:"period"`
	Status       AttendanceStatus `db:"status" json:"status"`
	Reason       *string          `db:"reason" json:"reason,omitempty"`
	Timestamp    int64            `db:"timestamp" json:"timestamp"`
	LastModified int64            `db:"last_modified" json:"lastModified"`
}

// AttendanceFilter scopes listing queries.
type AttendanceFilter struct {
	DateFrom  string
	DateTo    string
	StudentID string
	Statuses  []AttendanceStatus
	Periods   []int
	Page      int
	PageSize  int
}

// DaySummary aggregates one day's resolved statuses across the roster.
// TotalStudents counts the active roster; the per-status counts cover only
// students with at least one entry that day.
type DaySummary struct {
	Date          string  `json:"date"`
	TotalStudents int     `json:"totalStudents"`
	Present       int     `json:"present"`
	Absent        int     `json:"absent"`
	Late          int     `json:"late"`
	EarlyLeave    int     `json:"earlyLeave"`
	PresentRate   float64 `json:"presentRate"`
}

// StudentStats summarises a student's resolved day statuses over a date range.
type StudentStats struct {
	StudentID      string  `json:"studentId"`
	Student        Student `json:"student"`
	TotalDays      int     `json:"totalDays"`
	PresentDays    int     `json:"presentDays"`
	AbsentDays     int     `json:"absentDays"`
	LateDays       int     `json:"lateDays"`
	EarlyLeaveDays int     `json:"earlyLeaveDays"`
	PresentRate    float64 `json:"presentRate"`
}
