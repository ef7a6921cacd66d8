package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hw-lee/chulseok-api/internal/models"
)

type fakeHistoryPruner struct {
	fakeHistory
	cutoff int64
	pruned int64
}

func (f *fakeHistoryPruner) List(_ context.Context, _ models.HistoryFilter) ([]models.HistoryLog, int, error) {
	out := make([]models.HistoryLog, 0, len(f.records))
	for _, record := range f.records {
		out = append(out, *record)
	}
	return out, len(out), nil
}

func (f *fakeHistoryPruner) DeleteOlderThan(_ context.Context, cutoff int64) (int64, error) {
	f.cutoff = cutoff
	kept := f.records[:0]
	var pruned int64
	for _, record := range f.records {
		if record.Timestamp < cutoff {
			pruned++
			continue
		}
		kept = append(kept, record)
	}
	f.records = kept
	f.pruned = pruned
	return pruned, nil
}

type fakeNotificationRepo struct {
	notifications map[string]*models.Notification
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{notifications: make(map[string]*models.Notification)}
}

func (f *fakeNotificationRepo) Insert(_ context.Context, n *models.Notification) error {
	clone := *n
	f.notifications[n.ID] = &clone
	return nil
}

func (f *fakeNotificationRepo) List(_ context.Context, unreadOnly bool) ([]models.Notification, error) {
	var out []models.Notification
	for _, n := range f.notifications {
		if unreadOnly && n.Read {
			continue
		}
		out = append(out, *n)
	}
	return out, nil
}

func (f *fakeNotificationRepo) MarkRead(_ context.Context, id string) (bool, error) {
	n, ok := f.notifications[id]
	if !ok {
		return false, nil
	}
	n.Read = true
	return true, nil
}

func (f *fakeNotificationRepo) DeleteReadOlderThan(_ context.Context, cutoff int64) (int64, error) {
	var pruned int64
	for id, n := range f.notifications {
		if n.Read && n.Timestamp < cutoff {
			delete(f.notifications, id)
			pruned++
		}
	}
	return pruned, nil
}

func TestCleanupPrunesAgedRecords(t *testing.T) {
	history := &fakeHistoryPruner{}
	now := time.Now().UnixMilli()
	old := now - 100*24*time.Hour.Milliseconds()
	history.records = append(history.records,
		&models.HistoryLog{ID: "h1", Timestamp: old},
		&models.HistoryLog{ID: "h2", Timestamp: now},
	)

	notifications := newFakeNotificationRepo()
	notifications.notifications["n1"] = &models.Notification{ID: "n1", Read: true, Timestamp: old}
	notifications.notifications["n2"] = &models.Notification{ID: "n2", Read: false, Timestamp: old}
	notifications.notifications["n3"] = &models.Notification{ID: "n3", Read: true, Timestamp: now}

	svc := NewMaintenanceService(history, notifications, newFakeStudentRepo(), &listAllAdapter{newFakeAttendanceRepo()},
		90*24*time.Hour, 7*24*time.Hour, nil)

	require.NoError(t, svc.Cleanup(context.Background()))

	assert.Equal(t, int64(1), history.pruned, "only records past retention go")
	assert.Len(t, notifications.notifications, 2, "unread and recent notifications survive")
	_, unreadKept := notifications.notifications["n2"]
	assert.True(t, unreadKept)
}

func TestCheckIntegrity(t *testing.T) {
	students := newFakeStudentRepo()
	students.students["s1"] = &models.Student{ID: "s1", Number: 7, ClassName: "3-2", Active: true}
	students.students["s2"] = &models.Student{ID: "s2", Number: 7, ClassName: "3-2", Active: true}
	students.students["s3"] = &models.Student{ID: "s3", Number: 7, ClassName: "3-2", Active: false}

	attendance := newFakeAttendanceRepo()
	attendance.entries["a1"] = &models.AttendanceEntry{ID: "a1", StudentID: "ghost", Date: "2026-03-02", Status: models.StatusPresent}
	attendance.entries["a2"] = &models.AttendanceEntry{ID: "a2", StudentID: "s1", Date: "03/02/2026", Status: models.StatusPresent}
	attendance.entries["a3"] = &models.AttendanceEntry{ID: "a3", StudentID: "s1", Date: "2026-03-02", Status: models.StatusPresent}

	svc := NewMaintenanceService(&fakeHistoryPruner{}, newFakeNotificationRepo(), students, &listAllAdapter{attendance},
		0, 0, nil)

	report, err := svc.CheckIntegrity(context.Background())
	require.NoError(t, err)

	assert.False(t, report.Valid)
	require.Len(t, report.Issues, 3, "duplicate active roll, orphan entry, malformed date")
	assert.NotContains(t, report.Issues, "s3", "inactive students do not hold roll numbers")
}

func TestCheckIntegrityCleanData(t *testing.T) {
	students := newFakeStudentRepo()
	students.students["s1"] = &models.Student{ID: "s1", Number: 1, ClassName: "3-2", Active: true}

	attendance := newFakeAttendanceRepo()
	attendance.entries["a1"] = &models.AttendanceEntry{ID: "a1", StudentID: "s1", Date: "2026-03-02", Status: models.StatusPresent}

	svc := NewMaintenanceService(&fakeHistoryPruner{}, newFakeNotificationRepo(), students, &listAllAdapter{attendance},
		0, 0, nil)

	report, err := svc.CheckIntegrity(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Empty(t, report.Issues)
}
