package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hw-lee/chulseok-api/internal/models"
	"github.com/hw-lee/chulseok-api/internal/repository"
)

type fakeStudentRepo struct {
	students map[string]*models.Student
}

func newFakeStudentRepo() *fakeStudentRepo {
	return &fakeStudentRepo{students: make(map[string]*models.Student)}
}

func (f *fakeStudentRepo) List(_ context.Context, filter models.StudentFilter) ([]models.Student, error) {
	var out []models.Student
	for _, student := range f.students {
		if filter.ClassName != "" && student.ClassName != filter.ClassName {
			continue
		}
		if filter.Active != nil && student.Active != *filter.Active {
			continue
		}
		out = append(out, *student)
	}
	return out, nil
}

func (f *fakeStudentRepo) FindByID(_ context.Context, id string) (*models.Student, error) {
	student, ok := f.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *student
	return &clone, nil
}

func (f *fakeStudentRepo) FindActiveByClassAndNumber(_ context.Context, className string, number int, excludeID string) (*models.Student, error) {
	for _, student := range f.students {
		if student.ClassName == className && student.Number == number && student.Active && student.ID != excludeID {
			clone := *student
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeStudentRepo) Create(_ context.Context, student *models.Student) error {
	clone := *student
	f.students[student.ID] = &clone
	return nil
}

func (f *fakeStudentRepo) Update(_ context.Context, student *models.Student) error {
	if _, ok := f.students[student.ID]; !ok {
		return sql.ErrNoRows
	}
	clone := *student
	f.students[student.ID] = &clone
	return nil
}

func (f *fakeStudentRepo) Deactivate(_ context.Context, id string, updatedAt int64) error {
	student, ok := f.students[id]
	if !ok {
		return sql.ErrNoRows
	}
	student.Active = false
	student.UpdatedAt = updatedAt
	return nil
}

func (f *fakeStudentRepo) ListAll(_ context.Context) ([]models.Student, error) {
	var out []models.Student
	for _, student := range f.students {
		out = append(out, *student)
	}
	return out, nil
}

type fakeReorderer struct {
	repo        *fakeStudentRepo
	assignments []repository.RollAssignment
}

func (f *fakeReorderer) ReorderStudents(_ context.Context, _ string, assignments []repository.RollAssignment) error {
	f.assignments = assignments
	for _, assignment := range assignments {
		if student, ok := f.repo.students[assignment.StudentID]; ok {
			student.Number = assignment.Number
		}
	}
	return nil
}

func newTestStudentService(repo *fakeStudentRepo) (*StudentService, *fakeHistory) {
	history := &fakeHistory{}
	return NewStudentService(repo, &fakeReorderer{repo: repo}, history, nil, nil), history
}

func TestAddStudent(t *testing.T) {
	repo := newFakeStudentRepo()
	svc, history := newTestStudentService(repo)

	student, err := svc.Add(context.Background(), StudentInput{Number: 7, Name: " Park Jimin ", ClassName: "3-2", Grade: 3})
	require.NoError(t, err)

	assert.NotEmpty(t, student.ID)
	assert.True(t, student.Active)
	assert.Equal(t, "Park Jimin", student.Name, "names are trimmed")
	assert.Equal(t, []string{"create"}, history.actions())
}

func TestAddStudentRollNumberConflict(t *testing.T) {
	repo := newFakeStudentRepo()
	svc, _ := newTestStudentService(repo)
	ctx := context.Background()

	_, err := svc.Add(ctx, StudentInput{Number: 7, Name: "Kim", ClassName: "3-2", Grade: 3})
	require.NoError(t, err)

	_, err = svc.Add(ctx, StudentInput{Number: 7, Name: "Lee", ClassName: "3-2", Grade: 3})
	assert.Error(t, err, "duplicate roll number within a class is rejected")

	// Same number in a different class is fine.
	_, err = svc.Add(ctx, StudentInput{Number: 7, Name: "Lee", ClassName: "3-3", Grade: 3})
	assert.NoError(t, err)
}

func TestAddStudentReusesDeactivatedNumber(t *testing.T) {
	repo := newFakeStudentRepo()
	svc, _ := newTestStudentService(repo)
	ctx := context.Background()

	first, err := svc.Add(ctx, StudentInput{Number: 7, Name: "Kim", ClassName: "3-2", Grade: 3})
	require.NoError(t, err)
	require.NoError(t, svc.Deactivate(ctx, first.ID))

	_, err = svc.Add(ctx, StudentInput{Number: 7, Name: "Lee", ClassName: "3-2", Grade: 3})
	assert.NoError(t, err, "inactive students do not hold their roll number")
}

func TestAddStudentValidation(t *testing.T) {
	svc, _ := newTestStudentService(newFakeStudentRepo())
	ctx := context.Background()

	_, err := svc.Add(ctx, StudentInput{Number: 0, Name: "Kim", ClassName: "3-2", Grade: 3})
	assert.Error(t, err)
	_, err = svc.Add(ctx, StudentInput{Number: 1, Name: "", ClassName: "3-2", Grade: 3})
	assert.Error(t, err)
	_, err = svc.Add(ctx, StudentInput{Number: 1, Name: "Kim", ClassName: "3-2", Grade: 13})
	assert.Error(t, err)
}

func TestUpdateStudent(t *testing.T) {
	repo := newFakeStudentRepo()
	svc, history := newTestStudentService(repo)
	ctx := context.Background()

	student, err := svc.Add(ctx, StudentInput{Number: 7, Name: "Kim", ClassName: "3-2", Grade: 3})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, student.ID, StudentInput{Number: 8, Name: "Kim Minjun", ClassName: "3-2", Grade: 3})
	require.NoError(t, err)
	assert.Equal(t, 8, updated.Number)
	assert.Equal(t, "Kim Minjun", updated.Name)
	assert.Equal(t, student.CreatedAt, updated.CreatedAt)
	assert.Equal(t, []string{"create", "update"}, history.actions())

	_, err = svc.Update(ctx, "missing", StudentInput{Number: 1, Name: "X", ClassName: "3-2", Grade: 3})
	assert.Error(t, err)
}

func TestDeactivateStudentIsIdempotent(t *testing.T) {
	repo := newFakeStudentRepo()
	svc, history := newTestStudentService(repo)
	ctx := context.Background()

	student, err := svc.Add(ctx, StudentInput{Number: 7, Name: "Kim", ClassName: "3-2", Grade: 3})
	require.NoError(t, err)

	require.NoError(t, svc.Deactivate(ctx, student.ID))
	require.NoError(t, svc.Deactivate(ctx, student.ID), "second deactivate is a no-op")
	assert.Equal(t, []string{"create", "delete"}, history.actions())

	kept, err := svc.Get(ctx, student.ID)
	require.NoError(t, err)
	assert.False(t, kept.Active, "record survives deactivation")
}

func TestListStudentsSearch(t *testing.T) {
	repo := newFakeStudentRepo()
	svc, _ := newTestStudentService(repo)
	ctx := context.Background()

	_, err := svc.Add(ctx, StudentInput{Number: 1, Name: "Kim Minjun", ClassName: "3-2", Grade: 3})
	require.NoError(t, err)
	_, err = svc.Add(ctx, StudentInput{Number: 2, Name: "Lee Seoyeon", ClassName: "3-2", Grade: 3})
	require.NoError(t, err)

	matched, err := svc.List(ctx, models.StudentFilter{Search: "minjun"})
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "Kim Minjun", matched[0].Name)
}

func TestClassStatistics(t *testing.T) {
	repo := newFakeStudentRepo()
	svc, _ := newTestStudentService(repo)
	ctx := context.Background()

	a, err := svc.Add(ctx, StudentInput{Number: 1, Name: "Kim", ClassName: "3-2", Grade: 3})
	require.NoError(t, err)
	_, err = svc.Add(ctx, StudentInput{Number: 2, Name: "Lee", ClassName: "3-2", Grade: 3})
	require.NoError(t, err)
	_, err = svc.Add(ctx, StudentInput{Number: 1, Name: "Choi", ClassName: "3-3", Grade: 3})
	require.NoError(t, err)
	require.NoError(t, svc.Deactivate(ctx, a.ID))

	stats, err := svc.ClassStatistics(ctx)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, "3-2", stats[0].ClassName)
	assert.Equal(t, 2, stats[0].TotalStudents)
	assert.Equal(t, 1, stats[0].ActiveStudents)
	assert.Equal(t, 1, stats[0].InactiveStudents)
	assert.Equal(t, "3-3", stats[1].ClassName)
}

func TestReorderNumbers(t *testing.T) {
	repo := newFakeStudentRepo()
	svc, _ := newTestStudentService(repo)
	ctx := context.Background()

	_, err := svc.Add(ctx, StudentInput{Number: 5, Name: "Kim", ClassName: "3-2", Grade: 3})
	require.NoError(t, err)
	_, err = svc.Add(ctx, StudentInput{Number: 9, Name: "Lee", ClassName: "3-2", Grade: 3})
	require.NoError(t, err)

	students, err := svc.ReorderNumbers(ctx, "3-2")
	require.NoError(t, err)
	require.Len(t, students, 2)
	numbers := []int{students[0].Number, students[1].Number}
	assert.ElementsMatch(t, []int{1, 2}, numbers)

	_, err = svc.ReorderNumbers(ctx, "")
	assert.Error(t, err)
}

func TestBulkAddStudents(t *testing.T) {
	repo := newFakeStudentRepo()
	svc, history := newTestStudentService(repo)

	result, err := svc.BulkAdd(context.Background(), []StudentInput{
		{Number: 1, Name: "Kim", ClassName: "3-2", Grade: 3},
		{Number: 1, Name: "Lee", ClassName: "3-2", Grade: 3},
		{Number: 2, Name: "Choi", ClassName: "3-2", Grade: 3},
	})
	require.NoError(t, err)

	assert.Len(t, result.Success, 2)
	assert.Len(t, result.Failed, 1)

	last := history.records[len(history.records)-1]
	assert.Equal(t, models.HistoryActionBulkImport, last.Action)
	assert.Equal(t, models.EntityStudent, last.EntityType)
}
