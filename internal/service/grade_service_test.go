package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madrasati/madrasati-api/internal/models"
)

type settingsRepoStub struct {
	settings *models.SchoolSettings
}

func (s *settingsRepoStub) Get(context.Context, string) (*models.SchoolSettings, error) {
	if s.settings == nil {
		return nil, sql.ErrNoRows
	}
	return s.settings, nil
}

type classRepoStub struct {
	classes map[string]*models.Class
}

func (s *classRepoStub) FindByID(_ context.Context, id string) (*models.Class, error) {
	if class, ok := s.classes[id]; ok {
		return class, nil
	}
	return nil, sql.ErrNoRows
}

func (s *classRepoStub) ListSubjects(_ context.Context, classID string) ([]models.Subject, error) {
	if class, ok := s.classes[classID]; ok {
		return class.Subjects, nil
	}
	return nil, nil
}

type studentRepoStub struct {
	students map[string]*models.Student
	grades   []models.SubjectGrade
	upserted []models.SubjectGrade
}

func (s *studentRepoStub) FindByID(_ context.Context, id string) (*models.Student, error) {
	if student, ok := s.students[id]; ok {
		return student, nil
	}
	return nil, sql.ErrNoRows
}

func (s *studentRepoStub) ListByClass(_ context.Context, classID string) ([]models.Student, error) {
	var roster []models.Student
	for _, student := range s.students {
		if student.ClassID == classID {
			roster = append(roster, *student)
		}
	}
	return roster, nil
}

func (s *studentRepoStub) ListGradesByStudent(_ context.Context, studentID string) ([]models.SubjectGrade, error) {
	var out []models.SubjectGrade
	for _, grade := range s.grades {
		if grade.StudentID == studentID {
			out = append(out, grade)
		}
	}
	return out, nil
}

func (s *studentRepoStub) ListGradesByClass(context.Context, string) ([]models.SubjectGrade, error) {
	return s.grades, nil
}

func (s *studentRepoStub) UpsertGradeCells(_ context.Context, grade *models.SubjectGrade) error {
	s.upserted = append(s.upserted, *grade)
	return nil
}

func score(v float64) *float64 {
	return &v
}

func newGradeFixture() (*GradeService, *studentRepoStub) {
	settings := &settingsRepoStub{settings: &models.SchoolSettings{
		PrincipalID:                "principal-1",
		SchoolLevel:                models.LevelMiddle,
		DecisionPoints:             10,
		SupplementarySubjectsCount: 3,
	}}
	classes := &classRepoStub{classes: map[string]*models.Class{
		"cls-1": {
			ID:          "cls-1",
			PrincipalID: "principal-1",
			Stage:       "الصف الثاني",
			Section:     "أ",
			Subjects: []models.Subject{
				{ID: "sub-1", ClassID: "cls-1", Name: "الرياضيات"},
				{ID: "sub-2", ClassID: "cls-1", Name: "العلوم"},
			},
		},
	}}
	students := &studentRepoStub{students: map[string]*models.Student{
		"stu-1": {ID: "stu-1", ClassID: "cls-1", Name: "أحمد"},
	}}
	return NewGradeService(settings, classes, students, nil), students
}

func TestGradeServiceStudentSheetPassing(t *testing.T) {
	svc, students := newGradeFixture()
	students.grades = []models.SubjectGrade{
		{StudentID: "stu-1", SubjectID: "sub-1", October: score(70), FinalExam1st: score(80)},
		{StudentID: "stu-1", SubjectID: "sub-2", October: score(60), FinalExam1st: score(64)},
	}

	sheet, err := svc.StudentSheet(context.Background(), "principal-1", "stu-1")
	require.NoError(t, err)
	require.Len(t, sheet.Grades, 2)
	assert.Equal(t, models.StatusPass, sheet.Result.Status)
	assert.Equal(t, models.StatusEligible, sheet.Eligibility.Status)
}

func TestGradeServiceStudentSheetMissingSubjectIsPending(t *testing.T) {
	svc, students := newGradeFixture()
	// Only one of the two class subjects has any cells.
	students.grades = []models.SubjectGrade{
		{StudentID: "stu-1", SubjectID: "sub-1", October: score(70), FinalExam1st: score(80)},
	}

	sheet, err := svc.StudentSheet(context.Background(), "principal-1", "stu-1")
	require.NoError(t, err)
	require.Len(t, sheet.Grades, 2, "subjects without rows still appear")
	assert.Equal(t, models.StatusPending, sheet.Result.Status)
}

func TestGradeServiceStudentSheetWrongSchoolForbidden(t *testing.T) {
	svc, _ := newGradeFixture()

	_, err := svc.StudentSheet(context.Background(), "principal-2", "stu-1")
	require.Error(t, err)
}

func TestGradeServiceClassSheets(t *testing.T) {
	svc, students := newGradeFixture()
	students.students["stu-2"] = &models.Student{ID: "stu-2", ClassID: "cls-1", Name: "سارة"}
	students.grades = []models.SubjectGrade{
		{StudentID: "stu-1", SubjectID: "sub-1", October: score(70), FinalExam1st: score(80)},
		{StudentID: "stu-1", SubjectID: "sub-2", October: score(60), FinalExam1st: score(64)},
		{StudentID: "stu-2", SubjectID: "sub-1", October: score(20), FinalExam1st: score(20)},
		{StudentID: "stu-2", SubjectID: "sub-2", October: score(90), FinalExam1st: score(90)},
	}

	sheets, err := svc.ClassSheets(context.Background(), "principal-1", "cls-1")
	require.NoError(t, err)
	require.Len(t, sheets, 2)

	byName := map[string]models.StudentSheet{}
	for _, sheet := range sheets {
		byName[sheet.Student.Name] = sheet
	}
	assert.Equal(t, models.StatusPass, byName["أحمد"].Result.Status)
	assert.Equal(t, models.StatusSupplementary, byName["سارة"].Result.Status)
}

func TestGradeServiceUpdateGradeCells(t *testing.T) {
	svc, students := newGradeFixture()

	grade := &models.SubjectGrade{StudentID: "stu-1", SubjectID: "sub-1", October: score(88)}
	require.NoError(t, svc.UpdateGradeCells(context.Background(), "principal-1", grade))
	require.Len(t, students.upserted, 1)
	assert.Equal(t, 88.0, *students.upserted[0].October)

	require.Error(t, svc.UpdateGradeCells(context.Background(), "principal-2", grade))
}

func TestGradeServiceDefaultsWithoutSettings(t *testing.T) {
	svc, students := newGradeFixture()
	svc.settings = &settingsRepoStub{}
	students.grades = []models.SubjectGrade{
		{StudentID: "stu-1", SubjectID: "sub-1", October: score(70), FinalExam1st: score(80)},
		{StudentID: "stu-1", SubjectID: "sub-2", October: score(60), FinalExam1st: score(64)},
	}

	sheet, err := svc.StudentSheet(context.Background(), "principal-1", "stu-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPass, sheet.Result.Status)
}
