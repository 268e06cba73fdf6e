package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/madrasati/madrasati-api/internal/grading"
	"github.com/madrasati/madrasati-api/internal/models"
	appErrors "github.com/madrasati/madrasati-api/pkg/errors"
)

type gradeSettingsRepository interface {
	Get(ctx context.Context, principalID string) (*models.SchoolSettings, error)
}

type gradeClassRepository interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	ListSubjects(ctx context.Context, classID string) ([]models.Subject, error)
}

type gradeStudentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ListByClass(ctx context.Context, classID string) ([]models.Student, error)
	ListGradesByStudent(ctx context.Context, studentID string) ([]models.SubjectGrade, error)
	ListGradesByClass(ctx context.Context, classID string) ([]models.SubjectGrade, error)
	UpsertGradeCells(ctx context.Context, grade *models.SubjectGrade) error
}

// GradeService turns raw grade cells into result sheets. CalculatedGrade
// and StudentResult are never stored: every read recomputes them from the
// cells and the current school policy.
type GradeService struct {
	settings gradeSettingsRepository
	classes  gradeClassRepository
	students gradeStudentRepository
	logger   *zap.Logger
}

// NewGradeService constructs a GradeService instance.
func NewGradeService(settings gradeSettingsRepository, classes gradeClassRepository, students gradeStudentRepository, logger *zap.Logger) *GradeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{settings: settings, classes: classes, students: students, logger: logger}
}

// engineFor builds a grading engine from the school's stored policy,
// falling back to ministerial defaults when none is configured yet.
func (s *GradeService) engineFor(ctx context.Context, principalID string) (*grading.Engine, error) {
	policy := grading.DefaultPolicy(models.LevelMiddle)

	settings, err := s.settings.Get(ctx, principalID)
	switch {
	case err == nil:
		policy = grading.DefaultPolicy(settings.SchoolLevel)
		policy.DecisionPoints = settings.DecisionPoints
		policy.SupplementarySubjectsCount = settings.SupplementarySubjectsCount
	case errors.Is(err, sql.ErrNoRows):
		s.logger.Debug("school settings missing, using defaults", zap.String("principal_id", principalID))
	default:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school settings")
	}

	return grading.New(policy)
}

// UpdateGradeCells overwrites the entered cells of one student and subject.
func (s *GradeService) UpdateGradeCells(ctx context.Context, principalID string, grade *models.SubjectGrade) error {
	if _, err := s.ownedStudent(ctx, principalID, grade.StudentID); err != nil {
		return err
	}
	if err := s.students.UpsertGradeCells(ctx, grade); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save grade cells")
	}
	return nil
}

// StudentSheet recomputes the full sheet of one student: every subject's
// derived grades, the annual verdict and the exam eligibility.
func (s *GradeService) StudentSheet(ctx context.Context, principalID, studentID string) (*models.StudentSheet, error) {
	student, err := s.ownedStudent(ctx, principalID, studentID)
	if err != nil {
		return nil, err
	}
	engine, err := s.engineFor(ctx, principalID)
	if err != nil {
		return nil, err
	}
	subjects, err := s.classes.ListSubjects(ctx, student.ClassID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	grades, err := s.students.ListGradesByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}

	sheet := buildSheet(engine, *student, subjects, grades)
	return &sheet, nil
}

// ClassSheets recomputes the sheets of an entire roster in one pass.
func (s *GradeService) ClassSheets(ctx context.Context, principalID, classID string) ([]models.StudentSheet, error) {
	class, err := s.ownedClass(ctx, principalID, classID)
	if err != nil {
		return nil, err
	}
	engine, err := s.engineFor(ctx, principalID)
	if err != nil {
		return nil, err
	}
	roster, err := s.students.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	allGrades, err := s.students.ListGradesByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}

	byStudent := make(map[string][]models.SubjectGrade)
	for _, grade := range allGrades {
		byStudent[grade.StudentID] = append(byStudent[grade.StudentID], grade)
	}

	sheets := make([]models.StudentSheet, 0, len(roster))
	for _, student := range roster {
		sheets = append(sheets, buildSheet(engine, student, class.Subjects, byStudent[student.ID]))
	}
	return sheets, nil
}

// buildSheet assembles the engine inputs for one student. Subjects with no
// stored row still participate so the verdict reads pending, not pass.
func buildSheet(engine *grading.Engine, student models.Student, subjects []models.Subject, grades []models.SubjectGrade) models.StudentSheet {
	bySubject := make(map[string]models.SubjectGrade, len(grades))
	for _, grade := range grades {
		bySubject[grade.SubjectID] = grade
	}

	inputs := make([]grading.SubjectInput, 0, len(subjects))
	for _, subject := range subjects {
		grade := bySubject[subject.ID]
		grade.StudentID = student.ID
		grade.SubjectID = subject.ID
		inputs = append(inputs, grading.SubjectInput{
			SubjectID:   subject.ID,
			SubjectName: subject.Name,
			Grade:       grade,
		})
	}

	calculated, result := engine.ComputeStudent(inputs)
	_, eligibility := engine.ComputeEligibility(inputs)
	return models.StudentSheet{
		Student:     student,
		Grades:      calculated,
		Result:      result,
		Eligibility: eligibility,
	}
}

func (s *GradeService) ownedStudent(ctx context.Context, principalID, studentID string) (*models.Student, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if _, err := s.ownedClass(ctx, principalID, student.ClassID); err != nil {
		return nil, err
	}
	return student, nil
}

func (s *GradeService) ownedClass(ctx context.Context, principalID, classID string) (*models.Class, error) {
	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	if class.PrincipalID != principalID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "class belongs to another school")
	}
	return class, nil
}
