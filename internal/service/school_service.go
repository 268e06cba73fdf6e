package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/madrasati/madrasati-api/internal/models"
	appErrors "github.com/madrasati/madrasati-api/pkg/errors"
)

type schoolSettingsRepository interface {
	Get(ctx context.Context, principalID string) (*models.SchoolSettings, error)
	Upsert(ctx context.Context, settings *models.SchoolSettings) error
}

type schoolClassRepository interface {
	Create(ctx context.Context, class *models.Class) error
	FindByID(ctx context.Context, id string) (*models.Class, error)
	ListByPrincipal(ctx context.Context, principalID string) ([]models.Class, error)
	Delete(ctx context.Context, id string) error
	CreateSubject(ctx context.Context, subject *models.Subject) error
	DeleteSubject(ctx context.Context, id string) error
}

type schoolStudentRepository interface {
	Create(ctx context.Context, student *models.Student) error
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ListByClass(ctx context.Context, classID string) ([]models.Student, error)
	Update(ctx context.Context, student *models.Student) error
	Delete(ctx context.Context, id string) error
}

// SchoolService manages the school record: settings, classes and rosters.
type SchoolService struct {
	settings  schoolSettingsRepository
	classes   schoolClassRepository
	students  schoolStudentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSchoolService constructs a SchoolService instance.
func NewSchoolService(settings schoolSettingsRepository, classes schoolClassRepository, students schoolStudentRepository, validate *validator.Validate, logger *zap.Logger) *SchoolService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SchoolService{settings: settings, classes: classes, students: students, validator: validate, logger: logger}
}

// Settings returns the school policy record.
func (s *SchoolService) Settings(ctx context.Context, principalID string) (*models.SchoolSettings, error) {
	settings, err := s.settings.Get(ctx, principalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "school settings not configured")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load settings")
	}
	return settings, nil
}

// UpdateSettings validates and stores the school policy record.
func (s *SchoolService) UpdateSettings(ctx context.Context, principalID string, req models.SettingsRequest) (*models.SchoolSettings, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid settings payload")
	}

	settings := &models.SchoolSettings{
		PrincipalID:                principalID,
		SchoolName:                 req.SchoolName,
		PrincipalName:              req.PrincipalName,
		AcademicYear:               req.AcademicYear,
		Directorate:                req.Directorate,
		SchoolLevel:                req.SchoolLevel,
		DecisionPoints:             req.DecisionPoints,
		SupplementarySubjectsCount: req.SupplementarySubjectsCount,
		UpdatedAt:                  time.Now().UTC(),
	}
	if err := s.settings.Upsert(ctx, settings); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save settings")
	}
	s.logger.Info("school settings updated", zap.String("principal_id", principalID))
	return settings, nil
}

// CreateClass opens a class for a stage and section.
func (s *SchoolService) CreateClass(ctx context.Context, principalID string, req models.CreateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	class := &models.Class{
		ID:          uuid.NewString(),
		PrincipalID: principalID,
		Stage:       req.Stage,
		Section:     req.Section,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.classes.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	return class, nil
}

// ListClasses returns every class of the school.
func (s *SchoolService) ListClasses(ctx context.Context, principalID string) ([]models.Class, error) {
	classes, err := s.classes.ListByPrincipal(ctx, principalID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	return classes, nil
}

// Class returns one owned class with subjects.
func (s *SchoolService) Class(ctx context.Context, principalID, classID string) (*models.Class, error) {
	return s.ownedClass(ctx, principalID, classID)
}

// DeleteClass removes an owned class.
func (s *SchoolService) DeleteClass(ctx context.Context, principalID, classID string) error {
	if _, err := s.ownedClass(ctx, principalID, classID); err != nil {
		return err
	}
	if err := s.classes.Delete(ctx, classID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete class")
	}
	return nil
}

// AddSubject attaches a subject to an owned class.
func (s *SchoolService) AddSubject(ctx context.Context, principalID, classID string, req models.CreateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}
	if _, err := s.ownedClass(ctx, principalID, classID); err != nil {
		return nil, err
	}
	subject := &models.Subject{ID: uuid.NewString(), ClassID: classID, Name: req.Name}
	if err := s.classes.CreateSubject(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create subject")
	}
	return subject, nil
}

// RemoveSubject detaches a subject from an owned class.
func (s *SchoolService) RemoveSubject(ctx context.Context, principalID, classID, subjectID string) error {
	if _, err := s.ownedClass(ctx, principalID, classID); err != nil {
		return err
	}
	if err := s.classes.DeleteSubject(ctx, subjectID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete subject")
	}
	return nil
}

// AddStudent appends a roster entry to an owned class.
func (s *SchoolService) AddStudent(ctx context.Context, principalID, classID string, req models.StudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	if _, err := s.ownedClass(ctx, principalID, classID); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	student := &models.Student{
		ID:             uuid.NewString(),
		ClassID:        classID,
		Name:           req.Name,
		RegistrationID: req.RegistrationID,
		ExamID:         req.ExamID,
		BirthDate:      req.BirthDate,
		MotherName:     req.MotherName,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.students.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	return student, nil
}

// Roster lists the students of an owned class.
func (s *SchoolService) Roster(ctx context.Context, principalID, classID string) ([]models.Student, error) {
	if _, err := s.ownedClass(ctx, principalID, classID); err != nil {
		return nil, err
	}
	roster, err := s.students.ListByClass(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return roster, nil
}

// UpdateStudent rewrites the roster fields of an owned student.
func (s *SchoolService) UpdateStudent(ctx context.Context, principalID, studentID string, req models.StudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student, err := s.ownedStudent(ctx, principalID, studentID)
	if err != nil {
		return nil, err
	}
	student.Name = req.Name
	student.RegistrationID = req.RegistrationID
	student.ExamID = req.ExamID
	student.BirthDate = req.BirthDate
	student.MotherName = req.MotherName
	if err := s.students.Update(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	return student, nil
}

// RemoveStudent deletes a roster entry.
func (s *SchoolService) RemoveStudent(ctx context.Context, principalID, studentID string) error {
	if _, err := s.ownedStudent(ctx, principalID, studentID); err != nil {
		return err
	}
	if err := s.students.Delete(ctx, studentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete student")
	}
	return nil
}

func (s *SchoolService) ownedClass(ctx context.Context, principalID, classID string) (*models.Class, error) {
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

func (s *SchoolService) ownedStudent(ctx context.Context, principalID, studentID string) (*models.Student, error) {
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
