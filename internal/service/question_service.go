package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/madrasati/madrasati-api/internal/models"
	"github.com/madrasati/madrasati-api/internal/repository"
	appErrors "github.com/madrasati/madrasati-api/pkg/errors"
)

// maxQuestionsPerChapter caps authoring so one chapter cannot flood the
// random draw.
const maxQuestionsPerChapter = 50

type questionRepository interface {
	Create(ctx context.Context, question *models.XOQuestion) error
	FindByID(ctx context.Context, id string) (*models.XOQuestion, error)
	List(ctx context.Context, filter repository.QuestionFilter) ([]models.XOQuestion, int, error)
	Draw(ctx context.Context, principalID, grade, subject string, exclude []string) (*models.XOQuestion, error)
	CountByChapter(ctx context.Context, principalID, grade, subject, chapter string) (int, error)
	Delete(ctx context.Context, id string) error
}

// QuestionService manages the immutable trivia bank.
type QuestionService struct {
	repo      questionRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewQuestionService constructs a QuestionService instance.
func NewQuestionService(repo questionRepository, validate *validator.Validate, logger *zap.Logger) *QuestionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &QuestionService{repo: repo, validator: validate, logger: logger}
}

// Author identifies who is creating a question.
type Author struct {
	ID     string
	Name   string
	School string
}

// Create authors a new bank item under the chapter cap.
func (s *QuestionService) Create(ctx context.Context, principalID string, author Author, req models.CreateQuestionRequest) (*models.XOQuestion, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	count, err := s.repo.CountByChapter(ctx, principalID, req.Grade, req.Subject, req.Chapter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count questions")
	}
	if count >= maxQuestionsPerChapter {
		return nil, appErrors.Clone(appErrors.ErrConflict,
			fmt.Sprintf("chapter already holds the maximum of %d questions", maxQuestionsPerChapter))
	}

	question := &models.XOQuestion{
		ID:                 uuid.NewString(),
		PrincipalID:        principalID,
		Grade:              req.Grade,
		Subject:            req.Subject,
		Chapter:            req.Chapter,
		QuestionText:       req.QuestionText,
		Options:            req.Options,
		CorrectOptionIndex: req.CorrectOptionIndex,
		CreatedBy:          author.ID,
		CreatorName:        author.Name,
		CreatorSchool:      author.School,
	}
	if err := s.repo.Create(ctx, question); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create question")
	}
	return question, nil
}

// Replace retires a question and creates its successor. Bank items are
// immutable, so an edit is a new id; matches that already drew the old
// item keep their embedded copy.
func (s *QuestionService) Replace(ctx context.Context, principalID string, author Author, questionID string, req models.CreateQuestionRequest) (*models.XOQuestion, error) {
	existing, err := s.repo.FindByID(ctx, questionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "question not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load question")
	}
	if existing.PrincipalID != principalID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "question belongs to another school")
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	replacement := &models.XOQuestion{
		ID:                 uuid.NewString(),
		PrincipalID:        principalID,
		Grade:              req.Grade,
		Subject:            req.Subject,
		Chapter:            req.Chapter,
		QuestionText:       req.QuestionText,
		Options:            req.Options,
		CorrectOptionIndex: req.CorrectOptionIndex,
		CreatedBy:          author.ID,
		CreatorName:        author.Name,
		CreatorSchool:      author.School,
	}
	if err := s.repo.Create(ctx, replacement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create replacement")
	}
	if err := s.repo.Delete(ctx, questionID); err != nil {
		s.logger.Warn("failed to retire replaced question",
			zap.String("question_id", questionID), zap.Error(err))
	}
	return replacement, nil
}

// List returns bank items matching the filter.
func (s *QuestionService) List(ctx context.Context, filter repository.QuestionFilter) ([]models.XOQuestion, int, error) {
	questions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list questions")
	}
	return questions, total, nil
}

// Delete removes a bank item owned by the school.
func (s *QuestionService) Delete(ctx context.Context, principalID, questionID string) error {
	existing, err := s.repo.FindByID(ctx, questionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "question not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load question")
	}
	if existing.PrincipalID != principalID {
		return appErrors.Clone(appErrors.ErrForbidden, "question belongs to another school")
	}
	if err := s.repo.Delete(ctx, questionID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete question")
	}
	return nil
}

// Draw satisfies the match coordinator's question source.
func (s *QuestionService) Draw(ctx context.Context, principalID, grade, subject string, exclude []string) (*models.XOQuestion, error) {
	question, err := s.repo.Draw(ctx, principalID, grade, subject, exclude)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no unused questions left for this subject")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to draw question")
	}
	return question, nil
}

func (s *QuestionService) validateRequest(req models.CreateQuestionRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid question payload")
	}
	for _, option := range req.Options {
		if strings.TrimSpace(option) == "" {
			return appErrors.Clone(appErrors.ErrValidation, "all four options are required")
		}
	}
	return nil
}
