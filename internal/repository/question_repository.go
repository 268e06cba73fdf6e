package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/madrasati/madrasati-api/internal/models"
)

// QuestionRepository provides database access for the trivia question bank.
// Questions are immutable: there is no update statement here on purpose.
type QuestionRepository struct {
	db *sqlx.DB
}

// NewQuestionRepository creates a new instance of QuestionRepository.
func NewQuestionRepository(db *sqlx.DB) *QuestionRepository {
	return &QuestionRepository{db: db}
}

// questionRow flattens the four options into columns for sqlx scanning.
type questionRow struct {
	ID                 string `db:"id"`
	PrincipalID        string `db:"principal_id"`
	Grade              string `db:"grade"`
	Subject            string `db:"subject"`
	Chapter            string `db:"chapter"`
	QuestionText       string `db:"question_text"`
	OptionA            string `db:"option_a"`
	OptionB            string `db:"option_b"`
	OptionC            string `db:"option_c"`
	OptionD            string `db:"option_d"`
	CorrectOptionIndex int    `db:"correct_option_index"`
	CreatedBy          string `db:"created_by"`
	CreatorName        string `db:"creator_name"`
	CreatorSchool      string `db:"creator_school"`
}

func (row questionRow) toModel() models.XOQuestion {
	return models.XOQuestion{
		ID:                 row.ID,
		PrincipalID:        row.PrincipalID,
		Grade:              row.Grade,
		Subject:            row.Subject,
		Chapter:            row.Chapter,
		QuestionText:       row.QuestionText,
		Options:            [4]string{row.OptionA, row.OptionB, row.OptionC, row.OptionD},
		CorrectOptionIndex: row.CorrectOptionIndex,
		CreatedBy:          row.CreatedBy,
		CreatorName:        row.CreatorName,
		CreatorSchool:      row.CreatorSchool,
	}
}

const questionColumns = `id, principal_id, grade, subject, chapter, question_text,
		option_a, option_b, option_c, option_d, correct_option_index, created_by, creator_name, creator_school`

// Create inserts a question.
func (r *QuestionRepository) Create(ctx context.Context, question *models.XOQuestion) error {
	query := `INSERT INTO xo_questions (` + questionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	if _, err := r.db.ExecContext(ctx, query,
		question.ID, question.PrincipalID, question.Grade, question.Subject, question.Chapter,
		question.QuestionText, question.Options[0], question.Options[1], question.Options[2], question.Options[3],
		question.CorrectOptionIndex, question.CreatedBy, question.CreatorName, question.CreatorSchool); err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	return nil
}

// FindByID returns a question by identifier.
func (r *QuestionRepository) FindByID(ctx context.Context, id string) (*models.XOQuestion, error) {
	query := `SELECT ` + questionColumns + ` FROM xo_questions WHERE id = $1 LIMIT 1`
	var row questionRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find question by id: %w", err)
	}
	question := row.toModel()
	return &question, nil
}

// QuestionFilter narrows question listings.
type QuestionFilter struct {
	PrincipalID string
	Grade       string
	Subject     string
	Chapter     string
	// AuthorKind is "ai", "teacher" or empty for both.
	AuthorKind string
	Page       int
	PageSize   int
}

// List returns questions matching the filter with the total count.
func (r *QuestionRepository) List(ctx context.Context, filter QuestionFilter) ([]models.XOQuestion, int, error) {
	baseQuery := `FROM xo_questions WHERE principal_id = $1`
	args := []interface{}{filter.PrincipalID}

	var conditions []string
	if filter.Grade != "" {
		conditions = append(conditions, fmt.Sprintf("grade = $%d", len(args)+1))
		args = append(args, filter.Grade)
	}
	if filter.Subject != "" {
		conditions = append(conditions, fmt.Sprintf("subject = $%d", len(args)+1))
		args = append(args, filter.Subject)
	}
	if filter.Chapter != "" {
		conditions = append(conditions, fmt.Sprintf("chapter = $%d", len(args)+1))
		args = append(args, filter.Chapter)
	}
	switch filter.AuthorKind {
	case models.AIAuthorTag:
		conditions = append(conditions, fmt.Sprintf("created_by = $%d", len(args)+1))
		args = append(args, models.AIAuthorTag)
	case "teacher":
		conditions = append(conditions, fmt.Sprintf("created_by <> $%d", len(args)+1))
		args = append(args, models.AIAuthorTag)
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+baseQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count questions: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	query := fmt.Sprintf("SELECT %s %s ORDER BY id LIMIT $%d OFFSET $%d",
		questionColumns, baseQuery, len(args)+1, len(args)+2)
	args = append(args, pageSize, (page-1)*pageSize)

	var rows []questionRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list questions: %w", err)
	}
	questions := make([]models.XOQuestion, 0, len(rows))
	for _, row := range rows {
		questions = append(questions, row.toModel())
	}
	return questions, total, nil
}

// Draw returns one random question for a match round, skipping ids the
// match has already used. sql.ErrNoRows means the bank ran dry.
func (r *QuestionRepository) Draw(ctx context.Context, principalID, grade, subject string, exclude []string) (*models.XOQuestion, error) {
	query := `SELECT ` + questionColumns + ` FROM xo_questions
		WHERE principal_id = $1 AND grade = $2 AND subject = $3 AND NOT (id = ANY($4))
		ORDER BY RANDOM() LIMIT 1`
	if exclude == nil {
		exclude = []string{}
	}
	var row questionRow
	if err := r.db.GetContext(ctx, &row, query, principalID, grade, subject, pq.Array(exclude)); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("draw question: %w", err)
	}
	question := row.toModel()
	return &question, nil
}

// CountByChapter backs the per-chapter authoring cap.
func (r *QuestionRepository) CountByChapter(ctx context.Context, principalID, grade, subject, chapter string) (int, error) {
	const query = `SELECT COUNT(*) FROM xo_questions
		WHERE principal_id = $1 AND grade = $2 AND subject = $3 AND chapter = $4`
	var count int
	if err := r.db.GetContext(ctx, &count, query, principalID, grade, subject, chapter); err != nil {
		return 0, fmt.Errorf("count questions by chapter: %w", err)
	}
	return count, nil
}

// Delete removes a question from the bank. Matches that already drew it
// keep their embedded copy.
func (r *QuestionRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM xo_questions WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	return nil
}
