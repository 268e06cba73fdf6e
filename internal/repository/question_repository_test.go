package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madrasati/madrasati-api/internal/models"
)

var questionRowColumns = []string{
	"id", "principal_id", "grade", "subject", "chapter", "question_text",
	"option_a", "option_b", "option_c", "option_d", "correct_option_index",
	"created_by", "creator_name", "creator_school",
}

func TestQuestionRepositoryDrawMapsOptions(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewQuestionRepository(db)

	rows := sqlmock.NewRows(questionRowColumns).
		AddRow("q-1", "school-1", "الصف الثاني", "العلوم", "الفصل الأول", "ما هو؟",
			"أ", "ب", "ج", "د", 2, "teacher-1", "أستاذ كريم", "مدرسة النور")
	mock.ExpectQuery("SELECT id, principal_id").
		WithArgs("school-1", "الصف الثاني", "العلوم", sqlmock.AnyArg()).
		WillReturnRows(rows)

	question, err := repo.Draw(context.Background(), "school-1", "الصف الثاني", "العلوم", []string{"q-0"})
	require.NoError(t, err)
	assert.Equal(t, [4]string{"أ", "ب", "ج", "د"}, question.Options)
	assert.Equal(t, 2, question.CorrectOptionIndex)
}

func TestQuestionRepositoryListFiltersByAuthorKind(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewQuestionRepository(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM xo_questions WHERE principal_id = \$1 AND created_by = \$2`).
		WithArgs("school-1", models.AIAuthorTag).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("SELECT id, principal_id").
		WithArgs("school-1", models.AIAuthorTag, 20, 0).
		WillReturnRows(sqlmock.NewRows(questionRowColumns).
			AddRow("q-1", "school-1", "", "", "", "نص", "أ", "ب", "ج", "د", 0, models.AIAuthorTag, "", ""))

	questions, total, err := repo.List(context.Background(), QuestionFilter{
		PrincipalID: "school-1",
		AuthorKind:  models.AIAuthorTag,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, questions, 1)
	assert.Equal(t, models.AIAuthorTag, questions[0].CreatedBy)
}

func TestQuestionRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewQuestionRepository(db)

	mock.ExpectExec("INSERT INTO xo_questions").
		WithArgs("q-1", "school-1", "الصف الثاني", "العلوم", "", "نص السؤال",
			"أ", "ب", "ج", "د", 1, "teacher-1", "أستاذ كريم", "").
		WillReturnResult(sqlmock.NewResult(0, 1))

	question := &models.XOQuestion{
		ID:                 "q-1",
		PrincipalID:        "school-1",
		Grade:              "الصف الثاني",
		Subject:            "العلوم",
		QuestionText:       "نص السؤال",
		Options:            [4]string{"أ", "ب", "ج", "د"},
		CorrectOptionIndex: 1,
		CreatedBy:          "teacher-1",
		CreatorName:        "أستاذ كريم",
	}
	require.NoError(t, repo.Create(context.Background(), question))
	require.NoError(t, mock.ExpectationsWereMet())
}
