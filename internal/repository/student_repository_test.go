package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madrasati/madrasati-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() {
		sqlxDB.Close()
		db.Close()
	}
}

func scorePtr(v float64) *float64 {
	return &v
}

func TestStudentRepositoryUpsertGradeCellsWritesOnlyEnteredCells(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec("INSERT INTO subject_grades").
		WithArgs("stu-1", "sub-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE subject_grades SET october = \$3, mid_year = \$4, updated_at = NOW\(\)`).
		WithArgs("stu-1", "sub-1", 80.0, 65.5).
		WillReturnResult(sqlmock.NewResult(0, 1))

	grade := &models.SubjectGrade{
		StudentID: "stu-1",
		SubjectID: "sub-1",
		October:   scorePtr(80),
		MidYear:   scorePtr(65.5),
	}
	require.NoError(t, repo.UpsertGradeCells(context.Background(), grade))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryUpsertGradeCellsNoCellsIsNoop(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	grade := &models.SubjectGrade{StudentID: "stu-1", SubjectID: "sub-1"}
	require.NoError(t, repo.UpsertGradeCells(context.Background(), grade))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryGetGradeMissingRowIsEmptyRecord(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery("SELECT student_id, subject_id").
		WithArgs("stu-1", "sub-1").
		WillReturnRows(sqlmock.NewRows([]string{"student_id"}))

	grade, err := repo.GetGrade(context.Background(), "stu-1", "sub-1")
	require.NoError(t, err)
	assert.Equal(t, "stu-1", grade.StudentID)
	assert.Nil(t, grade.October)
	assert.Nil(t, grade.FinalExam1st)
}

func TestStudentRepositoryListByClass(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "class_id", "name", "registration_id", "exam_id", "birth_date", "mother_name", "created_at", "updated_at"}).
		AddRow("stu-1", "cls-1", "أحمد", "r-1", "e-1", "2012-03-01", "", now, now).
		AddRow("stu-2", "cls-1", "سارة", "r-2", "e-2", "2012-07-15", "", now, now)
	mock.ExpectQuery("SELECT id, class_id, name").
		WithArgs("cls-1").
		WillReturnRows(rows)

	students, err := repo.ListByClass(context.Background(), "cls-1")
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, "أحمد", students[0].Name)
}
