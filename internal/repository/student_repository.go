package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/madrasati/madrasati-api/internal/models"
)

// StudentRepository provides database access for class rosters and the
// per-subject grade cells.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository creates a new instance of StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// Create inserts a roster entry.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	const query = `INSERT INTO students (id, class_id, name, registration_id, exam_id, birth_date, mother_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := r.db.ExecContext(ctx, query,
		student.ID, student.ClassID, student.Name, student.RegistrationID, student.ExamID,
		student.BirthDate, student.MotherName, student.CreatedAt, student.UpdatedAt); err != nil {
		return fmt.Errorf("insert student: %w", err)
	}
	return nil
}

// FindByID returns a student by identifier.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT id, class_id, name, registration_id, exam_id, birth_date, mother_name, created_at, updated_at
		FROM students WHERE id = $1 LIMIT 1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student by id: %w", err)
	}
	return &student, nil
}

// ListByClass returns the roster of a class in name order.
func (r *StudentRepository) ListByClass(ctx context.Context, classID string) ([]models.Student, error) {
	const query = `SELECT id, class_id, name, registration_id, exam_id, birth_date, mother_name, created_at, updated_at
		FROM students WHERE class_id = $1 ORDER BY name`
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, classID); err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	return students, nil
}

// Update rewrites the editable roster fields.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	const query = `UPDATE students SET name = $2, registration_id = $3, exam_id = $4, birth_date = $5,
		mother_name = $6, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query,
		student.ID, student.Name, student.RegistrationID, student.ExamID, student.BirthDate, student.MotherName); err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	return nil
}

// Delete removes a student and, via the schema, the attached grade cells.
func (r *StudentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM students WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	return nil
}

const gradeColumns = `student_id, subject_id, october, november, december, january, february, march, april,
		first_term, mid_year, second_term, final_exam_1st, final_exam_2nd, updated_at`

// GetGrade returns one student's cells in one subject. A missing row comes
// back as an empty record, not an error: nothing entered yet.
func (r *StudentRepository) GetGrade(ctx context.Context, studentID, subjectID string) (*models.SubjectGrade, error) {
	query := `SELECT ` + gradeColumns + ` FROM subject_grades WHERE student_id = $1 AND subject_id = $2 LIMIT 1`
	var grade models.SubjectGrade
	if err := r.db.GetContext(ctx, &grade, query, studentID, subjectID); err != nil {
		if err == sql.ErrNoRows {
			return &models.SubjectGrade{StudentID: studentID, SubjectID: subjectID}, nil
		}
		return nil, fmt.Errorf("get grade: %w", err)
	}
	return &grade, nil
}

// ListGradesByStudent returns every subject row of one student.
func (r *StudentRepository) ListGradesByStudent(ctx context.Context, studentID string) ([]models.SubjectGrade, error) {
	query := `SELECT ` + gradeColumns + ` FROM subject_grades WHERE student_id = $1 ORDER BY subject_id`
	var grades []models.SubjectGrade
	if err := r.db.SelectContext(ctx, &grades, query, studentID); err != nil {
		return nil, fmt.Errorf("list grades by student: %w", err)
	}
	return grades, nil
}

// ListGradesByClass returns all grade rows of a class roster in one query
// for the result-sheet recompute.
func (r *StudentRepository) ListGradesByClass(ctx context.Context, classID string) ([]models.SubjectGrade, error) {
	const query = `SELECT g.student_id, g.subject_id, g.october, g.november, g.december, g.january, g.february,
		g.march, g.april, g.first_term, g.mid_year, g.second_term, g.final_exam_1st, g.final_exam_2nd, g.updated_at
		FROM subject_grades g JOIN students s ON s.id = g.student_id
		WHERE s.class_id = $1 ORDER BY g.student_id, g.subject_id`
	var grades []models.SubjectGrade
	if err := r.db.SelectContext(ctx, &grades, query, classID); err != nil {
		return nil, fmt.Errorf("list grades by class: %w", err)
	}
	return grades, nil
}

// gradeCells maps updatable column names to the incoming values. Only
// non-nil cells make it into the UPDATE: entered scores overwrite, absent
// ones never erase what a colleague already recorded.
func gradeCells(grade *models.SubjectGrade) ([]string, []interface{}) {
	cells := []struct {
		column string
		value  *float64
	}{
		{"october", grade.October},
		{"november", grade.November},
		{"december", grade.December},
		{"january", grade.January},
		{"february", grade.February},
		{"march", grade.March},
		{"april", grade.April},
		{"first_term", grade.FirstTerm},
		{"mid_year", grade.MidYear},
		{"second_term", grade.SecondTerm},
		{"final_exam_1st", grade.FinalExam1st},
		{"final_exam_2nd", grade.FinalExam2nd},
	}
	var columns []string
	var values []interface{}
	for _, cell := range cells {
		if cell.value != nil {
			columns = append(columns, cell.column)
			values = append(values, *cell.value)
		}
	}
	return columns, values
}

// UpsertGradeCells writes the provided cells for one student and subject.
func (r *StudentRepository) UpsertGradeCells(ctx context.Context, grade *models.SubjectGrade) error {
	columns, values := gradeCells(grade)
	if len(columns) == 0 {
		return nil
	}

	const ensure = `INSERT INTO subject_grades (student_id, subject_id, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (student_id, subject_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, ensure, grade.StudentID, grade.SubjectID); err != nil {
		return fmt.Errorf("ensure grade row: %w", err)
	}

	assignments := make([]string, 0, len(columns)+1)
	for i, column := range columns {
		assignments = append(assignments, fmt.Sprintf("%s = $%d", column, i+3))
	}
	assignments = append(assignments, "updated_at = NOW()")
	query := fmt.Sprintf(`UPDATE subject_grades SET %s WHERE student_id = $1 AND subject_id = $2`,
		strings.Join(assignments, ", "))

	args := append([]interface{}{grade.StudentID, grade.SubjectID}, values...)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert grade cells: %w", err)
	}
	return nil
}
