package models

import "time"

// Student is a class roster entry. Grade cells are owned by the student and
// overwritten per field, never deleted.
type Student struct {
	ID             string    `db:"id" json:"id"`
	ClassID        string    `db:"class_id" json:"class_id"`
	Name           string    `db:"name" json:"name"`
	RegistrationID string    `db:"registration_id" json:"registration_id"`
	ExamID         string    `db:"exam_id" json:"exam_id"`
	BirthDate      string    `db:"birth_date" json:"birth_date"`
	MotherName     string    `db:"mother_name" json:"mother_name,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// StudentRequest creates or updates a roster entry.
type StudentRequest struct {
	Name           string `json:"name" validate:"required,max=120"`
	RegistrationID string `json:"registration_id" validate:"max=60"`
	ExamID         string `json:"exam_id" validate:"max=60"`
	BirthDate      string `json:"birth_date" validate:"max=20"`
	MotherName     string `json:"mother_name" validate:"max=120"`
}

// SubjectGrade holds the raw per-period scores of one student in one
// subject. Nil means "not entered"; a recorded zero counts toward averages.
type SubjectGrade struct {
	StudentID string `db:"student_id" json:"student_id"`
	SubjectID string `db:"subject_id" json:"subject_id"`

	October  *float64 `db:"october" json:"october"`
	November *float64 `db:"november" json:"november"`
	December *float64 `db:"december" json:"december"`
	January  *float64 `db:"january" json:"january"`
	February *float64 `db:"february" json:"february"`
	March    *float64 `db:"march" json:"march"`
	April    *float64 `db:"april" json:"april"`

	FirstTerm    *float64 `db:"first_term" json:"first_term"`
	MidYear      *float64 `db:"mid_year" json:"mid_year"`
	SecondTerm   *float64 `db:"second_term" json:"second_term"`
	FinalExam1st *float64 `db:"final_exam_1st" json:"final_exam_1st"`
	FinalExam2nd *float64 `db:"final_exam_2nd" json:"final_exam_2nd"`

	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// MonthlyScores returns the monthly cells in chronological order.
func (g SubjectGrade) MonthlyScores() []*float64 {
	return []*float64{g.October, g.November, g.December, g.January, g.February, g.March, g.April}
}
