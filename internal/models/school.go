package models

import "time"

// SchoolLevel selects which assessment periods feed the annual pursuit.
type SchoolLevel string

const (
	LevelPrimary             SchoolLevel = "ابتدائية"
	LevelMiddle              SchoolLevel = "متوسطة"
	LevelPreparatory         SchoolLevel = "اعدادية"
	LevelSecondary           SchoolLevel = "ثانوية"
	LevelPrepScientific      SchoolLevel = "اعدادي علمي"
	LevelPrepLiterary        SchoolLevel = "اعدادي ادبي"
	LevelSecondaryScientific SchoolLevel = "ثانوية علمي"
	LevelSecondaryLiterary   SchoolLevel = "ثانوية ادبي"
)

// IsPrimary reports whether the level uses term aggregates instead of
// monthly scores for the annual pursuit.
func (l SchoolLevel) IsPrimary() bool {
	return l == LevelPrimary
}

// SchoolSettings is the principal-scoped policy record.
type SchoolSettings struct {
	PrincipalID                string      `db:"principal_id" json:"principal_id"`
	SchoolName                 string      `db:"school_name" json:"school_name"`
	PrincipalName              string      `db:"principal_name" json:"principal_name"`
	AcademicYear               string      `db:"academic_year" json:"academic_year"`
	Directorate                string      `db:"directorate" json:"directorate"`
	SchoolLevel                SchoolLevel `db:"school_level" json:"school_level"`
	DecisionPoints             int         `db:"decision_points" json:"decision_points"`
	SupplementarySubjectsCount int         `db:"supplementary_subjects_count" json:"supplementary_subjects_count"`
	UpdatedAt                  time.Time   `db:"updated_at" json:"updated_at"`
}

// SettingsRequest updates the school policy record.
type SettingsRequest struct {
	SchoolName                 string      `json:"school_name" validate:"required,max=200"`
	PrincipalName              string      `json:"principal_name" validate:"max=120"`
	AcademicYear               string      `json:"academic_year" validate:"required,max=20"`
	Directorate                string      `json:"directorate" validate:"max=200"`
	SchoolLevel                SchoolLevel `json:"school_level" validate:"required"`
	DecisionPoints             int         `json:"decision_points" validate:"gte=0,lte=100"`
	SupplementarySubjectsCount int         `json:"supplementary_subjects_count" validate:"gte=0,lte=12"`
}

// CreateClassRequest opens a class for one stage and section.
type CreateClassRequest struct {
	Stage   string `json:"stage" validate:"required,max=60"`
	Section string `json:"section" validate:"required,max=20"`
}

// CreateSubjectRequest adds a subject to a class.
type CreateSubjectRequest struct {
	Name string `json:"name" validate:"required,max=120"`
}

// Subject is a taught subject within a class.
type Subject struct {
	ID      string `db:"id" json:"id"`
	ClassID string `db:"class_id" json:"class_id"`
	Name    string `db:"name" json:"name"`
}

// Class groups students of one stage and section.
type Class struct {
	ID          string    `db:"id" json:"id"`
	PrincipalID string    `db:"principal_id" json:"principal_id"`
	Stage       string    `db:"stage" json:"stage"`
	Section     string    `db:"section" json:"section"`
	Subjects    []Subject `json:"subjects,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
