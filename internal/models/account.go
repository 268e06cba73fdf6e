package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role identifies the account variant.
type Role string

const (
	RolePrincipal Role = "principal"
	RoleTeacher   Role = "teacher"
	RoleStudent   Role = "student"
)

// Account is the stored credential record shared by all roles. Role-specific
// data lives on the typed profile structs below, not as optional fields here.
type Account struct {
	ID             string    `db:"id" json:"id"`
	Role           Role      `db:"role" json:"role"`
	Name           string    `db:"name" json:"name"`
	AccessCodeHash string    `db:"access_code_hash" json:"-"`
	// AccessCodeFingerprint is a deterministic digest used to locate the
	// account before the bcrypt comparison.
	AccessCodeFingerprint string    `db:"access_code_fingerprint" json:"-"`
	Disabled              bool      `db:"disabled" json:"disabled"`
	CreatedAt             time.Time `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time `db:"updated_at" json:"updated_at"`
}

// PrincipalProfile is the principal-specific account payload.
type PrincipalProfile struct {
	AccountID        string `db:"account_id" json:"account_id"`
	SchoolName       string `db:"school_name" json:"school_name"`
	StudentCodeLimit int    `db:"student_code_limit" json:"student_code_limit"`
}

// TeacherProfile is the teacher-specific account payload.
type TeacherProfile struct {
	AccountID   string              `db:"account_id" json:"account_id"`
	PrincipalID string              `db:"principal_id" json:"principal_id"`
	Assignments []TeacherAssignment `json:"assignments"`
}

// TeacherAssignment binds a teacher to a class and subject.
type TeacherAssignment struct {
	ID        string `db:"id" json:"id"`
	TeacherID string `db:"teacher_id" json:"teacher_id"`
	ClassID   string `db:"class_id" json:"class_id"`
	SubjectID string `db:"subject_id" json:"subject_id"`
}

// StudentProfile is the student-specific account payload.
type StudentProfile struct {
	AccountID   string `db:"account_id" json:"account_id"`
	PrincipalID string `db:"principal_id" json:"principal_id"`
	StudentID   string `db:"student_id" json:"student_id"`
	ClassID     string `db:"class_id" json:"class_id"`
	Stage       string `db:"stage" json:"stage"`
	Section     string `db:"section" json:"section"`
}

// Profile is the tagged union returned after authentication. Exactly one of
// the role payloads is non-nil, selected by Account.Role.
type Profile struct {
	Account   Account           `json:"account"`
	Principal *PrincipalProfile `json:"principal,omitempty"`
	Teacher   *TeacherProfile   `json:"teacher,omitempty"`
	Student   *StudentProfile   `json:"student,omitempty"`
}

// JWTClaims are the custom claims embedded in access tokens.
type JWTClaims struct {
	AccountID   string `json:"account_id"`
	Role        Role   `json:"role"`
	Name        string `json:"name"`
	PrincipalID string `json:"principal_id,omitempty"`
	jwt.RegisteredClaims
}

// IssueAccountRequest creates a teacher or student access code. Principals
// are provisioned out of band, not through this endpoint.
type IssueAccountRequest struct {
	Role        Role                `json:"role" validate:"required,oneof=teacher student"`
	Name        string              `json:"name" validate:"required,max=120"`
	StudentID   string              `json:"student_id,omitempty"`
	ClassID     string              `json:"class_id,omitempty"`
	Stage       string              `json:"stage,omitempty"`
	Section     string              `json:"section,omitempty"`
	Assignments []TeacherAssignment `json:"assignments,omitempty"`
}

// IssueAccountResponse returns the profile and the plaintext access code.
// The code is shown exactly once; only its hash is stored.
type IssueAccountResponse struct {
	Profile    Profile `json:"profile"`
	AccessCode string  `json:"access_code"`
}

// LoginRequest authenticates via access code.
type LoginRequest struct {
	AccessCode string `json:"access_code" validate:"required,min=4"`
	IP         string `json:"-"`
	UserAgent  string `json:"-"`
}

// LoginResponse carries the issued token and the resolved profile.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	IssuedAt    time.Time `json:"issued_at"`
	Profile     Profile   `json:"profile"`
}
