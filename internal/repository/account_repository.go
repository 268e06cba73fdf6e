package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/madrasati/madrasati-api/internal/models"
)

// AccountRepository provides database access for accounts and their
// role-specific profiles.
type AccountRepository struct {
	db *sqlx.DB
}

// NewAccountRepository creates a new instance of AccountRepository.
func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

const accountColumns = `id, role, name, access_code_hash, access_code_fingerprint, disabled, created_at, updated_at`

// FindByID returns an account by identifier.
func (r *AccountRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1 LIMIT 1`
	var account models.Account
	if err := r.db.GetContext(ctx, &account, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find account by id: %w", err)
	}
	return &account, nil
}

// FindByFingerprint returns the account matching an access-code digest.
func (r *AccountRepository) FindByFingerprint(ctx context.Context, fingerprint string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE access_code_fingerprint = $1 LIMIT 1`
	var account models.Account
	if err := r.db.GetContext(ctx, &account, query, fingerprint); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find account by fingerprint: %w", err)
	}
	return &account, nil
}

// Create inserts an account together with its role profile in one
// transaction so a crash cannot leave a profileless credential behind.
func (r *AccountRepository) Create(ctx context.Context, account *models.Account, profile *models.Profile) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create account: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insertAccount = `INSERT INTO accounts (id, role, name, access_code_hash, access_code_fingerprint, disabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := tx.ExecContext(ctx, insertAccount,
		account.ID, account.Role, account.Name, account.AccessCodeHash,
		account.AccessCodeFingerprint, account.Disabled, account.CreatedAt, account.UpdatedAt); err != nil {
		return fmt.Errorf("insert account: %w", err)
	}

	switch {
	case profile.Principal != nil:
		const q = `INSERT INTO principal_profiles (account_id, school_name, student_code_limit) VALUES ($1, $2, $3)`
		if _, err := tx.ExecContext(ctx, q, account.ID, profile.Principal.SchoolName, profile.Principal.StudentCodeLimit); err != nil {
			return fmt.Errorf("insert principal profile: %w", err)
		}
	case profile.Teacher != nil:
		const q = `INSERT INTO teacher_profiles (account_id, principal_id) VALUES ($1, $2)`
		if _, err := tx.ExecContext(ctx, q, account.ID, profile.Teacher.PrincipalID); err != nil {
			return fmt.Errorf("insert teacher profile: %w", err)
		}
		const qa = `INSERT INTO teacher_assignments (id, teacher_id, class_id, subject_id) VALUES ($1, $2, $3, $4)`
		for _, assignment := range profile.Teacher.Assignments {
			if _, err := tx.ExecContext(ctx, qa, assignment.ID, account.ID, assignment.ClassID, assignment.SubjectID); err != nil {
				return fmt.Errorf("insert teacher assignment: %w", err)
			}
		}
	case profile.Student != nil:
		const q = `INSERT INTO student_profiles (account_id, principal_id, student_id, class_id, stage, section)
			VALUES ($1, $2, $3, $4, $5, $6)`
		if _, err := tx.ExecContext(ctx, q, account.ID, profile.Student.PrincipalID, profile.Student.StudentID,
			profile.Student.ClassID, profile.Student.Stage, profile.Student.Section); err != nil {
			return fmt.Errorf("insert student profile: %w", err)
		}
	default:
		return fmt.Errorf("create account %s: missing role profile", account.ID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create account: %w", err)
	}
	return nil
}

// LoadProfile resolves the role payload for an account.
func (r *AccountRepository) LoadProfile(ctx context.Context, account *models.Account) (*models.Profile, error) {
	profile := &models.Profile{Account: *account}
	switch account.Role {
	case models.RolePrincipal:
		const q = `SELECT account_id, school_name, student_code_limit FROM principal_profiles WHERE account_id = $1`
		var p models.PrincipalProfile
		if err := r.db.GetContext(ctx, &p, q, account.ID); err != nil {
			return nil, fmt.Errorf("load principal profile: %w", err)
		}
		profile.Principal = &p
	case models.RoleTeacher:
		const q = `SELECT account_id, principal_id FROM teacher_profiles WHERE account_id = $1`
		var t models.TeacherProfile
		if err := r.db.GetContext(ctx, &t, q, account.ID); err != nil {
			return nil, fmt.Errorf("load teacher profile: %w", err)
		}
		const qa = `SELECT id, teacher_id, class_id, subject_id FROM teacher_assignments WHERE teacher_id = $1 ORDER BY id`
		if err := r.db.SelectContext(ctx, &t.Assignments, qa, account.ID); err != nil {
			return nil, fmt.Errorf("load teacher assignments: %w", err)
		}
		profile.Teacher = &t
	case models.RoleStudent:
		const q = `SELECT account_id, principal_id, student_id, class_id, stage, section FROM student_profiles WHERE account_id = $1`
		var s models.StudentProfile
		if err := r.db.GetContext(ctx, &s, q, account.ID); err != nil {
			return nil, fmt.Errorf("load student profile: %w", err)
		}
		profile.Student = &s
	default:
		return nil, fmt.Errorf("load profile: unknown role %q", account.Role)
	}
	return profile, nil
}

// SetDisabled toggles the account on or off.
func (r *AccountRepository) SetDisabled(ctx context.Context, id string, disabled bool) error {
	const query = `UPDATE accounts SET disabled = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, disabled); err != nil {
		return fmt.Errorf("set account disabled: %w", err)
	}
	return nil
}

// FindNames resolves account ids to display names for leaderboard rows.
func (r *AccountRepository) FindNames(ctx context.Context, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}
	const query = `SELECT id, name FROM accounts WHERE id = ANY($1)`
	var rows []struct {
		ID   string `db:"id"`
		Name string `db:"name"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find account names: %w", err)
	}
	names := make(map[string]string, len(rows))
	for _, row := range rows {
		names[row.ID] = row.Name
	}
	return names, nil
}

// CountStudentsByPrincipal counts issued student codes for the quota check.
func (r *AccountRepository) CountStudentsByPrincipal(ctx context.Context, principalID string) (int, error) {
	const query = `SELECT COUNT(*) FROM student_profiles WHERE principal_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, principalID); err != nil {
		return 0, fmt.Errorf("count students: %w", err)
	}
	return count, nil
}
