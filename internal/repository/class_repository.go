package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/madrasati/madrasati-api/internal/models"
)

// ClassRepository provides database access for classes and their subjects.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository creates a new instance of ClassRepository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// Create inserts a class.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	const query = `INSERT INTO classes (id, principal_id, stage, section, created_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(ctx, query, class.ID, class.PrincipalID, class.Stage, class.Section, class.CreatedAt); err != nil {
		return fmt.Errorf("insert class: %w", err)
	}
	return nil
}

// FindByID returns a class with its subjects.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	const query = `SELECT id, principal_id, stage, section, created_at FROM classes WHERE id = $1 LIMIT 1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find class by id: %w", err)
	}
	subjects, err := r.ListSubjects(ctx, id)
	if err != nil {
		return nil, err
	}
	class.Subjects = subjects
	return &class, nil
}

// ListByPrincipal returns every class of a school ordered by stage and section.
func (r *ClassRepository) ListByPrincipal(ctx context.Context, principalID string) ([]models.Class, error) {
	const query = `SELECT id, principal_id, stage, section, created_at FROM classes
		WHERE principal_id = $1 ORDER BY stage, section`
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query, principalID); err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return classes, nil
}

// Delete removes a class. Roster rows cascade at the schema level.
func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM classes WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	return nil
}

// CreateSubject adds a subject to a class.
func (r *ClassRepository) CreateSubject(ctx context.Context, subject *models.Subject) error {
	const query = `INSERT INTO subjects (id, class_id, name) VALUES ($1, $2, $3)`
	if _, err := r.db.ExecContext(ctx, query, subject.ID, subject.ClassID, subject.Name); err != nil {
		return fmt.Errorf("insert subject: %w", err)
	}
	return nil
}

// ListSubjects returns the subjects of a class ordered by identifier. The
// ordering matters: the decision-point budget is spent in this order.
func (r *ClassRepository) ListSubjects(ctx context.Context, classID string) ([]models.Subject, error) {
	const query = `SELECT id, class_id, name FROM subjects WHERE class_id = $1 ORDER BY id`
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, classID); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	return subjects, nil
}

// DeleteSubject removes a subject from a class.
func (r *ClassRepository) DeleteSubject(ctx context.Context, id string) error {
	const query = `DELETE FROM subjects WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete subject: %w", err)
	}
	return nil
}
