package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/madrasati/madrasati-api/internal/models"
)

// SettingsRepository stores the per-school policy record.
type SettingsRepository struct {
	db *sqlx.DB
}

// NewSettingsRepository creates a new instance of SettingsRepository.
func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get returns the settings for a principal.
func (r *SettingsRepository) Get(ctx context.Context, principalID string) (*models.SchoolSettings, error) {
	const query = `SELECT principal_id, school_name, principal_name, academic_year, directorate, school_level,
		decision_points, supplementary_subjects_count, updated_at
		FROM school_settings WHERE principal_id = $1 LIMIT 1`
	var settings models.SchoolSettings
	if err := r.db.GetContext(ctx, &settings, query, principalID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get school settings: %w", err)
	}
	return &settings, nil
}

// Upsert creates or replaces the settings record for a principal.
func (r *SettingsRepository) Upsert(ctx context.Context, settings *models.SchoolSettings) error {
	const query = `INSERT INTO school_settings (principal_id, school_name, principal_name, academic_year, directorate,
		school_level, decision_points, supplementary_subjects_count, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (principal_id) DO UPDATE SET
			school_name = EXCLUDED.school_name,
			principal_name = EXCLUDED.principal_name,
			academic_year = EXCLUDED.academic_year,
			directorate = EXCLUDED.directorate,
			school_level = EXCLUDED.school_level,
			decision_points = EXCLUDED.decision_points,
			supplementary_subjects_count = EXCLUDED.supplementary_subjects_count,
			updated_at = NOW()`
	if _, err := r.db.ExecContext(ctx, query,
		settings.PrincipalID, settings.SchoolName, settings.PrincipalName, settings.AcademicYear,
		settings.Directorate, settings.SchoolLevel, settings.DecisionPoints, settings.SupplementarySubjectsCount); err != nil {
		return fmt.Errorf("upsert school settings: %w", err)
	}
	return nil
}
