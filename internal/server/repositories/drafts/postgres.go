// Package drafts provides the PostgreSQL-backed draft store with
// optimistic-concurrency writes.
package drafts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/admitflow/admitflow/internal/common"
	"github.com/admitflow/admitflow/internal/dbx"
	"github.com/admitflow/admitflow/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, ownerID, draftType string) (*models.Draft, error) {
	query := `
		SELECT owner_id, draft_type, form_data, uploaded_files, current_step,
		       COALESCE(application_id::text, ''), version, updated_at
		FROM drafts
		WHERE owner_id = $1 AND draft_type = $2
	`
	d := &models.Draft{}
	err := r.db.QueryRowContext(ctx, query, ownerID, draftType).Scan(
		&d.OwnerID, &d.DraftType, &d.FormData, &d.UploadedFiles, &d.CurrentStep,
		&d.ApplicationID, &d.Version, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return d, nil
}

// Write performs the version-checked write as a single statement, so the
// version comparison and the update are atomic. expectedVersion == 0 takes
// the insert path; a concurrent insert loses and reports a conflict.
func (r *PostgresRepository) Write(ctx context.Context, d *models.Draft, expectedVersion int64) (int64, error) {
	if expectedVersion == 0 {
		query := `
			INSERT INTO drafts (owner_id, draft_type, form_data, uploaded_files, current_step, application_id, version, updated_at)
			VALUES ($1, $2, $3, $4, $5, NULLIF($6, '')::uuid, 1, now())
			ON CONFLICT (owner_id, draft_type) DO NOTHING
			RETURNING version
		`
		var version int64
		err := r.db.QueryRowContext(ctx, query,
			d.OwnerID, d.DraftType, d.FormData, d.UploadedFiles, d.CurrentStep, d.ApplicationID,
		).Scan(&version)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return 0, common.ErrVersionConflict
			}
			return 0, fmt.Errorf("db error: %w", err)
		}
		return version, nil
	}

	query := `
		UPDATE drafts
		SET form_data = $3, uploaded_files = $4, current_step = $5,
		    application_id = NULLIF($6, '')::uuid, version = version + 1, updated_at = now()
		WHERE owner_id = $1 AND draft_type = $2 AND version = $7
		RETURNING version
	`
	var version int64
	err := r.db.QueryRowContext(ctx, query,
		d.OwnerID, d.DraftType, d.FormData, d.UploadedFiles, d.CurrentStep, d.ApplicationID,
		expectedVersion,
	).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrVersionConflict
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return version, nil
}

func (r *PostgresRepository) CurrentVersion(ctx context.Context, ownerID, draftType string) (int64, error) {
	query := `SELECT version FROM drafts WHERE owner_id = $1 AND draft_type = $2`
	var version int64
	err := r.db.QueryRowContext(ctx, query, ownerID, draftType).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, common.ErrNotFound
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	return version, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, ownerID, draftType string) error {
	query := `DELETE FROM drafts WHERE owner_id = $1 AND draft_type = $2`
	if _, err := r.db.ExecContext(ctx, query, ownerID, draftType); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
