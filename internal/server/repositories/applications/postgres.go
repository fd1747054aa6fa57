// Package applications provides PostgreSQL-backed persistence for
// application records, keyed uniquely per (owner, program, intake).
package applications

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/admitflow/admitflow/internal/common"
	"github.com/admitflow/admitflow/internal/dbx"
	"github.com/admitflow/admitflow/internal/server/models"
)

const appColumns = `id, owner_id, program_code, intake_code, application_number, tracking_code,
	form_data, uploaded_files, status, payment_status, created_at, updated_at, submitted_at`

// PostgresRepository implements Repository over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanApplication(row *sql.Row) (*models.Application, error) {
	a := &models.Application{}
	err := row.Scan(
		&a.ID, &a.OwnerID, &a.ProgramCode, &a.IntakeCode, &a.ApplicationNumber, &a.TrackingCode,
		&a.FormData, &a.UploadedFiles, &a.Status, &a.PaymentStatus, &a.CreatedAt, &a.UpdatedAt, &a.SubmittedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) Create(ctx context.Context, a *models.Application) (*models.Application, error) {
	query := `
		INSERT INTO applications (owner_id, program_code, intake_code, application_number, tracking_code, form_data, uploaded_files)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + appColumns
	row := r.db.QueryRowContext(ctx, query,
		a.OwnerID, a.ProgramCode, a.IntakeCode, a.ApplicationNumber, a.TrackingCode, a.FormData, a.UploadedFiles)

	created, err := scanApplication(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, common.ErrDuplicateApplication
		}
		return nil, err
	}
	return created, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Application, error) {
	query := `SELECT ` + appColumns + ` FROM applications WHERE id = $1`
	return scanApplication(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) GetByTuple(ctx context.Context, ownerID, programCode, intakeCode string) (*models.Application, error) {
	query := `SELECT ` + appColumns + ` FROM applications
		WHERE owner_id = $1 AND program_code = $2 AND intake_code = $3`
	return scanApplication(r.db.QueryRowContext(ctx, query, ownerID, programCode, intakeCode))
}

// Update deliberately leaves application_number and tracking_code out of the
// SET list: once assigned they are immutable.
func (r *PostgresRepository) Update(ctx context.Context, a *models.Application) (*models.Application, error) {
	query := `
		UPDATE applications
		SET form_data = $2, uploaded_files = $3, payment_status = $4, updated_at = now()
		WHERE id = $1
		RETURNING ` + appColumns
	row := r.db.QueryRowContext(ctx, query, a.ID, a.FormData, a.UploadedFiles, a.PaymentStatus)
	return scanApplication(row)
}

func (r *PostgresRepository) MarkSubmitted(ctx context.Context, id string) (*models.Application, error) {
	query := `
		UPDATE applications
		SET status = 'submitted', submitted_at = COALESCE(submitted_at, now()), updated_at = now()
		WHERE id = $1
		RETURNING ` + appColumns
	return scanApplication(r.db.QueryRowContext(ctx, query, id))
}

func (r *PostgresRepository) NextApplicationNumber(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `SELECT nextval('application_number_seq')`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}
