package services

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/go-playground/validator/v10"

	"github.com/admitflow/admitflow/internal/common"
	"github.com/admitflow/admitflow/internal/dbx"
	"github.com/admitflow/admitflow/internal/logging"
	"github.com/admitflow/admitflow/internal/server/models"
	"github.com/admitflow/admitflow/internal/server/repositories/repomanager"
)

const trackingCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// ApplicationService creates, updates and finalizes application records.
// Identity (application_number, tracking_code) is assigned exactly once.
type ApplicationService struct {
	db       *sql.DB
	repos    repomanager.RepositoryManager
	validate *validator.Validate
	logger   logging.Logger
}

func NewApplicationService(db *sql.DB, repos repomanager.RepositoryManager, logger logging.Logger) *ApplicationService {
	return &ApplicationService{
		db:       db,
		repos:    repos,
		validate: validator.New(),
		logger:   logger.With("component", "application_service"),
	}
}

// CreateInput carries the fields needed to open an application.
type CreateInput struct {
	ProgramCode   string
	IntakeCode    string
	FormData      []byte
	UploadedFiles []byte
}

// UpdateInput carries the mutable fields of an existing application.
type UpdateInput struct {
	FormData      []byte
	UploadedFiles []byte
	PaymentStatus models.PaymentStatus
}

// generateTrackingCode returns "TRK" followed by six characters from an
// alphabet without 0/O/1/I.
func generateTrackingCode() (string, error) {
	code := make([]byte, 6)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(trackingCodeAlphabet))))
		if err != nil {
			return "", err
		}
		code[i] = trackingCodeAlphabet[n.Int64()]
	}
	return "TRK" + string(code), nil
}

// Create opens an application for (ownerID, program, intake). The call is
// idempotent: when a row for the tuple already exists it is returned with its
// original identifiers, so a retried create can never produce a duplicate.
func (s *ApplicationService) Create(ctx context.Context, ownerID string, in CreateInput) (*models.Application, error) {
	repo := s.repos.Applications(s.db)

	if existing, err := repo.GetByTuple(ctx, ownerID, in.ProgramCode, in.IntakeCode); err == nil {
		s.logger.Info(ctx, "application already exists, reusing identity",
			"owner_id", ownerID, "application_number", existing.ApplicationNumber)
		return existing, nil
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	var created *models.Application
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		txRepo := s.repos.Applications(tx)

		seq, err := txRepo.NextApplicationNumber(ctx)
		if err != nil {
			return err
		}
		tracking, err := generateTrackingCode()
		if err != nil {
			return err
		}

		created, err = txRepo.Create(ctx, &models.Application{
			OwnerID:           ownerID,
			ProgramCode:       in.ProgramCode,
			IntakeCode:        in.IntakeCode,
			ApplicationNumber: fmt.Sprintf("APP%03d", seq),
			TrackingCode:      tracking,
			FormData:          in.FormData,
			UploadedFiles:     in.UploadedFiles,
		})
		return err
	})
	if err != nil {
		// Lost a race with a concurrent create for the same tuple: the row
		// that won carries the authoritative identity.
		if errors.Is(err, common.ErrDuplicateApplication) {
			return repo.GetByTuple(ctx, ownerID, in.ProgramCode, in.IntakeCode)
		}
		return nil, fmt.Errorf("application create: %w", err)
	}

	s.logger.Info(ctx, "application created",
		"owner_id", ownerID, "application_number", created.ApplicationNumber, "tracking_code", created.TrackingCode)
	return created, nil
}

// Get returns the owner's application by id.
func (s *ApplicationService) Get(ctx context.Context, ownerID, id string) (*models.Application, error) {
	existing, err := s.repos.Applications(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.OwnerID != ownerID {
		return nil, common.ErrUnauthorized
	}
	return existing, nil
}

// Update replaces the mutable fields of the owner's application. The stored
// application_number and tracking_code are echoed back unchanged.
func (s *ApplicationService) Update(ctx context.Context, ownerID, id string, in UpdateInput) (*models.Application, error) {
	repo := s.repos.Applications(s.db)

	existing, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.OwnerID != ownerID {
		return nil, common.ErrUnauthorized
	}

	paymentStatus := in.PaymentStatus
	if paymentStatus == "" {
		paymentStatus = existing.PaymentStatus
	}

	return repo.Update(ctx, &models.Application{
		ID:            id,
		FormData:      in.FormData,
		UploadedFiles: in.UploadedFiles,
		PaymentStatus: paymentStatus,
	})
}

// submissionFields is the minimal field set every submitted application must
// carry, extracted from the draft form data.
type submissionFields struct {
	FirstName string `validate:"required"`
	LastName  string `validate:"required"`
	Email     string `validate:"required,email"`
}

type formField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func fieldsFromFormData(data []byte) (map[string]string, error) {
	var fields []formField
	if len(data) > 0 {
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("%w: malformed form data: %v", common.ErrValidation, err)
		}
	}
	m := make(map[string]string, len(fields))
	for _, f := range fields {
		m[f.Name] = f.Value
	}
	return m, nil
}

// Submit validates the application's form data and finalizes it. Submitting
// an already submitted application is a no-op returning the stored record,
// which keeps offline replays of a submit harmless.
func (s *ApplicationService) Submit(ctx context.Context, ownerID, id string) (*models.Application, error) {
	repo := s.repos.Applications(s.db)

	a, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.OwnerID != ownerID {
		return nil, common.ErrUnauthorized
	}
	if a.Status == models.ApplicationStatusSubmitted {
		return a, nil
	}

	fields, err := fieldsFromFormData(a.FormData)
	if err != nil {
		return nil, err
	}
	sub := submissionFields{
		FirstName: fields["first_name"],
		LastName:  fields["last_name"],
		Email:     fields["email"],
	}
	if err := s.validate.Struct(sub); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}

	var submitted *models.Application
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		submitted, err = s.repos.Applications(tx).MarkSubmitted(ctx, id)
		if err != nil {
			return err
		}
		// The draft is superseded by the submitted application.
		return s.repos.Drafts(tx).Delete(ctx, ownerID, common.DraftTypeAdmission)
	})
	if err != nil {
		return nil, fmt.Errorf("application submit: %w", err)
	}

	s.logger.Info(ctx, "application submitted",
		"owner_id", ownerID, "application_number", submitted.ApplicationNumber)
	return submitted, nil
}
