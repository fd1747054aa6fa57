// Package api talks to the AdmitFlow backend over REST. It classifies
// transport failures so the sync layer can distinguish "server said no"
// from "server unreachable".
package api

import (
	"context"
	"time"

	"github.com/admitflow/admitflow/internal/client/models"
)

// Application is the client-side view of an application record. The identity
// fields are assigned by the server at creation and never change afterwards.
type Application struct {
	ID                string                  `json:"id"`
	ApplicationNumber string                  `json:"application_number"`
	TrackingCode      string                  `json:"tracking_code"`
	ProgramCode       string                  `json:"program_code"`
	IntakeCode        string                  `json:"intake_code"`
	FormData          models.FormData         `json:"form_data"`
	UploadedFiles     []models.FileDescriptor `json:"uploaded_files"`
	Status            string                  `json:"status"`
	PaymentStatus     string                  `json:"payment_status"`
	SubmittedAt       *time.Time              `json:"submitted_at,omitempty"`
}

// Presign carries a presigned upload or download URL issued by the server.
type Presign struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

type Client interface {
	Close() error
	Ping(ctx context.Context) error

	Register(ctx context.Context, email, password string) error
	Login(ctx context.Context, email, password string) error

	// UserID returns the authenticated user id, or "" before login.
	UserID() string

	// GetDraft returns the authoritative draft, or common.ErrNotFound.
	GetDraft(ctx context.Context, draftType string) (*models.DraftSnapshot, error)

	// WriteDraft applies a version-checked write and returns the new version.
	// A stale expectedVersion returns the current server version together
	// with common.ErrVersionConflict. An unreachable server returns
	// common.ErrUnavailable.
	WriteDraft(ctx context.Context, snap *models.DraftSnapshot, expectedVersion int64) (int64, error)

	CreateApplication(ctx context.Context, programCode, intakeCode string, form models.FormData, files []models.FileDescriptor) (*Application, error)
	GetApplication(ctx context.Context, id string) (*Application, error)
	UpdateApplication(ctx context.Context, id string, form models.FormData, files []models.FileDescriptor) (*Application, error)
	SubmitApplication(ctx context.Context, id string) (*Application, error)

	PresignUpload(ctx context.Context) (*Presign, error)
	PresignDownload(ctx context.Context, key string) (*Presign, error)
}
