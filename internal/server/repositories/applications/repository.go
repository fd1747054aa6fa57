package applications

import (
	"context"

	"github.com/admitflow/admitflow/internal/server/models"
)

// Repository describes storage operations for finalized applications.
type Repository interface {
	// Create inserts a new application. The unique (owner, program, intake)
	// index guards duplicates; a violation returns common.ErrDuplicateApplication.
	Create(ctx context.Context, a *models.Application) (*models.Application, error)

	// GetByID returns the application, or common.ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.Application, error)

	// GetByTuple returns the application for (ownerID, programCode, intakeCode),
	// or common.ErrNotFound.
	GetByTuple(ctx context.Context, ownerID, programCode, intakeCode string) (*models.Application, error)

	// Update replaces mutable fields. ApplicationNumber and TrackingCode are
	// never touched; the stored values are returned unchanged.
	Update(ctx context.Context, a *models.Application) (*models.Application, error)

	// MarkSubmitted sets status=submitted and stamps submitted_at once.
	MarkSubmitted(ctx context.Context, id string) (*models.Application, error)

	// NextApplicationNumber reserves the next value of the number sequence.
	NextApplicationNumber(ctx context.Context) (int64, error)
}
