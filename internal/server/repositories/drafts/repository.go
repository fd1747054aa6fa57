package drafts

import (
	"context"

	"github.com/admitflow/admitflow/internal/server/models"
)

// Repository describes storage operations for application drafts.
type Repository interface {
	// Get returns the draft for (ownerID, draftType), or common.ErrNotFound.
	Get(ctx context.Context, ownerID, draftType string) (*models.Draft, error)

	// Write applies an optimistic-concurrency write. The write is accepted
	// only when expectedVersion matches the stored version (0 means the draft
	// must not exist yet). Returns the new version, or common.ErrVersionConflict.
	Write(ctx context.Context, d *models.Draft, expectedVersion int64) (int64, error)

	// CurrentVersion returns the stored version for (ownerID, draftType),
	// or 0 with common.ErrNotFound when no draft exists.
	CurrentVersion(ctx context.Context, ownerID, draftType string) (int64, error)

	// Delete removes the draft row. Deleting a missing draft is not an error.
	Delete(ctx context.Context, ownerID, draftType string) error
}
