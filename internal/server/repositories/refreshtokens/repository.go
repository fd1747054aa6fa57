package refreshtokens

import (
	"context"
	"time"

	"github.com/admitflow/admitflow/internal/server/models"
)

// Repository describes refresh token persistence.
type Repository interface {
	// Create stores a refresh token valid for the given duration.
	Create(ctx context.Context, userID, token string, validity time.Duration) error

	// Find returns the stored token, or common.ErrNotFound.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// Delete removes a token (used on rotation and logout).
	Delete(ctx context.Context, token string) error
}
