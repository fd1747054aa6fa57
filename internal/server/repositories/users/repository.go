package users

import (
	"context"

	"github.com/admitflow/admitflow/internal/server/models"
)

// Repository describes user account persistence.
type Repository interface {
	// Create inserts a user and fills in the generated ID.
	Create(ctx context.Context, user *models.User) (*models.User, error)

	// GetByEmail returns the user, or common.ErrNotFound.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}
