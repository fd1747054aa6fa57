// Package offline persists pending writes while the server is unreachable.
// The queue is drained in enqueue order when connectivity returns.
package offline

import (
	"context"

	"github.com/admitflow/admitflow/internal/client/models"
)

// Repository is the local write-ahead queue backing offline saves.
// Implementations are backed by the local SQLite database.
type Repository interface {
	// Store persists a queue item. A draft_update item replaces any earlier
	// draft_update for the same owner so only the latest draft state is
	// replayed; application_submit items accumulate individually.
	Store(ctx context.Context, item *models.QueueItem) error

	// GetAllPending returns the owner's queued items ordered by EnqueuedAt.
	GetAllPending(ctx context.Context, ownerID string) ([]*models.QueueItem, error)

	// IncrementAttempts bumps the persisted attempt counter after a failed
	// replay and returns the new value.
	IncrementAttempts(ctx context.Context, id string) (int, error)

	// Remove deletes a single item by id.
	Remove(ctx context.Context, id string) error

	// RemoveByOwner deletes all items belonging to an owner.
	RemoveByOwner(ctx context.Context, ownerID string) error
}
