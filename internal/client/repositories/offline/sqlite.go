package offline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/admitflow/admitflow/internal/client/models"
	"github.com/admitflow/admitflow/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// DraftItemID returns the fixed queue id used for the single draft_update
// slot of (ownerID, draftType). Storing under a fixed id makes the upsert
// collapse superseded offline saves into the latest one.
func DraftItemID(ownerID, draftType string) string {
	return "draft:" + ownerID + ":" + draftType
}

// Store upserts a queue item by id. The first store of an id keeps its
// EnqueuedAt so a repeatedly-updated draft item does not lose its place in
// the replay order.
func (r *SQLiteRepository) Store(ctx context.Context, item *models.QueueItem) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.EnqueuedAt.IsZero() {
		item.EnqueuedAt = time.Now().UTC()
	}

	query := `INSERT INTO queue_items (id, owner_id, item_type, payload, attempts, enqueued_at)
			values (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET payload = excluded.payload,
				attempts = 0
	`
	_, err := r.db.ExecContext(ctx, query,
		item.ID, item.OwnerID, string(item.Type), item.Payload, item.Attempts, item.EnqueuedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert queue item: %w", err)
	}
	return nil
}

// GetAllPending lists the owner's items ordered by enqueued_at.
func (r *SQLiteRepository) GetAllPending(ctx context.Context, ownerID string) ([]*models.QueueItem, error) {
	query := `select id, owner_id, item_type, payload, attempts, enqueued_at
		from queue_items where owner_id = ? order by enqueued_at, id`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to select queue items: %w", err)
	}
	defer rows.Close()

	var result []*models.QueueItem
	for rows.Next() {
		item := &models.QueueItem{}
		var itemType string
		if err := rows.Scan(&item.ID, &item.OwnerID, &itemType, &item.Payload, &item.Attempts, &item.EnqueuedAt); err != nil {
			return nil, err
		}
		item.Type = models.QueueItemType(itemType)
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// IncrementAttempts bumps the persisted attempt counter and returns it.
func (r *SQLiteRepository) IncrementAttempts(ctx context.Context, id string) (int, error) {
	res, err := r.db.ExecContext(ctx, `update queue_items set attempts = attempts + 1 where id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("failed to increment attempts: %w", err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra != 1 {
		return 0, fmt.Errorf("wrong rows affected count: %d", ra)
	}

	var attempts int
	if err := r.db.QueryRowContext(ctx, `select attempts from queue_items where id = ?`, id).Scan(&attempts); err != nil {
		return 0, fmt.Errorf("failed to read attempts: %w", err)
	}
	return attempts, nil
}

// Remove deletes one item by id. Removing an absent item is not an error.
func (r *SQLiteRepository) Remove(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `delete from queue_items where id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete queue item: %w", err)
	}
	return nil
}

// RemoveByOwner deletes all items belonging to an owner.
func (r *SQLiteRepository) RemoveByOwner(ctx context.Context, ownerID string) error {
	if _, err := r.db.ExecContext(ctx, `delete from queue_items where owner_id = ?`, ownerID); err != nil {
		return fmt.Errorf("failed to delete queue items: %w", err)
	}
	return nil
}
