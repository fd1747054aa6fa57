// Package services contains the server-side application services sitting
// between the HTTP transport and the repositories.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/admitflow/admitflow/internal/common"
	"github.com/admitflow/admitflow/internal/logging"
	"github.com/admitflow/admitflow/internal/server/models"
	"github.com/admitflow/admitflow/internal/server/repositories/repomanager"
)

// DraftService owns the authoritative draft rows and their version checks.
type DraftService struct {
	db     *sql.DB
	repos  repomanager.RepositoryManager
	logger logging.Logger
}

func NewDraftService(db *sql.DB, repos repomanager.RepositoryManager, logger logging.Logger) *DraftService {
	return &DraftService{db: db, repos: repos, logger: logger.With("component", "draft_service")}
}

// Get returns the draft for (ownerID, draftType), or common.ErrNotFound.
func (s *DraftService) Get(ctx context.Context, ownerID, draftType string) (*models.Draft, error) {
	return s.repos.Drafts(s.db).Get(ctx, ownerID, draftType)
}

// Write applies a version-checked write and returns the new version.
// On a stale expected version it returns common.ErrVersionConflict together
// with the current server version, so the caller can report both sides.
func (s *DraftService) Write(ctx context.Context, d *models.Draft, expectedVersion int64) (int64, error) {
	repo := s.repos.Drafts(s.db)

	version, err := repo.Write(ctx, d, expectedVersion)
	if err != nil {
		if errors.Is(err, common.ErrVersionConflict) {
			serverVersion, verr := repo.CurrentVersion(ctx, d.OwnerID, d.DraftType)
			if verr != nil && !errors.Is(verr, common.ErrNotFound) {
				return 0, verr
			}
			s.logger.Warn(ctx, "draft write conflict",
				"owner_id", d.OwnerID, "expected", expectedVersion, "server", serverVersion)
			return serverVersion, common.ErrVersionConflict
		}
		return 0, fmt.Errorf("draft write: %w", err)
	}

	s.logger.Debug(ctx, "draft saved", "owner_id", d.OwnerID, "version", version)
	return version, nil
}
