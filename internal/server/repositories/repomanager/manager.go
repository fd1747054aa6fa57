package repomanager

import (
	"context"
	"database/sql"

	"github.com/admitflow/admitflow/internal/dbx"
	"github.com/admitflow/admitflow/internal/server/repositories/applications"
	"github.com/admitflow/admitflow/internal/server/repositories/drafts"
	"github.com/admitflow/admitflow/internal/server/repositories/refreshtokens"
	"github.com/admitflow/admitflow/internal/server/repositories/users"
)

// RepositoryManager vends repository implementations bound to a DBTX, so
// services can run several repositories inside one transaction.
type RepositoryManager interface {
	RunMigrations(ctx context.Context, db *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
	Drafts(db dbx.DBTX) drafts.Repository
	Applications(db dbx.DBTX) applications.Repository
}
