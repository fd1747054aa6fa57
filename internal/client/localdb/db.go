// Package localdb opens the client SQLite database and wires the local
// repositories on top of it.
package localdb

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/admitflow/admitflow/internal/client/migrations"
	"github.com/admitflow/admitflow/internal/client/repositories/metadata"
	"github.com/admitflow/admitflow/internal/client/repositories/offline"
)

type Repositories struct {
	Metadata metadata.Repository
	Offline  offline.Repository
	DB       *sql.DB
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

func InitDatabase(ctx context.Context, dsn string) (*Repositories, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		return nil, err
	}

	return &Repositories{
		Metadata: metadata.NewSQLiteRepository(db),
		Offline:  offline.NewSQLiteRepository(db),
		DB:       db,
	}, nil
}
