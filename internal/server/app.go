// Package server wires the AdmitFlow server together: configuration,
// database, repositories, services and the HTTP API, plus graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/admitflow/admitflow/internal/logging"
	"github.com/admitflow/admitflow/internal/server/api"
	"github.com/admitflow/admitflow/internal/server/config"
	"github.com/admitflow/admitflow/internal/server/repositories/repomanager"
	"github.com/admitflow/admitflow/internal/server/services"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	repos  repomanager.RepositoryManager
	server *api.Server
}

func NewApp(cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	repos := repomanager.NewPostgresRepositoryManager()

	srv := api.NewServer(
		cfg.EndpointAddr,
		logger,
		services.NewUserService(db, repos, cfg, logger),
		services.NewDraftService(db, repos, logger),
		services.NewApplicationService(db, repos, logger),
		services.NewStorageService(cfg),
		cfg.SecretKey,
	)

	return &App{config: cfg, logger: logger, db: db, repos: repos, server: srv}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app")

	app.initSignalHandler(cancelFunc)

	if err := app.repos.RunMigrations(ctx, app.db); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	defer func() {
		if err := app.db.Close(); err != nil {
			app.logger.Error(ctx, "db close error", "error", err)
		}
	}()

	return app.server.Run(ctx)
}
