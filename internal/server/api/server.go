// Package api exposes the AdmitFlow REST endpoints over echo.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/admitflow/admitflow/internal/logging"
	"github.com/admitflow/admitflow/internal/server/services"
)

type Server struct {
	address   string
	echo      *echo.Echo
	users     *services.UserService
	drafts    *services.DraftService
	apps      *services.ApplicationService
	storage   *services.StorageService
	logger    logging.Logger
	jwtSecret []byte
}

func NewServer(
	address string,
	logger logging.Logger,
	users *services.UserService,
	drafts *services.DraftService,
	apps *services.ApplicationService,
	storage *services.StorageService,
	secretKey string,
) *Server {
	s := &Server{
		address:   address,
		users:     users,
		drafts:    drafts,
		apps:      apps,
		storage:   storage,
		logger:    logger.With("component", "http_server"),
		jwtSecret: []byte(secretKey),
	}
	s.echo = s.buildEcho()
	return s
}

func (s *Server) buildEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = s.errorHandler
	e.Use(middleware.Recover())

	g := e.Group("/api")

	g.GET("/ping", s.ping)
	g.POST("/auth/register", s.register)
	g.POST("/auth/login", s.login)
	g.POST("/auth/refresh", s.refresh)

	ag := g.Group("", s.accessTokenMiddleware)
	ag.GET("/draft", s.getDraft)
	ag.PUT("/draft", s.writeDraft)
	ag.POST("/applications", s.createApplication)
	ag.GET("/applications/:id", s.getApplication)
	ag.PUT("/applications/:id", s.updateApplication)
	ag.POST("/applications/:id/submit", s.submitApplication)
	ag.POST("/uploads", s.presignUpload)
	ag.GET("/uploads", s.presignDownload)

	return e
}

func (s *Server) ping(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{"status": "OK"})
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "stopping HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "shutdown error", "error", err)
		}
	}()

	s.logger.Info(ctx, "starting HTTP server", "address", s.address)

	if err := s.echo.Start(s.address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
