package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/admitflow/admitflow/internal/common"
)

// mapError translates service errors into transport errors. Handlers that
// need a richer body (the draft conflict response) map before reaching here.
func mapError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, common.ErrUnauthorized):
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, common.ErrValidation):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, common.ErrDuplicateApplication):
		return echo.NewHTTPError(http.StatusConflict, common.ErrDuplicateApplication.Error())
	case errors.Is(err, common.ErrVersionConflict):
		return echo.NewHTTPError(http.StatusConflict, common.ErrVersionConflict.Error())
	case errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrRefreshTokenExpired):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) errorHandler(err error, c echo.Context) {
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		s.logger.Error(c.Request().Context(), "unhandled error", "error", err)
		httpErr = mapError(err)
	}

	if c.Response().Committed {
		return
	}

	msg := httpErr.Message
	if m, ok := msg.(string); ok {
		msg = echo.Map{"error": m}
	}
	if jerr := c.JSON(httpErr.Code, msg); jerr != nil {
		s.logger.Error(c.Request().Context(), "error response failed", "error", jerr)
	}
}
