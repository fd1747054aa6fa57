package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/admitflow/admitflow/internal/server/models"
	"github.com/admitflow/admitflow/internal/server/services"
)

// ApplicationResponse is the wire shape of an application record. The
// identity fields are assigned at creation and echoed unchanged thereafter.
type ApplicationResponse struct {
	ID                string          `json:"id"`
	ApplicationNumber string          `json:"application_number"`
	TrackingCode      string          `json:"tracking_code"`
	ProgramCode       string          `json:"program_code"`
	IntakeCode        string          `json:"intake_code"`
	FormData          json.RawMessage `json:"form_data"`
	UploadedFiles     json.RawMessage `json:"uploaded_files"`
	Status            string          `json:"status"`
	PaymentStatus     string          `json:"payment_status"`
	SubmittedAt       *time.Time      `json:"submitted_at,omitempty"`
}

type CreateApplicationRequest struct {
	ProgramCode   string          `json:"program_code"`
	IntakeCode    string          `json:"intake_code"`
	FormData      json.RawMessage `json:"form_data"`
	UploadedFiles json.RawMessage `json:"uploaded_files"`
}

type UpdateApplicationRequest struct {
	FormData      json.RawMessage `json:"form_data"`
	UploadedFiles json.RawMessage `json:"uploaded_files"`
	PaymentStatus string          `json:"payment_status,omitempty"`
}

func toApplicationResponse(a *models.Application) ApplicationResponse {
	return ApplicationResponse{
		ID:                a.ID,
		ApplicationNumber: a.ApplicationNumber,
		TrackingCode:      a.TrackingCode,
		ProgramCode:       a.ProgramCode,
		IntakeCode:        a.IntakeCode,
		FormData:          a.FormData,
		UploadedFiles:     a.UploadedFiles,
		Status:            string(a.Status),
		PaymentStatus:     string(a.PaymentStatus),
		SubmittedAt:       a.SubmittedAt,
	}
}

func rawOrEmptyList(raw json.RawMessage) []byte {
	if raw == nil {
		return []byte(`[]`)
	}
	return raw
}

func (s *Server) createApplication(c echo.Context) error {
	ctx := c.Request().Context()

	var req CreateApplicationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request")
	}
	if req.ProgramCode == "" || req.IntakeCode == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "program_code and intake_code are required")
	}

	a, err := s.apps.Create(ctx, contextUserID(c), services.CreateInput{
		ProgramCode:   req.ProgramCode,
		IntakeCode:    req.IntakeCode,
		FormData:      rawOrEmptyList(req.FormData),
		UploadedFiles: rawOrEmptyList(req.UploadedFiles),
	})
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusCreated, toApplicationResponse(a))
}

func (s *Server) getApplication(c echo.Context) error {
	a, err := s.apps.Get(c.Request().Context(), contextUserID(c), c.Param("id"))
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, toApplicationResponse(a))
}

func (s *Server) updateApplication(c echo.Context) error {
	ctx := c.Request().Context()

	var req UpdateApplicationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request")
	}

	a, err := s.apps.Update(ctx, contextUserID(c), c.Param("id"), services.UpdateInput{
		FormData:      rawOrEmptyList(req.FormData),
		UploadedFiles: rawOrEmptyList(req.UploadedFiles),
		PaymentStatus: models.PaymentStatus(req.PaymentStatus),
	})
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusOK, toApplicationResponse(a))
}

func (s *Server) submitApplication(c echo.Context) error {
	ctx := c.Request().Context()

	a, err := s.apps.Submit(ctx, contextUserID(c), c.Param("id"))
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusOK, toApplicationResponse(a))
}

// PresignResponse carries a presigned upload or download URL.
type PresignResponse struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

func (s *Server) presignUpload(c echo.Context) error {
	key, url, err := s.storage.GetPresignedPutURL(c.Request().Context())
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, PresignResponse{Key: key, URL: url})
}

func (s *Server) presignDownload(c echo.Context) error {
	key := c.QueryParam("key")
	if key == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "key is required")
	}
	url, err := s.storage.GetPresignedGetURL(c.Request().Context(), key)
	if err != nil {
		return mapError(err)
	}
	return c.JSON(http.StatusOK, PresignResponse{Key: key, URL: url})
}
