package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/admitflow/admitflow/internal/common"
	"github.com/admitflow/admitflow/internal/server/models"
)

// DraftResponse is the wire shape of a stored draft. FormData and
// UploadedFiles are passed through as raw JSON: their structure belongs to
// the client.
type DraftResponse struct {
	FormData      json.RawMessage `json:"form_data"`
	UploadedFiles json.RawMessage `json:"uploaded_files"`
	CurrentStep   int             `json:"current_step"`
	ApplicationID string          `json:"application_id,omitempty"`
	Version       int64           `json:"version"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// WriteDraftRequest carries a version-checked draft write.
type WriteDraftRequest struct {
	DraftType       string          `json:"draft_type"`
	FormData        json.RawMessage `json:"form_data"`
	UploadedFiles   json.RawMessage `json:"uploaded_files"`
	CurrentStep     int             `json:"current_step"`
	ApplicationID   string          `json:"application_id,omitempty"`
	ExpectedVersion int64           `json:"expected_version"`
}

// WriteDraftResponse reports the version produced by an accepted write.
type WriteDraftResponse struct {
	Version int64 `json:"version"`
}

// ConflictResponse reports a rejected stale write.
type ConflictResponse struct {
	Error         string `json:"error"`
	ServerVersion int64  `json:"server_version"`
}

func draftType(c echo.Context) string {
	if t := c.QueryParam("type"); t != "" {
		return t
	}
	return common.DraftTypeAdmission
}

func (s *Server) getDraft(c echo.Context) error {
	ctx := c.Request().Context()

	d, err := s.drafts.Get(ctx, contextUserID(c), draftType(c))
	if err != nil {
		return mapError(err)
	}

	return c.JSON(http.StatusOK, DraftResponse{
		FormData:      d.FormData,
		UploadedFiles: d.UploadedFiles,
		CurrentStep:   d.CurrentStep,
		ApplicationID: d.ApplicationID,
		Version:       d.Version,
		UpdatedAt:     d.UpdatedAt,
	})
}

func (s *Server) writeDraft(c echo.Context) error {
	ctx := c.Request().Context()

	var req WriteDraftRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request")
	}
	if req.DraftType == "" {
		req.DraftType = common.DraftTypeAdmission
	}
	if req.FormData == nil {
		req.FormData = json.RawMessage(`[]`)
	}
	if req.UploadedFiles == nil {
		req.UploadedFiles = json.RawMessage(`[]`)
	}

	d := &models.Draft{
		OwnerID:       contextUserID(c),
		DraftType:     req.DraftType,
		FormData:      req.FormData,
		UploadedFiles: req.UploadedFiles,
		CurrentStep:   req.CurrentStep,
		ApplicationID: req.ApplicationID,
	}

	version, err := s.drafts.Write(ctx, d, req.ExpectedVersion)
	if err != nil {
		if errors.Is(err, common.ErrVersionConflict) {
			// version carries the current server version in the conflict case
			return c.JSON(http.StatusConflict, ConflictResponse{
				Error:         common.ErrVersionConflict.Error(),
				ServerVersion: version,
			})
		}
		return mapError(err)
	}

	return c.JSON(http.StatusOK, WriteDraftResponse{Version: version})
}
