package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/admitflow/admitflow/internal/client/models"
	"github.com/admitflow/admitflow/internal/common"
)

// HTTPClient implements Client over the REST API.
type HTTPClient struct {
	baseURL string
	http    *http.Client

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	userID       string

	// onTokensChanged, when set, is invoked after a login or a transparent
	// refresh so the caller can persist the new pair.
	onTokensChanged func(accessToken, refreshToken string)
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// SetTokenListener registers a callback for token changes.
func (c *HTTPClient) SetTokenListener(fn func(accessToken, refreshToken string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onTokensChanged = fn
}

// SetTokens seeds a previously persisted token pair, e.g. on restart.
func (c *HTTPClient) SetTokens(accessToken, refreshToken string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.accessToken = accessToken
	c.refreshToken = refreshToken
	c.userID = userIDFromToken(accessToken)
}

func (c *HTTPClient) UserID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID
}

func (c *HTTPClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// userIDFromToken extracts the user id claim without verifying the
// signature. Verification is the server's job; the client only needs the id
// to scope its local queue.
func userIDFromToken(token string) string {
	if token == "" {
		return ""
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return ""
	}
	if v, ok := claims["UserID"].(string); ok {
		return v
	}
	return ""
}

type errorBody struct {
	Error         string `json:"error"`
	ServerVersion int64  `json:"server_version"`
}

// do runs one JSON round trip. Network failures and timeouts come back as
// common.ErrUnavailable. A "token expired" response triggers a single
// refresh-and-retry. Error statuses are mapped onto the shared sentinels;
// a draft conflict additionally yields the server version.
func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any, authed bool) (int64, error) {
	serverVersion, err := c.doOnce(ctx, method, path, in, out, authed)
	if err == nil || !isTokenExpired(err) {
		return serverVersion, err
	}

	if rerr := c.refresh(ctx); rerr != nil {
		return 0, err
	}
	return c.doOnce(ctx, method, path, in, out, authed)
}

type statusError struct {
	code int
	body errorBody
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.code, e.body.Error)
}

func isTokenExpired(err error) bool {
	se, ok := err.(*statusError)
	return ok && se.code == http.StatusUnauthorized && se.body.Error == common.ErrTokenExpired.Error()
}

func (c *HTTPClient) doOnce(ctx context.Context, method, path string, in, out any, authed bool) (int64, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if authed {
		c.mu.Lock()
		token := c.accessToken
		c.mu.Unlock()
		req.Header.Set(common.AccessTokenHeaderName, "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return 0, fmt.Errorf("%w: status %d", common.ErrUnavailable, resp.StatusCode)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		var eb errorBody
		_ = json.NewDecoder(resp.Body).Decode(&eb)
		if mapped, serverVersion := mapStatus(resp.StatusCode, eb); mapped != nil {
			return serverVersion, mapped
		}
		return 0, &statusError{code: resp.StatusCode, body: eb}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return 0, fmt.Errorf("decode response: %w", err)
		}
	}
	return 0, nil
}

// mapStatus translates error statuses into shared sentinels. The expired
// access token case stays a statusError so the retry wrapper can see it.
func mapStatus(code int, eb errorBody) (error, int64) {
	switch code {
	case http.StatusNotFound:
		return common.ErrNotFound, 0
	case http.StatusUnauthorized:
		if eb.Error == common.ErrTokenExpired.Error() {
			return nil, 0
		}
		return common.ErrUnauthorized, 0
	case http.StatusConflict:
		if eb.Error == common.ErrDuplicateApplication.Error() {
			return common.ErrDuplicateApplication, 0
		}
		return common.ErrVersionConflict, eb.ServerVersion
	case http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", common.ErrValidation, eb.Error), 0
	default:
		return nil, 0
	}
}

func (c *HTTPClient) refresh(ctx context.Context) error {
	c.mu.Lock()
	refreshToken := c.refreshToken
	c.mu.Unlock()
	if refreshToken == "" {
		return common.ErrUnauthorized
	}

	var resp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if _, err := c.doOnce(ctx, http.MethodPost, "/api/auth/refresh",
		map[string]string{"refresh_token": refreshToken}, &resp, false); err != nil {
		return err
	}

	c.storeTokens(resp.AccessToken, resp.RefreshToken)
	return nil
}

func (c *HTTPClient) storeTokens(accessToken, refreshToken string) {
	c.mu.Lock()
	c.accessToken = accessToken
	c.refreshToken = refreshToken
	c.userID = userIDFromToken(accessToken)
	fn := c.onTokensChanged
	c.mu.Unlock()

	if fn != nil {
		fn(accessToken, refreshToken)
	}
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/api/ping", nil, nil, false)
	return err
}

func (c *HTTPClient) Register(ctx context.Context, email, password string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/auth/register",
		map[string]string{"email": email, "password": password}, nil, false)
	return err
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) error {
	var resp struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/api/auth/login",
		map[string]string{"email": email, "password": password}, &resp, false); err != nil {
		return err
	}

	c.storeTokens(resp.AccessToken, resp.RefreshToken)
	return nil
}

type draftWire struct {
	DraftType     string                  `json:"draft_type,omitempty"`
	FormData      models.FormData         `json:"form_data"`
	UploadedFiles []models.FileDescriptor `json:"uploaded_files"`
	CurrentStep   int                     `json:"current_step"`
	ApplicationID string                  `json:"application_id,omitempty"`
	Version       int64                   `json:"version"`
}

func (c *HTTPClient) GetDraft(ctx context.Context, draftType string) (*models.DraftSnapshot, error) {
	var resp draftWire
	if _, err := c.do(ctx, http.MethodGet, "/api/draft?type="+draftType, nil, &resp, true); err != nil {
		return nil, err
	}

	return &models.DraftSnapshot{
		DraftType:     draftType,
		FormData:      resp.FormData,
		UploadedFiles: resp.UploadedFiles,
		CurrentStep:   resp.CurrentStep,
		ApplicationID: resp.ApplicationID,
		Version:       resp.Version,
	}, nil
}

func (c *HTTPClient) WriteDraft(ctx context.Context, snap *models.DraftSnapshot, expectedVersion int64) (int64, error) {
	req := struct {
		draftWire
		ExpectedVersion int64 `json:"expected_version"`
	}{
		draftWire: draftWire{
			DraftType:     snap.DraftType,
			FormData:      snap.FormData,
			UploadedFiles: snap.UploadedFiles,
			CurrentStep:   snap.CurrentStep,
			ApplicationID: snap.ApplicationID,
		},
		ExpectedVersion: expectedVersion,
	}

	var resp struct {
		Version int64 `json:"version"`
	}
	serverVersion, err := c.do(ctx, http.MethodPut, "/api/draft", req, &resp, true)
	if err != nil {
		return serverVersion, err
	}
	return resp.Version, nil
}

func (c *HTTPClient) CreateApplication(ctx context.Context, programCode, intakeCode string, form models.FormData, files []models.FileDescriptor) (*Application, error) {
	req := map[string]any{
		"program_code":   programCode,
		"intake_code":    intakeCode,
		"form_data":      form,
		"uploaded_files": files,
	}

	var resp Application
	if _, err := c.do(ctx, http.MethodPost, "/api/applications", req, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) GetApplication(ctx context.Context, id string) (*Application, error) {
	var resp Application
	if _, err := c.do(ctx, http.MethodGet, "/api/applications/"+id, nil, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) UpdateApplication(ctx context.Context, id string, form models.FormData, files []models.FileDescriptor) (*Application, error) {
	req := map[string]any{
		"form_data":      form,
		"uploaded_files": files,
	}

	var resp Application
	if _, err := c.do(ctx, http.MethodPut, "/api/applications/"+id, req, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) SubmitApplication(ctx context.Context, id string) (*Application, error) {
	var resp Application
	if _, err := c.do(ctx, http.MethodPost, "/api/applications/"+id+"/submit", nil, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) PresignUpload(ctx context.Context) (*Presign, error) {
	var resp Presign
	if _, err := c.do(ctx, http.MethodPost, "/api/uploads", nil, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *HTTPClient) PresignDownload(ctx context.Context, key string) (*Presign, error) {
	var resp Presign
	if _, err := c.do(ctx, http.MethodGet, "/api/uploads?key="+key, nil, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}
