package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admitflow/admitflow/internal/logging"
	"github.com/admitflow/admitflow/internal/server/auth"
	sc "github.com/admitflow/admitflow/internal/server/config"
	"github.com/admitflow/admitflow/internal/server/repositories/repomanager"
	"github.com/admitflow/admitflow/internal/server/services"
)

const testSecret = "test-secret"

func newTestServer(t *testing.T) (*Server, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
	cfg := &sc.Config{
		SecretKey:                    testSecret,
		AccessTokenValidityDuration:  time.Hour,
		RefreshTokenValidityDuration: time.Hour,
	}
	repos := repomanager.NewPostgresRepositoryManager()

	s := NewServer(":0", logger,
		services.NewUserService(db, repos, cfg, logger),
		services.NewDraftService(db, repos, logger),
		services.NewApplicationService(db, repos, logger),
		services.NewStorageService(cfg),
		testSecret,
	)
	return s, mock
}

func doRequest(t *testing.T, s *Server, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func userToken(t *testing.T, userID string) string {
	t.Helper()
	token, err := auth.GenerateToken(userID, []byte(testSecret), time.Hour)
	require.NoError(t, err)
	return token
}

func TestPing_NoAuthRequired(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/ping", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDraft_MissingToken(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/draft", "", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestDraft_ExpiredToken(t *testing.T) {
	s, _ := newTestServer(t)

	expired, err := auth.GenerateToken("u1", []byte(testSecret), -time.Minute)
	require.NoError(t, err)

	rec := doRequest(t, s, http.MethodGet, "/api/draft", expired, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "token expired")
}

func TestGetDraft_NotFound(t *testing.T) {
	s, mock := newTestServer(t)

	mock.ExpectQuery(`SELECT owner_id, draft_type`).
		WillReturnRows(sqlmock.NewRows([]string{"owner_id"}))

	rec := doRequest(t, s, http.MethodGet, "/api/draft", userToken(t, "u1"), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWriteDraft_OK(t *testing.T) {
	s, mock := newTestServer(t)

	mock.ExpectQuery(`UPDATE drafts`).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(4)))

	body := `{"form_data":[{"name":"first_name","value":"Ada"}],"uploaded_files":[],"current_step":1,"expected_version":3}`
	rec := doRequest(t, s, http.MethodPut, "/api/draft", userToken(t, "u1"), body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp WriteDraftResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(4), resp.Version)
}

func TestWriteDraft_ConflictCarriesServerVersion(t *testing.T) {
	s, mock := newTestServer(t)

	// Stale expected version: the UPDATE matches no row, then the current
	// version is reported back.
	mock.ExpectQuery(`UPDATE drafts`).
		WillReturnRows(sqlmock.NewRows([]string{"version"}))
	mock.ExpectQuery(`SELECT version FROM drafts`).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(7)))

	body := `{"form_data":[],"uploaded_files":[],"current_step":1,"expected_version":3}`
	rec := doRequest(t, s, http.MethodPut, "/api/draft", userToken(t, "u1"), body)
	require.Equal(t, http.StatusConflict, rec.Code)

	var resp ConflictResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(7), resp.ServerVersion)
}

func TestWriteDraft_InsertPath(t *testing.T) {
	s, mock := newTestServer(t)

	mock.ExpectQuery(`INSERT INTO drafts`).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(1)))

	body := `{"form_data":[],"uploaded_files":[],"current_step":0,"expected_version":0}`
	rec := doRequest(t, s, http.MethodPut, "/api/draft", userToken(t, "u1"), body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp WriteDraftResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.Version)
}
