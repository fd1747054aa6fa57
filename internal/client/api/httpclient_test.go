package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/admitflow/admitflow/internal/client/models"
	"github.com/admitflow/admitflow/internal/common"
)

func signedToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"UserID": userID})
	s, err := token.SignedString([]byte("irrelevant"))
	require.NoError(t, err)
	return s
}

func TestWriteDraft_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/api/draft", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, float64(3), req["expected_version"])

		_ = json.NewEncoder(w).Encode(map[string]int64{"version": 4})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second)
	c.SetTokens(signedToken(t, "u1"), "r1")

	v, err := c.WriteDraft(context.Background(), &models.DraftSnapshot{DraftType: "admission"}, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(4), v)
}

func TestWriteDraft_ConflictCarriesServerVersion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":          common.ErrVersionConflict.Error(),
			"server_version": 7,
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second)
	c.SetTokens(signedToken(t, "u1"), "r1")

	v, err := c.WriteDraft(context.Background(), &models.DraftSnapshot{DraftType: "admission"}, 3)
	assert.ErrorIs(t, err, common.ErrVersionConflict)
	assert.Equal(t, int64(7), v)
}

func TestWriteDraft_ServerDownIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewHTTPClient(srv.URL, 200*time.Millisecond)
	c.SetTokens(signedToken(t, "u1"), "r1")

	_, err := c.WriteDraft(context.Background(), &models.DraftSnapshot{DraftType: "admission"}, 0)
	assert.ErrorIs(t, err, common.ErrUnavailable)
}

func TestDo_RefreshesExpiredTokenOnce(t *testing.T) {
	var refreshed bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/refresh":
			refreshed = true
			_ = json.NewEncoder(w).Encode(map[string]string{
				"access_token":  signedToken(t, "u1"),
				"refresh_token": "r2",
			})
		case "/api/draft":
			auth := r.Header.Get("Authorization")
			if auth == "Bearer stale" {
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": common.ErrTokenExpired.Error()})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"form_data": []any{}, "version": 2})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second)
	c.accessToken = "stale"
	c.refreshToken = "r1"

	var gotAccess, gotRefresh string
	c.SetTokenListener(func(a, r string) { gotAccess, gotRefresh = a, r })

	snap, err := c.GetDraft(context.Background(), "admission")
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.Version)
	assert.True(t, refreshed)
	assert.NotEmpty(t, gotAccess)
	assert.Equal(t, "r2", gotRefresh)
	assert.Equal(t, "u1", c.UserID())
}

func TestGetDraft_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "not found"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second)
	c.SetTokens(signedToken(t, "u1"), "r1")

	_, err := c.GetDraft(context.Background(), "admission")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestLogin_StoresTokensAndUserID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/login", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token":  signedToken(t, "user-42"),
			"refresh_token": "r1",
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second)
	require.NoError(t, c.Login(context.Background(), "a@b.c", "pw"))
	assert.Equal(t, "user-42", c.UserID())
}

func TestCreateApplication_DuplicateMapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": common.ErrDuplicateApplication.Error()})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second)
	c.SetTokens(signedToken(t, "u1"), "r1")

	_, err := c.CreateApplication(context.Background(), "CS", "2026F", nil, nil)
	assert.ErrorIs(t, err, common.ErrDuplicateApplication)
}

func TestSubmitApplication_ValidationMapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "validation failed: email required"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, time.Second)
	c.SetTokens(signedToken(t, "u1"), "r1")

	_, err := c.SubmitApplication(context.Background(), "app-1")
	assert.ErrorIs(t, err, common.ErrValidation)
}
