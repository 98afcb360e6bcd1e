package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sejonglabs/sejong/internal/common"
)

func serveJSON(t *testing.T, status int, payload any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if payload != nil {
			require.NoError(t, json.NewEncoder(w).Encode(payload))
		}
	}))
}

func TestLogin_Success(t *testing.T) {
	var gotBody map[string]string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/auth/login", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token":  "A1",
			"token_type":    "Bearer",
			"refresh_token": "R1",
		})
	}))
	defer ts.Close()

	pair, err := New(ts.URL, nil).Login(context.Background(), "a@x.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "A1", pair.Access)
	assert.Equal(t, "R1", pair.Refresh)
	assert.Equal(t, map[string]string{"email": "a@x.com", "password": "secret123"}, gotBody)
}

func TestLogin_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"unauthorized", http.StatusUnauthorized, common.ErrInvalidCredentials},
		{"not found", http.StatusNotFound, common.ErrUserNotFound},
		{"locked", http.StatusLocked, common.ErrAccountLocked},
		{"bad request", http.StatusBadRequest, common.ErrValidation},
		{"server error", http.StatusInternalServerError, common.ErrUnavailable},
		{"throttled", http.StatusTooManyRequests, common.ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := serveJSON(t, tt.status, nil)
			defer ts.Close()

			_, err := New(ts.URL, nil).Login(context.Background(), "a@x.com", "pw")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestLogin_MissingAccessToken(t *testing.T) {
	ts := serveJSON(t, http.StatusOK, map[string]string{"token_type": "Bearer"})
	defer ts.Close()

	_, err := New(ts.URL, nil).Login(context.Background(), "a@x.com", "pw")
	assert.ErrorIs(t, err, common.ErrInternal)
}

func TestLogin_ConnectionRefused(t *testing.T) {
	_, err := New("http://127.0.0.1:1", nil).Login(context.Background(), "a@x.com", "pw")
	assert.ErrorIs(t, err, common.ErrUnavailable)
}

func TestSocialLogin(t *testing.T) {
	var gotBody map[string]string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/auth/social", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "A1", "refresh_token": "R1"})
	}))
	defer ts.Close()

	pair, err := New(ts.URL, nil).SocialLogin(context.Background(), "google", "id-token")
	require.NoError(t, err)
	assert.Equal(t, "A1", pair.Access)
	assert.Equal(t, map[string]string{"provider": "google", "token": "id-token"}, gotBody)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	ts := serveJSON(t, http.StatusConflict, nil)
	defer ts.Close()

	err := New(ts.URL, nil).Register(context.Background(), "a@x.com", "pw123456", "A")
	assert.ErrorIs(t, err, common.ErrEmailTaken)
}

func TestRegister_Created(t *testing.T) {
	ts := serveJSON(t, http.StatusCreated, nil)
	defer ts.Close()

	assert.NoError(t, New(ts.URL, nil).Register(context.Background(), "a@x.com", "pw123456", "A"))
}

func TestLogout(t *testing.T) {
	var path string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	require.NoError(t, New(ts.URL, nil).Logout(context.Background()))
	assert.Equal(t, "/api/v1/auth/logout", path)
}

func TestMe(t *testing.T) {
	ts := serveJSON(t, http.StatusOK, map[string]string{
		"id":           "u1",
		"email":        "a@x.com",
		"display_name": "Ana",
		"avatar_url":   "https://cdn/x.png",
	})
	defer ts.Close()

	profile, err := New(ts.URL, nil).Me(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "u1", profile.ID)
	assert.Equal(t, "a@x.com", profile.Email)
	assert.Equal(t, "Ana", profile.DisplayName)
	assert.Equal(t, "https://cdn/x.png", profile.AvatarURL)
}

func TestMe_Unauthorized(t *testing.T) {
	ts := serveJSON(t, http.StatusUnauthorized, nil)
	defer ts.Close()

	_, err := New(ts.URL, nil).Me(context.Background())
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
}
