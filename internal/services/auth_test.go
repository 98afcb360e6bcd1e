package services_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/sejonglabs/sejong/internal/accounts"
	"github.com/sejonglabs/sejong/internal/api"
	"github.com/sejonglabs/sejong/internal/common"
	"github.com/sejonglabs/sejong/internal/cryptox"
	"github.com/sejonglabs/sejong/internal/logging"
	"github.com/sejonglabs/sejong/internal/models"
	"github.com/sejonglabs/sejong/internal/services"
	"github.com/sejonglabs/sejong/internal/session"
	"github.com/sejonglabs/sejong/internal/transport"
)

// harness assembles the full client-side stack against an httptest backend:
// sqlite store, sealing cipher, refresh transport, API client, session.
type harness struct {
	svc  services.AuthService
	repo accounts.Repository
	sess *session.Manager
	mux  *http.ServeMux
	url  string
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	mux := http.NewServeMux()
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	db, err := accounts.OpenDatabase(context.Background(), filepath.Join(t.TempDir(), "accounts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cipher, err := cryptox.NewCipher(cryptox.DeriveKey([]byte("test-passphrase"), []byte("test-salt")))
	require.NoError(t, err)

	repo := accounts.NewSQLiteRepository(db, cipher)
	sess := session.NewManager()

	tr := transport.New(repo, ts.URL, logging.Nop())
	apiClient := api.New(ts.URL, &http.Client{Transport: tr, Timeout: 5 * time.Second})

	return &harness{
		svc:  services.NewAuthService(apiClient, repo, sess, tr, logging.Nop()),
		repo: repo,
		sess: sess,
		mux:  mux,
		url:  ts.URL,
	}
}

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return raw
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(body))
}

func (h *harness) serveLogin(t *testing.T, access, refresh string) {
	h.mux.HandleFunc("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]string{
			"access_token":  access,
			"refresh_token": refresh,
		})
	})
}

func (h *harness) serveProfile(t *testing.T, profile models.Profile) *atomic.Value {
	var gotAuth atomic.Value
	h.mux.HandleFunc("/api/v1/users/me", func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		writeJSON(t, w, http.StatusOK, map[string]string{
			"id":           profile.ID,
			"email":        profile.Email,
			"display_name": profile.DisplayName,
			"avatar_url":   profile.AvatarURL,
		})
	})
	return &gotAuth
}

func TestSignIn_Success(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	access := signedToken(t, jwt.MapClaims{"sub": "u-42"})
	h.serveLogin(t, access, "refresh-1")
	gotAuth := h.serveProfile(t, models.Profile{
		ID:          "u-42",
		Email:       "mina@example.com",
		DisplayName: "Mina",
		AvatarURL:   "https://cdn.example.com/mina.png",
	})

	require.NoError(t, h.svc.SignIn(ctx, "mina@example.com", "correct horse"))

	assert.Equal(t, session.State{Phase: session.PhaseSignedIn, UserID: "u-42"}, h.sess.Current())
	assert.Equal(t, "Bearer "+access, gotAuth.Load())

	acc, err := h.repo.GetActive(ctx)
	require.NoError(t, err)
	require.NotNil(t, acc)
	assert.Equal(t, "mina@example.com", acc.Email)
	assert.Equal(t, "u-42", acc.UserID)
	assert.Equal(t, "Mina", acc.DisplayName)
	assert.Equal(t, access, acc.AccessToken)
	assert.Equal(t, "refresh-1", acc.RefreshToken)
}

// A failing profile fetch must not fail the sign-in: the token claims carry
// enough identity to proceed.
func TestSignIn_ProfileFetchFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	access := signedToken(t, jwt.MapClaims{"sub": "u-7"})
	h.serveLogin(t, access, "refresh-1")
	h.mux.HandleFunc("/api/v1/users/me", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	require.NoError(t, h.svc.SignIn(ctx, "mina@example.com", "correct horse"))

	assert.Equal(t, session.State{Phase: session.PhaseSignedIn, UserID: "u-7"}, h.sess.Current())

	acc, err := h.repo.GetActive(ctx)
	require.NoError(t, err)
	require.NotNil(t, acc)
	assert.Equal(t, "mina@example.com", acc.Email)
	assert.Empty(t, acc.DisplayName)
	assert.Equal(t, access, acc.AccessToken)
}

func TestSignIn_InvalidCredentials(t *testing.T) {
	h := newHarness(t)

	h.mux.HandleFunc("/api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	err := h.svc.SignIn(context.Background(), "mina@example.com", "wrong password")
	assert.ErrorIs(t, err, common.ErrInvalidCredentials)
	assert.Equal(t, session.PhaseLoading, h.sess.Current().Phase)
}

func TestSignIn_Validation(t *testing.T) {
	h := newHarness(t)
	var calls atomic.Int32
	h.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	err := h.svc.SignIn(context.Background(), "not-an-email", "correct horse")
	assert.ErrorIs(t, err, common.ErrValidation)

	err = h.svc.SignIn(context.Background(), "mina@example.com", "short")
	assert.ErrorIs(t, err, common.ErrValidation)

	assert.Zero(t, calls.Load(), "invalid input must not reach the backend")
}

func TestSignInFederated(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	access := signedToken(t, jwt.MapClaims{"sub": "u-9", "email": "joon@example.com"})
	h.mux.HandleFunc("/api/v1/auth/social", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "google", body["provider"])
		writeJSON(t, w, http.StatusOK, map[string]string{
			"access_token":  access,
			"refresh_token": "refresh-g",
		})
	})
	h.serveProfile(t, models.Profile{ID: "u-9", Email: "joon@example.com", DisplayName: "Joon"})

	require.NoError(t, h.svc.SignInFederated(ctx, "google", "provider-grant"))

	assert.Equal(t, session.State{Phase: session.PhaseSignedIn, UserID: "u-9"}, h.sess.Current())

	acc, err := h.repo.GetByEmail(ctx, "joon@example.com")
	require.NoError(t, err)
	require.NotNil(t, acc)
	assert.True(t, acc.IsActive)
	assert.Equal(t, "Joon", acc.DisplayName)
}

// With the profile endpoint down, a federated sign-in falls back to the
// email claim inside the access token.
func TestSignInFederated_EmailFromClaims(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	access := signedToken(t, jwt.MapClaims{"sub": "u-9", "email": "joon@example.com"})
	h.mux.HandleFunc("/api/v1/auth/social", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]string{
			"access_token":  access,
			"refresh_token": "refresh-g",
		})
	})
	h.mux.HandleFunc("/api/v1/users/me", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	require.NoError(t, h.svc.SignInFederated(ctx, "google", "provider-grant"))

	acc, err := h.repo.GetByEmail(ctx, "joon@example.com")
	require.NoError(t, err)
	require.NotNil(t, acc)
	assert.Equal(t, "u-9", acc.UserID)
}

func TestRegister(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.mux.HandleFunc("/api/v1/auth/register", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["email"] == "taken@example.com" {
			w.WriteHeader(http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusCreated)
	})

	assert.NoError(t, h.svc.Register(ctx, "new@example.com", "correct horse", "New User"))
	assert.ErrorIs(t, h.svc.Register(ctx, "taken@example.com", "correct horse", "Copy Cat"), common.ErrEmailTaken)
	assert.ErrorIs(t, h.svc.Register(ctx, "bad", "correct horse", "x"), common.ErrValidation)
}

func TestSignOut(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	access := signedToken(t, jwt.MapClaims{"sub": "u-1"})
	h.serveLogin(t, access, "refresh-1")
	h.serveProfile(t, models.Profile{ID: "u-1", Email: "mina@example.com"})

	var logouts atomic.Int32
	h.mux.HandleFunc("/api/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		logouts.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, h.svc.SignIn(ctx, "mina@example.com", "correct horse"))
	require.NoError(t, h.svc.SignOut(ctx))

	assert.Equal(t, session.PhaseSignedOut, h.sess.Current().Phase)
	assert.Equal(t, int32(1), logouts.Load())

	// Account record survives sign-out, tokens do not.
	acc, err := h.repo.GetByEmail(ctx, "mina@example.com")
	require.NoError(t, err)
	require.NotNil(t, acc)
	assert.Empty(t, acc.AccessToken)
	assert.Empty(t, acc.RefreshToken)

	// Signing out again is a harmless no-op that skips the backend.
	require.NoError(t, h.svc.SignOut(ctx))
	assert.Equal(t, session.PhaseSignedOut, h.sess.Current().Phase)
	assert.Equal(t, int32(1), logouts.Load())
}

func TestSignOut_RemoteFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	access := signedToken(t, jwt.MapClaims{"sub": "u-1"})
	h.serveLogin(t, access, "refresh-1")
	h.serveProfile(t, models.Profile{ID: "u-1", Email: "mina@example.com"})
	h.mux.HandleFunc("/api/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	require.NoError(t, h.svc.SignIn(ctx, "mina@example.com", "correct horse"))
	require.NoError(t, h.svc.SignOut(ctx), "local sign-out must succeed despite backend failure")

	assert.Equal(t, session.PhaseSignedOut, h.sess.Current().Phase)
	acc, err := h.repo.GetByEmail(ctx, "mina@example.com")
	require.NoError(t, err)
	assert.Empty(t, acc.AccessToken)
}

func TestEnterGuestMode(t *testing.T) {
	h := newHarness(t)

	h.svc.EnterGuestMode()
	assert.Equal(t, session.PhaseGuest, h.sess.Current().Phase)

	n, err := h.svc.AccountCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestResolve(t *testing.T) {
	t.Run("signed in when active account holds a token", func(t *testing.T) {
		h := newHarness(t)
		ctx := context.Background()

		require.NoError(t, h.repo.Upsert(ctx, &models.Account{
			UserID:      "u-1",
			Email:       "mina@example.com",
			AccessToken: "a-1",
			LastLoginAt: time.Now(),
		}))
		require.NoError(t, h.repo.SetActive(ctx, "mina@example.com"))

		require.NoError(t, h.svc.Resolve(ctx))
		assert.Equal(t, session.State{Phase: session.PhaseSignedIn, UserID: "u-1"}, h.sess.Current())
	})

	t.Run("signed out with an empty store", func(t *testing.T) {
		h := newHarness(t)
		require.NoError(t, h.svc.Resolve(context.Background()))
		assert.Equal(t, session.PhaseSignedOut, h.sess.Current().Phase)
	})
}

func TestSwitchAccount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.repo.Upsert(ctx, &models.Account{
		UserID: "u-1", Email: "mina@example.com", AccessToken: "a-1", LastLoginAt: time.Now(),
	}))
	require.NoError(t, h.repo.Upsert(ctx, &models.Account{
		UserID: "u-2", Email: "joon@example.com", LastLoginAt: time.Now(),
	}))
	require.NoError(t, h.repo.SetActive(ctx, "mina@example.com"))

	// Switching to an account without tokens lands signed out.
	require.NoError(t, h.svc.SwitchAccount(ctx, "joon@example.com"))
	assert.Equal(t, session.PhaseSignedOut, h.sess.Current().Phase)

	require.NoError(t, h.svc.SwitchAccount(ctx, "mina@example.com"))
	assert.Equal(t, session.State{Phase: session.PhaseSignedIn, UserID: "u-1"}, h.sess.Current())

	assert.ErrorIs(t, h.svc.SwitchAccount(ctx, "nobody@example.com"), common.ErrNotFound)
	assert.Equal(t, session.PhaseSignedIn, h.sess.Current().Phase, "failed switch leaves session untouched")
}

func TestRemoveAccount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	require.NoError(t, h.repo.Upsert(ctx, &models.Account{
		UserID: "u-1", Email: "mina@example.com", AccessToken: "a-1", LastLoginAt: time.Now(),
	}))
	require.NoError(t, h.repo.SetActive(ctx, "mina@example.com"))
	h.sess.SignedIn("u-1")

	require.NoError(t, h.svc.RemoveAccount(ctx, "mina@example.com"))
	assert.Equal(t, session.PhaseSignedOut, h.sess.Current().Phase)

	n, err := h.svc.AccountCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.ErrorIs(t, h.svc.RemoveAccount(ctx, "mina@example.com"), common.ErrNotFound)
}

func TestEnsureValidToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var refreshes atomic.Int32
	h.mux.HandleFunc("/api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshes.Add(1)
		writeJSON(t, w, http.StatusOK, map[string]string{
			"access_token":  "a-2",
			"refresh_token": "r-2",
		})
	})

	require.NoError(t, h.repo.Upsert(ctx, &models.Account{
		UserID: "u-1", Email: "mina@example.com",
		AccessToken: "a-1", RefreshToken: "r-1", LastLoginAt: time.Now(),
	}))
	require.NoError(t, h.repo.SetActive(ctx, "mina@example.com"))

	// A stored token is returned as-is.
	token, err := h.svc.EnsureValidToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a-1", token)
	assert.Zero(t, refreshes.Load())

	// With the access token gone, one refresh cycle fills it back in.
	require.NoError(t, h.repo.ClearAccessToken(ctx, "mina@example.com"))
	token, err = h.svc.EnsureValidToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a-2", token)
	assert.Equal(t, int32(1), refreshes.Load())

	// RefreshCurrentToken always hits the backend.
	token, err = h.svc.RefreshCurrentToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a-2", token)
	assert.Equal(t, int32(2), refreshes.Load())
}

func TestCurrentToken(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	token, err := h.svc.CurrentToken(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, h.repo.Upsert(ctx, &models.Account{
		UserID: "u-1", Email: "mina@example.com", AccessToken: "a-1", LastLoginAt: time.Now(),
	}))
	require.NoError(t, h.repo.SetActive(ctx, "mina@example.com"))

	token, err = h.svc.CurrentToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a-1", token)
}
