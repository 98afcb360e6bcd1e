// Package api implements the JSON client for the backend's auth and profile
// endpoints. Transport failures and HTTP statuses are mapped onto the shared
// error taxonomy so callers never inspect status codes themselves.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sejonglabs/sejong/internal/common"
	"github.com/sejonglabs/sejong/internal/models"
)

const (
	loginPath    = "/api/v1/auth/login"
	socialPath   = "/api/v1/auth/social"
	registerPath = "/api/v1/auth/register"
	logoutPath   = "/api/v1/auth/logout"
	mePath       = "/api/v1/users/me"
)

const defaultTimeout = 15 * time.Second

// Client talks to the backend. The http.Client it is given normally carries
// the auth transport, so authenticated endpoints get bearer injection and
// 401-refresh for free; skip-listed auth endpoints pass through untouched.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a Client over the given HTTP client. A nil client gets a plain
// one with the default timeout.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
}

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, email, password string) (models.TokenPair, error) {
	body := map[string]string{"email": email, "password": password}
	return c.tokenCall(ctx, loginPath, body)
}

// SocialLogin exchanges a federated provider token for a backend session.
func (c *Client) SocialLogin(ctx context.Context, provider, providerToken string) (models.TokenPair, error) {
	body := map[string]string{"provider": provider, "token": providerToken}
	return c.tokenCall(ctx, socialPath, body)
}

func (c *Client) tokenCall(ctx context.Context, path string, body map[string]string) (models.TokenPair, error) {
	var pair models.TokenPair

	resp, err := c.post(ctx, path, body)
	if err != nil {
		return pair, err
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode); err != nil {
		return pair, err
	}

	var parsed tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return pair, fmt.Errorf("%w: decoding token response: %w", common.ErrInternal, err)
	}
	if parsed.AccessToken == "" {
		return pair, fmt.Errorf("%w: token response has no access token", common.ErrInternal)
	}

	pair.Access = parsed.AccessToken
	pair.Refresh = parsed.RefreshToken
	return pair, nil
}

// Register creates a new account.
func (c *Client) Register(ctx context.Context, email, password, displayName string) error {
	body := map[string]string{"email": email, "password": password, "display_name": displayName}
	resp, err := c.post(ctx, registerPath, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return statusError(resp.StatusCode)
}

// Logout revokes the current session server-side. The bearer token is
// attached by the auth transport.
func (c *Client) Logout(ctx context.Context) error {
	resp, err := c.post(ctx, logoutPath, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return statusError(resp.StatusCode)
}

// Me fetches the signed-in user's profile using whatever credentials the
// underlying transport injects.
func (c *Client) Me(ctx context.Context) (*models.Profile, error) {
	return c.MeWithToken(ctx, "")
}

// MeWithToken fetches a profile with an explicit bearer token, bypassing
// token injection. Used right after a sign-in, before the new account is
// stored as active.
func (c *Client) MeWithToken(ctx context.Context, token string) (*models.Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+mePath, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %w", common.ErrInternal, err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode); err != nil {
		return nil, err
	}

	var parsed struct {
		ID          string `json:"id"`
		Email       string `json:"email"`
		DisplayName string `json:"display_name"`
		AvatarURL   string `json:"avatar_url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decoding profile: %w", common.ErrInternal, err)
	}
	return &models.Profile{
		ID:          parsed.ID,
		Email:       parsed.Email,
		DisplayName: parsed.DisplayName,
		AvatarURL:   parsed.AvatarURL,
	}, nil
}

func (c *Client) post(ctx context.Context, path string, body any) (*http.Response, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: encoding request: %w", common.ErrInternal, err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %w", common.ErrInternal, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	return resp, nil
}

// statusError maps an HTTP status onto the error taxonomy. 2xx maps to nil.
func statusError(status int) error {
	switch {
	case status >= 200 && status <= 299:
		return nil
	case status == http.StatusUnauthorized:
		return common.ErrInvalidCredentials
	case status == http.StatusNotFound:
		return common.ErrUserNotFound
	case status == http.StatusConflict:
		return common.ErrEmailTaken
	case status == http.StatusLocked:
		return common.ErrAccountLocked
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: rejected by server", common.ErrValidation)
	case status == http.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("%w: status %d", common.ErrUnavailable, status)
	default:
		return fmt.Errorf("%w: unexpected status %d", common.ErrInternal, status)
	}
}

// transportError maps client-side failures (DNS, refused connection,
// timeouts) onto the network kinds.
func transportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", common.ErrTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", common.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", common.ErrUnavailable, err)
}
