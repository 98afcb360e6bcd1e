// Package transport implements the HTTP-boundary authentication coordinator:
// bearer injection for outgoing requests, 401 detection, a single-flight
// refresh exchange against the backend, and a one-shot retry of the original
// request with the refreshed token.
//
// The transport executes on arbitrary client worker goroutines and relies on
// nothing but its own synchronization. Concurrent 401s collapse into one
// refresh call; every waiter retries with whatever token that refresh
// produced. Failure paths never surface as errors to the HTTP caller: they
// resolve to a synthetic 401 response, so callers keep exactly one way to
// detect "ultimately unauthorized".
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/sejonglabs/sejong/internal/common"
	"github.com/sejonglabs/sejong/internal/logging"
	"github.com/sejonglabs/sejong/internal/models"
)

// RetryMarkerHeader marks a request as a post-refresh retry. A 401 on a
// marked request is final: no second refresh cycle is started.
const RetryMarkerHeader = "X-Auth-Retry"

// RefreshPath is the backend's token refresh endpoint.
const RefreshPath = "/api/v1/auth/refresh"

// refreshTimeout bounds the refresh exchange (connect + read).
const refreshTimeout = 30 * time.Second

// skipPaths are endpoint suffixes exempt from bearer injection and from
// 401-triggered refresh: they either establish a session or do not need one.
var skipPaths = []string{
	"/auth/login",
	"/auth/refresh",
	"/auth/social",
	"/auth/register",
}

// ErrRefreshTokenMissing reports that the active account holds no refresh
// token, so no exchange was attempted.
var ErrRefreshTokenMissing = errors.New("no refresh token for active account")

// CredentialSource is the slice of the credential store the transport needs.
type CredentialSource interface {
	GetActive(ctx context.Context) (*models.Account, error)
	UpdateTokens(ctx context.Context, email, access, refresh string) error
	ClearTokens(ctx context.Context, email string) error
}

// AuthTransport is an http.RoundTripper wrapping a base transport.
type AuthTransport struct {
	// Base executes the actual requests. nil means http.DefaultTransport.
	Base http.RoundTripper

	creds      CredentialSource
	refreshURL string
	// refreshClient is a plain client with no interceptors, so the refresh
	// exchange itself can never recurse into this transport.
	refreshClient *http.Client
	group         singleflight.Group
	log           logging.Logger
}

// New builds an AuthTransport refreshing against baseURL.
func New(creds CredentialSource, baseURL string, log logging.Logger) *AuthTransport {
	return &AuthTransport{
		creds:         creds,
		refreshURL:    strings.TrimRight(baseURL, "/") + RefreshPath,
		refreshClient: &http.Client{Timeout: refreshTimeout},
		log:           log,
	}
}

func (t *AuthTransport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

// RoundTrip implements http.RoundTripper.
func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if skipped(req.URL.Path) {
		return t.base().RoundTrip(req)
	}

	outgoing := req
	// Caller-supplied Authorization wins over the stored token.
	if req.Header.Get("Authorization") == "" {
		if acc, err := t.creds.GetActive(req.Context()); err == nil && acc != nil && acc.AccessToken != "" {
			outgoing = cloneWithBody(req)
			outgoing.Header.Set("Authorization", "Bearer "+acc.AccessToken)
		} else if err != nil {
			t.log.Warn(req.Context(), "reading active account failed, sending request unauthenticated", "error", err)
		}
	}

	resp, err := t.base().RoundTrip(outgoing)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || req.Header.Get(RetryMarkerHeader) != "" {
		return resp, nil
	}

	// The 401 body is of no further use; release the connection.
	drain(resp)

	token, err := t.refresh(req.Context())
	if err != nil {
		t.log.Warn(req.Context(), "token refresh failed", "error", err, "path", req.URL.Path)
		return syntheticUnauthorized(req, reasonFor(err)), nil
	}

	retry := cloneWithBody(req)
	retry.Header.Set("Authorization", "Bearer "+token)
	retry.Header.Set(RetryMarkerHeader, "1")
	return t.base().RoundTrip(retry)
}

// ForceRefresh runs one refresh cycle for the active account and returns the
// new access token. Concurrent callers share a single exchange, including
// callers currently inside RoundTrip.
func (t *AuthTransport) ForceRefresh(ctx context.Context) (string, error) {
	return t.refresh(ctx)
}

// refresh serializes all refresh attempts through a single flight. The owner
// performs the exchange; everyone else blocks on its outcome. On any failure
// the stored tokens are cleared so the next launch resolves to signed-out.
func (t *AuthTransport) refresh(ctx context.Context) (string, error) {
	token, err, _ := t.group.Do("refresh", func() (any, error) {
		// Deliberately not the caller's context: once entered, a refresh
		// runs to completion (or its own timeout) even if the triggering
		// request goes away, since other waiters depend on the outcome.
		bg := context.Background()

		acc, err := t.creds.GetActive(bg)
		if err != nil {
			return "", fmt.Errorf("reading active account: %w", err)
		}
		if acc == nil || acc.RefreshToken == "" {
			if acc != nil {
				if clearErr := t.creds.ClearTokens(bg, acc.Email); clearErr != nil {
					t.log.Error(bg, "clearing tokens failed", "error", clearErr)
				}
			}
			return "", fmt.Errorf("%w: %w", common.ErrSessionExpired, ErrRefreshTokenMissing)
		}

		pair, err := t.exchange(acc.RefreshToken)
		if err != nil {
			if clearErr := t.creds.ClearTokens(bg, acc.Email); clearErr != nil {
				t.log.Error(bg, "clearing tokens failed", "error", clearErr)
			}
			return "", fmt.Errorf("%w: %w", common.ErrSessionExpired, err)
		}

		if err := t.creds.UpdateTokens(bg, acc.Email, pair.Access, pair.Refresh); err != nil {
			return "", fmt.Errorf("persisting refreshed tokens: %w", err)
		}
		t.log.Debug(bg, "token refreshed", "email", acc.Email)
		return pair.Access, nil
	})
	if err != nil {
		return "", err
	}
	return token.(string), nil
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// exchange swaps the refresh token for a new token pair over the dedicated
// interceptor-free client.
func (t *AuthTransport) exchange(refreshToken string) (models.TokenPair, error) {
	var pair models.TokenPair

	body, err := json.Marshal(refreshRequest{RefreshToken: refreshToken})
	if err != nil {
		return pair, err
	}
	req, err := http.NewRequest(http.MethodPost, t.refreshURL, bytes.NewReader(body))
	if err != nil {
		return pair, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.refreshClient.Do(req)
	if err != nil {
		return pair, fmt.Errorf("refresh call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return pair, fmt.Errorf("refresh rejected with status %d", resp.StatusCode)
	}

	var parsed refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return pair, fmt.Errorf("decoding refresh response: %w", err)
	}
	if parsed.AccessToken == "" {
		return pair, errors.New("refresh response has no access token")
	}

	pair.Access = parsed.AccessToken
	pair.Refresh = parsed.RefreshToken
	return pair, nil
}

func skipped(path string) bool {
	for _, p := range skipPaths {
		if strings.HasSuffix(path, p) {
			return true
		}
	}
	return false
}

// cloneWithBody clones req and, when the body is replayable, rewinds it so
// the clone can actually be sent.
func cloneWithBody(req *http.Request) *http.Request {
	clone := req.Clone(req.Context())
	if req.GetBody != nil {
		if body, err := req.GetBody(); err == nil {
			clone.Body = body
		}
	}
	return clone
}

func drain(resp *http.Response) {
	if resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

func reasonFor(err error) string {
	if errors.Is(err, ErrRefreshTokenMissing) {
		return "refresh_token_missing"
	}
	return "refresh_failed"
}

// syntheticUnauthorized fabricates a 401 response without a network call.
// The JSON body carries a machine-readable reason for diagnostics; callers
// are expected to look only at the status code.
func syntheticUnauthorized(req *http.Request, reason string) *http.Response {
	body := fmt.Sprintf(`{"error":%q,"message":"authentication required"}`, reason)
	header := make(http.Header)
	header.Set("Content-Type", "application/json")

	return &http.Response{
		Status:        "401 Unauthorized",
		StatusCode:    http.StatusUnauthorized,
		Proto:         req.Proto,
		ProtoMajor:    req.ProtoMajor,
		ProtoMinor:    req.ProtoMinor,
		Header:        header,
		Body:          io.NopCloser(strings.NewReader(body)),
		ContentLength: int64(len(body)),
		Request:       req,
	}
}
