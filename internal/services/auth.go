// Package services contains the application services consumed by the UI
// layer. This file defines the auth façade: the only entry point for
// identity operations, translating raw HTTP and storage outcomes into the
// shared error taxonomy and driving the session state machine.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sejonglabs/sejong/internal/accounts"
	"github.com/sejonglabs/sejong/internal/api"
	"github.com/sejonglabs/sejong/internal/common"
	"github.com/sejonglabs/sejong/internal/logging"
	"github.com/sejonglabs/sejong/internal/models"
	"github.com/sejonglabs/sejong/internal/session"
)

// TokenRefresher is the slice of the transport the façade needs for the
// explicit refresh operations. Both share one single-flight group, so a
// façade-driven refresh and an interceptor-driven one never race.
type TokenRefresher interface {
	ForceRefresh(ctx context.Context) (string, error)
}

// AuthService is the identity façade.
//
// Contract:
//   - SignIn / SignInFederated: authenticate, persist the account locally,
//     transition the session to signed-in. Profile fetch is best-effort.
//   - SignOut: best-effort remote logout, unconditional local sign-out.
//   - EnterGuestMode: session-only transition, stored accounts untouched.
//   - EnsureValidToken / RefreshCurrentToken: façade-level refresh for call
//     sites that build requests manually.
//   - Resolve: one-time startup resolution of the session state.
//
// All blocking methods honor context cancellation.
type AuthService interface {
	Resolve(ctx context.Context) error
	SignIn(ctx context.Context, email, password string) error
	SignInFederated(ctx context.Context, provider, providerToken string) error
	Register(ctx context.Context, email, password, displayName string) error
	SignOut(ctx context.Context) error
	EnterGuestMode()
	EnsureValidToken(ctx context.Context) (string, error)
	RefreshCurrentToken(ctx context.Context) (string, error)
	CurrentToken(ctx context.Context) (string, error)
	Accounts(ctx context.Context) ([]models.Account, error)
	AccountCount(ctx context.Context) (int, error)
	SwitchAccount(ctx context.Context, email string) error
	RemoveAccount(ctx context.Context, email string) error
}

type authService struct {
	api       *api.Client
	accounts  accounts.Repository
	session   *session.Manager
	refresher TokenRefresher
	validate  *validator.Validate
	log       logging.Logger
	now       func() time.Time
}

// NewAuthService wires the façade.
func NewAuthService(apiClient *api.Client, repo accounts.Repository, sess *session.Manager, refresher TokenRefresher, log logging.Logger) AuthService {
	return &authService{
		api:       apiClient,
		accounts:  repo,
		session:   sess,
		refresher: refresher,
		validate:  validator.New(),
		log:       log,
		now:       time.Now,
	}
}

// Resolve derives the initial session state from the credential store. The
// persisted token is assumed valid: a stale one is caught by the refresh
// coordinator on the first real API call.
func (s *authService) Resolve(ctx context.Context) error {
	acc, err := s.accounts.GetActive(ctx)
	if err != nil {
		return err
	}
	s.session.Resolve(acc)
	return nil
}

func (s *authService) SignIn(ctx context.Context, email, password string) error {
	if err := s.validate.Var(email, "required,email"); err != nil {
		return fmt.Errorf("%w: malformed email", common.ErrValidation)
	}
	if err := s.validate.Var(password, "required,min=8"); err != nil {
		return fmt.Errorf("%w: password must be at least 8 characters", common.ErrValidation)
	}

	pair, err := s.api.Login(ctx, email, password)
	if err != nil {
		return err
	}
	return s.completeSignIn(ctx, email, pair)
}

func (s *authService) SignInFederated(ctx context.Context, provider, providerToken string) error {
	if err := s.validate.Var(provider, "required"); err != nil {
		return fmt.Errorf("%w: provider is required", common.ErrValidation)
	}
	if err := s.validate.Var(providerToken, "required"); err != nil {
		return fmt.Errorf("%w: provider token is required", common.ErrValidation)
	}

	pair, err := s.api.SocialLogin(ctx, provider, providerToken)
	if err != nil {
		return err
	}
	// Federated sign-in carries no email: recover it from the profile or the
	// token claims before storing the account.
	return s.completeSignIn(ctx, "", pair)
}

// completeSignIn persists tokens and identity locally and transitions the
// session. A failed profile fetch never fails the sign-in: a fallback user
// id keeps the account usable until the next successful fetch.
func (s *authService) completeSignIn(ctx context.Context, email string, pair models.TokenPair) error {
	userID, claimEmail := tokenIdentity(pair.Access)

	acc := &models.Account{
		Email:        email,
		UserID:       userID,
		AccessToken:  pair.Access,
		RefreshToken: pair.Refresh,
		LastLoginAt:  s.now(),
	}

	profile, err := s.api.MeWithToken(ctx, pair.Access)
	if err != nil {
		s.log.Warn(ctx, "profile fetch failed, continuing with fallback identity", "error", err)
	} else {
		if profile.ID != "" {
			acc.UserID = profile.ID
		}
		if acc.Email == "" {
			acc.Email = profile.Email
		}
		acc.DisplayName = profile.DisplayName
		acc.AvatarURL = profile.AvatarURL
	}
	if acc.Email == "" {
		acc.Email = claimEmail
	}
	if acc.Email == "" {
		return fmt.Errorf("%w: backend returned no account email", common.ErrInternal)
	}
	if acc.UserID == "" {
		acc.UserID = uuid.NewString()
	}

	if err := s.accounts.Upsert(ctx, acc); err != nil {
		return err
	}
	if err := s.accounts.SetActive(ctx, acc.Email); err != nil {
		return err
	}

	s.session.SignedIn(acc.UserID)
	s.log.Info(ctx, "signed in", "email", acc.Email)
	return nil
}

func (s *authService) Register(ctx context.Context, email, password, displayName string) error {
	if err := s.validate.Var(email, "required,email"); err != nil {
		return fmt.Errorf("%w: malformed email", common.ErrValidation)
	}
	if err := s.validate.Var(password, "required,min=8"); err != nil {
		return fmt.Errorf("%w: password must be at least 8 characters", common.ErrValidation)
	}
	return s.api.Register(ctx, email, password, displayName)
}

// SignOut tears the session down locally no matter what the backend says.
// Calling it when already signed out still lands in the signed-out state.
func (s *authService) SignOut(ctx context.Context) error {
	if s.session.Current().Phase == session.PhaseSignedIn {
		if err := s.api.Logout(ctx); err != nil {
			s.log.Warn(ctx, "remote logout failed, signing out locally anyway", "error", err)
		}
	}

	acc, err := s.accounts.GetActive(ctx)
	if err != nil {
		s.log.Error(ctx, "reading active account during sign-out", "error", err)
	} else if acc != nil {
		if err := s.accounts.ClearTokens(ctx, acc.Email); err != nil {
			s.log.Error(ctx, "clearing tokens during sign-out", "error", err)
		}
	}

	s.session.SignedOut()
	return nil
}

func (s *authService) EnterGuestMode() {
	s.session.Guest()
}

// EnsureValidToken returns the current access token, refreshing only when
// none is stored.
func (s *authService) EnsureValidToken(ctx context.Context) (string, error) {
	acc, err := s.accounts.GetActive(ctx)
	if err != nil {
		return "", err
	}
	if acc != nil && acc.AccessToken != "" {
		return acc.AccessToken, nil
	}
	return s.refresher.ForceRefresh(ctx)
}

// RefreshCurrentToken forces one refresh cycle regardless of what is stored.
func (s *authService) RefreshCurrentToken(ctx context.Context) (string, error) {
	return s.refresher.ForceRefresh(ctx)
}

// CurrentToken returns the last-known access token, or "" when none.
func (s *authService) CurrentToken(ctx context.Context) (string, error) {
	acc, err := s.accounts.GetActive(ctx)
	if err != nil {
		return "", err
	}
	if acc == nil {
		return "", nil
	}
	return acc.AccessToken, nil
}

func (s *authService) Accounts(ctx context.Context) ([]models.Account, error) {
	return s.accounts.List(ctx)
}

func (s *authService) AccountCount(ctx context.Context) (int, error) {
	return s.accounts.Count(ctx)
}

// SwitchAccount makes another stored account active and aligns the session
// with whether that account still holds a token.
func (s *authService) SwitchAccount(ctx context.Context, email string) error {
	acc, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if acc == nil {
		return fmt.Errorf("%w: no account for %s", common.ErrNotFound, email)
	}
	if err := s.accounts.SetActive(ctx, email); err != nil {
		return err
	}
	if acc.AccessToken != "" {
		s.session.SignedIn(acc.UserID)
	} else {
		s.session.SignedOut()
	}
	return nil
}

func (s *authService) RemoveAccount(ctx context.Context, email string) error {
	acc, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if acc == nil {
		return fmt.Errorf("%w: no account for %s", common.ErrNotFound, email)
	}

	wasActive := acc.IsActive
	if err := s.accounts.Remove(ctx, email); err != nil {
		return err
	}
	if wasActive {
		s.session.SignedOut()
	}
	return nil
}

// tokenIdentity extracts the subject and email claims from the access token
// without verifying the signature: the backend owns token validity, the
// client only mines identifiers out of it.
func tokenIdentity(raw string) (userID, email string) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return "", ""
	}
	if sub, err := claims.GetSubject(); err == nil {
		userID = sub
	}
	if v, ok := claims["email"].(string); ok {
		email = v
	}
	return userID, email
}
