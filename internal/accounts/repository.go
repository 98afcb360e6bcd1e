// Package accounts implements the credential store: durable, per-email
// persistence of backend identities and their tokens, with at most one
// account active at a time.
package accounts

import (
	"context"

	"github.com/sejonglabs/sejong/internal/models"
)

// Repository is the credential store contract.
//
// Invariants all implementations must uphold:
//   - email is unique across stored accounts;
//   - at most one account has IsActive set at any time;
//   - SetActive with an unknown email is a no-op, not an error, and leaves
//     the previously active account untouched.
//
// Lookups that find nothing return (nil, nil); storage failures are
// propagated, never swallowed.
type Repository interface {
	// Upsert inserts a new account keyed by email or merges fields into the
	// existing record, preserving the local surrogate id and active flag.
	Upsert(ctx context.Context, acc *models.Account) error

	// SetActive marks the account with the given email as the single active
	// one, clearing the flag everywhere else.
	SetActive(ctx context.Context, email string) error

	// GetActive returns the active account, or nil when there is none.
	GetActive(ctx context.Context) (*models.Account, error)

	// GetByEmail returns the account for email, or nil when absent.
	GetByEmail(ctx context.Context, email string) (*models.Account, error)

	// UpdateTokens replaces both tokens for the account and bumps the
	// last-login timestamp. Used after a successful refresh or re-login.
	UpdateTokens(ctx context.Context, email, access, refresh string) error

	// ClearTokens nulls both token fields (sign-out, refresh failure).
	ClearTokens(ctx context.Context, email string) error

	// ClearAccessToken nulls only the access token (token revocation).
	ClearAccessToken(ctx context.Context, email string) error

	// Remove deletes the record entirely.
	Remove(ctx context.Context, email string) error

	// Count reports how many accounts are stored.
	Count(ctx context.Context) (int, error)

	// List returns all stored accounts ordered by last login, newest first.
	// Token fields are not populated.
	List(ctx context.Context) ([]models.Account, error)
}
