// Package common defines shared sentinel errors and the error-kind
// classification used across the sejong client. Callers should match
// sentinels with errors.Is; the UI layer maps kinds to messages.
package common

import (
	"context"
	"errors"
	"net"
)

var (
	// Network errors.
	ErrUnavailable = errors.New("server unavailable")
	ErrTimeout     = errors.New("request timed out")

	// Authentication errors.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email already registered")
	ErrSessionExpired     = errors.New("session expired")
	ErrAccountLocked      = errors.New("account locked")

	// Data errors.
	ErrNotFound = errors.New("not found")
	ErrStorage  = errors.New("local storage failure")

	// Validation errors.
	ErrValidation = errors.New("validation failed")

	ErrInternal = errors.New("internal error")
)

// Kind groups errors into the coarse categories the UI renders.
type Kind string

const (
	KindNetwork    Kind = "network"
	KindAuth       Kind = "auth"
	KindData       Kind = "data"
	KindValidation Kind = "validation"
	KindUnexpected Kind = "unexpected"
)

// KindOf classifies err into one of the Kind values. Unclassified errors,
// including nil-adjacent oddities, fall through to KindUnexpected so the
// original cause is never silently promoted to a friendlier category.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrUnavailable), errors.Is(err, ErrTimeout):
		return KindNetwork
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrEmailTaken),
		errors.Is(err, ErrSessionExpired),
		errors.Is(err, ErrAccountLocked):
		return KindAuth
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrStorage):
		return KindData
	case errors.Is(err, ErrValidation):
		return KindValidation
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetwork
	}
	return KindUnexpected
}
