// Package models holds the client-side data model: locally stored accounts,
// token pairs returned by the auth endpoints, and user profiles.
package models

import "time"

// Account is one backend identity ever signed into on this device.
// Tokens are empty strings when the account is logged out; the record itself
// survives sign-out so the account picker can offer it again.
type Account struct {
	ID           string
	UserID       string
	Email        string
	DisplayName  string
	AvatarURL    string
	AccessToken  string
	RefreshToken string
	LastLoginAt  time.Time
	IsActive     bool
}

// TokenPair is what the login, social and refresh endpoints return.
type TokenPair struct {
	Access  string
	Refresh string
}

// Profile is the best-effort user info fetched after sign-in.
type Profile struct {
	ID          string
	Email       string
	DisplayName string
	AvatarURL   string
}
