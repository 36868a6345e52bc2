package model

import "time"

// Roles carried in the access token's "role" claim.  ADMIN is granted when
// the database capability function is_admin(email) returns true for the
// user's email; everyone else is USER.
const (
	RoleUser  = "USER"
	RoleAdmin = "ADMIN"
)

// Sign-in providers recorded on the user row.
const (
	ProviderCredentials = "credentials"
	ProviderGoogle      = "google"
)

// User represents an application user as stored in the `users` table.
//
// Fields:
//
//	ID            – UUID primary key.
//	Email         – unique, lower-cased email address.
//	Phone         – optional phone number, unique when present.
//	Name          – display name.
//	PasswordHash  – bcrypt hash; empty for OAuth-only accounts.
//	Provider      – how the account was created (credentials or google).
//	EmailVerified – set once an emailed one-time code has been confirmed.
//	CreatedAt     – timestamp of creation.
//	UpdatedAt     – timestamp of last update.
type User struct {
	ID            string
	Email         string
	Phone         *string
	Name          string
	PasswordHash  string
	Provider      string
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RefreshToken models an entry in the `refresh_tokens` table.  Only the
// SHA-256 hash of the raw token is stored.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}
