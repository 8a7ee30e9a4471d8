// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered user account.
//
// Two ways to get an account:
//   - GitHub OAuth: GitHubID holds GitHub's numeric user ID (stable, unique).
//   - Local email/password: GitHubID is 0 and PasswordHash holds the bcrypt
//     hash. The email is the login identifier for these accounts.
//
// We generate our own internal string ID (xid) in both cases so our primary
// keys are never tied to a third party's numbering scheme.
//
// WHY PasswordHash HAS json:"-"?
// The hash must never leak into an API response. json:"-" tells
// encoding/json to skip the field entirely when marshalling a User.
type User struct {
	ID           string    `json:"id"        db:"id"`
	GitHubID     int64     `json:"githubId"  db:"github_id"` // 0 for local accounts
	Login        string    `json:"login"     db:"login"`
	Email        string    `json:"email"     db:"email"` // may be empty for GitHub users who hide it
	AvatarURL    string    `json:"avatarUrl" db:"avatar_url"`
	PasswordHash string    `json:"-"         db:"password_hash"` // empty for OAuth accounts
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}
