package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/watchlist/internal/apperror"
	"github.com/sakif/watchlist/internal/model"
	"github.com/sakif/watchlist/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// Upsert inserts or updates a user keyed by their GitHub ID.
//
// First login → INSERT with a fresh xid. Subsequent logins → UPDATE the
// profile fields, keeping the existing internal ID so watchlist entries stay
// attached to the same account. We look up by github_id first rather than
// using INSERT OR REPLACE, because REPLACE would delete the old row — and
// with it, cascade-delete the user's watchlist.
func (db *DB) Upsert(ctx context.Context, user *model.User) error {
	var existingID string
	err := db.conn.QueryRowContext(ctx,
		`SELECT id FROM users WHERE github_id = ?`, user.GitHubID,
	).Scan(&existingID)

	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("sqlite: looking up user by github_id %d: %w", user.GitHubID, err)
	}

	if existingID != "" {
		// Known account — refresh the profile in case it changed on GitHub.
		user.ID = existingID
		user.UpdatedAt = time.Now()
		_, err = db.conn.ExecContext(ctx,
			`UPDATE users SET login = ?, email = ?, avatar_url = ?, updated_at = ?
			 WHERE id = ?`,
			user.Login,
			user.Email,
			user.AvatarURL,
			user.UpdatedAt,
			user.ID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
		}
		return nil
	}

	user.ID = xid.New().String()
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO users (id, github_id, login, email, avatar_url, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.GitHubID,
		user.Login,
		user.Email,
		user.AvatarURL,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating user (github_id=%d): %w", user.GitHubID, err)
	}

	return nil
}

// CreateLocal inserts a local email/password account.
//
// github_id is left NULL for local accounts so they never collide with the
// UNIQUE constraint on github_id. A duplicate email trips the partial unique
// index and is reported as a conflict — the handler turns that into a 409.
func (db *DB) CreateLocal(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, github_id, login, email, avatar_url, password_hash, created_at, updated_at)
		 VALUES (?, NULL, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Login,
		user.Email,
		user.AvatarURL,
		user.PasswordHash,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		// modernc.org/sqlite reports constraint violations in the error
		// message; the driver has no typed error for them.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("sqlite: creating local user %s: %w", user.Email, err)
	}

	return nil
}

// GetUserByID returns the user with the given internal ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUser(ctx, `WHERE id = ?`, id)
}

// GetUserByEmail returns the user with the given email address. Used by the
// local login flow to find the account whose password hash to check.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getUser(ctx, `WHERE email = ?`, email)
}

// getUser runs the shared SELECT for the by-id and by-email lookups.
// github_id scans through sql.NullInt64 because local accounts store NULL.
func (db *DB) getUser(ctx context.Context, where string, arg any) (*model.User, error) {
	var (
		user     model.User
		githubID sql.NullInt64
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, github_id, login, email, avatar_url, password_hash, created_at, updated_at
		 FROM users `+where,
		arg,
	).Scan(
		&user.ID,
		&githubID,
		&user.Login,
		&user.Email,
		&user.AvatarURL,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", fmt.Sprintf("%v", arg))
		}
		return nil, fmt.Errorf("sqlite: getting user: %w", err)
	}

	if githubID.Valid {
		user.GitHubID = githubID.Int64
	}
	return &user, nil
}
