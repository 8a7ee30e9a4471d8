// Package repository declares the storage interfaces the rest of the
// application programs against. The sqlite subpackage provides the concrete
// implementation; services and handlers only ever see these interfaces.
package repository

import (
	"context"

	"github.com/sakif/watchlist/internal/model"
)

// WatchlistRepository stores durable watchlist entries for authenticated
// users.
//
// All operations are scoped to one user — an entry is identified by the
// (userID, modelLabel, objectID) tuple, never by its row id alone. Delete
// operations are idempotent: deleting something that isn't there removes
// zero rows and returns nil.
type WatchlistRepository interface {
	// Exists reports whether the user already has an entry for the object.
	Exists(ctx context.Context, userID, modelLabel string, objectID int64) (bool, error)

	// CreateEntry inserts one entry, filling in its ID and TimeAdded.
	CreateEntry(ctx context.Context, entry *model.WatchlistEntry) error

	// CreateEntries inserts a batch of entries in one transaction.
	// An empty batch performs no storage operation at all.
	CreateEntries(ctx context.Context, entries []*model.WatchlistEntry) error

	// DeleteEntry removes the entry for one object, if present.
	DeleteEntry(ctx context.Context, userID, modelLabel string, objectID int64) error

	// DeleteModel removes every entry the user has for one model.
	DeleteModel(ctx context.Context, userID, modelLabel string) error

	// DeleteObjects removes the entries for the given object ids under one
	// model. An empty id list performs no storage operation.
	DeleteObjects(ctx context.Context, userID, modelLabel string, objectIDs []int64) error

	// ListModel returns the user's entries for one model, oldest first.
	// No entries means an empty slice, not an error.
	ListModel(ctx context.Context, userID, modelLabel string) ([]model.WatchlistEntry, error)

	// Labels returns the distinct model labels the user has entries for.
	Labels(ctx context.Context, userID string) ([]string, error)

	// UpdateNotes replaces the notes text of one entry.
	UpdateNotes(ctx context.Context, userID, modelLabel string, objectID int64, notes string) error
}

// UserRepository stores user accounts.
type UserRepository interface {
	// Upsert inserts or updates a user keyed by their GitHub ID. On return
	// the user's internal ID and timestamps are populated.
	Upsert(ctx context.Context, user *model.User) error

	// CreateLocal inserts a local email/password account. Returns
	// apperror.Conflict if the email is already taken.
	CreateLocal(ctx context.Context, user *model.User) error

	// GetUserByID returns the user with the given internal ID.
	GetUserByID(ctx context.Context, id string) (*model.User, error)

	// GetUserByEmail returns the user with the given email address.
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}

// DirectoryRepository stores the demo directory records (people and
// companies) this server exposes as watchable models.
type DirectoryRepository interface {
	CreatePerson(ctx context.Context, p *model.Person) error
	ListPeople(ctx context.Context) ([]model.Person, error)
	DeletePerson(ctx context.Context, id int64) error

	CreateCompany(ctx context.Context, c *model.Company) error
	ListCompanies(ctx context.Context) ([]model.Company, error)
	DeleteCompany(ctx context.Context, id int64) error
}
