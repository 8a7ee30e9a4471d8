package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/watchlist/internal/model"
	"github.com/sakif/watchlist/internal/repository"
)

// compile-time check that *DB implements repository.WatchlistRepository
var _ repository.WatchlistRepository = (*DB)(nil)

// Exists reports whether the user already has an entry for the object.
//
// EXISTS + SELECT 1:
// We only need a yes/no, so we ask SQLite for the cheapest possible thing.
// The UNIQUE index on (user_id, model_label, object_id) makes this a single
// index probe.
func (db *DB) Exists(ctx context.Context, userID, modelLabel string, objectID int64) (bool, error) {
	var one int
	err := db.conn.QueryRowContext(ctx,
		`SELECT 1 FROM watchlist_entries
		 WHERE user_id = ? AND model_label = ? AND object_id = ?`,
		userID, modelLabel, objectID,
	).Scan(&one)

	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("sqlite: checking watchlist entry: %w", err)
	}
	return true, nil
}

// CreateEntry inserts one watchlist entry.
//
// The caller (the manager) checks for an existing entry first, but a
// concurrent request can slip in between the check and this insert. The
// UNIQUE index then rejects the second insert; ON CONFLICT DO NOTHING turns
// that rejection into a silent no-op, which is exactly what an idempotent
// add wants — the entry is on the watchlist either way.
func (db *DB) CreateEntry(ctx context.Context, entry *model.WatchlistEntry) error {
	entry.ID = xid.New().String()
	entry.TimeAdded = time.Now()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO watchlist_entries
		 (id, user_id, model_label, object_id, object_repr, notes, time_added)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, model_label, object_id) DO NOTHING`,
		entry.ID,
		entry.UserID,
		entry.ModelLabel,
		entry.ObjectID,
		entry.ObjectRepr,
		entry.Notes,
		entry.TimeAdded,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating watchlist entry: %w", err)
	}

	return nil
}

// CreateEntries inserts a batch of entries in one transaction.
//
// The empty batch returns before touching the database at all — bulk-adding
// nothing must perform zero storage operations.
func (db *DB) CreateEntries(ctx context.Context, entries []*model.WatchlistEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning batch insert: %w", err)
	}
	// Rollback after a successful Commit is a no-op, so deferring it is safe
	// and covers every early return.
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO watchlist_entries
		 (id, user_id, model_label, object_id, object_repr, notes, time_added)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, model_label, object_id) DO NOTHING`,
	)
	if err != nil {
		return fmt.Errorf("sqlite: preparing batch insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, entry := range entries {
		entry.ID = xid.New().String()
		entry.TimeAdded = now
		if _, err := stmt.ExecContext(ctx,
			entry.ID,
			entry.UserID,
			entry.ModelLabel,
			entry.ObjectID,
			entry.ObjectRepr,
			entry.Notes,
			entry.TimeAdded,
		); err != nil {
			return fmt.Errorf("sqlite: inserting watchlist entry for %s %d: %w",
				entry.ModelLabel, entry.ObjectID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing batch insert: %w", err)
	}
	return nil
}

// DeleteEntry removes the entry for one object.
//
// Removing an absent entry deletes zero rows and is NOT an error — remove is
// idempotent by contract, so we don't check RowsAffected here.
func (db *DB) DeleteEntry(ctx context.Context, userID, modelLabel string, objectID int64) error {
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM watchlist_entries
		 WHERE user_id = ? AND model_label = ? AND object_id = ?`,
		userID, modelLabel, objectID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting watchlist entry: %w", err)
	}
	return nil
}

// DeleteModel removes every entry the user has for one model.
func (db *DB) DeleteModel(ctx context.Context, userID, modelLabel string) error {
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM watchlist_entries
		 WHERE user_id = ? AND model_label = ?`,
		userID, modelLabel,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting model watchlist %s: %w", modelLabel, err)
	}
	return nil
}

// DeleteObjects removes the entries for the given object ids under one model
// in a single statement. Used by prune to clear stale references in bulk.
func (db *DB) DeleteObjects(ctx context.Context, userID, modelLabel string, objectIDs []int64) error {
	if len(objectIDs) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(objectIDs))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(objectIDs)+2)
	args = append(args, userID, modelLabel)
	for _, id := range objectIDs {
		args = append(args, id)
	}

	query := fmt.Sprintf(
		`DELETE FROM watchlist_entries
		 WHERE user_id = ? AND model_label = ? AND object_id IN (%s)`,
		placeholders,
	)
	if _, err := db.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("sqlite: deleting stale entries for %s: %w", modelLabel, err)
	}
	return nil
}

// ListModel returns the user's entries for one model, oldest first.
func (db *DB) ListModel(ctx context.Context, userID, modelLabel string) ([]model.WatchlistEntry, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, model_label, object_id, object_repr, notes, time_added
		 FROM watchlist_entries
		 WHERE user_id = ? AND model_label = ?
		 ORDER BY time_added, id`,
		userID, modelLabel,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing watchlist for %s: %w", modelLabel, err)
	}
	defer rows.Close()

	entries := make([]model.WatchlistEntry, 0)
	for rows.Next() {
		var e model.WatchlistEntry
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.ModelLabel, &e.ObjectID,
			&e.ObjectRepr, &e.Notes, &e.TimeAdded,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning watchlist entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating watchlist entries: %w", err)
	}

	return entries, nil
}

// Labels returns the distinct model labels the user has entries for, in a
// stable (alphabetical) order.
func (db *DB) Labels(ctx context.Context, userID string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT DISTINCT model_label FROM watchlist_entries
		 WHERE user_id = ?
		 ORDER BY model_label`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing watchlist labels: %w", err)
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, fmt.Errorf("sqlite: scanning watchlist label: %w", err)
		}
		labels = append(labels, label)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating watchlist labels: %w", err)
	}

	return labels, nil
}

// UpdateNotes replaces the notes text of one entry. Notes are the only
// mutable field on a watchlist entry; everything else is written once at
// add-time.
func (db *DB) UpdateNotes(ctx context.Context, userID, modelLabel string, objectID int64, notes string) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE watchlist_entries SET notes = ?
		 WHERE user_id = ? AND model_label = ? AND object_id = ?`,
		notes, userID, modelLabel, objectID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating watchlist notes: %w", err)
	}
	return nil
}
