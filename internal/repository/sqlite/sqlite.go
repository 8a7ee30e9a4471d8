// Package sqlite implements the repository interfaces using SQLite as the
// storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database — it lives inside the Go binary as a single
// file. No separate database server to install, configure, or manage. We use
// modernc.org/sqlite, a pure Go translation of SQLite: no CGo, no C compiler,
// cross-compiles everywhere Go does. Tests open ":memory:" databases.
//
// SCHEMA NOTES:
// The watchlist_entries table deliberately has NO foreign key to the tables
// its rows reference — only to users. A watchlist entry identifies its object
// by (model_label, object_id), and the referenced row may be deleted, or the
// whole model removed from the application, without cascading into the
// watchlist. Entries that outlive their object become stale and are removed
// by the manager's prune pass, not by the database.
package sqlite

import (
	"database/sql"
	"fmt"

	// Blank import: the driver registers itself with database/sql under the
	// name "sqlite" in its init function.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and provides the repository methods.
type DB struct {
	conn *sql.DB
}

// New opens (or creates) the SQLite database at dbPath and runs migrations.
// Use ":memory:" for an ephemeral database in tests.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	// Force an immediate connection so a bad path surfaces here, not on the
	// first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL mode allows concurrent reads while a write is in progress —
	// essential for a web server.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	// Foreign keys are OFF by default in SQLite. The users → watchlist_entries
	// cascade depends on them.
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool. Always defer this next to New.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn exposes the underlying pool so the composition root can build registry
// accessors over the same database the repositories use.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// migrate creates the schema. CREATE TABLE IF NOT EXISTS keeps this safe to
// run on every startup.
func (db *DB) migrate() error {
	// Users: github_id is nullable so local accounts don't collide on the
	// UNIQUE constraint (SQLite treats NULLs as distinct). The partial index
	// on email makes local logins unique without forbidding the empty emails
	// GitHub users can have.
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			github_id     INTEGER UNIQUE,
			login         TEXT NOT NULL,
			email         TEXT NOT NULL DEFAULT '',
			avatar_url    TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL DEFAULT '',
			created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email
			ON users(email) WHERE email != '';
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	// Watchlist entries. The UNIQUE index backs up the add-time existence
	// check: a duplicate add that loses a race hits the constraint instead of
	// writing a second row.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS watchlist_entries (
			id          TEXT PRIMARY KEY,
			user_id     TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			model_label TEXT NOT NULL,
			object_id   INTEGER NOT NULL,
			object_repr TEXT NOT NULL DEFAULT '',
			notes       TEXT NOT NULL DEFAULT '',
			time_added  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_watchlist_user_object
			ON watchlist_entries(user_id, model_label, object_id);
		CREATE INDEX IF NOT EXISTS idx_watchlist_user_label
			ON watchlist_entries(user_id, model_label);
	`)
	if err != nil {
		return fmt.Errorf("creating watchlist_entries table: %w", err)
	}

	// Directory tables: the concrete watchable models this server exposes.
	// INTEGER PRIMARY KEY aliases the rowid, giving us auto-assigned integer
	// ids — the form of id watchlist entries reference.
	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS people (
			id         INTEGER PRIMARY KEY,
			first_name TEXT NOT NULL DEFAULT '',
			last_name  TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS companies (
			id   INTEGER PRIMARY KEY,
			name TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("creating directory tables: %w", err)
	}

	return nil
}
