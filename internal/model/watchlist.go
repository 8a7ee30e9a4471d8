// Package model defines the data structures used throughout the application.
package model

import "time"

// WatchlistEntry represents one bookmarked object on an authenticated user's
// watchlist.
//
// The referenced object is identified by (ModelLabel, ObjectID) rather than a
// live foreign key. There is deliberately NO referential-integrity constraint
// to the referenced table: the referenced row — or the whole model — can
// disappear from the application at any time, and the entry becomes stale
// instead of blocking the delete. Stale entries are cleaned up by the
// manager's Prune pass.
//
// ObjectRepr is a point-in-time snapshot of the object's display string,
// captured when the entry is created. It is NOT kept in sync with later edits
// to the object — the watchlist shows what the object looked like when it was
// bookmarked.
type WatchlistEntry struct {
	ID         string    `json:"id"          db:"id"`
	UserID     string    `json:"userId"      db:"user_id"`
	ModelLabel string    `json:"modelLabel"  db:"model_label"` // e.g. "app.person"
	ObjectID   int64     `json:"objectId"    db:"object_id"`   // primary key of the referenced row
	ObjectRepr string    `json:"objectRepr"  db:"object_repr"` // display snapshot, captured at add-time
	Notes      string    `json:"notes"       db:"notes"`       // free-text annotation, mutable
	TimeAdded  time.Time `json:"timeAdded"   db:"time_added"`
}
