// Package watchlist implements per-user bookmarking of arbitrary registered
// model objects.
//
// TWO BACKENDS, ONE CONTRACT:
// Authenticated users get durable storage — rows in the watchlist_entries
// table, scoped to their user id. Anonymous users get ephemeral storage — a
// JSON payload inside their cookie session that vanishes when the session
// does. Both backends implement the Manager interface, and ForRequest picks
// the right one per request, so callers never branch on authentication state
// themselves.
//
// MEMBERSHIP IS ALWAYS BY PRIMARY KEY:
// An object is "on the watchlist" exactly when its id appears in the pks of
// its model's watchlist. Never by repr comparison — repr snapshots are
// intentionally stale (captured at add-time, never refreshed).
//
// STALENESS IS NORMAL:
// Entries reference objects by label+id with no referential integrity, so
// the referenced row — or the whole model — can disappear at any time. Prune
// is the maintenance pass that clears such entries; everywhere else a stale
// reference simply reads as "not on the watchlist".
package watchlist

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/sessions"

	"github.com/sakif/watchlist/internal/auth"
	"github.com/sakif/watchlist/internal/registry"
	"github.com/sakif/watchlist/internal/repository"
)

// Entry is one watchlist item as exposed to callers: the referenced object's
// id plus the display snapshot captured when it was added. Notes only exist
// for the durable backend; the session backend omits the field.
type Entry struct {
	ObjectID   int64  `json:"object_id"`
	ObjectRepr string `json:"object_repr"`
	Notes      string `json:"notes,omitempty"`
}

// Annotated pairs an object with its watchlist membership, computed once so
// display and filtering logic agree on a single flag.
type Annotated struct {
	Object      registry.Object
	OnWatchlist bool
}

// Manager is the uniform operation set over the two watchlist backends.
//
// A manager is bound to exactly one request: it is created per request by
// ForRequest, memoizes model-watchlist reads for the duration of that
// request, and must not be shared across requests or goroutines.
type Manager interface {
	// OnWatchlist reports whether the object is on the watchlist.
	OnWatchlist(ctx context.Context, obj registry.Object) (bool, error)

	// Add puts the object on the watchlist, snapshotting its repr.
	// Adding an object that is already present is a no-op.
	Add(ctx context.Context, obj registry.Object) error

	// Remove takes the object off the watchlist.
	// Removing an absent object is a no-op, not an error.
	Remove(ctx context.Context, obj registry.Object) error

	// Toggle adds the object and returns true if it was absent; otherwise
	// removes it and returns false. The return value is the resulting
	// membership state.
	Toggle(ctx context.Context, obj registry.Object) (bool, error)

	// BulkAdd adds every object not already present, in one batch.
	// An empty input performs zero storage operations.
	BulkAdd(ctx context.Context, objs []registry.Object) error

	// RemoveModel deletes every entry for the given model label.
	RemoveModel(ctx context.Context, modelLabel string) error

	// ModelWatchlist returns the entries for one model, empty if none.
	// The result is memoized for the lifetime of the manager; mutations
	// evict the affected model so later reads stay coherent.
	ModelWatchlist(ctx context.Context, modelLabel string) ([]Entry, error)

	// AsDict returns every model's entries keyed by model label. Models
	// without entries do not appear.
	AsDict(ctx context.Context) (map[string][]Entry, error)

	// Annotate flags each object of a single-model slice with its
	// membership, computed by set membership against the model's pks.
	Annotate(ctx context.Context, objs []registry.Object) ([]Annotated, error)

	// Filter returns only the objects that are on the watchlist. It does
	// not require a prior Annotate call.
	Filter(ctx context.Context, objs []registry.Object) ([]registry.Object, error)

	// Prune removes entries whose model label no longer resolves to a
	// registered model, then entries whose object id no longer resolves to
	// a live row. Valid entries are untouched.
	Prune(ctx context.Context) error
}

// Pks extracts the object ids from a model watchlist, preserving order.
func Pks(entries []Entry) []int64 {
	pks := make([]int64, len(entries))
	for i, e := range entries {
		pks[i] = e.ObjectID
	}
	return pks
}

// Deps bundles what ForRequest needs to construct either manager variant.
// Assembled once in the composition root and shared by all requests; the
// managers built from it are per-request.
type Deps struct {
	Repo     repository.WatchlistRepository
	Registry *registry.Registry
	Sessions sessions.Store
	Logger   *slog.Logger
}

// ForRequest returns the watchlist manager for the given request.
//
// If the request carries an authenticated user, the durable record-backed
// manager is returned. Otherwise — no user, or the auth middleware rejected
// the token — the session-backed manager is. The selection is total: it
// never fails, because an unreadable or missing session cookie just means a
// fresh empty session.
func ForRequest(w http.ResponseWriter, r *http.Request, deps Deps) Manager {
	if userID, ok := auth.UserIDFromContext(r.Context()); ok {
		return newDBManager(deps.Repo, deps.Registry, userID)
	}
	return newSessionManager(w, r, deps.Sessions, deps.Registry, deps.Logger)
}

// annotateObjects computes Annotate for either backend. All objects in the
// slice belong to one model, so a single ModelWatchlist read covers them.
func annotateObjects(ctx context.Context, m Manager, objs []registry.Object) ([]Annotated, error) {
	annotated := make([]Annotated, 0, len(objs))
	if len(objs) == 0 {
		return annotated, nil
	}

	entries, err := m.ModelWatchlist(ctx, objs[0].ModelLabel())
	if err != nil {
		return nil, err
	}

	onList := make(map[int64]bool, len(entries))
	for _, pk := range Pks(entries) {
		onList[pk] = true
	}

	for _, obj := range objs {
		annotated = append(annotated, Annotated{
			Object:      obj,
			OnWatchlist: onList[obj.ObjectID()],
		})
	}
	return annotated, nil
}

// filterObjects computes Filter for either backend by reusing the annotation
// flag, so display and filtering can never disagree.
func filterObjects(ctx context.Context, m Manager, objs []registry.Object) ([]registry.Object, error) {
	annotated, err := annotateObjects(ctx, m, objs)
	if err != nil {
		return nil, err
	}

	kept := make([]registry.Object, 0, len(annotated))
	for _, a := range annotated {
		if a.OnWatchlist {
			kept = append(kept, a.Object)
		}
	}
	return kept, nil
}
