// Package registry tracks which watchable models the running application
// knows about.
//
// Watchlist entries reference objects by a stable string label (e.g.
// "app.person") plus an integer primary key, instead of a live Go type. That
// indirection is the whole point: an entry written last month must still be
// resolvable — or detectably unresolvable — against whatever models this
// binary registers today. A label that no longer resolves is NOT an error;
// it means the model was removed from the application, and the entry
// referencing it is stale.
//
// The registry is assembled once at startup (in the composition root) and is
// read-only afterwards, so lookups need no locking during request handling.
package registry

import "context"

// Object is an instance of a registered model, as seen by the watchlist.
// Anything with a stable label, an integer primary key, and a display string
// can go on a watchlist.
type Object interface {
	// ModelLabel returns the stable string identifier of the object's model,
	// e.g. "app.person".
	ModelLabel() string
	// ObjectID returns the object's primary key.
	ObjectID() int64
	// ObjectRepr returns a human-readable display string for the object.
	// The watchlist snapshots this at add-time.
	ObjectRepr() string
}

// Accessor gives the watchlist read access to one registered model's rows.
//
// Implementations wrap whatever storage the model actually lives in. The
// watchlist core only ever needs two questions answered: "fetch this row"
// and "which of these ids still exist".
type Accessor interface {
	// Label returns the model label this accessor serves.
	Label() string
	// Fetch returns the object with the given primary key, or an
	// apperror.NotFound error if the row no longer exists.
	Fetch(ctx context.Context, id int64) (Object, error)
	// Existing filters the given ids down to those that still resolve to a
	// live row. The result preserves the input order. An empty input returns
	// an empty result without touching storage.
	Existing(ctx context.Context, ids []int64) ([]int64, error)
}

// Registry maps model labels to their accessors.
type Registry struct {
	models map[string]Accessor
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{models: make(map[string]Accessor)}
}

// Register adds an accessor under its label. Registering the same label twice
// replaces the earlier accessor; the composition root is expected to register
// each model exactly once.
func (r *Registry) Register(a Accessor) {
	r.models[a.Label()] = a
}

// Get returns the accessor for the given label, or (nil, false) if the label
// does not correspond to any registered model.
func (r *Registry) Get(label string) (Accessor, bool) {
	a, ok := r.models[label]
	return a, ok
}

// Has reports whether the label resolves to a registered model.
func (r *Registry) Has(label string) bool {
	_, ok := r.models[label]
	return ok
}
