package watchlist

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/sessions"

	"github.com/sakif/watchlist/internal/registry"
)

// SessionName is the cookie the anonymous watchlist lives in.
const SessionName = "watchlist"

// sessionDataKey is the key inside session.Values holding the JSON-encoded
// watchlist mapping.
const sessionDataKey = "watchlist"

// sessionManager stores the watchlist inside the request's cookie session.
//
// INTERNAL SHAPE:
// One mapping, {model_label: [{object_id, object_repr}, ...]}, JSON-encoded
// under a single session key. A model's list is created lazily on first add
// and deleted entirely once its last entry is removed — empty lists are never
// retained, so a churned session doesn't accumulate dead keys.
//
// DIRTY-FLAG DISCIPLINE:
// The session store only persists what is explicitly saved. Every mutation
// therefore goes through save(), which re-encodes the mapping into
// session.Values and writes the session to the response. Mutating the decoded
// map without calling save() would silently lose the change — the classic
// nested-session-mutation bug this layout exists to prevent.
type sessionManager struct {
	w        http.ResponseWriter
	r        *http.Request
	session  *sessions.Session
	registry *registry.Registry
	logger   *slog.Logger
	data     map[string][]Entry
}

// compile-time check that *sessionManager implements Manager
var _ Manager = (*sessionManager)(nil)

// newSessionManager decodes the watchlist out of the request's session.
//
// Never fails: an unreadable cookie (rotated secret, tampering) yields a
// fresh session from the store, and undecodable payload data is discarded.
// An anonymous visitor losing a corrupt watchlist is the correct outcome.
func newSessionManager(w http.ResponseWriter, r *http.Request, store sessions.Store, reg *registry.Registry, logger *slog.Logger) *sessionManager {
	session, err := store.Get(r, SessionName)
	if err != nil && logger != nil {
		// store.Get returns a usable fresh session alongside the error.
		logger.Debug("watchlist: session cookie unreadable, starting fresh",
			slog.String("error", err.Error()))
	}

	data := make(map[string][]Entry)
	if raw, ok := session.Values[sessionDataKey].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			if logger != nil {
				logger.Debug("watchlist: discarding undecodable session watchlist",
					slog.String("error", err.Error()))
			}
			data = make(map[string][]Entry)
		}
	}

	return &sessionManager{
		w:        w,
		r:        r,
		session:  session,
		registry: reg,
		logger:   logger,
		data:     data,
	}
}

// save re-encodes the mapping and persists the session. Called after every
// mutation; read-only operations never touch the session.
func (m *sessionManager) save() error {
	raw, err := json.Marshal(m.data)
	if err != nil {
		return err
	}
	m.session.Values[sessionDataKey] = string(raw)
	return m.session.Save(m.r, m.w)
}

// OnWatchlist reports whether the object's id appears in its model's pks.
func (m *sessionManager) OnWatchlist(_ context.Context, obj registry.Object) (bool, error) {
	for _, pk := range Pks(m.data[obj.ModelLabel()]) {
		if pk == obj.ObjectID() {
			return true, nil
		}
	}
	return false, nil
}

// Add appends an entry with a repr snapshot, creating the model's list
// lazily. A second add of the same object is a no-op.
func (m *sessionManager) Add(ctx context.Context, obj registry.Object) error {
	on, err := m.OnWatchlist(ctx, obj)
	if err != nil || on {
		return err
	}

	label := obj.ModelLabel()
	m.data[label] = append(m.data[label], Entry{
		ObjectID:   obj.ObjectID(),
		ObjectRepr: obj.ObjectRepr(),
	})
	return m.save()
}

// Remove deletes the object's entry. Removing the last entry of a model
// removes the model's key entirely; removing an absent id is a no-op.
func (m *sessionManager) Remove(ctx context.Context, obj registry.Object) error {
	label := obj.ModelLabel()
	entries := m.data[label]

	for i, e := range entries {
		if e.ObjectID != obj.ObjectID() {
			continue
		}
		entries = append(entries[:i], entries[i+1:]...)
		if len(entries) == 0 {
			delete(m.data, label)
		} else {
			m.data[label] = entries
		}
		return m.save()
	}
	return nil
}

// Toggle flips membership and returns the resulting state.
func (m *sessionManager) Toggle(ctx context.Context, obj registry.Object) (bool, error) {
	on, err := m.OnWatchlist(ctx, obj)
	if err != nil {
		return false, err
	}
	if on {
		return false, m.Remove(ctx, obj)
	}
	return true, m.Add(ctx, obj)
}

// BulkAdd appends every object not already present. An empty input — and
// likewise an input whose objects are all already present — performs no
// session mutation at all.
func (m *sessionManager) BulkAdd(_ context.Context, objs []registry.Object) error {
	if len(objs) == 0 {
		return nil
	}

	added := false
	seen := make(map[string]map[int64]bool)
	for _, obj := range objs {
		label := obj.ModelLabel()
		if seen[label] == nil {
			seen[label] = make(map[int64]bool)
			for _, pk := range Pks(m.data[label]) {
				seen[label][pk] = true
			}
		}
		if seen[label][obj.ObjectID()] {
			continue
		}
		m.data[label] = append(m.data[label], Entry{
			ObjectID:   obj.ObjectID(),
			ObjectRepr: obj.ObjectRepr(),
		})
		seen[label][obj.ObjectID()] = true
		added = true
	}

	if !added {
		return nil
	}
	return m.save()
}

// RemoveModel drops a model's entire list.
func (m *sessionManager) RemoveModel(_ context.Context, modelLabel string) error {
	if _, ok := m.data[modelLabel]; !ok {
		return nil
	}
	delete(m.data, modelLabel)
	return m.save()
}

// ModelWatchlist returns the entries for one model. The data already lives
// in memory for the whole request, so no extra memoization layer is needed.
func (m *sessionManager) ModelWatchlist(_ context.Context, modelLabel string) ([]Entry, error) {
	entries := m.data[modelLabel]
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out, nil
}

// AsDict returns a copy of the whole mapping. Session entries carry no
// notes, so the notes field is absent from the result.
func (m *sessionManager) AsDict(_ context.Context) (map[string][]Entry, error) {
	out := make(map[string][]Entry, len(m.data))
	for label, entries := range m.data {
		cp := make([]Entry, len(entries))
		copy(cp, entries)
		out[label] = cp
	}
	return out, nil
}

// Annotate flags each object with its membership.
func (m *sessionManager) Annotate(ctx context.Context, objs []registry.Object) ([]Annotated, error) {
	return annotateObjects(ctx, m, objs)
}

// Filter keeps only the objects on the watchlist.
func (m *sessionManager) Filter(ctx context.Context, objs []registry.Object) ([]registry.Object, error) {
	return filterObjects(ctx, m, objs)
}

// Prune drops model keys whose label no longer resolves, then removes
// entries whose object no longer exists under the labels that remain.
func (m *sessionManager) Prune(ctx context.Context) error {
	modified := false

	// Pass 1: unresolvable models — the whole key goes.
	for label := range m.data {
		if !m.registry.Has(label) {
			delete(m.data, label)
			modified = true
		}
	}

	// Pass 2: stale object ids under still-valid models.
	for label, entries := range m.data {
		accessor, ok := m.registry.Get(label)
		if !ok {
			continue
		}

		existing, err := accessor.Existing(ctx, Pks(entries))
		if err != nil {
			return err
		}

		alive := make(map[int64]bool, len(existing))
		for _, pk := range existing {
			alive[pk] = true
		}

		kept := entries[:0:0]
		for _, e := range entries {
			if alive[e.ObjectID] {
				kept = append(kept, e)
			}
		}
		if len(kept) == len(entries) {
			continue
		}

		if len(kept) == 0 {
			delete(m.data, label)
		} else {
			m.data[label] = kept
		}
		modified = true
	}

	if !modified {
		return nil
	}
	return m.save()
}
