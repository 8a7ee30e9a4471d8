package watchlist

import (
	"context"

	"github.com/sakif/watchlist/internal/model"
	"github.com/sakif/watchlist/internal/registry"
	"github.com/sakif/watchlist/internal/repository"
)

// dbManager stores the watchlist as durable rows scoped to one user.
//
// PER-REQUEST MEMOIZATION:
// A single request frequently reads the same model's watchlist several times
// (OnWatchlist, then Add; Annotate, then Filter). The cache map holds fetched
// model watchlists for the lifetime of this manager — one request — and every
// mutation evicts the model it touched, so reads after writes stay coherent.
// There is deliberately no caching across requests.
//
// RACES:
// Add is check-then-create. Two concurrent adds of the same object can both
// pass the check; the storage layer's unique index resolves the loser to a
// no-op. Nothing here is safety-critical enough to warrant locking beyond
// that.
type dbManager struct {
	repo     repository.WatchlistRepository
	registry *registry.Registry
	userID   string
	cache    map[string][]Entry
}

// compile-time check that *dbManager implements Manager
var _ Manager = (*dbManager)(nil)

func newDBManager(repo repository.WatchlistRepository, reg *registry.Registry, userID string) *dbManager {
	return &dbManager{
		repo:     repo,
		registry: reg,
		userID:   userID,
		cache:    make(map[string][]Entry),
	}
}

// evict drops the memoized watchlist for one model after a mutation.
func (m *dbManager) evict(modelLabel string) {
	delete(m.cache, modelLabel)
}

// ModelWatchlist returns the user's entries for one model, memoized for the
// duration of the request.
func (m *dbManager) ModelWatchlist(ctx context.Context, modelLabel string) ([]Entry, error) {
	if entries, ok := m.cache[modelLabel]; ok {
		return entries, nil
	}

	records, err := m.repo.ListModel(ctx, m.userID, modelLabel)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, len(records))
	for i, rec := range records {
		entries[i] = Entry{
			ObjectID:   rec.ObjectID,
			ObjectRepr: rec.ObjectRepr,
			Notes:      rec.Notes,
		}
	}

	m.cache[modelLabel] = entries
	return entries, nil
}

// OnWatchlist reports whether the object's id appears in its model's pks.
func (m *dbManager) OnWatchlist(ctx context.Context, obj registry.Object) (bool, error) {
	entries, err := m.ModelWatchlist(ctx, obj.ModelLabel())
	if err != nil {
		return false, err
	}
	for _, pk := range Pks(entries) {
		if pk == obj.ObjectID() {
			return true, nil
		}
	}
	return false, nil
}

// Add creates one entry with a repr snapshot, guarded by an existence check.
// Adding an object that is already present is a no-op.
func (m *dbManager) Add(ctx context.Context, obj registry.Object) error {
	on, err := m.OnWatchlist(ctx, obj)
	if err != nil || on {
		return err
	}

	entry := &model.WatchlistEntry{
		UserID:     m.userID,
		ModelLabel: obj.ModelLabel(),
		ObjectID:   obj.ObjectID(),
		ObjectRepr: obj.ObjectRepr(),
	}
	if err := m.repo.CreateEntry(ctx, entry); err != nil {
		return err
	}

	m.evict(obj.ModelLabel())
	return nil
}

// Remove deletes the object's entry. Deleting an absent entry removes zero
// rows — idempotent, not an error.
func (m *dbManager) Remove(ctx context.Context, obj registry.Object) error {
	if err := m.repo.DeleteEntry(ctx, m.userID, obj.ModelLabel(), obj.ObjectID()); err != nil {
		return err
	}
	m.evict(obj.ModelLabel())
	return nil
}

// Toggle flips membership and returns the resulting state.
func (m *dbManager) Toggle(ctx context.Context, obj registry.Object) (bool, error) {
	on, err := m.OnWatchlist(ctx, obj)
	if err != nil {
		return false, err
	}
	if on {
		return false, m.Remove(ctx, obj)
	}
	return true, m.Add(ctx, obj)
}

// BulkAdd creates entries for every object not already present, one batch
// per model. The existing id set is computed once per model, and an input
// with nothing new issues zero write operations.
func (m *dbManager) BulkAdd(ctx context.Context, objs []registry.Object) error {
	if len(objs) == 0 {
		return nil
	}

	// Group the missing objects by model, consulting each model's watchlist
	// exactly once.
	batch := make([]*model.WatchlistEntry, 0, len(objs))
	seen := make(map[string]map[int64]bool)
	for _, obj := range objs {
		label := obj.ModelLabel()
		if seen[label] == nil {
			entries, err := m.ModelWatchlist(ctx, label)
			if err != nil {
				return err
			}
			seen[label] = make(map[int64]bool, len(entries))
			for _, pk := range Pks(entries) {
				seen[label][pk] = true
			}
		}
		if seen[label][obj.ObjectID()] {
			continue
		}
		batch = append(batch, &model.WatchlistEntry{
			UserID:     m.userID,
			ModelLabel: label,
			ObjectID:   obj.ObjectID(),
			ObjectRepr: obj.ObjectRepr(),
		})
		seen[label][obj.ObjectID()] = true
	}

	if len(batch) == 0 {
		return nil
	}
	if err := m.repo.CreateEntries(ctx, batch); err != nil {
		return err
	}

	for _, entry := range batch {
		m.evict(entry.ModelLabel)
	}
	return nil
}

// RemoveModel deletes every entry for the given model label.
func (m *dbManager) RemoveModel(ctx context.Context, modelLabel string) error {
	if err := m.repo.DeleteModel(ctx, m.userID, modelLabel); err != nil {
		return err
	}
	m.evict(modelLabel)
	return nil
}

// AsDict groups the user's live entries by model label, notes included.
func (m *dbManager) AsDict(ctx context.Context) (map[string][]Entry, error) {
	labels, err := m.repo.Labels(ctx, m.userID)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]Entry, len(labels))
	for _, label := range labels {
		entries, err := m.ModelWatchlist(ctx, label)
		if err != nil {
			return nil, err
		}
		if len(entries) > 0 {
			out[label] = entries
		}
	}
	return out, nil
}

// Annotate flags each object with its membership.
func (m *dbManager) Annotate(ctx context.Context, objs []registry.Object) ([]Annotated, error) {
	return annotateObjects(ctx, m, objs)
}

// Filter keeps only the objects on the watchlist.
func (m *dbManager) Filter(ctx context.Context, objs []registry.Object) ([]registry.Object, error) {
	return filterObjects(ctx, m, objs)
}

// Prune deletes the user's entries for unregistered models wholesale, then
// bulk-deletes entries whose object id no longer resolves under the models
// that remain. Valid entries are untouched.
func (m *dbManager) Prune(ctx context.Context) error {
	labels, err := m.repo.Labels(ctx, m.userID)
	if err != nil {
		return err
	}

	for _, label := range labels {
		accessor, ok := m.registry.Get(label)
		if !ok {
			// The model was removed from the application; every entry under
			// its label is unresolvable.
			if err := m.repo.DeleteModel(ctx, m.userID, label); err != nil {
				return err
			}
			m.evict(label)
			continue
		}

		entries, err := m.ModelWatchlist(ctx, label)
		if err != nil {
			return err
		}

		pks := Pks(entries)
		existing, err := accessor.Existing(ctx, pks)
		if err != nil {
			return err
		}

		alive := make(map[int64]bool, len(existing))
		for _, pk := range existing {
			alive[pk] = true
		}

		var stale []int64
		for _, pk := range pks {
			if !alive[pk] {
				stale = append(stale, pk)
			}
		}
		if len(stale) == 0 {
			continue
		}

		if err := m.repo.DeleteObjects(ctx, m.userID, label, stale); err != nil {
			return err
		}
		m.evict(label)
	}

	return nil
}
