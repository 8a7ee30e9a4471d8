package watchlist

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/gorilla/sessions"
	"github.com/rs/xid"

	"github.com/sakif/watchlist/internal/apperror"
	"github.com/sakif/watchlist/internal/auth"
	"github.com/sakif/watchlist/internal/model"
	"github.com/sakif/watchlist/internal/registry"
)

// testObject is a minimal registry.Object for exercising the managers.
type testObject struct {
	label string
	id    int64
	repr  string
}

func (o testObject) ModelLabel() string { return o.label }
func (o testObject) ObjectID() int64    { return o.id }
func (o testObject) ObjectRepr() string { return o.repr }

// fakeAccessor serves a fixed set of live ids for one model.
type fakeAccessor struct {
	label string
	rows  map[int64]string // id -> repr
}

func (a *fakeAccessor) Label() string { return a.label }

func (a *fakeAccessor) Fetch(_ context.Context, id int64) (registry.Object, error) {
	repr, ok := a.rows[id]
	if !ok {
		return nil, apperror.NotFound(a.label, "")
	}
	return testObject{label: a.label, id: id, repr: repr}, nil
}

func (a *fakeAccessor) Existing(_ context.Context, ids []int64) ([]int64, error) {
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := a.rows[id]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

// fakeRepo is an in-memory WatchlistRepository that counts storage
// operations, so tests can assert that no-op paths really issue none.
type fakeRepo struct {
	entries    []model.WatchlistEntry
	listCalls  int
	writeCalls int
}

func (r *fakeRepo) Exists(_ context.Context, userID, modelLabel string, objectID int64) (bool, error) {
	for _, e := range r.entries {
		if e.UserID == userID && e.ModelLabel == modelLabel && e.ObjectID == objectID {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRepo) CreateEntry(ctx context.Context, entry *model.WatchlistEntry) error {
	r.writeCalls++
	if ok, _ := r.Exists(ctx, entry.UserID, entry.ModelLabel, entry.ObjectID); ok {
		return nil // unique index resolves duplicates to a no-op
	}
	entry.ID = xid.New().String()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *fakeRepo) CreateEntries(ctx context.Context, entries []*model.WatchlistEntry) error {
	if len(entries) == 0 {
		return nil
	}
	r.writeCalls++
	for _, e := range entries {
		if ok, _ := r.Exists(ctx, e.UserID, e.ModelLabel, e.ObjectID); ok {
			continue
		}
		e.ID = xid.New().String()
		r.entries = append(r.entries, *e)
	}
	return nil
}

func (r *fakeRepo) DeleteEntry(_ context.Context, userID, modelLabel string, objectID int64) error {
	r.writeCalls++
	kept := r.entries[:0:0]
	for _, e := range r.entries {
		if e.UserID == userID && e.ModelLabel == modelLabel && e.ObjectID == objectID {
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return nil
}

func (r *fakeRepo) DeleteModel(_ context.Context, userID, modelLabel string) error {
	r.writeCalls++
	kept := r.entries[:0:0]
	for _, e := range r.entries {
		if e.UserID == userID && e.ModelLabel == modelLabel {
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return nil
}

func (r *fakeRepo) DeleteObjects(_ context.Context, userID, modelLabel string, objectIDs []int64) error {
	if len(objectIDs) == 0 {
		return nil
	}
	r.writeCalls++
	doomed := make(map[int64]bool, len(objectIDs))
	for _, id := range objectIDs {
		doomed[id] = true
	}
	kept := r.entries[:0:0]
	for _, e := range r.entries {
		if e.UserID == userID && e.ModelLabel == modelLabel && doomed[e.ObjectID] {
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return nil
}

func (r *fakeRepo) ListModel(_ context.Context, userID, modelLabel string) ([]model.WatchlistEntry, error) {
	r.listCalls++
	var out []model.WatchlistEntry
	for _, e := range r.entries {
		if e.UserID == userID && e.ModelLabel == modelLabel {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeRepo) Labels(_ context.Context, userID string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, e := range r.entries {
		if e.UserID == userID && !seen[e.ModelLabel] {
			seen[e.ModelLabel] = true
			out = append(out, e.ModelLabel)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *fakeRepo) UpdateNotes(_ context.Context, userID, modelLabel string, objectID int64, notes string) error {
	r.writeCalls++
	for i, e := range r.entries {
		if e.UserID == userID && e.ModelLabel == modelLabel && e.ObjectID == objectID {
			r.entries[i].Notes = notes
		}
	}
	return nil
}

func newTestRegistry(accessors ...*fakeAccessor) *registry.Registry {
	reg := registry.New()
	for _, a := range accessors {
		reg.Register(a)
	}
	return reg
}

// managerVariants runs a subtest against both backends, so the shared
// contract is verified once per implementation.
func managerVariants(t *testing.T, reg *registry.Registry, fn func(t *testing.T, m Manager)) {
	t.Helper()

	t.Run("db", func(t *testing.T) {
		fn(t, newDBManager(&fakeRepo{}, reg, "user-1"))
	})

	t.Run("session", func(t *testing.T) {
		store := sessions.NewCookieStore([]byte("test-session-secret-32-bytes-ok!"))
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		w := httptest.NewRecorder()
		fn(t, newSessionManager(w, r, store, reg, nil))
	})
}

func TestToggle_FlipsMembership(t *testing.T) {
	obj := testObject{label: "app.person", id: 1, repr: "Alice Archer"}
	reg := newTestRegistry(&fakeAccessor{label: "app.person", rows: map[int64]string{1: "Alice Archer"}})

	managerVariants(t, reg, func(t *testing.T, m Manager) {
		ctx := context.Background()

		on, err := m.Toggle(ctx, obj)
		if err != nil {
			t.Fatalf("first toggle: %v", err)
		}
		if !on {
			t.Error("first toggle should report on_watchlist=true")
		}
		if got, _ := m.OnWatchlist(ctx, obj); !got {
			t.Error("object should be on the watchlist after first toggle")
		}

		on, err = m.Toggle(ctx, obj)
		if err != nil {
			t.Fatalf("second toggle: %v", err)
		}
		if on {
			t.Error("second toggle should report on_watchlist=false")
		}
		if got, _ := m.OnWatchlist(ctx, obj); got {
			t.Error("object should be off the watchlist after second toggle")
		}
	})
}

func TestAdd_IsIdempotent(t *testing.T) {
	obj := testObject{label: "app.person", id: 7, repr: "Greta Gale"}
	reg := newTestRegistry(&fakeAccessor{label: "app.person"})

	managerVariants(t, reg, func(t *testing.T, m Manager) {
		ctx := context.Background()

		if err := m.Add(ctx, obj); err != nil {
			t.Fatalf("first add: %v", err)
		}
		if err := m.Add(ctx, obj); err != nil {
			t.Fatalf("second add: %v", err)
		}

		entries, err := m.ModelWatchlist(ctx, "app.person")
		if err != nil {
			t.Fatalf("ModelWatchlist: %v", err)
		}
		if len(entries) != 1 {
			t.Errorf("expected 1 entry after double add, got %d", len(entries))
		}
	})
}

func TestAdd_SnapshotsRepr(t *testing.T) {
	reg := newTestRegistry(&fakeAccessor{label: "app.person"})

	managerVariants(t, reg, func(t *testing.T, m Manager) {
		ctx := context.Background()

		if err := m.Add(ctx, testObject{label: "app.person", id: 3, repr: "Maiden Name"}); err != nil {
			t.Fatalf("Add: %v", err)
		}

		entries, err := m.ModelWatchlist(ctx, "app.person")
		if err != nil {
			t.Fatalf("ModelWatchlist: %v", err)
		}
		if len(entries) != 1 || entries[0].ObjectRepr != "Maiden Name" {
			t.Fatalf("expected repr snapshot %q, got %+v", "Maiden Name", entries)
		}
	})
}

func TestRemove_AbsentObjectIsNoOp(t *testing.T) {
	obj := testObject{label: "app.person", id: 99, repr: "Nobody"}
	reg := newTestRegistry(&fakeAccessor{label: "app.person"})

	managerVariants(t, reg, func(t *testing.T, m Manager) {
		if err := m.Remove(context.Background(), obj); err != nil {
			t.Errorf("removing an absent object should be a no-op, got %v", err)
		}
	})
}

func TestRemoveModel_ClearsOnlyThatModel(t *testing.T) {
	person := testObject{label: "app.person", id: 1, repr: "P"}
	company := testObject{label: "app.company", id: 1, repr: "C"}
	reg := newTestRegistry(
		&fakeAccessor{label: "app.person"},
		&fakeAccessor{label: "app.company"},
	)

	managerVariants(t, reg, func(t *testing.T, m Manager) {
		ctx := context.Background()

		if err := m.Add(ctx, person); err != nil {
			t.Fatalf("add person: %v", err)
		}
		if err := m.Add(ctx, company); err != nil {
			t.Fatalf("add company: %v", err)
		}

		if err := m.RemoveModel(ctx, "app.person"); err != nil {
			t.Fatalf("RemoveModel: %v", err)
		}

		dict, err := m.AsDict(ctx)
		if err != nil {
			t.Fatalf("AsDict: %v", err)
		}
		if _, ok := dict["app.person"]; ok {
			t.Error("app.person should be gone from AsDict")
		}
		if len(dict["app.company"]) != 1 {
			t.Errorf("app.company should be untouched, got %+v", dict)
		}
	})
}

func TestBulkAdd_SkipsPresentAndEmptyInput(t *testing.T) {
	reg := newTestRegistry(&fakeAccessor{label: "app.person"})

	managerVariants(t, reg, func(t *testing.T, m Manager) {
		ctx := context.Background()

		if err := m.Add(ctx, testObject{label: "app.person", id: 1, repr: "A"}); err != nil {
			t.Fatalf("seed add: %v", err)
		}

		objs := []registry.Object{
			testObject{label: "app.person", id: 1, repr: "A"},
			testObject{label: "app.person", id: 2, repr: "B"},
			testObject{label: "app.person", id: 3, repr: "C"},
		}
		if err := m.BulkAdd(ctx, objs); err != nil {
			t.Fatalf("BulkAdd: %v", err)
		}

		entries, err := m.ModelWatchlist(ctx, "app.person")
		if err != nil {
			t.Fatalf("ModelWatchlist: %v", err)
		}
		if len(entries) != 3 {
			t.Errorf("expected 3 entries after bulk add, got %d", len(entries))
		}

		if err := m.BulkAdd(ctx, nil); err != nil {
			t.Errorf("empty BulkAdd should be a no-op, got %v", err)
		}
	})
}

func TestBulkAdd_NothingNewIssuesNoWrites(t *testing.T) {
	reg := newTestRegistry(&fakeAccessor{label: "app.person"})
	repo := &fakeRepo{}
	m := newDBManager(repo, reg, "user-1")
	ctx := context.Background()

	obj := testObject{label: "app.person", id: 1, repr: "A"}
	if err := m.Add(ctx, obj); err != nil {
		t.Fatalf("seed add: %v", err)
	}
	writesAfterSeed := repo.writeCalls

	if err := m.BulkAdd(ctx, []registry.Object{obj}); err != nil {
		t.Fatalf("BulkAdd: %v", err)
	}
	if repo.writeCalls != writesAfterSeed {
		t.Errorf("bulk add with nothing new issued %d extra writes", repo.writeCalls-writesAfterSeed)
	}

	if err := m.BulkAdd(ctx, nil); err != nil {
		t.Fatalf("empty BulkAdd: %v", err)
	}
	if repo.writeCalls != writesAfterSeed {
		t.Error("empty bulk add should issue zero storage operations")
	}
}

func TestModelWatchlist_MemoizedPerRequest(t *testing.T) {
	reg := newTestRegistry(&fakeAccessor{label: "app.person"})
	repo := &fakeRepo{}
	m := newDBManager(repo, reg, "user-1")
	ctx := context.Background()

	if _, err := m.ModelWatchlist(ctx, "app.person"); err != nil {
		t.Fatalf("ModelWatchlist: %v", err)
	}
	if _, err := m.ModelWatchlist(ctx, "app.person"); err != nil {
		t.Fatalf("ModelWatchlist: %v", err)
	}
	if repo.listCalls != 1 {
		t.Errorf("expected 1 storage read for repeated lookups, got %d", repo.listCalls)
	}

	// A mutation evicts the model, so the next read goes back to storage.
	if err := m.Add(ctx, testObject{label: "app.person", id: 5, repr: "E"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	entries, err := m.ModelWatchlist(ctx, "app.person")
	if err != nil {
		t.Fatalf("ModelWatchlist after add: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("read after write should see the new entry, got %+v", entries)
	}
}

func TestAnnotateAndFilter_AgreeWithOnWatchlist(t *testing.T) {
	reg := newTestRegistry(&fakeAccessor{label: "app.person"})
	objs := []registry.Object{
		testObject{label: "app.person", id: 1, repr: "A"},
		testObject{label: "app.person", id: 2, repr: "B"},
		testObject{label: "app.person", id: 3, repr: "C"},
	}

	managerVariants(t, reg, func(t *testing.T, m Manager) {
		ctx := context.Background()

		if err := m.Add(ctx, objs[0]); err != nil {
			t.Fatalf("add: %v", err)
		}
		if err := m.Add(ctx, objs[2]); err != nil {
			t.Fatalf("add: %v", err)
		}

		annotated, err := m.Annotate(ctx, objs)
		if err != nil {
			t.Fatalf("Annotate: %v", err)
		}
		if len(annotated) != 3 {
			t.Fatalf("expected 3 annotated objects, got %d", len(annotated))
		}
		for _, a := range annotated {
			want, _ := m.OnWatchlist(ctx, a.Object)
			if a.OnWatchlist != want {
				t.Errorf("annotation for id %d disagrees with OnWatchlist", a.Object.ObjectID())
			}
		}

		kept, err := m.Filter(ctx, objs)
		if err != nil {
			t.Fatalf("Filter: %v", err)
		}
		if len(kept) != 2 {
			t.Fatalf("expected 2 filtered objects, got %d", len(kept))
		}
		if kept[0].ObjectID() != 1 || kept[1].ObjectID() != 3 {
			t.Errorf("filter should preserve input order, got %d,%d", kept[0].ObjectID(), kept[1].ObjectID())
		}
	})
}

func TestAnnotate_EmptyInput(t *testing.T) {
	reg := newTestRegistry(&fakeAccessor{label: "app.person"})

	managerVariants(t, reg, func(t *testing.T, m Manager) {
		annotated, err := m.Annotate(context.Background(), nil)
		if err != nil {
			t.Fatalf("Annotate: %v", err)
		}
		if len(annotated) != 0 {
			t.Errorf("expected empty result, got %+v", annotated)
		}
	})
}

func TestPrune_RemovesStaleIDsKeepsValid(t *testing.T) {
	run := func(t *testing.T, newManager func(reg *registry.Registry) Manager) {
		accessor := &fakeAccessor{label: "app.person", rows: map[int64]string{1: "A", 2: "B", 3: "C"}}
		reg := newTestRegistry(accessor)
		m := newManager(reg)
		ctx := context.Background()

		for _, id := range []int64{1, 2, 3} {
			if err := m.Add(ctx, testObject{label: "app.person", id: id, repr: accessor.rows[id]}); err != nil {
				t.Fatalf("add %d: %v", id, err)
			}
		}

		// Row 2 disappears from under the watchlist.
		delete(accessor.rows, 2)

		if err := m.Prune(ctx); err != nil {
			t.Fatalf("Prune: %v", err)
		}

		entries, err := m.ModelWatchlist(ctx, "app.person")
		if err != nil {
			t.Fatalf("ModelWatchlist: %v", err)
		}
		got := Pks(entries)
		sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
		if len(got) != 2 || got[0] != 1 || got[1] != 3 {
			t.Errorf("expected pks [1 3] after prune, got %v", got)
		}
	}

	t.Run("db", func(t *testing.T) {
		run(t, func(reg *registry.Registry) Manager {
			return newDBManager(&fakeRepo{}, reg, "user-1")
		})
	})

	t.Run("session", func(t *testing.T) {
		run(t, func(reg *registry.Registry) Manager {
			store := sessions.NewCookieStore([]byte("test-session-secret-32-bytes-ok!"))
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			return newSessionManager(httptest.NewRecorder(), r, store, reg, nil)
		})
	})
}

func TestPrune_RemovesUnregisteredModelWholesale(t *testing.T) {
	// "legacy.widget" is on the watchlist but not in the registry.
	reg := newTestRegistry(&fakeAccessor{label: "app.person", rows: map[int64]string{1: "A"}})

	managerVariants(t, reg, func(t *testing.T, m Manager) {
		ctx := context.Background()

		if err := m.Add(ctx, testObject{label: "app.person", id: 1, repr: "A"}); err != nil {
			t.Fatalf("add person: %v", err)
		}
		if err := m.Add(ctx, testObject{label: "legacy.widget", id: 1, repr: "W1"}); err != nil {
			t.Fatalf("add widget: %v", err)
		}
		if err := m.Add(ctx, testObject{label: "legacy.widget", id: 2, repr: "W2"}); err != nil {
			t.Fatalf("add widget: %v", err)
		}

		if err := m.Prune(ctx); err != nil {
			t.Fatalf("Prune: %v", err)
		}

		dict, err := m.AsDict(ctx)
		if err != nil {
			t.Fatalf("AsDict: %v", err)
		}
		if _, ok := dict["legacy.widget"]; ok {
			t.Error("unregistered model should be pruned wholesale")
		}
		if len(dict["app.person"]) != 1 {
			t.Errorf("registered model with live rows should survive prune, got %+v", dict)
		}
	})
}

func TestPrune_NoChangesIsQuiet(t *testing.T) {
	reg := newTestRegistry(&fakeAccessor{label: "app.person", rows: map[int64]string{1: "A"}})
	repo := &fakeRepo{}
	m := newDBManager(repo, reg, "user-1")
	ctx := context.Background()

	if err := m.Add(ctx, testObject{label: "app.person", id: 1, repr: "A"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	writesAfterSeed := repo.writeCalls

	if err := m.Prune(ctx); err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if repo.writeCalls != writesAfterSeed {
		t.Errorf("prune with nothing stale issued %d extra writes", repo.writeCalls-writesAfterSeed)
	}
}

func TestDBManager_ScopedToUser(t *testing.T) {
	reg := newTestRegistry(&fakeAccessor{label: "app.person"})
	repo := &fakeRepo{}
	ctx := context.Background()
	obj := testObject{label: "app.person", id: 1, repr: "A"}

	alice := newDBManager(repo, reg, "user-alice")
	bob := newDBManager(repo, reg, "user-bob")

	if err := alice.Add(ctx, obj); err != nil {
		t.Fatalf("add: %v", err)
	}

	if on, _ := bob.OnWatchlist(ctx, obj); on {
		t.Error("one user's entries must not leak into another's watchlist")
	}
}

func TestSessionManager_PersistsAcrossRequests(t *testing.T) {
	reg := newTestRegistry(&fakeAccessor{label: "app.person"})
	store := sessions.NewCookieStore([]byte("test-session-secret-32-bytes-ok!"))
	ctx := context.Background()
	obj := testObject{label: "app.person", id: 42, repr: "Answer"}

	// First request: add and let the manager write the session cookie.
	r1 := httptest.NewRequest(http.MethodPost, "/", nil)
	w1 := httptest.NewRecorder()
	m1 := newSessionManager(w1, r1, store, reg, nil)
	if err := m1.Add(ctx, obj); err != nil {
		t.Fatalf("Add: %v", err)
	}

	cookies := w1.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("mutation should have written a session cookie")
	}

	// Second request carries the cookie back.
	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		r2.AddCookie(c)
	}
	m2 := newSessionManager(httptest.NewRecorder(), r2, store, reg, nil)

	on, err := m2.OnWatchlist(ctx, obj)
	if err != nil {
		t.Fatalf("OnWatchlist: %v", err)
	}
	if !on {
		t.Error("watchlist should survive across requests via the session cookie")
	}
}

func TestSessionManager_ReadsDoNotWriteCookie(t *testing.T) {
	reg := newTestRegistry(&fakeAccessor{label: "app.person"})
	store := sessions.NewCookieStore([]byte("test-session-secret-32-bytes-ok!"))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	m := newSessionManager(w, r, store, reg, nil)

	if _, err := m.AsDict(context.Background()); err != nil {
		t.Fatalf("AsDict: %v", err)
	}
	if on, _ := m.OnWatchlist(context.Background(), testObject{label: "app.person", id: 1}); on {
		t.Error("fresh session should be empty")
	}
	if len(w.Result().Cookies()) != 0 {
		t.Error("read-only operations must not write the session")
	}
}

func TestSessionManager_RemoveLastEntryDropsModelKey(t *testing.T) {
	reg := newTestRegistry(&fakeAccessor{label: "app.person"})
	store := sessions.NewCookieStore([]byte("test-session-secret-32-bytes-ok!"))
	ctx := context.Background()
	obj := testObject{label: "app.person", id: 1, repr: "A"}

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	m := newSessionManager(httptest.NewRecorder(), r, store, reg, nil)

	if err := m.Add(ctx, obj); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := m.Remove(ctx, obj); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	dict, err := m.AsDict(ctx)
	if err != nil {
		t.Fatalf("AsDict: %v", err)
	}
	if _, ok := dict["app.person"]; ok {
		t.Error("a model key should not survive with an empty list")
	}
}

func TestSessionManager_DiscardsUndecodablePayload(t *testing.T) {
	reg := newTestRegistry(&fakeAccessor{label: "app.person"})
	store := sessions.NewCookieStore([]byte("test-session-secret-32-bytes-ok!"))

	// Seed a session whose payload is not valid JSON.
	r1 := httptest.NewRequest(http.MethodGet, "/", nil)
	w1 := httptest.NewRecorder()
	session, _ := store.Get(r1, SessionName)
	session.Values[sessionDataKey] = "{not json"
	if err := session.Save(r1, w1); err != nil {
		t.Fatalf("seeding session: %v", err)
	}

	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range w1.Result().Cookies() {
		r2.AddCookie(c)
	}
	m := newSessionManager(httptest.NewRecorder(), r2, store, reg, nil)

	dict, err := m.AsDict(context.Background())
	if err != nil {
		t.Fatalf("AsDict: %v", err)
	}
	if len(dict) != 0 {
		t.Errorf("undecodable payload should yield an empty watchlist, got %+v", dict)
	}
}

func TestForRequest_SelectsBackendByAuthState(t *testing.T) {
	reg := newTestRegistry(&fakeAccessor{label: "app.person"})
	deps := Deps{
		Repo:     &fakeRepo{},
		Registry: reg,
		Sessions: sessions.NewCookieStore([]byte("test-session-secret-32-bytes-ok!")),
	}

	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars")
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}

	var got Manager
	probe := auth.OptionalAuth(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ForRequest(w, r, deps)
	}))

	// Anonymous request: session backend.
	probe.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if _, ok := got.(*sessionManager); !ok {
		t.Errorf("anonymous request should get the session manager, got %T", got)
	}

	// Valid token: durable backend.
	token, err := tokens.Generate("user-1")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
	probe.ServeHTTP(httptest.NewRecorder(), r)
	if _, ok := got.(*dbManager); !ok {
		t.Errorf("authenticated request should get the db manager, got %T", got)
	}

	// Garbage token never fails the selection — it just falls back.
	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: auth.CookieName, Value: "not-a-jwt"})
	probe.ServeHTTP(httptest.NewRecorder(), r)
	if _, ok := got.(*sessionManager); !ok {
		t.Errorf("invalid token should fall back to the session manager, got %T", got)
	}
}
