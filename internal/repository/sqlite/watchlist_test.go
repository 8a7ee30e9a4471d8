package sqlite

import (
	"context"
	"testing"

	"github.com/sakif/watchlist/internal/model"
)

// newTestDB opens an in-memory database that lives only for this test.
// t.Cleanup closes it when the test (or subtest) finishes.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestUser inserts a user row so watchlist entries have a valid
// foreign-key target.
func createTestUser(t *testing.T, db *DB, githubID int64, login string) *model.User {
	t.Helper()
	user := &model.User{
		GitHubID: githubID,
		Login:    login,
		Email:    login + "@example.com",
	}
	if err := db.Upsert(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// createTestEntry inserts one watchlist entry and fails the test on error.
func createTestEntry(t *testing.T, db *DB, userID, label string, objectID int64, repr string) *model.WatchlistEntry {
	t.Helper()
	entry := &model.WatchlistEntry{
		UserID:     userID,
		ModelLabel: label,
		ObjectID:   objectID,
		ObjectRepr: repr,
	}
	if err := db.CreateEntry(context.Background(), entry); err != nil {
		t.Fatalf("failed to create test entry: %v", err)
	}
	return entry
}

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestCreateEntry(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, 1, "alice")

	entry := &model.WatchlistEntry{
		UserID:     user.ID,
		ModelLabel: "app.person",
		ObjectID:   7,
		ObjectRepr: "Greta Gale",
	}
	if err := db.CreateEntry(context.Background(), entry); err != nil {
		t.Fatalf("CreateEntry() error = %v", err)
	}

	if entry.ID == "" {
		t.Error("CreateEntry() did not set entry.ID")
	}
	if entry.TimeAdded.IsZero() {
		t.Error("CreateEntry() did not set entry.TimeAdded")
	}
}

func TestCreateEntry_DuplicateIsNoOp(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, 1, "alice")

	createTestEntry(t, db, user.ID, "app.person", 7, "Greta Gale")

	// A second insert for the same (user, label, object) hits the unique
	// index and must neither error nor write a second row.
	dup := &model.WatchlistEntry{
		UserID:     user.ID,
		ModelLabel: "app.person",
		ObjectID:   7,
		ObjectRepr: "Greta Gale (again)",
	}
	if err := db.CreateEntry(context.Background(), dup); err != nil {
		t.Fatalf("duplicate CreateEntry() error = %v", err)
	}

	entries, err := db.ListModel(context.Background(), user.ID, "app.person")
	if err != nil {
		t.Fatalf("ListModel() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected 1 entry after duplicate insert, got %d", len(entries))
	}
	if entries[0].ObjectRepr != "Greta Gale" {
		t.Errorf("duplicate insert must not overwrite the original repr, got %q", entries[0].ObjectRepr)
	}
}

func TestCreateEntry_SameObjectDifferentUsers(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, 1, "alice")
	bob := createTestUser(t, db, 2, "bob")

	createTestEntry(t, db, alice.ID, "app.person", 7, "Greta Gale")
	createTestEntry(t, db, bob.ID, "app.person", 7, "Greta Gale")

	for _, userID := range []string{alice.ID, bob.ID} {
		on, err := db.Exists(context.Background(), userID, "app.person", 7)
		if err != nil {
			t.Fatalf("Exists() error = %v", err)
		}
		if !on {
			t.Errorf("user %s should have the entry", userID)
		}
	}
}

func TestCreateEntries_Batch(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, 1, "alice")

	batch := []*model.WatchlistEntry{
		{UserID: user.ID, ModelLabel: "app.person", ObjectID: 1, ObjectRepr: "A"},
		{UserID: user.ID, ModelLabel: "app.person", ObjectID: 2, ObjectRepr: "B"},
		{UserID: user.ID, ModelLabel: "app.company", ObjectID: 1, ObjectRepr: "ACME"},
	}
	if err := db.CreateEntries(context.Background(), batch); err != nil {
		t.Fatalf("CreateEntries() error = %v", err)
	}

	people, err := db.ListModel(context.Background(), user.ID, "app.person")
	if err != nil {
		t.Fatalf("ListModel() error = %v", err)
	}
	if len(people) != 2 {
		t.Errorf("expected 2 person entries, got %d", len(people))
	}

	companies, err := db.ListModel(context.Background(), user.ID, "app.company")
	if err != nil {
		t.Fatalf("ListModel() error = %v", err)
	}
	if len(companies) != 1 {
		t.Errorf("expected 1 company entry, got %d", len(companies))
	}
}

func TestCreateEntries_EmptyBatch(t *testing.T) {
	db := newTestDB(t)

	if err := db.CreateEntries(context.Background(), nil); err != nil {
		t.Errorf("empty CreateEntries() should be a no-op, got %v", err)
	}
}

// =========================================================================
// EXISTS / LIST TESTS
// =========================================================================

func TestExists(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, 1, "alice")
	createTestEntry(t, db, user.ID, "app.person", 7, "Greta Gale")

	on, err := db.Exists(context.Background(), user.ID, "app.person", 7)
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if !on {
		t.Error("Exists() = false for a present entry")
	}

	on, err = db.Exists(context.Background(), user.ID, "app.person", 8)
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if on {
		t.Error("Exists() = true for an absent entry")
	}
}

func TestListModel_EmptyIsNotAnError(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, 1, "alice")

	entries, err := db.ListModel(context.Background(), user.ID, "app.person")
	if err != nil {
		t.Fatalf("ListModel() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no entries, got %d", len(entries))
	}
}

func TestListModel_ScopedToUserAndModel(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, 1, "alice")
	bob := createTestUser(t, db, 2, "bob")

	createTestEntry(t, db, alice.ID, "app.person", 1, "A")
	createTestEntry(t, db, alice.ID, "app.company", 1, "ACME")
	createTestEntry(t, db, bob.ID, "app.person", 2, "B")

	entries, err := db.ListModel(context.Background(), alice.ID, "app.person")
	if err != nil {
		t.Fatalf("ListModel() error = %v", err)
	}
	if len(entries) != 1 || entries[0].ObjectID != 1 {
		t.Errorf("expected only alice's person entry, got %+v", entries)
	}
}

func TestLabels(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, 1, "alice")

	createTestEntry(t, db, user.ID, "app.person", 1, "A")
	createTestEntry(t, db, user.ID, "app.person", 2, "B")
	createTestEntry(t, db, user.ID, "app.company", 1, "ACME")

	labels, err := db.Labels(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("Labels() error = %v", err)
	}
	if len(labels) != 2 || labels[0] != "app.company" || labels[1] != "app.person" {
		t.Errorf("expected [app.company app.person], got %v", labels)
	}
}

// =========================================================================
// DELETE TESTS
// =========================================================================

func TestDeleteEntry(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, 1, "alice")
	createTestEntry(t, db, user.ID, "app.person", 7, "Greta Gale")

	if err := db.DeleteEntry(context.Background(), user.ID, "app.person", 7); err != nil {
		t.Fatalf("DeleteEntry() error = %v", err)
	}

	on, err := db.Exists(context.Background(), user.ID, "app.person", 7)
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if on {
		t.Error("entry still exists after DeleteEntry()")
	}
}

func TestDeleteEntry_AbsentIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, 1, "alice")

	if err := db.DeleteEntry(context.Background(), user.ID, "app.person", 404); err != nil {
		t.Errorf("deleting an absent entry should be a no-op, got %v", err)
	}
}

func TestDeleteModel(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, 1, "alice")

	createTestEntry(t, db, user.ID, "app.person", 1, "A")
	createTestEntry(t, db, user.ID, "app.person", 2, "B")
	createTestEntry(t, db, user.ID, "app.company", 1, "ACME")

	if err := db.DeleteModel(context.Background(), user.ID, "app.person"); err != nil {
		t.Fatalf("DeleteModel() error = %v", err)
	}

	people, _ := db.ListModel(context.Background(), user.ID, "app.person")
	if len(people) != 0 {
		t.Errorf("expected no person entries after DeleteModel, got %d", len(people))
	}
	companies, _ := db.ListModel(context.Background(), user.ID, "app.company")
	if len(companies) != 1 {
		t.Errorf("DeleteModel must not touch other models, got %d company entries", len(companies))
	}
}

func TestDeleteObjects(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, 1, "alice")

	for id := int64(1); id <= 5; id++ {
		createTestEntry(t, db, user.ID, "app.person", id, "P")
	}

	if err := db.DeleteObjects(context.Background(), user.ID, "app.person", []int64{2, 4}); err != nil {
		t.Fatalf("DeleteObjects() error = %v", err)
	}

	entries, err := db.ListModel(context.Background(), user.ID, "app.person")
	if err != nil {
		t.Fatalf("ListModel() error = %v", err)
	}
	got := make([]int64, len(entries))
	for i, e := range entries {
		got[i] = e.ObjectID
	}
	want := []int64{1, 3, 5}
	if len(got) != len(want) {
		t.Fatalf("expected pks %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected pks %v, got %v", want, got)
		}
	}
}

func TestDeleteObjects_EmptyList(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, 1, "alice")
	createTestEntry(t, db, user.ID, "app.person", 1, "A")

	if err := db.DeleteObjects(context.Background(), user.ID, "app.person", nil); err != nil {
		t.Fatalf("DeleteObjects() error = %v", err)
	}

	entries, _ := db.ListModel(context.Background(), user.ID, "app.person")
	if len(entries) != 1 {
		t.Error("empty DeleteObjects must not delete anything")
	}
}

func TestDeletingUser_CascadesToWatchlist(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, 1, "alice")
	createTestEntry(t, db, user.ID, "app.person", 1, "A")

	if _, err := db.Conn().Exec(`DELETE FROM users WHERE id = ?`, user.ID); err != nil {
		t.Fatalf("deleting user: %v", err)
	}

	entries, err := db.ListModel(context.Background(), user.ID, "app.person")
	if err != nil {
		t.Fatalf("ListModel() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected watchlist to cascade-delete with the user, got %d entries", len(entries))
	}
}

// =========================================================================
// NOTES TESTS
// =========================================================================

func TestUpdateNotes(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, 1, "alice")
	createTestEntry(t, db, user.ID, "app.person", 7, "Greta Gale")

	if err := db.UpdateNotes(context.Background(), user.ID, "app.person", 7, "met at the conference"); err != nil {
		t.Fatalf("UpdateNotes() error = %v", err)
	}

	entries, err := db.ListModel(context.Background(), user.ID, "app.person")
	if err != nil {
		t.Fatalf("ListModel() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Notes != "met at the conference" {
		t.Errorf("expected updated notes, got %+v", entries)
	}
}
