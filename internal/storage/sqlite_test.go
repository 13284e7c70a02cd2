package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/starford/contacts/internal/models"
)

func testSQLite(t *testing.T) *SQLite {
	t.Helper()
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "contacts.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLite_SchemaCreation(t *testing.T) {
	db := testSQLite(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM contacts`).Scan(&count); err != nil {
		t.Fatalf("contacts table missing: %v", err)
	}
}

func TestOpenSQLite_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "nested", "contacts.db")
	db, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer db.Close()

	if err := db.Save(context.Background(), sampleContacts()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestSQLite_RoundTripKeepsAbsentFields(t *testing.T) {
	db := testSQLite(t)
	ctx := context.Background()
	want := sampleContacts()

	if err := db.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := db.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestSQLite_SaveReplacesContents(t *testing.T) {
	db := testSQLite(t)
	ctx := context.Background()
	all := sampleContacts()

	_ = db.Save(ctx, all)
	if err := db.Save(ctx, all[1:]); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := db.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "c" {
		t.Errorf("got ids %v, want [b c]", ids(got))
	}
}

func TestSQLite_EmptyDatabase(t *testing.T) {
	db := testSQLite(t)
	got, err := db.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Load = %v, want empty non-nil slice", got)
	}
}

func ids(cs []models.Contact) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}
