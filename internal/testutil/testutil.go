// Package testutil provides shared test helpers for setting up stores.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/starford/contacts/internal/contactstore"
	"github.com/starford/contacts/internal/storage"
)

// TestStore creates a contact store backed by a JSON file in a temporary
// directory. The file provider is returned for tests that inspect it.
func TestStore(t *testing.T, opts ...contactstore.Option) (*contactstore.Store, *storage.JSONFile) {
	t.Helper()
	file, err := storage.NewJSONFile(filepath.Join(t.TempDir(), "contacts.json"))
	if err != nil {
		t.Fatal(err)
	}
	s, err := contactstore.New(context.Background(), file, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return s, file
}

// TestSQLiteStore creates a contact store backed by a temporary SQLite
// database that is closed on cleanup.
func TestSQLiteStore(t *testing.T, opts ...contactstore.Option) *contactstore.Store {
	t.Helper()
	db, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "contacts.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	s, err := contactstore.New(context.Background(), db, opts...)
	if err != nil {
		t.Fatal(err)
	}
	return s
}
