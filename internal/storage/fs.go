package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/starford/contacts/internal/checksum"
	"github.com/starford/contacts/internal/models"
)

// JSONFile implements Provider as a single JSON array on the local file
// system.
type JSONFile struct {
	path string // absolute path to the contacts file

	mu      sync.Mutex
	lastSum string // digest of the bytes last loaded or written by us
}

var _ Provider = (*JSONFile)(nil)

// NewJSONFile creates a provider for the file at path, creating its parent
// directory if needed. The file itself is created on first Save.
func NewJSONFile(path string) (*JSONFile, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, fmt.Errorf("storage: mkdir: %w", err)
	}
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		return nil, fmt.Errorf("storage: path is a directory: %s", abs)
	}
	return &JSONFile{path: abs}, nil
}

// Path returns the absolute path of the contacts file.
func (f *JSONFile) Path() string {
	return f.path
}

// Checksum returns the digest of the file contents as last seen by this
// provider, or "" before the first Load/Save.
func (f *JSONFile) Checksum() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSum
}

// Load reads the contacts file. A missing or empty file is an empty
// collection.
func (f *JSONFile) Load(_ context.Context) ([]models.Contact, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return []models.Contact{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read %s: %w", f.path, err)
	}

	f.mu.Lock()
	f.lastSum = checksum.Sum(data)
	f.mu.Unlock()

	if len(bytes.TrimSpace(data)) == 0 {
		return []models.Contact{}, nil
	}
	var out []models.Contact
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("storage: decode %s: %w", f.path, err)
	}
	if out == nil {
		out = []models.Contact{}
	}
	return out, nil
}

// Save encodes contacts as an indented JSON array and writes it atomically.
func (f *JSONFile) Save(_ context.Context, contacts []models.Contact) error {
	if contacts == nil {
		contacts = []models.Contact{}
	}
	data, err := json.MarshalIndent(contacts, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encode: %w", err)
	}
	data = append(data, '\n')

	// Record the digest before the rename so a watcher event racing the
	// write is already recognised as ours.
	f.mu.Lock()
	prev := f.lastSum
	f.lastSum = checksum.Sum(data)
	f.mu.Unlock()

	if err := writeAtomic(f.path, data); err != nil {
		f.mu.Lock()
		f.lastSum = prev
		f.mu.Unlock()
		return err
	}
	return nil
}

// Close is a no-op for the file backend.
func (f *JSONFile) Close() error {
	return nil
}

// writeAtomic writes content to path: tmp file → fsync → rename.
func writeAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".contacts-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}
