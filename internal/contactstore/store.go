// Package contactstore is the single source of truth for contacts. It keeps
// the collection in memory and writes the full collection through a
// storage.Provider on every mutation.
package contactstore

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starford/contacts/internal/apperr"
	"github.com/starford/contacts/internal/models"
	"github.com/starford/contacts/internal/storage"
)

// Change kinds passed to a ChangeFunc.
const (
	ChangeCreated  = "created"
	ChangeUpdated  = "updated"
	ChangeDeleted  = "deleted"
	ChangeReloaded = "reloaded"
)

// ChangeFunc is called after a mutation has been persisted. id is empty for
// ChangeReloaded.
type ChangeFunc func(kind, id string)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for store diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithOnChange registers a callback invoked after every persisted change.
func WithOnChange(fn ChangeFunc) Option {
	return func(s *Store) { s.onChange = fn }
}

// WithClock overrides the time source used for created_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator overrides contact id generation.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// Store owns the contact collection.
type Store struct {
	provider storage.Provider
	logger   *slog.Logger
	onChange ChangeFunc
	now      func() time.Time
	newID    func() string

	mu       sync.RWMutex
	contacts []models.Contact // creation order
	index    map[string]int
}

// New loads the collection from provider and returns a ready store.
func New(ctx context.Context, provider storage.Provider, opts ...Option) (*Store, error) {
	s := &Store{
		provider: provider,
		logger:   slog.Default(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Len returns the number of contacts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.contacts)
}

// List returns contacts whose first or last name contains query
// (case-insensitive). The query is matched as given, surrounding spaces
// included; an empty or whitespace-only query returns every contact. Results are
// ordered by last name, first name, then creation order.
func (s *Store) List(_ context.Context, query string) ([]models.Contact, error) {
	q := strings.ToLower(query)
	if strings.TrimSpace(q) == "" {
		q = ""
	}

	s.mu.RLock()
	out := make([]models.Contact, 0, len(s.contacts))
	for _, c := range s.contacts {
		if q == "" || matches(c, q) {
			out = append(out, c.Clone())
		}
	}
	s.mu.RUnlock()

	slices.SortStableFunc(out, compareContacts)
	return out, nil
}

// Get looks up a contact by id. The boolean is false when it does not exist.
func (s *Store) Get(_ context.Context, id string) (models.Contact, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return models.Contact{}, false
	}
	return s.contacts[i].Clone(), true
}

// Create stores a new contact built from fields and returns it.
func (s *Store) Create(ctx context.Context, fields models.ContactPatch) (models.Contact, error) {
	s.mu.Lock()
	c := s.newContact(fields)
	next := append(slices.Clone(s.contacts), c)
	if err := s.commit(ctx, next); err != nil {
		s.mu.Unlock()
		return models.Contact{}, fmt.Errorf("contactstore: create: %w", err)
	}
	s.mu.Unlock()

	s.notify(ChangeCreated, c.ID)
	return c.Clone(), nil
}

// Seed creates one contact per entry and persists them in a single save.
// It does nothing when the store already holds contacts.
func (s *Store) Seed(ctx context.Context, entries []models.ContactPatch) (int, error) {
	s.mu.Lock()
	if len(s.contacts) > 0 || len(entries) == 0 {
		s.mu.Unlock()
		return 0, nil
	}
	next := make([]models.Contact, 0, len(entries))
	for _, fields := range entries {
		next = append(next, s.newContactAmong(fields, next))
	}
	if err := s.commit(ctx, next); err != nil {
		s.mu.Unlock()
		return 0, fmt.Errorf("contactstore: seed: %w", err)
	}
	s.mu.Unlock()

	s.notify(ChangeReloaded, "")
	return len(next), nil
}

// Update merges patch into the contact with the given id.
func (s *Store) Update(ctx context.Context, id string, patch models.ContactPatch) (models.Contact, error) {
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return models.Contact{}, apperr.ErrNotFound
	}
	next := slices.Clone(s.contacts)
	updated := next[i].Clone()
	patch.Apply(&updated)
	next[i] = updated
	if err := s.commit(ctx, next); err != nil {
		s.mu.Unlock()
		return models.Contact{}, fmt.Errorf("contactstore: update %s: %w", id, err)
	}
	s.mu.Unlock()

	s.notify(ChangeUpdated, id)
	return updated.Clone(), nil
}

// SetFavorite sets only the favorite flag of a contact.
func (s *Store) SetFavorite(ctx context.Context, id string, favorite bool) (models.Contact, error) {
	return s.Update(ctx, id, models.ContactPatch{Favorite: models.Bool(favorite)})
}

// Delete permanently removes a contact.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return apperr.ErrNotFound
	}
	next := slices.Delete(slices.Clone(s.contacts), i, i+1)
	if err := s.commit(ctx, next); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("contactstore: delete %s: %w", id, err)
	}
	s.mu.Unlock()

	s.notify(ChangeDeleted, id)
	return nil
}

// Reload replaces the in-memory collection with what the provider holds.
func (s *Store) Reload(ctx context.Context) error {
	if err := s.load(ctx); err != nil {
		return err
	}
	s.notify(ChangeReloaded, "")
	return nil
}

// load replaces the collection with the provider's contents. The lock is
// held across the read so no commit can land between reading and swapping.
func (s *Store) load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	contacts, err := s.provider.Load(ctx)
	if err != nil {
		return fmt.Errorf("contactstore: load: %w", err)
	}
	index := make(map[string]int, len(contacts))
	kept := contacts[:0]
	for _, c := range contacts {
		if _, dup := index[c.ID]; dup || c.ID == "" {
			s.logger.Warn("contactstore: skipping invalid or duplicate id", slog.String("id", c.ID))
			continue
		}
		index[c.ID] = len(kept)
		kept = append(kept, c)
	}

	s.contacts = kept
	s.index = index
	return nil
}

// commit persists next and, only on success, makes it the live collection.
// Callers hold s.mu.
func (s *Store) commit(ctx context.Context, next []models.Contact) error {
	if err := s.provider.Save(ctx, next); err != nil {
		return err
	}
	index := make(map[string]int, len(next))
	for i, c := range next {
		index[c.ID] = i
	}
	s.contacts = next
	s.index = index
	return nil
}

func (s *Store) newContact(fields models.ContactPatch) models.Contact {
	return s.newContactAmong(fields, nil)
}

// newContactAmong builds a contact whose id collides neither with the live
// collection nor with pending.
func (s *Store) newContactAmong(fields models.ContactPatch, pending []models.Contact) models.Contact {
	var id string
	for {
		id = s.newID()
		if _, taken := s.index[id]; taken {
			continue
		}
		if slices.ContainsFunc(pending, func(c models.Contact) bool { return c.ID == id }) {
			continue
		}
		break
	}
	c := models.Contact{
		ID:        id,
		CreatedAt: s.now().UTC(),
	}
	fields.Apply(&c)
	return c
}

func (s *Store) notify(kind, id string) {
	if s.onChange != nil {
		s.onChange(kind, id)
	}
}

func matches(c models.Contact, q string) bool {
	return strings.Contains(strings.ToLower(models.Value(c.First)), q) ||
		strings.Contains(strings.ToLower(models.Value(c.Last)), q)
}

// compareContacts orders by last name, then first name. Equal names keep
// their relative (creation) order under a stable sort; created_at breaks
// ties between contacts reloaded out of order.
func compareContacts(a, b models.Contact) int {
	if c := cmp.Compare(strings.ToLower(models.Value(a.Last)), strings.ToLower(models.Value(b.Last))); c != 0 {
		return c
	}
	if c := cmp.Compare(strings.ToLower(models.Value(a.First)), strings.ToLower(models.Value(b.First))); c != 0 {
		return c
	}
	return a.CreatedAt.Compare(b.CreatedAt)
}
