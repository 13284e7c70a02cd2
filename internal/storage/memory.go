package storage

import (
	"context"
	"sync"

	"github.com/starford/contacts/internal/models"
)

// Memory keeps the collection in process memory only.
type Memory struct {
	mu       sync.Mutex
	contacts []models.Contact
}

var _ Provider = (*Memory)(nil)

// NewMemory returns a provider preloaded with contacts.
func NewMemory(contacts ...models.Contact) *Memory {
	return &Memory{contacts: cloneAll(contacts)}
}

func (m *Memory) Load(_ context.Context) ([]models.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneAll(m.contacts), nil
}

func (m *Memory) Save(_ context.Context, contacts []models.Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contacts = cloneAll(contacts)
	return nil
}

func (m *Memory) Close() error { return nil }

func cloneAll(in []models.Contact) []models.Contact {
	out := make([]models.Contact, len(in))
	for i, c := range in {
		out[i] = c.Clone()
	}
	return out
}
