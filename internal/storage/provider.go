// Package storage persists the contact collection.
package storage

import (
	"context"

	"github.com/starford/contacts/internal/models"
)

// Provider loads and saves the full contact collection. Save always
// receives the complete collection in creation order.
type Provider interface {
	// Load returns every stored contact in creation order. A backend with no
	// data yet returns an empty slice.
	Load(ctx context.Context) ([]models.Contact, error)
	// Save replaces the stored collection with contacts.
	Save(ctx context.Context, contacts []models.Contact) error
	// Close releases any resources held by the backend.
	Close() error
}

// Drivers accepted by Open.
const (
	DriverJSON   = "json"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)
