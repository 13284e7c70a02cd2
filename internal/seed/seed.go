// Package seed reads the YAML file used to populate an empty store.
package seed

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/starford/contacts/internal/models"
)

// File is the on-disk shape of a seed file:
//
//	contacts:
//	  - first: Ada
//	    last: Lovelace
//	    twitter: "@ada"
//	    favorite: true
type File struct {
	Contacts []models.ContactPatch `yaml:"contacts"`
}

// Parse decodes seed data. Empty input yields no entries. A bare YAML list
// of contacts is accepted as well as the documented mapping form.
func Parse(data []byte) ([]models.ContactPatch, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	if trimmed[0] == '-' {
		var list []models.ContactPatch
		if err := yaml.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("seed: decode list: %w", err)
		}
		return list, nil
	}

	var f File
	if err := yaml.Unmarshal(trimmed, &f); err != nil {
		return nil, fmt.Errorf("seed: decode: %w", err)
	}
	return f.Contacts, nil
}

// Load reads and parses the seed file at path.
func Load(path string) ([]models.ContactPatch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed: read %s: %w", path, err)
	}
	return Parse(data)
}
