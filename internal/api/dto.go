package api

import (
	"encoding/json"
	"fmt"

	"github.com/starford/contacts/internal/models"
)

// Contact is the response type for a single contact.
type Contact = models.Contact

// ContactPatch is the request body for create and update.
type ContactPatch = models.ContactPatch

// ContactListResponse wraps the sidebar listing.
type ContactListResponse struct {
	Contacts []Contact `json:"contacts"`
	Total    int       `json:"total"`
	Query    string    `json:"q,omitempty"`
}

// FavoriteRequest is the request body for the favorite toggle. Favorite
// accepts a JSON bool or the form strings "true" / "false".
type FavoriteRequest struct {
	Favorite *favoriteValue `json:"favorite"`
}

// AvatarUploadResponse is returned after a successful avatar upload.
type AvatarUploadResponse struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	URL      string `json:"url"`
}

type favoriteValue bool

func (f *favoriteValue) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case bool:
		*f = favoriteValue(x)
		return nil
	case string:
		parsed, err := parseFavorite(x)
		if err != nil {
			return err
		}
		*f = favoriteValue(parsed)
		return nil
	default:
		return fmt.Errorf("favorite must be a boolean or \"true\"/\"false\"")
	}
}
