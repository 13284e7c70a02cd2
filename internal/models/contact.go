// Package models defines the domain types for the contacts service.
package models

import (
	"strings"
	"time"
)

// Contact is a single address-book entry. Optional string fields are nil
// when absent; an empty string is a present, empty value.
type Contact struct {
	ID        string    `json:"id"`
	First     *string   `json:"first,omitempty"`
	Last      *string   `json:"last,omitempty"`
	Avatar    *string   `json:"avatar,omitempty"`
	Twitter   *string   `json:"twitter,omitempty"`
	Notes     *string   `json:"notes,omitempty"`
	Favorite  bool      `json:"favorite"`
	CreatedAt time.Time `json:"created_at"`
}

// ContactPatch is a partial set of contact fields. Nil fields are left
// untouched when the patch is applied.
type ContactPatch struct {
	First    *string `json:"first,omitempty" yaml:"first,omitempty"`
	Last     *string `json:"last,omitempty" yaml:"last,omitempty"`
	Avatar   *string `json:"avatar,omitempty" yaml:"avatar,omitempty"`
	Twitter  *string `json:"twitter,omitempty" yaml:"twitter,omitempty"`
	Notes    *string `json:"notes,omitempty" yaml:"notes,omitempty"`
	Favorite *bool   `json:"favorite,omitempty" yaml:"favorite,omitempty"`
}

// Apply merges the patch into c field by field.
func (p ContactPatch) Apply(c *Contact) {
	if p.First != nil {
		c.First = String(*p.First)
	}
	if p.Last != nil {
		c.Last = String(*p.Last)
	}
	if p.Avatar != nil {
		c.Avatar = String(*p.Avatar)
	}
	if p.Twitter != nil {
		c.Twitter = String(*p.Twitter)
	}
	if p.Notes != nil {
		c.Notes = String(*p.Notes)
	}
	if p.Favorite != nil {
		c.Favorite = *p.Favorite
	}
}

// Clone returns a deep copy of c.
func (c Contact) Clone() Contact {
	out := c
	out.First = clonePtr(c.First)
	out.Last = clonePtr(c.Last)
	out.Avatar = clonePtr(c.Avatar)
	out.Twitter = clonePtr(c.Twitter)
	out.Notes = clonePtr(c.Notes)
	return out
}

// DisplayName returns "First Last", or "No Name" when neither is set.
func (c Contact) DisplayName() string {
	name := strings.TrimSpace(Value(c.First) + " " + Value(c.Last))
	if name == "" {
		return "No Name"
	}
	return name
}

// String returns a pointer to s.
func String(s string) *string { return &s }

// Bool returns a pointer to b.
func Bool(b bool) *bool { return &b }

// Value dereferences s, returning "" for nil.
func Value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func clonePtr(s *string) *string {
	if s == nil {
		return nil
	}
	return String(*s)
}
