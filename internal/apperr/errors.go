// Package apperr holds the sentinel errors shared across layers.
package apperr

import "errors"

// ErrNotFound is returned when an operation references a contact id that
// does not exist.
var ErrNotFound = errors.New("not found")
