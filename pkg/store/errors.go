package store

import "errors"

var (
	// ErrNotFound indicates a referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateSlug indicates a create or update would reuse a slug
	// that must be unique. The write is rejected before any mutation.
	ErrDuplicateSlug = errors.New("slug already exists")
)
