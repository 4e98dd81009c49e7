package collection

import "errors"

var (
	// ErrNotFound is returned when a collection id has no matching record.
	ErrNotFound = errors.New("collection not found")
	// ErrImageNotFound is returned when an image id has no matching record within a collection.
	ErrImageNotFound = errors.New("image not found")
)
