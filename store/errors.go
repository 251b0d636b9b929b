package store

import "errors"

var (
	// ErrNotFound is returned when a document does not exist or is not
	// visible to the requesting principal.
	ErrNotFound = errors.New("specimen: not found")

	// ErrItemIDTaken is returned when a create collides with an existing
	// item_id, detected by the items table unique index at write time.
	ErrItemIDTaken = errors.New("specimen: item_id already exists")

	// ErrRefcodeTaken is returned when a create collides with an existing
	// refcode, detected by the constraint table at write time.
	ErrRefcodeTaken = errors.New("specimen: refcode already exists")

	// ErrForbidden is returned when a conditional write fails the
	// principal's permission condition.
	ErrForbidden = errors.New("specimen: operation not permitted")
)
