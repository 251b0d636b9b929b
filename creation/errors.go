package creation

import (
	"errors"
	"net/http"

	"github.com/jacentio/specimen/refcode"
	"github.com/jacentio/specimen/store"
)

var (
	// ErrValidation is returned for malformed or incomplete payloads.
	// Nothing was written.
	ErrValidation = errors.New("specimen: validation failed")

	// ErrConflictingRequest is returned when mutually exclusive options
	// are supplied, e.g. automatic ID generation with an explicit item_id.
	ErrConflictingRequest = errors.New("specimen: conflicting request options")

	// ErrNotFound is returned when a referenced source item is absent.
	ErrNotFound = errors.New("specimen: item not found")

	// ErrUnresolvedReference is returned when a collection link cannot be
	// resolved under the acting principal's permissions.
	ErrUnresolvedReference = errors.New("specimen: unresolvable reference")

	// ErrDuplicateID is returned on an item_id or refcode collision,
	// whether caught by the advisory pre-check or at write time.
	ErrDuplicateID = errors.New("specimen: identifier already exists")

	// ErrBatchTooLarge is returned when a batch exceeds the configured
	// limit. No element is processed.
	ErrBatchTooLarge = errors.New("specimen: batch size limit exceeded")
)

// StatusCode maps an engine error onto its HTTP status code. A nil error
// maps to 201 Created.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusCreated
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrConflictingRequest),
		errors.Is(err, ErrBatchTooLarge):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnresolvedReference),
		errors.Is(err, store.ErrForbidden):
		return http.StatusUnauthorized
	case errors.Is(err, ErrDuplicateID):
		return http.StatusConflict
	case errors.Is(err, refcode.ErrAllocationExhausted):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
