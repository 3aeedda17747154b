package billing

import "errors"

// Sentinel errors for the billing domain. Handlers translate these into
// HTTP status codes; services wrap them with operation context via %w.
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
)
