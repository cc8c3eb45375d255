package library

import "errors"

// Error taxonomy surfaced by the service and store layers. Handlers map
// these onto HTTP status codes (400, 404, 409).
var (
	ErrValidation = errors.New("invalid input")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("already exists")
)
