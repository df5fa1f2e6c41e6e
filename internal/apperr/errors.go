// Package apperr defines the error taxonomy shared by the repositories and the HTTP layer.
package apperr

import "errors"

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidName     = errors.New("invalid name")
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrRateLimited     = errors.New("too many requests")
)

// Public reports whether err belongs to the taxonomy above. Anything else is an
// internal failure whose message must not reach clients.
func Public(err error) bool {
	for _, target := range []error{
		ErrInvalidInput, ErrInvalidName, ErrPayloadTooLarge, ErrUnsupportedType,
		ErrUnauthorized, ErrForbidden, ErrNotFound, ErrConflict, ErrRateLimited,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
