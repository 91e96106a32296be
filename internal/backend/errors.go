package backend

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors.
var (
	ErrUnsupportedPlatform  = errors.New("unsupported platform")
	ErrConflictingSource    = errors.New("both an artifact path and an in-memory model were given")
	ErrMissingSource        = errors.New("neither an artifact path nor an in-memory model was given")
	ErrUnsupportedSource    = errors.New("unsupported model source")
	ErrInvalidArtifact      = errors.New("invalid model artifact")
	ErrUnresolvedIdentifier = errors.New("identifier does not resolve in the model")
	ErrTransformUnavailable = errors.New("transform unavailable")
	ErrSessionClosed        = errors.New("session is closed")
)

// UnsupportedPlatformError is returned when no backend is registered for a
// platform.
type UnsupportedPlatformError struct {
	Platform  string
	Available []string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("unsupported platform %q (available: %s)", e.Platform, strings.Join(e.Available, ", "))
}

// Is matches ErrUnsupportedPlatform.
func (e *UnsupportedPlatformError) Is(target error) bool {
	return target == ErrUnsupportedPlatform
}

// IdentifierError reports a mapping entry whose engine identifier is not
// present in the loaded model.
type IdentifierError struct {
	Name       string // declared tensor name
	Identifier string // engine identifier
	Err        error
}

func (e *IdentifierError) Error() string {
	return fmt.Sprintf("%s: %q -> %q: %v", ErrUnresolvedIdentifier, e.Name, e.Identifier, e.Err)
}

// Is matches ErrUnresolvedIdentifier.
func (e *IdentifierError) Is(target error) bool {
	return target == ErrUnresolvedIdentifier
}

func (e *IdentifierError) Unwrap() error {
	return e.Err
}
