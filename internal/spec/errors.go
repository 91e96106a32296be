package spec

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrSpec         = errors.New("invalid tensor spec")
	ErrSpecMismatch = errors.New("tensor does not match spec")
)

// Error describes a malformed spec entry.
type Error struct {
	List   string // "input_spec" or "output_spec"
	Index  int    // Position of the entry in its list
	Name   string // Entry name, if any
	Reason string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("%s: %s[%d] %q: %s", ErrSpec, e.List, e.Index, e.Name, e.Reason)
	}
	return fmt.Sprintf("%s: %s[%d]: %s", ErrSpec, e.List, e.Index, e.Reason)
}

// Is reports whether target is ErrSpec.
func (e *Error) Is(target error) bool {
	return target == ErrSpec
}

// MismatchError describes a runtime tensor that violates its declared spec.
type MismatchError struct {
	Name     string // Declared tensor name
	Expected string // Expected dtype/shape
	Actual   string // Actual dtype/shape
	Reason   string
}

// Error implements the error interface.
func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s: tensor %q: %s (expected %s, got %s)", ErrSpecMismatch, e.Name, e.Reason, e.Expected, e.Actual)
}

// Is reports whether target is ErrSpecMismatch.
func (e *MismatchError) Is(target error) bool {
	return target == ErrSpecMismatch
}
