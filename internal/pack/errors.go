package pack

import (
	"errors"
	"fmt"
	"strings"

	"github.com/born-ml/parcel/internal/backend"
	"github.com/born-ml/parcel/internal/spec"
)

// Common errors. Every detailed error type below matches exactly one of
// these through errors.Is.
var (
	ErrArgument        = errors.New("invalid argument")
	ErrPathExists      = errors.New("package path already exists")
	ErrMissingInput    = errors.New("missing input")
	ErrUnexpectedInput = errors.New("unexpected input")
	ErrCorruptPackage  = errors.New("corrupt package")
	ErrNotFound        = errors.New("package not found")
	ErrVerification    = errors.New("package verification failed")
	ErrModelClosed     = errors.New("model is closed")
)

// Errors owned by other packages, re-exported for callers of pack.
var (
	ErrSpec                = spec.ErrSpec
	ErrSpecMismatch        = spec.ErrSpecMismatch
	ErrUnsupportedPlatform = backend.ErrUnsupportedPlatform
)

// ArgumentError reports caller misuse of Create.
type ArgumentError struct {
	Reason string
	Err    error
}

func (e *ArgumentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrArgument, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrArgument, e.Reason)
}

// Is matches ErrArgument.
func (e *ArgumentError) Is(target error) bool { return target == ErrArgument }

func (e *ArgumentError) Unwrap() error { return e.Err }

// PathExistsError is returned when the target path of Create is occupied.
type PathExistsError struct {
	Path string
}

func (e *PathExistsError) Error() string {
	return fmt.Sprintf("%s: %s", ErrPathExists, e.Path)
}

// Is matches ErrPathExists.
func (e *PathExistsError) Is(target error) bool { return target == ErrPathExists }

// MissingInputError lists declared inputs absent from an Infer call.
type MissingInputError struct {
	Names []string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingInput, strings.Join(e.Names, ", "))
}

// Is matches ErrMissingInput.
func (e *MissingInputError) Is(target error) bool { return target == ErrMissingInput }

// UnexpectedInputError lists input names that are not declared.
type UnexpectedInputError struct {
	Names []string
}

func (e *UnexpectedInputError) Error() string {
	return fmt.Sprintf("%s: %s", ErrUnexpectedInput, strings.Join(e.Names, ", "))
}

// Is matches ErrUnexpectedInput.
func (e *UnexpectedInputError) Is(target error) bool { return target == ErrUnexpectedInput }

// CorruptPackageError reports a package that exists but cannot be used.
type CorruptPackageError struct {
	Path   string
	Reason string
	Err    error
}

func (e *CorruptPackageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", ErrCorruptPackage, e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", ErrCorruptPackage, e.Path, e.Reason)
}

// Is matches ErrCorruptPackage.
func (e *CorruptPackageError) Is(target error) bool { return target == ErrCorruptPackage }

func (e *CorruptPackageError) Unwrap() error { return e.Err }

// NotFoundError reports a missing or unreadable package path or config.
type NotFoundError struct {
	Path string
	Err  error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrNotFound, e.Path, e.Err)
}

// Is matches ErrNotFound.
func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func (e *NotFoundError) Unwrap() error { return e.Err }

// VerificationError reports a failed post-package inference. The package
// has already been removed when it is returned.
type VerificationError struct {
	Path string
	Err  error
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrVerification, e.Path, e.Err)
}

// Is matches ErrVerification.
func (e *VerificationError) Is(target error) bool { return target == ErrVerification }

func (e *VerificationError) Unwrap() error { return e.Err }
