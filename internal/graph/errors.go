package graph

import "errors"

// Common errors.
var (
	ErrInvalidGraph   = errors.New("invalid graph")
	ErrUnknownNode    = errors.New("unknown node")
	ErrNotFed         = errors.New("placeholder not fed")
	ErrUninitialized  = errors.New("variable not initialized")
	ErrCycle          = errors.New("dependency cycle")
	ErrTypeMismatch   = errors.New("type mismatch")
	ErrNotFoldable    = errors.New("graph cannot be folded")
	ErrUnsupportedOp  = errors.New("unsupported operator")
	ErrDivisionByZero = errors.New("integer division by zero")
)
