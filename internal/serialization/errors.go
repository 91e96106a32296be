package serialization

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	ErrChecksumMismatch   = errors.New("checksum mismatch: artifact may be corrupted")
	ErrOffsetOverlap      = errors.New("node values overlap")
	ErrOutOfBounds        = errors.New("node value extends beyond data section")
	ErrNegativeOffset     = errors.New("negative offset or size")
	ErrTooManyNodes       = errors.New("too many nodes in artifact")
	ErrNodeNameTooLong    = errors.New("node name too long")
	ErrInvalidNodeName    = errors.New("invalid node name")
	ErrOrphanValue        = errors.New("value does not belong to a const or variable node")
	ErrInvalidDType       = errors.New("invalid value data type")
	ErrHeaderTooLarge     = errors.New("header exceeds maximum size")
	ErrInvalidMagic       = errors.New("invalid magic bytes")
	ErrUnsupportedVersion = errors.New("unsupported format version")
	ErrTruncated          = errors.New("artifact is truncated")
	ErrTrailingData       = errors.New("unexpected bytes after data section")
	ErrNonZeroPadding     = errors.New("padding or reserved bytes are not zero")
	ErrShapeMismatch      = errors.New("value shape does not match stored size")
)

// ValidationError describes a header that fails structural checks.
type ValidationError struct {
	Kind   string // e.g. "offset_overlap", "orphan_value"
	Node   string // Node the problem was found on
	Other  string // Second node for overlaps
	Detail string
}

func (e *ValidationError) Error() string {
	switch {
	case e.Other != "":
		return fmt.Sprintf("%s: nodes %q and %q: %s", e.Kind, e.Node, e.Other, e.Detail)
	case e.Node != "":
		return fmt.Sprintf("%s: node %q: %s", e.Kind, e.Node, e.Detail)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
}

// Unwrap maps the kind to its sentinel.
func (e *ValidationError) Unwrap() error {
	return kindErrors[e.Kind]
}

var kindErrors = map[string]error{
	"offset_overlap":  ErrOffsetOverlap,
	"out_of_bounds":   ErrOutOfBounds,
	"negative_offset": ErrNegativeOffset,
	"too_many_nodes":  ErrTooManyNodes,
	"name_too_long":   ErrNodeNameTooLong,
	"invalid_name":    ErrInvalidNodeName,
	"orphan_value":    ErrOrphanValue,
	"invalid_dtype":   ErrInvalidDType,
}
