package serialization

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"

	"github.com/born-ml/parcel/internal/graph"
)

// Decoding limits for untrusted artifacts.
const (
	MaxHeaderSize  = 64 << 20
	MaxNodeCount   = 100_000
	MaxNodeNameLen = 1024
)

// digest hashes the fixed header fields before the checksum followed by
// everything after the fixed header: JSON header, padding and data.
func digest(parts ...[]byte) [ChecksumSize]byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	var sum [ChecksumSize]byte
	h.Sum(sum[:0])
	return sum
}

func verifyDigest(stored [ChecksumSize]byte, parts ...[]byte) error {
	if got := digest(parts...); got != stored {
		return fmt.Errorf("%w: stored %s, computed %s", ErrChecksumMismatch,
			hex.EncodeToString(stored[:8]), hex.EncodeToString(got[:8]))
	}
	return nil
}

// ValidateNodeName checks that name can address a node. Names may carry
// '/' namespaces; ':' separates the output index and is not allowed.
func ValidateNodeName(name string) error {
	switch {
	case name == "":
		return &ValidationError{Kind: "invalid_name", Detail: "empty name"}
	case len(name) > MaxNodeNameLen:
		return &ValidationError{
			Kind:   "name_too_long",
			Node:   name[:32] + "...",
			Detail: fmt.Sprintf("%d bytes, limit %d", len(name), MaxNodeNameLen),
		}
	case strings.ContainsAny(name, ":\x00"):
		return &ValidationError{Kind: "invalid_name", Node: name, Detail: "contains ':' or a null byte"}
	}
	return nil
}

// ValidateLayout checks that every value region lies inside the data
// section and that no two regions overlap.
func ValidateLayout(values []TensorMeta, dataSize int64) error {
	byOffset := slices.Clone(values)
	slices.SortFunc(byOffset, func(a, b TensorMeta) int { return cmp.Compare(a.Offset, b.Offset) })

	for i, v := range byOffset {
		switch {
		case v.Offset < 0 || v.Size < 0:
			return &ValidationError{
				Kind:   "negative_offset",
				Node:   v.Name,
				Detail: fmt.Sprintf("offset %d, size %d", v.Offset, v.Size),
			}
		case v.Offset > dataSize || v.Size > dataSize-v.Offset:
			return &ValidationError{
				Kind:   "out_of_bounds",
				Node:   v.Name,
				Detail: fmt.Sprintf("offset %d, size %d, data section is %d bytes", v.Offset, v.Size, dataSize),
			}
		}
		if i+1 < len(byOffset) && v.Offset+v.Size > byOffset[i+1].Offset {
			next := byOffset[i+1]
			return &ValidationError{
				Kind:   "offset_overlap",
				Node:   v.Name,
				Other:  next.Name,
				Detail: fmt.Sprintf("[%d, %d) and [%d, %d)", v.Offset, v.Offset+v.Size, next.Offset, next.Offset+next.Size),
			}
		}
	}
	return nil
}

// validateHeader checks node names, value ownership and, unless trusted,
// the value layout.
func validateHeader(h *Header, dataSize int64, trusted bool) error {
	if len(h.Nodes) > MaxNodeCount {
		return &ValidationError{
			Kind:   "too_many_nodes",
			Detail: fmt.Sprintf("%d nodes, limit %d", len(h.Nodes), MaxNodeCount),
		}
	}

	owners := make(map[string]bool, len(h.Nodes))
	for _, n := range h.Nodes {
		if err := ValidateNodeName(n.Name); err != nil {
			return err
		}
		owners[n.Name] = n.Op == graph.OpConst || n.Op == graph.OpVariable
	}

	seen := make(map[string]bool, len(h.Tensors))
	for _, v := range h.Tensors {
		if !owners[v.Name] || seen[v.Name] {
			return &ValidationError{Kind: "orphan_value", Node: v.Name, Detail: "no matching const or variable node, or stored twice"}
		}
		seen[v.Name] = true
		if !v.DType.Valid() {
			return &ValidationError{Kind: "invalid_dtype", Node: v.Name, Detail: v.DType.String()}
		}
	}

	if trusted {
		return nil
	}
	return ValidateLayout(h.Tensors, dataSize)
}
