package serialization

import (
	"time"

	"github.com/born-ml/parcel/internal/graph"
	"github.com/born-ml/parcel/internal/tensor"
)

// Format constants.
const (
	MagicBytes      = "PGRF"
	FormatVersion   = 1
	HeaderAlignment = 64   // Align tensor data to 64 bytes
	FixedHeaderSize = 64   // Fixed header size (0x40 bytes)
	ChecksumSize    = 32   // SHA-256 checksum size (32 bytes)
	ChecksumOffset  = 0x20 // Checksum offset in the fixed header
)

// Flags for the .pgraph format.
const (
	FlagHasStrings  uint32 = 1 << 0 // bit 0: at least one string tensor
	FlagHasMetadata uint32 = 1 << 1 // bit 1: custom metadata included
	FlagStateful    uint32 = 1 << 2 // bit 2: graph contains variables
)

// Header represents the JSON header in a .pgraph file.
type Header struct {
	FormatVersion int               `json:"format_version"`
	CreatedBy     string            `json:"created_by"`
	CreatedAt     time.Time         `json:"created_at"`
	Nodes         []graph.Node      `json:"nodes"`
	Tensors       []TensorMeta      `json:"tensors"`
	Metadata      map[string]string `json:"metadata"`
}

// TensorMeta describes the value of one Const or Variable node.
type TensorMeta struct {
	Name   string          `json:"name"`   // Node name (e.g., "some_namespace/weights")
	DType  tensor.DataType `json:"dtype"`  // Data type (e.g., "float32", "string")
	Shape  []int           `json:"shape"`  // Tensor shape
	Offset int64           `json:"offset"` // Offset in the data section
	Size   int64           `json:"size"`   // Size in bytes
}

// alignedOffset returns the data section offset for a header of the given size.
func alignedOffset(headerSize int64) int64 {
	pos := int64(FixedHeaderSize) + headerSize
	return pos + (HeaderAlignment-(pos%HeaderAlignment))%HeaderAlignment
}
