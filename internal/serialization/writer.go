package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/born-ml/parcel/internal/graph"
	"github.com/born-ml/parcel/internal/tensor"
)

const createdBy = "parcel"

// Marshal encodes a graph and its node values in .pgraph format.
func Marshal(g *graph.Graph, metadata map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, g, metadata); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile writes a graph to path in .pgraph format.
func WriteFile(path string, g *graph.Graph, metadata map[string]string) error {
	//nolint:gosec // G304: path is chosen by the package writer
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := Encode(file, g, metadata); err != nil {
		_ = file.Close() // Best effort close on error
		return err
	}
	return file.Close()
}

// Encode writes a graph to w in .pgraph format.
func Encode(w io.Writer, g *graph.Graph, metadata map[string]string) error {
	header := Header{
		FormatVersion: FormatVersion,
		CreatedBy:     createdBy,
		CreatedAt:     time.Now().UTC(),
		Nodes:         g.Nodes,
		Metadata:      metadata,
	}
	if header.Metadata == nil {
		header.Metadata = make(map[string]string)
	}

	flags := uint32(0)
	if len(metadata) > 0 {
		flags |= FlagHasMetadata
	}

	// Collect node values in node order.
	var data []byte
	for i := range g.Nodes {
		n := &g.Nodes[i]
		if n.Value == nil {
			continue
		}
		if n.Op == graph.OpVariable {
			flags |= FlagStateful
		}
		if n.Value.DType() == tensor.String {
			flags |= FlagHasStrings
		}
		encoded := encodeTensor(n.Value)
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   n.Name,
			DType:  n.Value.DType(),
			Shape:  append([]int{}, n.Value.Shape()...),
			Offset: int64(len(data)),
			Size:   int64(len(encoded)),
		})
		data = append(data, encoded...)
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if len(headerJSON) > MaxHeaderSize {
		return ErrHeaderTooLarge
	}

	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], uint32(FormatVersion))
	binary.LittleEndian.PutUint32(fixed[8:12], flags)
	// 0x0C-0x0F: reserved
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(len(data)))
	padding := make([]byte, alignedOffset(int64(len(headerJSON)))-int64(FixedHeaderSize)-int64(len(headerJSON)))
	checksum := digest(fixed[:ChecksumOffset], headerJSON, padding, data)
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	if _, err := w.Write(fixed); err != nil {
		return fmt.Errorf("failed to write fixed header: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header JSON: %w", err)
	}

	if len(padding) > 0 {
		if _, err := w.Write(padding); err != nil {
			return fmt.Errorf("failed to write padding: %w", err)
		}
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write tensor data: %w", err)
	}
	return nil
}

// encodeTensor returns the data section bytes of a tensor.
func encodeTensor(t *tensor.Tensor) []byte {
	if t.DType() != tensor.String {
		return append([]byte(nil), t.Data()...)
	}
	var out []byte
	for _, s := range t.Strings() {
		out = binary.LittleEndian.AppendUint32(out, uint32(len(s)))
		out = append(out, s...)
	}
	return out
}
