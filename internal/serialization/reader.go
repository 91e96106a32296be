package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"

	"github.com/born-ml/parcel/internal/graph"
	"github.com/born-ml/parcel/internal/tensor"
)

// ReaderOptions configures decoding.
type ReaderOptions struct {
	SkipChecksumValidation bool // Skip the data section digest
	Trusted                bool // Skip value layout checks
}

// ReadFile reads a .pgraph file.
func ReadFile(path string, opts ReaderOptions) (*graph.Graph, Header, error) {
	//nolint:gosec // G304: path comes from the package layout
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Header{}, fmt.Errorf("failed to read file: %w", err)
	}
	return Unmarshal(data, opts)
}

// Unmarshal decodes a .pgraph artifact. Node values are restored onto the
// Const and Variable nodes they belong to; the graph itself is not validated
// against an operator registry.
func Unmarshal(data []byte, opts ReaderOptions) (*graph.Graph, Header, error) {
	header, section, err := parse(data, opts)
	if err != nil {
		return nil, Header{}, err
	}

	values := make(map[string]*tensor.Tensor, len(header.Tensors))
	for _, meta := range header.Tensors {
		n := int64(len(section))
		if meta.Offset < 0 || meta.Size < 0 || meta.Offset > n || meta.Size > n-meta.Offset {
			return nil, Header{}, fmt.Errorf("tensor %q: %w", meta.Name, ErrOutOfBounds)
		}
		t, err := decodeTensor(meta, section[meta.Offset:meta.Offset+meta.Size])
		if err != nil {
			return nil, Header{}, fmt.Errorf("tensor %q: %w", meta.Name, err)
		}
		values[meta.Name] = t
	}

	g := graph.New(header.Nodes)
	for name, v := range values {
		n, ok := g.Node(name)
		if !ok {
			return nil, Header{}, fmt.Errorf("tensor %q has no matching node", name)
		}
		n.Value = v
	}
	return g, header, nil
}

// parse validates the fixed header and checksum and returns the JSON header
// and the data section.
func parse(data []byte, opts ReaderOptions) (Header, []byte, error) {
	if len(data) < FixedHeaderSize {
		return Header{}, nil, ErrTruncated
	}
	if string(data[0:4]) != MagicBytes {
		return Header{}, nil, ErrInvalidMagic
	}
	version := binary.LittleEndian.Uint32(data[4:8])
	if version != FormatVersion {
		return Header{}, nil, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, version, FormatVersion)
	}

	headerSize := binary.LittleEndian.Uint64(data[16:24])
	dataSize := binary.LittleEndian.Uint64(data[24:32])
	var stored [ChecksumSize]byte
	copy(stored[:], data[ChecksumOffset:ChecksumOffset+ChecksumSize])

	if headerSize > MaxHeaderSize {
		return Header{}, nil, ErrHeaderTooLarge
	}
	//nolint:gosec // G115: headerSize is bounded by MaxHeaderSize
	dataOffset := uint64(alignedOffset(int64(headerSize)))
	size := uint64(len(data))
	switch {
	case dataOffset > size || dataSize > size-dataOffset:
		return Header{}, nil, ErrTruncated
	case dataSize < size-dataOffset:
		return Header{}, nil, fmt.Errorf("%w: %d bytes after the data section", ErrTrailingData, size-dataOffset-dataSize)
	}

	if !opts.SkipChecksumValidation {
		if err := verifyDigest(stored, data[:ChecksumOffset], data[FixedHeaderSize:]); err != nil {
			return Header{}, nil, err
		}
	}

	if binary.LittleEndian.Uint32(data[12:16]) != 0 {
		return Header{}, nil, fmt.Errorf("%w: reserved field is set", ErrNonZeroPadding)
	}
	headerJSON := data[FixedHeaderSize : FixedHeaderSize+headerSize]
	for _, b := range data[FixedHeaderSize+headerSize : dataOffset] {
		if b != 0 {
			return Header{}, nil, ErrNonZeroPadding
		}
	}
	section := data[dataOffset:]

	var header Header
	if err := json.Unmarshal(headerJSON, &header); err != nil {
		return Header{}, nil, fmt.Errorf("failed to parse header JSON: %w", err)
	}

	//nolint:gosec // G115: dataSize equals len(section)
	if err := validateHeader(&header, int64(dataSize), opts.Trusted); err != nil {
		return Header{}, nil, fmt.Errorf("validation failed: %w", err)
	}
	return header, section, nil
}

// decodeTensor checks the declared shape against the stored bytes before
// allocating anything.
func decodeTensor(meta TensorMeta, raw []byte) (*tensor.Tensor, error) {
	shape := tensor.Shape(meta.Shape)
	if meta.DType != tensor.String {
		size := meta.DType.Size()
		if size == 0 {
			return nil, fmt.Errorf("%w: %s", ErrInvalidDType, meta.DType)
		}
		n, err := boundedElements(shape, len(raw)/size)
		if err != nil {
			return nil, err
		}
		if n*size != len(raw) {
			return nil, fmt.Errorf("%w: %s%v needs %d bytes, stored %d", ErrShapeMismatch, meta.DType, shape, n*size, len(raw))
		}
		return tensor.FromBytes(meta.DType, shape, raw)
	}

	// Every string element takes at least its 4-byte length prefix.
	n, err := boundedElements(shape, len(raw)/4)
	if err != nil {
		return nil, err
	}
	strs := make([]string, 0, n)
	for len(raw) > 0 {
		if len(raw) < 4 {
			return nil, ErrTruncated
		}
		l := binary.LittleEndian.Uint32(raw)
		raw = raw[4:]
		if uint64(len(raw)) < uint64(l) {
			return nil, ErrTruncated
		}
		strs = append(strs, string(raw[:l]))
		raw = raw[l:]
	}
	if len(strs) != n {
		return nil, fmt.Errorf("%w: shape %v holds %d strings, stored %d", ErrShapeMismatch, shape, n, len(strs))
	}
	return tensor.FromStrings(strs, shape...)
}

// boundedElements returns the element count of shape, failing on negative
// dimensions or a count above limit.
func boundedElements(shape tensor.Shape, limit int) (int, error) {
	n := 1
	for _, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("%w: negative dimension in %v", ErrShapeMismatch, []int(shape))
		}
		if d != 0 && n > limit/d {
			return 0, fmt.Errorf("%w: shape %v exceeds the stored data", ErrShapeMismatch, []int(shape))
		}
		n *= d
	}
	if n > limit {
		return 0, fmt.Errorf("%w: shape %v exceeds the stored data", ErrShapeMismatch, []int(shape))
	}
	return n, nil
}
