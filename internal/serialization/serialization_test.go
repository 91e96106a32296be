package serialization

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/born-ml/parcel/internal/graph"
	"github.com/born-ml/parcel/internal/graph/graphtest"
	"github.com/born-ml/parcel/internal/tensor"
)

// TestRoundTrip verifies that every reference graph survives Marshal/Unmarshal.
func TestRoundTrip(t *testing.T) {
	models := map[string]graphtest.Model{
		"addition":    graphtest.Addition(),
		"accumulator": graphtest.Accumulator(),
		"strings":     graphtest.Strings(),
		"scaled":      graphtest.Scaled(),
	}
	for name, m := range models {
		t.Run(name, func(t *testing.T) {
			data, err := Marshal(m.Graph, map[string]string{"model": name})
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}

			g, header, err := Unmarshal(data, ReaderOptions{})
			if err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if header.Metadata["model"] != name {
				t.Errorf("metadata lost: %v", header.Metadata)
			}
			if len(g.Nodes) != len(m.Graph.Nodes) {
				t.Fatalf("expected %d nodes, got %d", len(m.Graph.Nodes), len(g.Nodes))
			}
			for i, want := range m.Graph.Nodes {
				got := g.Nodes[i]
				if got.Name != want.Name || got.Op != want.Op {
					t.Errorf("node %d: got %s/%s, want %s/%s", i, got.Name, got.Op, want.Name, want.Op)
				}
				if got.Shape.String() != want.Shape.String() {
					t.Errorf("node %s: shape %v, want %v", want.Name, got.Shape, want.Shape)
				}
				if want.Value != nil && (got.Value == nil || !tensor.Equal(got.Value, want.Value)) {
					t.Errorf("node %s: value %v, want %v", want.Name, got.Value, want.Value)
				}
			}
			if err := g.Validate(graph.NewRegistry()); err != nil {
				t.Errorf("decoded graph invalid: %v", err)
			}
		})
	}
}

// TestFlags verifies the fixed header flags.
func TestFlags(t *testing.T) {
	tests := []struct {
		name string
		m    graphtest.Model
		want uint32
	}{
		{"addition", graphtest.Addition(), 0},
		{"accumulator", graphtest.Accumulator(), FlagStateful},
		{"strings", graphtest.Strings(), FlagHasStrings},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := Marshal(tt.m.Graph, nil)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}
			if got := binary.LittleEndian.Uint32(data[8:12]); got != tt.want {
				t.Errorf("flags = %b, want %b", got, tt.want)
			}
		})
	}
}

// TestDataAlignment verifies tensor data starts on a 64-byte boundary.
func TestDataAlignment(t *testing.T) {
	data, err := Marshal(graphtest.Scaled().Graph, nil)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	headerSize := int64(binary.LittleEndian.Uint64(data[16:24]))
	dataSize := int64(binary.LittleEndian.Uint64(data[24:32]))
	offset := alignedOffset(headerSize)
	if offset%HeaderAlignment != 0 {
		t.Errorf("data offset %d is not aligned", offset)
	}
	if int64(len(data)) != offset+dataSize {
		t.Errorf("file size %d, want %d", len(data), offset+dataSize)
	}
}

// TestChecksumCorruption verifies that a flipped data byte is detected.
func TestChecksumCorruption(t *testing.T) {
	data, err := Marshal(graphtest.Scaled().Graph, nil)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	data[len(data)-1] ^= 0xFF

	if _, _, err := Unmarshal(data, ReaderOptions{}); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("expected ErrChecksumMismatch, got %v", err)
	}

	// Skipping validation decodes the corrupted value.
	if _, _, err := Unmarshal(data, ReaderOptions{SkipChecksumValidation: true}); err != nil {
		t.Errorf("expected no error with checksum validation skipped, got %v", err)
	}
}

// TestMalformed verifies fixed header checks.
func TestMalformed(t *testing.T) {
	good, err := Marshal(graphtest.Addition().Graph, nil)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	badMagic := bytes.Clone(good)
	copy(badMagic, "BORN")

	badVersion := bytes.Clone(good)
	binary.LittleEndian.PutUint32(badVersion[4:8], 99)

	hugeHeader := bytes.Clone(good)
	binary.LittleEndian.PutUint64(hugeHeader[16:24], MaxHeaderSize+1)

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrTruncated},
		{"short", good[:FixedHeaderSize-1], ErrTruncated},
		{"magic", badMagic, ErrInvalidMagic},
		{"version", badVersion, ErrUnsupportedVersion},
		{"header size", hugeHeader, ErrHeaderTooLarge},
		{"truncated data", good[:len(good)-1], ErrTruncated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Unmarshal(tt.data, ReaderOptions{})
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

// TestWriteReadFile verifies the file helpers.
func TestWriteReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.pgraph")
	if err := WriteFile(path, graphtest.Strings().Graph, nil); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	g, _, err := ReadFile(path, ReaderOptions{})
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	suffix, ok := g.Node("text/suffix")
	if !ok || suffix.Value == nil {
		t.Fatal("suffix constant missing")
	}
	if got := suffix.Value.Strings(); len(got) != 1 || got[0] != "world" {
		t.Errorf("suffix = %v", got)
	}

	if _, _, err := ReadFile(filepath.Join(t.TempDir(), "missing"), ReaderOptions{}); err == nil {
		t.Error("expected error for missing file")
	}
}

// TestValidateLayout verifies overlap and bounds detection.
func TestValidateLayout(t *testing.T) {
	tests := []struct {
		name     string
		values   []TensorMeta
		dataSize int64
		want     error
	}{
		{
			name: "adjacent",
			values: []TensorMeta{
				{Name: "b", Offset: 100, Size: 100},
				{Name: "a", Offset: 0, Size: 100},
			},
			dataSize: 200,
		},
		{
			name: "overlap",
			values: []TensorMeta{
				{Name: "a", Offset: 0, Size: 100},
				{Name: "b", Offset: 99, Size: 100},
			},
			dataSize: 200,
			want:     ErrOffsetOverlap,
		},
		{
			name:     "out of bounds",
			values:   []TensorMeta{{Name: "a", Offset: 150, Size: 100}},
			dataSize: 200,
			want:     ErrOutOfBounds,
		},
		{
			name:     "negative",
			values:   []TensorMeta{{Name: "a", Offset: -1, Size: 10}},
			dataSize: 200,
			want:     ErrNegativeOffset,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLayout(tt.values, tt.dataSize)
			if tt.want == nil {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			var validationErr *ValidationError
			if !errors.As(err, &validationErr) {
				t.Fatalf("expected ValidationError, got %T", err)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

// TestValidateNodeName verifies node name rules.
func TestValidateNodeName(t *testing.T) {
	for _, name := range []string{"weights", "some_namespace/in_x", "a/b/c"} {
		if err := ValidateNodeName(name); err != nil {
			t.Errorf("ValidateNodeName(%q) = %v", name, err)
		}
	}

	long := strings.Repeat("n", MaxNodeNameLen+1)
	for _, name := range []string{"", "out:0", "bad\x00name", long} {
		if err := ValidateNodeName(name); err == nil {
			t.Errorf("ValidateNodeName(%q) should fail", name)
		}
	}
}

// TestOrphanValue verifies that stored values must belong to a value node.
func TestOrphanValue(t *testing.T) {
	h := &Header{
		Nodes:   []graph.Node{{Name: "x", Op: graph.OpPlaceholder}},
		Tensors: []TensorMeta{{Name: "x", DType: tensor.Float32, Size: 4}},
	}
	if err := validateHeader(h, 4, false); !errors.Is(err, ErrOrphanValue) {
		t.Errorf("expected ErrOrphanValue, got %v", err)
	}

	h.Nodes[0].Op = graph.OpConst
	if err := validateHeader(h, 4, false); err != nil {
		t.Errorf("expected no error, got %v", err)
	}

	h.Tensors = append(h.Tensors, TensorMeta{Name: "x", DType: tensor.Float32, Offset: 4, Size: 4})
	if err := validateHeader(h, 8, false); !errors.Is(err, ErrOrphanValue) {
		t.Errorf("expected ErrOrphanValue for duplicate value, got %v", err)
	}
}

// TestChecksumMessage verifies the mismatch names both digests.
func TestChecksumMessage(t *testing.T) {
	stored := digest([]byte("head"), []byte("other"))
	err := verifyDigest(stored, []byte("head"), []byte("test data"))
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
	if !strings.Contains(err.Error(), "stored") {
		t.Errorf("message %q should mention the stored digest", err)
	}
	if err := verifyDigest(stored, []byte("head"), []byte("other")); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

// TestHeaderTamper verifies that the node header is covered by the digest.
func TestHeaderTamper(t *testing.T) {
	data, err := Marshal(graphtest.Addition().Graph, nil)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	tampered := bytes.Replace(data, []byte(`"op":"Add"`), []byte(`"op":"Sub"`), 1)
	if bytes.Equal(tampered, data) {
		t.Fatal("header does not contain the Add node")
	}

	if _, _, err := Unmarshal(tampered, ReaderOptions{}); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("expected ErrChecksumMismatch, got %v", err)
	}

	flags := bytes.Clone(data)
	flags[8] ^= byte(FlagStateful)
	if _, _, err := Unmarshal(flags, ReaderOptions{}); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("expected ErrChecksumMismatch for flipped flags, got %v", err)
	}
}

// TestFramingBytes verifies padding, reserved and trailing bytes are rejected.
func TestFramingBytes(t *testing.T) {
	data, err := Marshal(graphtest.Addition().Graph, nil)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	headerSize := binary.LittleEndian.Uint64(data[16:24])
	padStart := FixedHeaderSize + int(headerSize)
	if int64(padStart) == alignedOffset(int64(headerSize)) {
		t.Skip("header ends on the alignment boundary")
	}

	unchecked := ReaderOptions{SkipChecksumValidation: true}

	padded := bytes.Clone(data)
	padded[padStart] = 1
	if _, _, err := Unmarshal(padded, ReaderOptions{}); !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("expected ErrChecksumMismatch, got %v", err)
	}
	if _, _, err := Unmarshal(padded, unchecked); !errors.Is(err, ErrNonZeroPadding) {
		t.Errorf("expected ErrNonZeroPadding, got %v", err)
	}

	reserved := bytes.Clone(data)
	reserved[12] = 1
	if _, _, err := Unmarshal(reserved, unchecked); !errors.Is(err, ErrNonZeroPadding) {
		t.Errorf("expected ErrNonZeroPadding for reserved field, got %v", err)
	}

	trailing := append(bytes.Clone(data), 0)
	if _, _, err := Unmarshal(trailing, ReaderOptions{}); !errors.Is(err, ErrTrailingData) {
		t.Errorf("expected ErrTrailingData, got %v", err)
	}
}

// TestHugeSizeFields verifies size fields near the uint64 limit fail cleanly.
func TestHugeSizeFields(t *testing.T) {
	data, err := Marshal(graphtest.Scaled().Graph, nil)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	huge := bytes.Clone(data)
	binary.LittleEndian.PutUint64(huge[24:32], ^uint64(0))
	if _, _, err := Unmarshal(huge, ReaderOptions{}); !errors.Is(err, ErrTruncated) {
		t.Errorf("expected ErrTruncated, got %v", err)
	}

	values := []TensorMeta{{Name: "a", Offset: 1 << 62, Size: 1 << 62}}
	if err := ValidateLayout(values, 16); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("expected ErrOutOfBounds, got %v", err)
	}
}

// assemble frames header and data with a valid digest.
func assemble(t *testing.T, header Header, data []byte) []byte {
	t.Helper()
	headerJSON, err := json.Marshal(header)
	if err != nil {
		t.Fatalf("failed to marshal header: %v", err)
	}
	fixed := make([]byte, FixedHeaderSize)
	copy(fixed, MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersion)
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(len(data)))
	out := append(fixed, headerJSON...)
	out = append(out, make([]byte, alignedOffset(int64(len(headerJSON)))-int64(len(out)))...)
	out = append(out, data...)

	sum := digest(out[:ChecksumOffset], out[FixedHeaderSize:])
	copy(out[ChecksumOffset:], sum[:])
	return out
}

// TestValueShapeChecks verifies stored shapes are checked before allocation.
func TestValueShapeChecks(t *testing.T) {
	tests := []struct {
		name  string
		dtype tensor.DataType
		shape []int
		data  []byte
	}{
		{"negative dimension", tensor.Float32, []int{-1}, make([]byte, 4)},
		{"huge shape", tensor.Float32, []int{1 << 40, 1 << 40}, make([]byte, 4)},
		{"size mismatch", tensor.Float32, []int{2}, make([]byte, 4)},
		{"huge strings", tensor.String, []int{1 << 62}, make([]byte, 4)},
		{"string count", tensor.String, []int{2}, make([]byte, 4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := Header{
				FormatVersion: FormatVersion,
				Nodes:         []graph.Node{{Name: "c", Op: graph.OpConst}},
				Tensors: []TensorMeta{{
					Name: "c", DType: tt.dtype, Shape: tt.shape,
					Size: int64(len(tt.data)),
				}},
			}
			_, _, err := Unmarshal(assemble(t, header, tt.data), ReaderOptions{})
			if !errors.Is(err, ErrShapeMismatch) {
				t.Errorf("expected ErrShapeMismatch, got %v", err)
			}
		})
	}

	ok := Header{
		FormatVersion: FormatVersion,
		Nodes:         []graph.Node{{Name: "c", Op: graph.OpConst}},
		Tensors:       []TensorMeta{{Name: "c", DType: tensor.Int32, Shape: []int{}, Size: 4}},
	}
	if _, _, err := Unmarshal(assemble(t, ok, make([]byte, 4)), ReaderOptions{}); err != nil {
		t.Errorf("expected scalar value to decode, got %v", err)
	}
}
