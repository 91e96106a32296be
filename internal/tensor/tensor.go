package tensor

import (
	"fmt"
	"strings"
	"unsafe"
)

// Tensor is a dense, row-major tensor with a runtime element type.
//
// Fixed-size element types are stored in a byte buffer; String tensors keep
// a []string. A Tensor is not safe for concurrent mutation.
type Tensor struct {
	dtype DataType
	shape Shape
	data  []byte
	strs  []string
}

// New creates a zero-initialized tensor of the given type and shape.
func New(dtype DataType, shape Shape) (*Tensor, error) {
	if !dtype.Valid() {
		return nil, fmt.Errorf("invalid data type %d", int(dtype))
	}
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}

	t := &Tensor{dtype: dtype, shape: shape.Clone()}
	if dtype == String {
		t.strs = make([]string, shape.NumElements())
	} else {
		t.data = make([]byte, shape.NumElements()*dtype.Size())
	}
	return t, nil
}

// FromSlice creates a tensor from a Go slice. The slice is copied.
// Without an explicit shape the tensor is one-dimensional.
//
// Example:
//
//	x, err := tensor.FromSlice([]float32{1, 2, 3})
//	m, err := tensor.FromSlice([]int64{1, 2, 3, 4}, 2, 2)
func FromSlice[T DType](values []T, shape ...int) (*Tensor, error) {
	s := Shape(shape)
	if shape == nil {
		s = Shape{len(values)}
	}
	if s.NumElements() != len(values) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", s, s.NumElements(), len(values))
	}

	t, err := New(DataTypeOf[T](), s)
	if err != nil {
		return nil, err
	}
	copy(viewAs[T](t.data, len(values)), values)
	return t, nil
}

// Scalar creates a rank-0 tensor holding v.
func Scalar[T DType](v T) *Tensor {
	t, err := FromSlice([]T{v}, []int{}...)
	if err != nil {
		panic(err) // a single element always matches the scalar shape
	}
	return t
}

// FromStrings creates a String tensor. The slice is copied.
func FromStrings(values []string, shape ...int) (*Tensor, error) {
	s := Shape(shape)
	if shape == nil {
		s = Shape{len(values)}
	}
	if s.NumElements() != len(values) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", s, s.NumElements(), len(values))
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	return &Tensor{
		dtype: String,
		shape: s.Clone(),
		strs:  append([]string(nil), values...),
	}, nil
}

// ScalarString creates a rank-0 String tensor.
func ScalarString(v string) *Tensor {
	return &Tensor{dtype: String, shape: Shape{}, strs: []string{v}}
}

// FromBytes creates a tensor of a fixed-size type from its little-endian
// binary representation. The bytes are copied.
func FromBytes(dtype DataType, shape Shape, data []byte) (*Tensor, error) {
	if dtype == String {
		return nil, fmt.Errorf("string tensors cannot be created from raw bytes")
	}
	t, err := New(dtype, shape)
	if err != nil {
		return nil, err
	}
	if len(data) != len(t.data) {
		return nil, fmt.Errorf("%s%v requires %d bytes, but got %d", dtype, shape, len(t.data), len(data))
	}
	copy(t.data, data)
	return t, nil
}

// Must panics if err is non-nil. Intended for literals in tests and examples.
func Must(t *Tensor, err error) *Tensor {
	if err != nil {
		panic(err)
	}
	return t
}

// DType returns the tensor's data type.
func (t *Tensor) DType() DataType {
	return t.dtype
}

// Shape returns the tensor's shape. The returned slice must not be modified.
func (t *Tensor) Shape() Shape {
	return t.shape
}

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int {
	return len(t.shape)
}

// NumElements returns the total number of elements.
func (t *Tensor) NumElements() int {
	return t.shape.NumElements()
}

// ByteSize returns the size of the binary buffer in bytes (0 for strings).
func (t *Tensor) ByteSize() int {
	return len(t.data)
}

// Data returns the raw little-endian byte buffer of a fixed-size tensor.
// WARNING: Direct access to underlying memory. Use with caution.
func (t *Tensor) Data() []byte {
	return t.data
}

// Strings returns the elements of a String tensor.
// Panics if the tensor's dtype is not String.
func (t *Tensor) Strings() []string {
	if t.dtype != String {
		panic(fmt.Sprintf("tensor dtype is %s, not string", t.dtype))
	}
	return t.strs
}

// AsFloat32 interprets the data as []float32.
// Panics if the tensor's dtype is not Float32.
func (t *Tensor) AsFloat32() []float32 {
	return mustView[float32](t, Float32)
}

// AsFloat64 interprets the data as []float64.
// Panics if the tensor's dtype is not Float64.
func (t *Tensor) AsFloat64() []float64 {
	return mustView[float64](t, Float64)
}

// AsInt32 interprets the data as []int32.
// Panics if the tensor's dtype is not Int32.
func (t *Tensor) AsInt32() []int32 {
	return mustView[int32](t, Int32)
}

// AsInt64 interprets the data as []int64.
// Panics if the tensor's dtype is not Int64.
func (t *Tensor) AsInt64() []int64 {
	return mustView[int64](t, Int64)
}

// AsUint8 interprets the data as []uint8.
// Panics if the tensor's dtype is not Uint8.
func (t *Tensor) AsUint8() []uint8 {
	return mustView[uint8](t, Uint8)
}

// AsBool interprets the data as []bool.
// Panics if the tensor's dtype is not Bool.
func (t *Tensor) AsBool() []bool {
	return mustView[bool](t, Bool)
}

// Values returns a zero-copy view of the tensor's elements as []T.
func Values[T DType](t *Tensor) ([]T, error) {
	want := DataTypeOf[T]()
	if t.dtype != want {
		return nil, fmt.Errorf("tensor dtype is %s, not %s", t.dtype, want)
	}
	return viewAs[T](t.data, t.NumElements()), nil
}

// Float64At returns element i of a numeric or bool tensor converted to float64.
func (t *Tensor) Float64At(i int) float64 {
	switch t.dtype {
	case Float32:
		return float64(t.AsFloat32()[i])
	case Float64:
		return t.AsFloat64()[i]
	case Int8:
		return float64(mustView[int8](t, Int8)[i])
	case Int16:
		return float64(mustView[int16](t, Int16)[i])
	case Int32:
		return float64(t.AsInt32()[i])
	case Int64:
		return float64(t.AsInt64()[i])
	case Uint8:
		return float64(t.AsUint8()[i])
	case Uint16:
		return float64(mustView[uint16](t, Uint16)[i])
	case Uint32:
		return float64(mustView[uint32](t, Uint32)[i])
	case Uint64:
		return float64(mustView[uint64](t, Uint64)[i])
	case Bool:
		if t.AsBool()[i] {
			return 1
		}
		return 0
	default:
		panic(fmt.Sprintf("tensor dtype %s has no numeric value", t.dtype))
	}
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{
		dtype: t.dtype,
		shape: t.shape.Clone(),
		data:  append([]byte(nil), t.data...),
		strs:  append([]string(nil), t.strs...),
	}
}

// Reshape returns a copy of the tensor with a new shape holding the same
// number of elements.
func (t *Tensor) Reshape(shape Shape) (*Tensor, error) {
	if shape.NumElements() != t.NumElements() {
		return nil, fmt.Errorf("cannot reshape %v into %v", t.shape, shape)
	}
	c := t.Clone()
	c.shape = shape.Clone()
	return c, nil
}

// String renders the tensor as dtype, shape and up to eight elements.
func (t *Tensor) String() string {
	const maxShown = 8

	var b strings.Builder
	fmt.Fprintf(&b, "%s%v[", t.dtype, t.shape)
	n := t.NumElements()
	for i := 0; i < n && i < maxShown; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		if t.dtype == String {
			fmt.Fprintf(&b, "%q", t.strs[i])
		} else {
			fmt.Fprintf(&b, "%v", t.Float64At(i))
		}
	}
	if n > maxShown {
		b.WriteString(" ...")
	}
	b.WriteByte(']')
	return b.String()
}

func mustView[T DType](t *Tensor, want DataType) []T {
	if t.dtype != want {
		panic(fmt.Sprintf("tensor dtype is %s, not %s", t.dtype, want))
	}
	return viewAs[T](t.data, t.NumElements())
}

func viewAs[T DType](data []byte, n int) []T {
	if n == 0 || len(data) == 0 {
		return []T{}
	}
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*T)(unsafe.Pointer(&data[0])), n)
}
