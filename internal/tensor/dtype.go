// Package tensor provides the runtime tensor type exchanged between callers,
// packages and execution backends.
package tensor

import "fmt"

// DType is a constraint for element types that have a fixed-size binary
// representation. Strings are handled separately (see FromStrings).
type DType interface {
	~float32 | ~float64 |
		~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~bool
}

// DataType represents runtime type information for tensors.
type DataType int

// Supported data types for tensors. The zero value is Invalid so that a
// missing dtype in a decoded spec is detectable.
const (
	Invalid DataType = iota
	Float32
	Float64
	Int8
	Int16
	Int32
	Int64
	Uint8
	Uint16
	Uint32
	Uint64
	Bool
	String
)

var dtypeNames = map[DataType]string{
	Float32: "float32",
	Float64: "float64",
	Int8:    "int8",
	Int16:   "int16",
	Int32:   "int32",
	Int64:   "int64",
	Uint8:   "uint8",
	Uint16:  "uint16",
	Uint32:  "uint32",
	Uint64:  "uint64",
	Bool:    "bool",
	String:  "string",
}

// Size returns the byte size of one element. String and Invalid have no
// fixed size and report 0.
func (dt DataType) Size() int {
	switch dt {
	case Float64, Int64, Uint64:
		return 8
	case Float32, Int32, Uint32:
		return 4
	case Int16, Uint16:
		return 2
	case Int8, Uint8, Bool:
		return 1
	default:
		return 0
	}
}

// String returns the canonical (numpy-style) name of the data type.
func (dt DataType) String() string {
	if name, ok := dtypeNames[dt]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether dt is one of the supported data types.
func (dt DataType) Valid() bool {
	_, ok := dtypeNames[dt]
	return ok
}

// IsFloat reports whether dt is a floating point type.
func (dt DataType) IsFloat() bool {
	return dt == Float32 || dt == Float64
}

// IsNumeric reports whether dt supports arithmetic.
func (dt DataType) IsNumeric() bool {
	return dt.Valid() && dt != Bool && dt != String
}

// ParseDataType converts a dtype name such as "float32" into a DataType.
func ParseDataType(s string) (DataType, error) {
	for dt, name := range dtypeNames {
		if name == s {
			return dt, nil
		}
	}
	return Invalid, fmt.Errorf("unknown data type %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (dt DataType) MarshalText() ([]byte, error) {
	if !dt.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid data type %d", int(dt))
	}
	return []byte(dt.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (dt *DataType) UnmarshalText(text []byte) error {
	parsed, err := ParseDataType(string(text))
	if err != nil {
		return err
	}
	*dt = parsed
	return nil
}

// DataTypeOf returns the DataType for the Go type T.
func DataTypeOf[T DType]() DataType {
	var dummy T
	switch any(dummy).(type) {
	case float32:
		return Float32
	case float64:
		return Float64
	case int8:
		return Int8
	case int16:
		return Int16
	case int32:
		return Int32
	case int64:
		return Int64
	case uint8:
		return Uint8
	case uint16:
		return Uint16
	case uint32:
		return Uint32
	case uint64:
		return Uint64
	case bool:
		return Bool
	default:
		panic("unsupported type")
	}
}
