// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the dense tensors exchanged with parcel models.
//
// A tensor is a row-major buffer with a dtype and a shape. Numeric tensors
// are stored little-endian; string tensors hold one Go string per element.
//
// Example:
//
//	x, err := tensor.FromSlice([]float32{1, 2, 3, 4}, 2, 2)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(x.Shape(), x.AsFloat32())
package tensor

import (
	"github.com/born-ml/parcel/internal/tensor"
)

// DType is a constraint for element types with a fixed-size encoding.
type DType = tensor.DType

// DataType identifies the element type of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Invalid DataType = tensor.Invalid
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
	Int8    DataType = tensor.Int8
	Int16   DataType = tensor.Int16
	Int32   DataType = tensor.Int32
	Int64   DataType = tensor.Int64
	Uint8   DataType = tensor.Uint8
	Uint16  DataType = tensor.Uint16
	Uint32  DataType = tensor.Uint32
	Uint64  DataType = tensor.Uint64
	Bool    DataType = tensor.Bool
	String  DataType = tensor.String
)

// Shape is a concrete tensor shape.
type Shape = tensor.Shape

// Tensor is a dense, immutable-by-convention tensor.
type Tensor = tensor.Tensor

// Construction.
var (
	// New allocates a zero-filled tensor.
	New = tensor.New

	// FromStrings builds a string tensor. An empty shape means 1-D.
	FromStrings = tensor.FromStrings

	// ScalarString builds a rank-0 string tensor.
	ScalarString = tensor.ScalarString

	// FromBytes wraps little-endian encoded data.
	FromBytes = tensor.FromBytes

	// FromValues builds a tensor from loosely typed values, such as
	// decoded JSON.
	FromValues = tensor.FromValues

	// Must panics if err is non-nil.
	Must = tensor.Must

	// ParseDataType parses a dtype name such as "float32".
	ParseDataType = tensor.ParseDataType
)

// Comparison.
var (
	// Equal reports whether a and b have the same dtype, shape and values.
	Equal = tensor.Equal

	// AllClose is Equal with an absolute tolerance on floating-point values.
	AllClose = tensor.AllClose

	// Compare returns a descriptive error when a and b differ.
	Compare = tensor.Compare
)

// FromSlice builds a tensor from values. With no shape the tensor is 1-D.
func FromSlice[T DType](values []T, shape ...int) (*Tensor, error) {
	return tensor.FromSlice(values, shape...)
}

// Scalar builds a rank-0 tensor.
func Scalar[T DType](v T) *Tensor {
	return tensor.Scalar(v)
}

// Values returns the elements of t as a []T, or an error when the dtype
// does not match T.
func Values[T DType](t *Tensor) ([]T, error) {
	return tensor.Values[T](t)
}
