package tensor

import (
	"encoding/json"
	"fmt"
	"math"
)

type number interface {
	~float32 | ~float64 |
		~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64
}

// FromValues builds a tensor from loosely typed elements as produced by
// YAML or JSON decoders: strings for String, bools for Bool and any Go or
// json.Number number otherwise. A nil shape means one dimension holding
// every element.
func FromValues(dtype DataType, shape Shape, data []any) (*Tensor, error) {
	if shape == nil {
		shape = Shape{len(data)}
	}
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}

	switch dtype {
	case String:
		strs := make([]string, len(data))
		for i, d := range data {
			s, ok := d.(string)
			if !ok {
				return nil, fmt.Errorf("element %d: expected string, got %T", i, d)
			}
			strs[i] = s
		}
		return FromStrings(strs, shape...)
	case Bool:
		bools := make([]bool, len(data))
		for i, d := range data {
			b, ok := d.(bool)
			if !ok {
				return nil, fmt.Errorf("element %d: expected bool, got %T", i, d)
			}
			bools[i] = b
		}
		return FromSlice(bools, shape...)
	}

	t, err := New(dtype, shape)
	if err != nil {
		return nil, err
	}
	switch dtype {
	case Float32:
		err = fill[float32](t, data, true)
	case Float64:
		err = fill[float64](t, data, true)
	case Int8:
		err = fill[int8](t, data, false)
	case Int16:
		err = fill[int16](t, data, false)
	case Int32:
		err = fill[int32](t, data, false)
	case Int64:
		err = fill[int64](t, data, false)
	case Uint8:
		err = fill[uint8](t, data, false)
	case Uint16:
		err = fill[uint16](t, data, false)
	case Uint32:
		err = fill[uint32](t, data, false)
	case Uint64:
		err = fill[uint64](t, data, false)
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func fill[T number](t *Tensor, data []any, float bool) error {
	vals := viewAs[T](t.data, len(data))
	for i, d := range data {
		if n, ok := d.(json.Number); ok {
			if iv, err := n.Int64(); err == nil {
				d = iv
			} else if fv, err := n.Float64(); err == nil {
				d = fv
			} else {
				return fmt.Errorf("element %d: invalid number %q", i, n)
			}
		}
		switch n := d.(type) {
		case int:
			vals[i] = T(n)
		case int64:
			vals[i] = T(n)
		case uint64:
			vals[i] = T(n)
		case float64:
			if !float && n != math.Trunc(n) {
				return fmt.Errorf("element %d: %v is not an integer", i, n)
			}
			vals[i] = T(n)
		default:
			return fmt.Errorf("element %d: expected number, got %T", i, d)
		}
	}
	return nil
}

// Elements returns the elements as loosely typed values: string, bool,
// float64 for float tensors, uint64 for Uint64 and int64 otherwise.
func (t *Tensor) Elements() []any {
	out := make([]any, t.NumElements())
	switch {
	case t.dtype == String:
		for i, s := range t.strs {
			out[i] = s
		}
	case t.dtype == Bool:
		for i, b := range t.AsBool() {
			out[i] = b
		}
	case t.dtype.IsFloat():
		for i := range out {
			out[i] = t.Float64At(i)
		}
	case t.dtype == Uint64:
		for i, n := range viewAs[uint64](t.data, len(out)) {
			out[i] = n
		}
	case t.dtype == Int64:
		for i, n := range viewAs[int64](t.data, len(out)) {
			out[i] = n
		}
	default:
		for i := range out {
			out[i] = int64(t.Float64At(i))
		}
	}
	return out
}
