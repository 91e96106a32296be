package starlarkbackend

import (
	"fmt"
	"math"

	"go.starlark.net/starlark"

	"github.com/born-ml/parcel/internal/tensor"
)

type number interface {
	~float32 | ~float64 |
		~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64
}

// ToStarlark converts a tensor into nested Starlark lists. Rank-0 tensors
// become plain values.
func ToStarlark(t *tensor.Tensor) starlark.Value {
	if t.Rank() == 0 {
		return element(t, 0)
	}
	shape := t.Shape()
	idx := 0
	var build func(dim int) starlark.Value
	build = func(dim int) starlark.Value {
		elems := make([]starlark.Value, shape[dim])
		for i := range elems {
			if dim == len(shape)-1 {
				elems[i] = element(t, idx)
				idx++
			} else {
				elems[i] = build(dim + 1)
			}
		}
		return starlark.NewList(elems)
	}
	return build(0)
}

func element(t *tensor.Tensor, i int) starlark.Value {
	switch dt := t.DType(); {
	case dt == tensor.String:
		return starlark.String(t.Strings()[i])
	case dt == tensor.Bool:
		return starlark.Bool(t.AsBool()[i])
	case dt.IsFloat():
		return starlark.Float(t.Float64At(i))
	case dt == tensor.Int64:
		return starlark.MakeInt64(t.AsInt64()[i])
	case dt == tensor.Uint64:
		vals, _ := tensor.Values[uint64](t)
		return starlark.MakeUint64(vals[i])
	default:
		return starlark.MakeInt64(int64(t.Float64At(i)))
	}
}

// FromStarlark converts a scalar or (nested) list value into a tensor of
// dtype. An Invalid dtype is inferred from the first element.
func FromStarlark(v starlark.Value, dtype tensor.DataType) (*tensor.Tensor, error) {
	shape, leaves, err := flatten(v)
	if err != nil {
		return nil, err
	}
	if dtype == tensor.Invalid {
		dtype = inferDType(leaves)
	}

	switch dtype {
	case tensor.String:
		strs := make([]string, len(leaves))
		for i, l := range leaves {
			switch x := l.(type) {
			case starlark.String:
				strs[i] = string(x)
			case starlark.Bytes:
				strs[i] = string(x)
			default:
				return nil, fmt.Errorf("element %d: expected string, got %s", i, l.Type())
			}
		}
		return tensor.FromStrings(strs, shape...)
	case tensor.Bool:
		bools := make([]bool, len(leaves))
		for i, l := range leaves {
			b, ok := l.(starlark.Bool)
			if !ok {
				return nil, fmt.Errorf("element %d: expected bool, got %s", i, l.Type())
			}
			bools[i] = bool(b)
		}
		return tensor.FromSlice(bools, shape...)
	case tensor.Float32:
		return build[float32](leaves, shape, true)
	case tensor.Float64:
		return build[float64](leaves, shape, true)
	case tensor.Int8:
		return build[int8](leaves, shape, false)
	case tensor.Int16:
		return build[int16](leaves, shape, false)
	case tensor.Int32:
		return build[int32](leaves, shape, false)
	case tensor.Int64:
		return build[int64](leaves, shape, false)
	case tensor.Uint8:
		return build[uint8](leaves, shape, false)
	case tensor.Uint16:
		return build[uint16](leaves, shape, false)
	case tensor.Uint32:
		return build[uint32](leaves, shape, false)
	case tensor.Uint64:
		return build[uint64](leaves, shape, false)
	default:
		return nil, fmt.Errorf("unsupported data type %s", dtype)
	}
}

func build[T number](leaves []starlark.Value, shape []int, float bool) (*tensor.Tensor, error) {
	vals := make([]T, len(leaves))
	for i, l := range leaves {
		var ok bool
		switch x := l.(type) {
		case starlark.Int:
			if n, isInt := x.Int64(); isInt {
				vals[i], ok = fromInt64[T](n, float)
			} else if u, isUint := x.Uint64(); isUint {
				vals[i], ok = fromUint64[T](u, float)
			}
		case starlark.Float:
			vals[i], ok = fromFloat[T](float64(x), float)
			if !ok && !float && float64(x) != math.Trunc(float64(x)) {
				return nil, fmt.Errorf("element %d: %v is not an integer", i, x)
			}
		default:
			return nil, fmt.Errorf("element %d: expected number, got %s", i, l.Type())
		}
		if !ok {
			return nil, fmt.Errorf("element %d: %s is out of range for %s", i, l, tensor.DataTypeOf[T]())
		}
	}
	return tensor.FromSlice(vals, shape...)
}

func fromInt64[T number](n int64, float bool) (T, bool) {
	v := T(n)
	return v, float || (int64(v) == n && (n < 0) == (v < 0))
}

func fromUint64[T number](u uint64, float bool) (T, bool) {
	v := T(u)
	return v, float || (uint64(v) == u && v >= 0)
}

// fromFloat rejects NaN, infinities, fractions for integer targets and
// finite values that overflow a float32.
func fromFloat[T number](f float64, float bool) (T, bool) {
	if float {
		v := T(f)
		return v, math.IsInf(f, 0) || !math.IsInf(float64(v), 0)
	}
	switch {
	case math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f):
		return 0, false
	case f >= -(1<<63) && f < 1<<63:
		return fromInt64[T](int64(f), false)
	case f >= 0 && f < 1<<64:
		return fromUint64[T](uint64(f), false)
	default:
		return 0, false
	}
}

// flatten returns the shape and row-major leaves of a nested sequence.
func flatten(v starlark.Value) ([]int, []starlark.Value, error) {
	switch v.(type) {
	case starlark.String, starlark.Bytes:
		return []int{}, []starlark.Value{v}, nil
	}
	seq, ok := v.(starlark.Indexable)
	if !ok {
		return []int{}, []starlark.Value{v}, nil
	}

	n := seq.Len()
	if n == 0 {
		return []int{0}, nil, nil
	}
	var inner []int
	var leaves []starlark.Value
	for i := 0; i < n; i++ {
		s, l, err := flatten(seq.Index(i))
		if err != nil {
			return nil, nil, err
		}
		if i == 0 {
			inner = s
		} else if !tensor.Shape(s).Equal(inner) {
			return nil, nil, fmt.Errorf("ragged sequence: element %d has shape %v, expected %v", i, s, inner)
		}
		leaves = append(leaves, l...)
	}
	return append([]int{n}, inner...), leaves, nil
}

func inferDType(leaves []starlark.Value) tensor.DataType {
	if len(leaves) == 0 {
		return tensor.Float32
	}
	switch leaves[0].(type) {
	case starlark.String, starlark.Bytes:
		return tensor.String
	case starlark.Bool:
		return tensor.Bool
	case starlark.Int:
		return tensor.Int64
	default:
		return tensor.Float64
	}
}
