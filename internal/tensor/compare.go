package tensor

import (
	"bytes"
	"fmt"
	"math"
)

// Equal reports whether a and b have the same dtype, shape and elements.
func Equal(a, b *Tensor) bool {
	return Compare(a, b, 0) == nil
}

// AllClose reports whether a and b match, allowing floating point elements
// to differ by at most tol.
func AllClose(a, b *Tensor, tol float64) bool {
	return Compare(a, b, tol) == nil
}

// Compare checks a against b and describes the first difference found.
// tol applies only to float tensors; a zero tol requires exact equality.
// NaN matches NaN in both modes.
func Compare(a, b *Tensor, tol float64) error {
	if a == nil || b == nil {
		if a == b {
			return nil
		}
		return fmt.Errorf("one of the tensors is nil")
	}
	if a.dtype != b.dtype {
		return fmt.Errorf("dtype mismatch: %s vs %s", a.dtype, b.dtype)
	}
	if !a.shape.Equal(b.shape) {
		return fmt.Errorf("shape mismatch: %v vs %v", a.shape, b.shape)
	}

	switch {
	case a.dtype == String:
		for i := range a.strs {
			if a.strs[i] != b.strs[i] {
				return fmt.Errorf("element %d: %q vs %q", i, a.strs[i], b.strs[i])
			}
		}
	case a.dtype.IsFloat() && tol > 0:
		for i := 0; i < a.NumElements(); i++ {
			x, y := a.Float64At(i), b.Float64At(i)
			if math.Abs(x-y) > tol || math.IsNaN(x) != math.IsNaN(y) {
				return fmt.Errorf("element %d: %v vs %v (tolerance %v)", i, x, y, tol)
			}
		}
	case a.dtype.IsFloat():
		for i := 0; i < a.NumElements(); i++ {
			x, y := a.Float64At(i), b.Float64At(i)
			if x != y && !(math.IsNaN(x) && math.IsNaN(y)) {
				return fmt.Errorf("element %d: %v vs %v", i, x, y)
			}
		}
	default:
		if bytes.Equal(a.data, b.data) {
			return nil
		}
		size := a.dtype.Size()
		for i := 0; i < a.NumElements(); i++ {
			lo, hi := i*size, (i+1)*size
			if !bytes.Equal(a.data[lo:hi], b.data[lo:hi]) {
				return fmt.Errorf("element %d: %v vs %v", i, a.Elements()[i], b.Elements()[i])
			}
		}
		return fmt.Errorf("data differs")
	}
	return nil
}
