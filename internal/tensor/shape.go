package tensor

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Shape holds concrete tensor dimensions. An empty shape is a scalar.
type Shape []int

// NumElements returns the product of the dimensions.
func (s Shape) NumElements() int {
	n := 1
	for _, d := range s {
		n *= d
	}
	return n
}

// Validate rejects negative dimensions. Zero is allowed.
func (s Shape) Validate() error {
	if i := slices.IndexFunc(s, func(d int) bool { return d < 0 }); i >= 0 {
		return fmt.Errorf("dimension %d is %d, must be >= 0", i, s[i])
	}
	return nil
}

// Equal reports whether both shapes have the same dimensions.
func (s Shape) Equal(other Shape) bool {
	return slices.Equal(s, other)
}

// Clone returns a copy. A nil shape clones to an empty, non-nil one.
func (s Shape) Clone() Shape {
	return append(Shape{}, s...)
}

// String formats the shape as a tuple: "()", "(3,)", "(2, 3)".
func (s Shape) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for i, d := range s {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Itoa(d))
	}
	if len(s) == 1 {
		b.WriteByte(',')
	}
	b.WriteByte(')')
	return b.String()
}

// strides returns row-major element strides.
func (s Shape) strides() []int {
	st := make([]int, len(s))
	acc := 1
	for i := len(s) - 1; i >= 0; i-- {
		st[i] = acc
		acc *= s[i]
	}
	return st
}

// BroadcastShapes combines two shapes under NumPy rules: dimensions are
// aligned from the right, missing ones count as 1, and a 1 stretches to
// match the other side. The flag reports whether either operand has to be
// stretched.
func BroadcastShapes(a, b Shape) (Shape, bool, error) {
	n := max(len(a), len(b))
	out := make(Shape, n)
	stretched := len(a) != len(b)

	dim := func(s Shape, i int) int {
		if j := len(s) - n + i; j >= 0 {
			return s[j]
		}
		return 1
	}
	for i := range out {
		da, db := dim(a, i), dim(b, i)
		switch {
		case da == db:
			out[i] = da
		case da == 1:
			out[i], stretched = db, true
		case db == 1:
			out[i], stretched = da, true
		default:
			return nil, false, fmt.Errorf("cannot broadcast %v with %v: axis %d is %d vs %d", a, b, i, da, db)
		}
	}
	return out, stretched, nil
}

// Broadcaster maps flat indices of a broadcast result back into one of its
// operands.
type Broadcaster struct {
	result []int // result strides
	src    []int // operand strides aligned to the result, 0 where stretched
}

// NewBroadcaster prepares index mapping from result into src. src must be
// broadcast-compatible with result.
func NewBroadcaster(result, src Shape) Broadcaster {
	rs := result.strides()
	ss := src.strides()
	aligned := make([]int, len(result))
	off := len(result) - len(src)
	for d := range aligned {
		if sd := d - off; sd >= 0 && src[sd] != 1 {
			aligned[d] = ss[sd]
		}
	}
	return Broadcaster{result: rs, src: aligned}
}

// Index returns the operand index feeding result element flat.
func (b Broadcaster) Index(flat int) int {
	idx := 0
	for d, stride := range b.result {
		idx += flat / stride * b.src[d]
		flat %= stride
	}
	return idx
}

// BroadcastIndex is a one-off NewBroadcaster(result, src).Index(flat).
func BroadcastIndex(flat int, result, src Shape) int {
	return NewBroadcaster(result, src).Index(flat)
}
