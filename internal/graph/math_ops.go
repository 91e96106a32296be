package graph

import (
	"fmt"

	"github.com/born-ml/parcel/internal/parallel"
	"github.com/born-ml/parcel/internal/tensor"
)

var chunking = parallel.DefaultConfig()

type number interface {
	~float32 | ~float64 |
		~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64
}

// registerMathOps adds element-wise arithmetic operators to the registry.
func (r *Registry) registerMathOps() {
	r.Register(OpAdd, binaryHandler(OpAdd))
	r.Register(OpSub, binaryHandler(OpSub))
	r.Register(OpMul, binaryHandler(OpMul))
	r.Register(OpDiv, binaryHandler(OpDiv))
}

func binaryHandler(op string) OpHandler {
	return func(_ *Context, node *Node, inputs []*tensor.Tensor) ([]*tensor.Tensor, error) {
		if len(inputs) != 2 {
			return nil, fmt.Errorf("%s requires 2 inputs, got %d", op, len(inputs))
		}
		out, err := Binary(op, inputs[0], inputs[1])
		if err != nil {
			return nil, err
		}
		return []*tensor.Tensor{out}, nil
	}
}

// Binary applies an element-wise arithmetic operator with NumPy-style
// broadcasting. Both operands must have the same numeric dtype.
func Binary(op string, a, b *tensor.Tensor) (*tensor.Tensor, error) {
	if a.DType() != b.DType() {
		return nil, fmt.Errorf("%w: %s of %s and %s", ErrTypeMismatch, op, a.DType(), b.DType())
	}
	if !a.DType().IsNumeric() {
		return nil, fmt.Errorf("%w: %s is not defined for %s", ErrTypeMismatch, op, a.DType())
	}

	switch a.DType() {
	case tensor.Float32:
		return apply(a, b, arith[float32](op, true))
	case tensor.Float64:
		return apply(a, b, arith[float64](op, true))
	case tensor.Int8:
		return apply(a, b, arith[int8](op, false))
	case tensor.Int16:
		return apply(a, b, arith[int16](op, false))
	case tensor.Int32:
		return apply(a, b, arith[int32](op, false))
	case tensor.Int64:
		return apply(a, b, arith[int64](op, false))
	case tensor.Uint8:
		return apply(a, b, arith[uint8](op, false))
	case tensor.Uint16:
		return apply(a, b, arith[uint16](op, false))
	case tensor.Uint32:
		return apply(a, b, arith[uint32](op, false))
	case tensor.Uint64:
		return apply(a, b, arith[uint64](op, false))
	default:
		return nil, fmt.Errorf("%w: %s", ErrTypeMismatch, a.DType())
	}
}

func arith[T number](op string, float bool) func(x, y T) (T, error) {
	switch op {
	case OpAdd:
		return func(x, y T) (T, error) { return x + y, nil }
	case OpSub:
		return func(x, y T) (T, error) { return x - y, nil }
	case OpMul:
		return func(x, y T) (T, error) { return x * y, nil }
	case OpDiv:
		return func(x, y T) (T, error) {
			if y == 0 && !float {
				return 0, ErrDivisionByZero
			}
			return x / y, nil
		}
	default:
		return func(T, T) (T, error) { return 0, fmt.Errorf("%w: %s", ErrUnsupportedOp, op) }
	}
}

func apply[T number](a, b *tensor.Tensor, fn func(x, y T) (T, error)) (*tensor.Tensor, error) {
	shape, _, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		return nil, err
	}
	out, err := tensor.New(a.DType(), shape)
	if err != nil {
		return nil, err
	}

	av, err := tensor.Values[T](a)
	if err != nil {
		return nil, err
	}
	bv, err := tensor.Values[T](b)
	if err != nil {
		return nil, err
	}
	ov, err := tensor.Values[T](out)
	if err != nil {
		return nil, err
	}

	ai := tensor.NewBroadcaster(shape, a.Shape())
	bi := tensor.NewBroadcaster(shape, b.Shape())
	err = parallel.For(len(ov), chunking, func(lo, hi int) error {
		var err error
		for i := lo; i < hi; i++ {
			x := av[ai.Index(i)]
			y := bv[bi.Index(i)]
			if ov[i], err = fn(x, y); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
