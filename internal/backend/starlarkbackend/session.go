package starlarkbackend

import (
	"context"
	"fmt"
	"log/slog"

	"go.starlark.net/starlark"

	"github.com/born-ml/parcel/internal/backend"
	"github.com/born-ml/parcel/internal/tensor"
)

type session struct {
	model   *model
	state   *starlark.Dict
	outputs map[string]tensor.DataType
	logger  *slog.Logger
	closed  bool
}

// Run implements backend.Session.
func (s *session) Run(ctx context.Context, feeds map[string]*tensor.Tensor, fetches []string) (map[string]*tensor.Tensor, error) {
	if s.closed {
		return nil, backend.ErrSessionClosed
	}

	inputs := starlark.NewDict(len(feeds))
	for id, t := range feeds {
		if !s.model.inputs[id] {
			return nil, fmt.Errorf("%w: %q is not an input", backend.ErrUnresolvedIdentifier, id)
		}
		if err := inputs.SetKey(starlark.String(id), ToStarlark(t)); err != nil {
			return nil, err
		}
	}
	inputs.Freeze()

	args := starlark.Tuple{inputs}
	if s.model.infer.NumParams() == 2 {
		args = append(args, s.state)
	}
	result, err := s.call(ctx, s.model.infer, args)
	if err != nil {
		return nil, err
	}

	dict, ok := result.(*starlark.Dict)
	if !ok {
		return nil, fmt.Errorf("%s() returned %s, expected dict", entryPoint, result.Type())
	}

	out := make(map[string]*tensor.Tensor, len(fetches))
	for _, id := range fetches {
		if !s.model.outputs[id] {
			return nil, fmt.Errorf("%w: %q is not an output", backend.ErrUnresolvedIdentifier, id)
		}
		v, found, err := dict.Get(starlark.String(id))
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		t, err := FromStarlark(v, s.outputs[id])
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", id, err)
		}
		out[id] = t
	}
	return out, nil
}

// Close implements backend.Session.
func (s *session) Close() error {
	s.closed = true
	return nil
}

// call runs fn on a fresh thread that is cancelled together with ctx.
func (s *session) call(ctx context.Context, fn *starlark.Function, args starlark.Tuple) (starlark.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	thread := &starlark.Thread{
		Name: fn.Name(),
		Print: func(_ *starlark.Thread, msg string) {
			s.logger.Debug("starlark", "fn", fn.Name(), "msg", msg)
		},
	}
	stop := context.AfterFunc(ctx, func() {
		thread.Cancel(context.Cause(ctx).Error())
	})
	defer stop()

	v, err := starlark.Call(thread, fn, args, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn.Name(), err)
	}
	return v, nil
}
