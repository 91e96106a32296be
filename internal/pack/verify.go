package pack

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/born-ml/parcel/internal/tensor"
)

// Verify loads the package at path, runs testInput through it once and
// compares the declared outputs named in expected. Float outputs are
// compared within WithTolerance, everything else exactly.
//
// On any failure after the package was found, the whole tree at path is
// removed and a VerificationError wrapping the cause is returned. A path
// that holds no package is reported as NotFoundError and left alone.
func Verify(ctx context.Context, path string, testInput, expected map[string]*tensor.Tensor, opts ...Option) error {
	o := newOptions(opts)
	err := verifyDir(ctx, path, testInput, expected, o)
	if err == nil {
		o.logger.Info("package verified", "path", path)
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return err
	}

	if rmErr := os.RemoveAll(path); rmErr != nil {
		err = errors.Join(err, fmt.Errorf("failed to remove package: %w", rmErr))
	}
	o.logger.Warn("package verification failed, package removed", "path", path, "error", err)
	return &VerificationError{Path: path, Err: err}
}

// verifyDir runs the verification inference against the package at dir
// without removing anything.
func verifyDir(ctx context.Context, dir string, testInput, expected map[string]*tensor.Tensor, o options) error {
	l := &Loader{opts: o}
	m, err := l.Load(ctx, dir)
	if err != nil {
		return err
	}
	defer func() { _ = m.Close() }()

	out, err := m.Infer(ctx, testInput)
	if err != nil {
		return err
	}
	return compareOutputs(out, expected, o.tolerance)
}

// compareOutputs checks every expected tensor against the produced one.
func compareOutputs(got, expected map[string]*tensor.Tensor, tol float64) error {
	names := make([]string, 0, len(expected))
	for name := range expected {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		actual, ok := got[name]
		if !ok {
			return fmt.Errorf("expected output %q is not a declared output", name)
		}
		if err := tensor.Compare(actual, expected[name], tol); err != nil {
			return fmt.Errorf("output %q does not match: %w", name, err)
		}
	}
	return nil
}
