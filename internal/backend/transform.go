package backend

import (
	"context"
	"fmt"
)

// Transform is an optional rewrite of a serialized artifact, applied by the
// package writer before the artifact is stored. Implementations return an
// error wrapping ErrTransformUnavailable when they cannot process the
// artifact.
type Transform interface {
	Name() string
	Apply(ctx context.Context, artifact []byte) ([]byte, error)
}

// TransformProvider is implemented by backends that ship named transforms.
type TransformProvider interface {
	Transform(name string) (Transform, error)
}

// LookupTransform returns the named transform of b. Backends without
// transforms report ErrTransformUnavailable.
func LookupTransform(b Backend, name string) (Transform, error) {
	p, ok := b.(TransformProvider)
	if !ok {
		return nil, TransformUnavailable(b.Platform(), name)
	}
	return p.Transform(name)
}

// TransformUnavailable reports that platform has no transform called name.
func TransformUnavailable(platform, name string) error {
	return fmt.Errorf("%w: platform %s has no transform %q", ErrTransformUnavailable, platform, name)
}
