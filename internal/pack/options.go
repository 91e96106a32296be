package pack

import (
	"log/slog"

	"github.com/born-ml/parcel/internal/backend"
	"github.com/born-ml/parcel/internal/backend/builtin"
)

// latestVersion selects the highest numbered version directory.
const latestVersion = -1

// Option configures Create, Verify and the Loader.
type Option func(*options)

type options struct {
	logger           *slog.Logger
	registry         *backend.Registry
	version          int
	allowExtraInputs bool
	tolerance        float64
	transform        string
	transformImpl    backend.Transform
	requireTransform bool
}

func newOptions(opts []Option) options {
	o := options{version: latestVersion}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = backend.DiscardLogger(o.logger)
	if o.registry == nil {
		o.registry = builtin.Registry()
	}
	return o
}

// WithLogger sets the logger. Backends receive the same logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRegistry sets the backend registry. The default holds the built-in
// graph and starlark backends.
func WithRegistry(r *backend.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithVersion makes the loader open version directory n instead of the
// highest one.
func WithVersion(n int) Option {
	return func(o *options) { o.version = n }
}

// WithAllowExtraInputs makes Infer drop undeclared input names instead of
// failing with UnexpectedInputError.
func WithAllowExtraInputs(allow bool) Option {
	return func(o *options) { o.allowExtraInputs = allow }
}

// WithTolerance sets the absolute tolerance used when verification
// compares float outputs. Zero (the default) requires exact equality.
func WithTolerance(tol float64) Option {
	return func(o *options) { o.tolerance = tol }
}

// WithTransform requests the backend transform called name on the
// serialized artifact during Create.
func WithTransform(name string) Option {
	return func(o *options) { o.transform = name }
}

// WithTransformImpl applies t to the serialized artifact during Create,
// bypassing the backend's own transforms.
func WithTransformImpl(t backend.Transform) Option {
	return func(o *options) { o.transformImpl = t }
}

// WithRequireTransform makes a failed or unavailable transform abort
// Create. By default the untransformed artifact is kept and a warning is
// logged.
func WithRequireTransform(require bool) Option {
	return func(o *options) { o.requireTransform = require }
}
