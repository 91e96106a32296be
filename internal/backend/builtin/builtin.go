// Package builtin assembles the registry of backends shipped with parcel.
package builtin

import (
	"github.com/born-ml/parcel/internal/backend"
	"github.com/born-ml/parcel/internal/backend/graphbackend"
	"github.com/born-ml/parcel/internal/backend/starlarkbackend"
)

// Registry returns a new registry holding every built-in backend.
func Registry() *backend.Registry {
	return backend.NewRegistry(
		graphbackend.Registration(),
		starlarkbackend.Registration(),
	)
}
