package backend

import (
	"fmt"
	"log/slog"
	"sort"
)

// Registration binds a platform identifier to a backend factory.
type Registration struct {
	Platform string
	Factory  Factory
}

// Registry maps platform identifiers to backend factories. It is built once
// and never mutated, so concurrent lookups need no locking.
type Registry struct {
	factories map[string]Factory
	platforms []string
}

// NewRegistry creates a registry from registrations. An empty platform, a
// nil factory or a duplicate platform is a programming error and panics.
func NewRegistry(regs ...Registration) *Registry {
	r := &Registry{factories: make(map[string]Factory, len(regs))}
	for _, reg := range regs {
		if reg.Platform == "" || reg.Factory == nil {
			panic("backend: registration needs a platform and a factory")
		}
		if _, dup := r.factories[reg.Platform]; dup {
			panic(fmt.Sprintf("backend: platform %q registered twice", reg.Platform))
		}
		r.factories[reg.Platform] = reg.Factory
		r.platforms = append(r.platforms, reg.Platform)
	}
	sort.Strings(r.platforms)
	return r
}

// Resolve returns the factory for platform.
func (r *Registry) Resolve(platform string) (Factory, error) {
	f, ok := r.factories[platform]
	if !ok {
		return nil, &UnsupportedPlatformError{Platform: platform, Available: r.Platforms()}
	}
	return f, nil
}

// New resolves platform and creates a backend with the given logger.
func (r *Registry) New(platform string, logger *slog.Logger) (Backend, error) {
	f, err := r.Resolve(platform)
	if err != nil {
		return nil, err
	}
	return f(DiscardLogger(logger)), nil
}

// Platforms returns the registered platforms, sorted.
func (r *Registry) Platforms() []string {
	return append([]string(nil), r.platforms...)
}

// Has reports whether platform is registered.
func (r *Registry) Has(platform string) bool {
	_, ok := r.factories[platform]
	return ok
}
