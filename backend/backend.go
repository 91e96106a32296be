// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package backend exposes the execution-engine contract used by parcel
// packages.
//
// Every package names a platform in its config. A Registry maps platform
// strings to backend factories; the writer asks the backend to serialize the
// model artifact and the loader asks it to turn the data directory into a
// running Session.
//
// Two platforms ship with parcel:
//   - "graph": frozen dataflow graphs (model.pgraph)
//   - "starlark": Starlark inference scripts (model.star)
//
// Custom engines implement Backend and are registered alongside them:
//
//	reg := backend.NewRegistry(
//	    backend.GraphRegistration(),
//	    backend.Registration{Platform: "echo", Factory: newEcho},
//	)
//	model, err := pack.Load(ctx, "models/addition", pack.WithRegistry(reg))
package backend

import (
	"github.com/born-ml/parcel/internal/backend"
	"github.com/born-ml/parcel/internal/backend/builtin"
	"github.com/born-ml/parcel/internal/backend/graphbackend"
	"github.com/born-ml/parcel/internal/backend/starlarkbackend"
)

// Contract types.
type (
	// Backend serializes and loads models for one platform.
	Backend = backend.Backend

	// Session runs a loaded model.
	Session = backend.Session

	// Source is the model handed to Backend.Serialize.
	Source = backend.Source

	// LoadRequest carries the data directory, mapping and init ops.
	LoadRequest = backend.LoadRequest

	// Factory creates a backend bound to a logger.
	Factory = backend.Factory

	// Transform rewrites a serialized artifact.
	Transform = backend.Transform

	// TransformProvider is implemented by backends with named transforms.
	TransformProvider = backend.TransformProvider
)

// Registry types.
type (
	Registry     = backend.Registry
	Registration = backend.Registration
)

// Error types.
type (
	UnsupportedPlatformError = backend.UnsupportedPlatformError
	IdentifierError          = backend.IdentifierError
)

// Sentinel errors.
var (
	ErrUnsupportedPlatform  = backend.ErrUnsupportedPlatform
	ErrConflictingSource    = backend.ErrConflictingSource
	ErrMissingSource        = backend.ErrMissingSource
	ErrUnsupportedSource    = backend.ErrUnsupportedSource
	ErrInvalidArtifact      = backend.ErrInvalidArtifact
	ErrUnresolvedIdentifier = backend.ErrUnresolvedIdentifier
	ErrTransformUnavailable = backend.ErrTransformUnavailable
	ErrSessionClosed        = backend.ErrSessionClosed
)

// Built-in platforms.
const (
	GraphPlatform    = graphbackend.Platform
	StarlarkPlatform = starlarkbackend.Platform

	// FoldTransform is the constant-folding transform of the graph platform.
	FoldTransform = graphbackend.FoldTransformName
)

var (
	// NewRegistry builds a registry. It panics on duplicate or empty
	// platforms.
	NewRegistry = backend.NewRegistry

	// LookupTransform finds a named transform on b.
	LookupTransform = backend.LookupTransform

	// DefaultRegistry returns a fresh registry with every built-in backend.
	DefaultRegistry = builtin.Registry

	// GraphRegistration registers the graph platform.
	GraphRegistration = graphbackend.Registration

	// StarlarkRegistration registers the starlark platform.
	StarlarkRegistration = starlarkbackend.Registration
)
