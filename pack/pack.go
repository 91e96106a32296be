// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package pack creates, verifies and loads parcel model packages.
//
// A package is a self-describing directory: a top-level config with the
// model name, platform and tensor specs, plus numbered version directories
// holding the serialized artifact and the backend config that maps declared
// tensor names to engine identifiers. Callers only ever see declared names.
//
// Example usage:
//
//	import (
//	    "github.com/born-ml/parcel/backend"
//	    "github.com/born-ml/parcel/pack"
//	    "github.com/born-ml/parcel/tensor"
//	)
//
//	// Package a Starlark script and verify it against a known output.
//	_, err := pack.Create(ctx, "models/greeter", pack.CreateParams{
//	    ModelName:  "greeter",
//	    Platform:   backend.StarlarkPlatform,
//	    Source:     backend.Source{Path: "greeter.star"},
//	    InputSpec:  []pack.TensorSpec{{Name: "names", DType: tensor.String, Shape: pack.Dims(-1)}},
//	    OutputSpec: []pack.TensorSpec{{Name: "greetings", DType: tensor.String, Shape: pack.Dims(-1)}},
//	    TestInput:      map[string]*tensor.Tensor{"names": names},
//	    ExpectedOutput: map[string]*tensor.Tensor{"greetings": want},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Load the latest version and run it.
//	model, err := pack.Load(ctx, "models/greeter")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer model.Close()
//
//	out, err := model.Infer(ctx, map[string]*tensor.Tensor{"names": names})
package pack

import (
	"github.com/born-ml/parcel/internal/pack"
	"github.com/born-ml/parcel/internal/spec"
)

// Tensor specs.
type (
	// TensorSpec declares a named tensor's dtype and shape.
	TensorSpec = spec.TensorSpec

	// Shape is a declared shape. AnyDim matches any extent.
	Shape = spec.Shape

	// Dim is one declared dimension.
	Dim = spec.Dim
)

// AnyDim matches any extent along a dimension.
const AnyDim = spec.AnyDim

// Dims builds a Shape from ints; -1 means AnyDim.
var Dims = spec.Dims

// Package layout.
type (
	CreateParams  = pack.CreateParams
	Package       = pack.Package
	PackageConfig = pack.PackageConfig
	BackendConfig = pack.BackendConfig
	InitOps       = pack.InitOps
)

// Loading and inference.
type (
	Loader = pack.Loader
	Model  = pack.Model
	Option = pack.Option
)

// Layout constants.
const (
	ConfigFileName = pack.ConfigFileName
	DataDirName    = pack.DataDirName
	FormatVersion  = pack.FormatVersion
)

var (
	// Create writes a new package at path. Nothing is left at path when it
	// fails.
	Create = pack.Create

	// Load opens the latest version of the package at path.
	Load = pack.Load

	// NewLoader returns a loader bound to a backend registry. A nil registry
	// means the built-in backends.
	NewLoader = pack.NewLoader

	// Verify runs testInput through the package and compares the result
	// with expected. A failing package is deleted.
	Verify = pack.Verify

	// ReadConfig reads and validates a package's top-level config.
	ReadConfig = pack.ReadConfig

	// Versions lists a package's version numbers in ascending order.
	Versions = pack.Versions
)

// Options.
var (
	WithLogger           = pack.WithLogger
	WithRegistry         = pack.WithRegistry
	WithVersion          = pack.WithVersion
	WithAllowExtraInputs = pack.WithAllowExtraInputs
	WithTolerance        = pack.WithTolerance
	WithTransform        = pack.WithTransform
	WithTransformImpl    = pack.WithTransformImpl
	WithRequireTransform = pack.WithRequireTransform
)

// Error types.
type (
	ArgumentError        = pack.ArgumentError
	PathExistsError      = pack.PathExistsError
	MissingInputError    = pack.MissingInputError
	UnexpectedInputError = pack.UnexpectedInputError
	CorruptPackageError  = pack.CorruptPackageError
	NotFoundError        = pack.NotFoundError
	VerificationError    = pack.VerificationError
	SpecError            = spec.Error
	SpecMismatchError    = spec.MismatchError
)

// Sentinel errors for use with errors.Is.
var (
	ErrArgument            = pack.ErrArgument
	ErrPathExists          = pack.ErrPathExists
	ErrMissingInput        = pack.ErrMissingInput
	ErrUnexpectedInput     = pack.ErrUnexpectedInput
	ErrCorruptPackage      = pack.ErrCorruptPackage
	ErrNotFound            = pack.ErrNotFound
	ErrVerification        = pack.ErrVerification
	ErrModelClosed         = pack.ErrModelClosed
	ErrSpec                = pack.ErrSpec
	ErrSpecMismatch        = pack.ErrSpecMismatch
	ErrUnsupportedPlatform = pack.ErrUnsupportedPlatform
)
