// Package pack creates, verifies, loads and runs model packages.
//
// A package is a directory with a format-versioned top-level config and
// one or more numbered version directories, each holding a backend
// artifact under data/ and a backend config:
//
//	<package>/
//	  config          # model name, platform, input and output specs
//	  0/
//	    data/<artifact>
//	    config        # node name mapping, init ops, backend options
//
// Create assembles the tree in a sibling staging directory, optionally
// runs one verified inference against it and only then renames it into
// place, so a failed Create never leaves anything at the target path.
//
// Example:
//
//	pkg, err := pack.Create(ctx, "models/adder", pack.CreateParams{
//	    ModelName:  "adder",
//	    Platform:   "graph",
//	    InputSpec:  inputs,
//	    OutputSpec: outputs,
//	    Source:     backend.Source{Model: g},
//	    TestInput:  map[string]*tensor.Tensor{"x": x, "y": y},
//	})
//
//	model, err := pack.Load(ctx, "models/adder")
//	defer model.Close()
//	out, err := model.Infer(ctx, map[string]*tensor.Tensor{"x": x, "y": y})
package pack
