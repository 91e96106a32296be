package pack_test

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/born-ml/parcel/internal/backend"
	"github.com/born-ml/parcel/internal/graph"
	"github.com/born-ml/parcel/internal/graph/graphtest"
	"github.com/born-ml/parcel/internal/pack"
	"github.com/born-ml/parcel/internal/serialization"
	"github.com/born-ml/parcel/internal/spec"
	"github.com/born-ml/parcel/internal/tensor"
	"github.com/born-ml/parcel/internal/testutil"
)

func f32(values ...float32) *tensor.Tensor { return graphtest.Float32(values...) }

func params(m graphtest.Model, name string) pack.CreateParams {
	return pack.CreateParams{
		ModelName:       name,
		Platform:        "graph",
		NodeNameMapping: m.Mapping,
		InputSpec:       m.Inputs,
		OutputSpec:      m.Outputs,
		Source:          backend.Source{Model: m.Graph},
		InitOpNames:     m.InitOps,
	}
}

func additionParams() pack.CreateParams {
	p := params(graphtest.Addition(), "addition_model")
	p.TestInput = map[string]*tensor.Tensor{"x": f32(2), "y": f32(0)}
	p.ExpectedOutput = map[string]*tensor.Tensor{"out": f32(2)}
	return p
}

func create(t *testing.T, p pack.CreateParams, opts ...pack.Option) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pkg")
	opts = append([]pack.Option{pack.WithLogger(testutil.NewTestLogger(t))}, opts...)
	_, err := pack.Create(context.Background(), path, p, opts...)
	require.NoError(t, err)
	return path
}

func load(t *testing.T, path string, opts ...pack.Option) *pack.Model {
	t.Helper()
	m, err := pack.Load(context.Background(), path, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func editJSON(t *testing.T, path string, edit func(map[string]any)) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	edit(doc)
	data, err = json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

// assertOnlyEntries checks that dir holds exactly the given names, so no
// staging directories are left behind.
func assertOnlyEntries(t *testing.T, dir string, names ...string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	got := make([]string, 0, len(entries))
	for _, e := range entries {
		got = append(got, e.Name())
	}
	assert.ElementsMatch(t, names, got)
}

func TestRoundTripAddition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkg")
	pkg, err := pack.Create(context.Background(), path, additionParams())
	require.NoError(t, err)
	assert.True(t, pkg.Verified)
	assert.Equal(t, 0, pkg.Version)

	assert.FileExists(t, filepath.Join(path, pack.ConfigFileName))
	assert.FileExists(t, filepath.Join(path, "0", pack.ConfigFileName))
	assert.FileExists(t, filepath.Join(path, "0", pack.DataDirName, "model.pgraph"))
	assertOnlyEntries(t, filepath.Dir(path), "pkg")

	m := load(t, path)
	assert.Equal(t, "addition_model", m.Config().ModelName)
	assert.Equal(t, pack.FormatVersion, m.Config().FormatVersion)

	for _, tc := range []struct {
		x, y, want []float32
	}{
		{[]float32{2}, []float32{0}, []float32{2}},
		{[]float32{1, 2, 3}, []float32{4, 5, 6}, []float32{5, 7, 9}},
	} {
		out, err := m.Infer(context.Background(), map[string]*tensor.Tensor{"x": f32(tc.x...), "y": f32(tc.y...)})
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, tc.want, out["out"].AsFloat32())
	}
}

func TestConfigOnDisk(t *testing.T) {
	path := create(t, additionParams())

	data, err := os.ReadFile(filepath.Join(path, pack.ConfigFileName))
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "graph", doc["platform"])
	assert.EqualValues(t, 1, doc["format_version"])

	inputs := doc["input_spec"].([]any)
	x := inputs[0].(map[string]any)
	assert.Equal(t, "x", x["name"])
	assert.Equal(t, "float32", x["dtype"])
	assert.Equal(t, []any{nil}, x["shape"])

	cfg, err := pack.ReadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, spec.Dims(-1), cfg.InputSpec[0].Shape)
}

func TestCreateRejectsDuplicateSpecNames(t *testing.T) {
	p := additionParams()
	p.InputSpec = []spec.TensorSpec{
		{Name: "x", DType: tensor.Float32},
		{Name: "x", DType: tensor.Float32},
	}
	path := filepath.Join(t.TempDir(), "pkg")

	_, err := pack.Create(context.Background(), path, p)
	require.ErrorIs(t, err, pack.ErrSpec)
	var specErr *spec.Error
	require.ErrorAs(t, err, &specErr)
	assert.Equal(t, spec.InputList, specErr.List)
	assert.Equal(t, 1, specErr.Index)
	assert.NoDirExists(t, path)
}

func TestInferRejectsRankMismatch(t *testing.T) {
	m := load(t, create(t, additionParams()))

	matrix := tensor.Must(tensor.FromSlice([]float32{1, 2, 3, 4}, 2, 2))
	_, err := m.Infer(context.Background(), map[string]*tensor.Tensor{"x": matrix, "y": f32(1)})
	require.ErrorIs(t, err, pack.ErrSpecMismatch)

	var mismatch *spec.MismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, "x", mismatch.Name)
	assert.Equal(t, "(None,)", mismatch.Expected)
	assert.Equal(t, "(2, 2)", mismatch.Actual)

	_, err = m.Infer(context.Background(), map[string]*tensor.Tensor{
		"x": tensor.Must(tensor.FromSlice([]float64{1})),
		"y": f32(1),
	})
	require.ErrorIs(t, err, pack.ErrSpecMismatch)
}

func TestPathCollision(t *testing.T) {
	path := create(t, additionParams())
	before, err := os.ReadFile(filepath.Join(path, pack.ConfigFileName))
	require.NoError(t, err)

	p := params(graphtest.Scaled(), "other")
	_, err = pack.Create(context.Background(), path, p)
	require.ErrorIs(t, err, pack.ErrPathExists)
	var exists *pack.PathExistsError
	require.ErrorAs(t, err, &exists)
	assert.Equal(t, path, exists.Path)

	after, err := os.ReadFile(filepath.Join(path, pack.ConfigFileName))
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assertOnlyEntries(t, filepath.Dir(path), "pkg")

	// A plain file occupies the path just as well.
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
	_, err = pack.Create(context.Background(), file, additionParams())
	require.ErrorIs(t, err, pack.ErrPathExists)
}

func TestVerificationDeletesOnMismatch(t *testing.T) {
	p := additionParams()
	p.ExpectedOutput = map[string]*tensor.Tensor{"out": f32(3)}
	dir := t.TempDir()
	path := filepath.Join(dir, "pkg")

	logger, logs := testutil.NewCaptureLogger()
	_, err := pack.Create(context.Background(), path, p, pack.WithLogger(logger))
	require.ErrorIs(t, err, pack.ErrVerification)
	var verr *pack.VerificationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, path, verr.Path)

	assert.NoDirExists(t, path)
	assertOnlyEntries(t, dir)
	assert.Contains(t, logs.String(), "package verification failed")
}

func TestVerificationFailsOnInferenceError(t *testing.T) {
	p := additionParams()
	p.TestInput = map[string]*tensor.Tensor{"x": f32(1)}
	dir := t.TempDir()

	_, err := pack.Create(context.Background(), filepath.Join(dir, "pkg"), p)
	require.ErrorIs(t, err, pack.ErrVerification)
	require.ErrorIs(t, err, pack.ErrMissingInput)
	assertOnlyEntries(t, dir)
}

func TestVerificationTolerance(t *testing.T) {
	p := additionParams()
	p.ExpectedOutput = map[string]*tensor.Tensor{"out": f32(2.001)}

	_, err := pack.Create(context.Background(), filepath.Join(t.TempDir(), "exact"), p)
	require.ErrorIs(t, err, pack.ErrVerification)

	_, err = pack.Create(context.Background(), filepath.Join(t.TempDir(), "close"), p, pack.WithTolerance(0.01))
	require.NoError(t, err)
}

func TestStatefulAccumulator(t *testing.T) {
	m := graphtest.Accumulator()
	p := params(m, "accumulator_model")
	p.TestInput = map[string]*tensor.Tensor{"x": f32(5)}
	p.ExpectedOutput = map[string]*tensor.Tensor{"out": f32(5)}
	path := create(t, p)

	run := func(model *pack.Model, x float32) float32 {
		out, err := model.Infer(context.Background(), map[string]*tensor.Tensor{"x": f32(x)})
		require.NoError(t, err)
		return out["out"].AsFloat32()[0]
	}

	first := load(t, path)
	assert.Equal(t, float32(2), run(first, 2))
	assert.Equal(t, float32(6), run(first, 4))

	fresh := load(t, path)
	assert.Equal(t, float32(2), run(fresh, 2))
	assert.Equal(t, float32(9), run(first, 3))
}

func TestInitOpNamesAsScalar(t *testing.T) {
	m := graphtest.Accumulator()
	path := create(t, params(m, "accumulator_model"))

	editJSON(t, filepath.Join(path, "0", pack.ConfigFileName), func(doc map[string]any) {
		doc["init_op_names"] = m.InitOps[0]
	})

	model := load(t, path)
	assert.Equal(t, pack.InitOps{m.InitOps[0]}, model.BackendConfig().InitOpNames)
	out, err := model.Infer(context.Background(), map[string]*tensor.Tensor{"x": f32(4)})
	require.NoError(t, err)
	assert.Equal(t, []float32{4}, out["out"].AsFloat32())
}

func TestInitOpsDecoding(t *testing.T) {
	tests := []struct {
		name string
		json string
		want pack.InitOps
		err  bool
	}{
		{"list", `["a", "b"]`, pack.InitOps{"a", "b"}, false},
		{"scalar", `"init"`, pack.InitOps{"init"}, false},
		{"empty scalar", `""`, nil, false},
		{"null", `null`, nil, false},
		{"number", `7`, nil, true},
		{"mixed list", `["a", 1]`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got pack.InitOps
			err := json.Unmarshal([]byte(tt.json), &got)
			if tt.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUnsupportedPlatform(t *testing.T) {
	t.Run("create", func(t *testing.T) {
		p := additionParams()
		p.Platform = "tensorflow"
		dir := t.TempDir()

		_, err := pack.Create(context.Background(), filepath.Join(dir, "pkg"), p)
		require.ErrorIs(t, err, pack.ErrUnsupportedPlatform)
		assertOnlyEntries(t, dir)
	})

	t.Run("load", func(t *testing.T) {
		path := create(t, additionParams())
		editJSON(t, filepath.Join(path, pack.ConfigFileName), func(doc map[string]any) {
			doc["platform"] = "tensorflow"
		})

		_, err := pack.Load(context.Background(), path)
		require.ErrorIs(t, err, pack.ErrCorruptPackage)
		require.ErrorIs(t, err, pack.ErrUnsupportedPlatform)

		var unsupported *backend.UnsupportedPlatformError
		require.ErrorAs(t, err, &unsupported)
		assert.Equal(t, "tensorflow", unsupported.Platform)
		assert.Equal(t, []string{"graph", "starlark"}, unsupported.Available)
	})
}

func TestStringsModel(t *testing.T) {
	m := graphtest.Strings()
	p := params(m, "strings_model")
	p.TestInput = map[string]*tensor.Tensor{"text": tensor.Must(tensor.FromStrings([]string{"hello"}))}
	p.ExpectedOutput = map[string]*tensor.Tensor{"greeting": tensor.Must(tensor.FromStrings([]string{"hello world"}))}
	path := create(t, p)

	model := load(t, path)
	out, err := model.Infer(context.Background(), map[string]*tensor.Tensor{
		"text": tensor.Must(tensor.FromStrings([]string{"goodbye", "so long"})),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"goodbye world", "so long world"}, out["greeting"].Strings())
}

func TestChecksumCorruption(t *testing.T) {
	path := create(t, additionParams())
	artifact := filepath.Join(path, "0", pack.DataDirName, "model.pgraph")

	data, err := os.ReadFile(artifact)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xFF
	require.NoError(t, os.WriteFile(artifact, data, 0o600))

	_, err = pack.Load(context.Background(), path)
	require.ErrorIs(t, err, pack.ErrCorruptPackage)
	require.ErrorIs(t, err, serialization.ErrChecksumMismatch)
}

func TestHeaderTamper(t *testing.T) {
	path := create(t, additionParams())
	artifact := filepath.Join(path, "0", pack.DataDirName, "model.pgraph")

	data, err := os.ReadFile(artifact)
	require.NoError(t, err)
	tampered := bytes.Replace(data, []byte(`"op":"Add"`), []byte(`"op":"Sub"`), 1)
	require.NotEqual(t, data, tampered)
	require.NoError(t, os.WriteFile(artifact, tampered, 0o600))

	_, err = pack.Load(context.Background(), path)
	require.ErrorIs(t, err, pack.ErrCorruptPackage)
	require.ErrorIs(t, err, serialization.ErrChecksumMismatch)
}

func TestTransforms(t *testing.T) {
	scaled := graphtest.Scaled()
	scaledParams := func() pack.CreateParams {
		p := params(scaled, "scaled")
		p.TestInput = map[string]*tensor.Tensor{"x": f32(1, 2)}
		p.ExpectedOutput = map[string]*tensor.Tensor{"out": f32(5, 10)}
		return p
	}

	t.Run("applied", func(t *testing.T) {
		path := create(t, scaledParams(), pack.WithTransform("fold"), pack.WithRequireTransform(true))
		model := load(t, path)
		assert.Equal(t, "fold", model.BackendConfig().Options["transform"])

		g, _, err := serialization.ReadFile(filepath.Join(path, "0", pack.DataDirName, "model.pgraph"), serialization.ReaderOptions{})
		require.NoError(t, err)
		five, ok := g.Node("five")
		require.True(t, ok)
		assert.Equal(t, graph.OpConst, five.Op)
	})

	t.Run("permissive", func(t *testing.T) {
		logger, logs := testutil.NewCaptureLogger()
		path := create(t, scaledParams(), pack.WithTransform("tensorrt"), pack.WithLogger(logger))
		model := load(t, path)
		assert.NotContains(t, model.BackendConfig().Options, "transform")
		assert.Contains(t, logs.String(), "transform skipped")
	})

	t.Run("mandatory", func(t *testing.T) {
		dir := t.TempDir()
		_, err := pack.Create(context.Background(), filepath.Join(dir, "pkg"), scaledParams(),
			pack.WithTransform("tensorrt"), pack.WithRequireTransform(true))
		require.ErrorIs(t, err, backend.ErrTransformUnavailable)
		assertOnlyEntries(t, dir)
	})
}

func TestInputNames(t *testing.T) {
	path := create(t, additionParams())

	strict := load(t, path)
	_, err := strict.Infer(context.Background(), map[string]*tensor.Tensor{"y": f32(1)})
	require.ErrorIs(t, err, pack.ErrMissingInput)
	var missing *pack.MissingInputError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"x"}, missing.Names)

	extra := map[string]*tensor.Tensor{"x": f32(1), "y": f32(2), "z": f32(3), "a": f32(4)}
	_, err = strict.Infer(context.Background(), extra)
	require.ErrorIs(t, err, pack.ErrUnexpectedInput)
	var unexpected *pack.UnexpectedInputError
	require.ErrorAs(t, err, &unexpected)
	assert.Equal(t, []string{"a", "z"}, unexpected.Names)

	lenient := load(t, path, pack.WithAllowExtraInputs(true))
	out, err := lenient.Infer(context.Background(), extra)
	require.NoError(t, err)
	assert.Equal(t, []float32{3}, out["out"].AsFloat32())
}

func TestCreateArgumentErrors(t *testing.T) {
	tests := map[string]func(p *pack.CreateParams){
		"both sources":    func(p *pack.CreateParams) { p.Source.Path = "model.pgraph" },
		"no source":       func(p *pack.CreateParams) { p.Source = backend.Source{} },
		"no model name":   func(p *pack.CreateParams) { p.ModelName = "" },
		"no platform":     func(p *pack.CreateParams) { p.Platform = "" },
		"expected only":   func(p *pack.CreateParams) { p.TestInput = nil },
		"missing mapping": func(p *pack.CreateParams) { delete(p.NodeNameMapping, "y") },
		"empty init op":   func(p *pack.CreateParams) { p.InitOpNames = []string{""} },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			p := additionParams()
			mutate(&p)
			dir := t.TempDir()

			_, err := pack.Create(context.Background(), filepath.Join(dir, "pkg"), p)
			require.ErrorIs(t, err, pack.ErrArgument)
			assertOnlyEntries(t, dir)
		})
	}
}

func TestCreateFromArtifactPath(t *testing.T) {
	m := graphtest.Addition()
	artifact := filepath.Join(t.TempDir(), "frozen.pgraph")
	require.NoError(t, serialization.WriteFile(artifact, m.Graph, nil))

	p := additionParams()
	p.Source = backend.Source{Path: artifact}
	path := create(t, p)

	out, err := load(t, path).Infer(context.Background(), map[string]*tensor.Tensor{"x": f32(1), "y": f32(1)})
	require.NoError(t, err)
	assert.Equal(t, []float32{2}, out["out"].AsFloat32())
}

func TestLoadErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("missing path", func(t *testing.T) {
		_, err := pack.Load(ctx, filepath.Join(t.TempDir(), "nope"))
		require.ErrorIs(t, err, pack.ErrNotFound)
	})

	t.Run("missing config", func(t *testing.T) {
		_, err := pack.Load(ctx, t.TempDir())
		require.ErrorIs(t, err, pack.ErrNotFound)
	})

	t.Run("unparseable config", func(t *testing.T) {
		path := create(t, additionParams())
		require.NoError(t, os.WriteFile(filepath.Join(path, pack.ConfigFileName), []byte("{"), 0o600))
		_, err := pack.Load(ctx, path)
		require.ErrorIs(t, err, pack.ErrCorruptPackage)
	})

	t.Run("newer format", func(t *testing.T) {
		path := create(t, additionParams())
		editJSON(t, filepath.Join(path, pack.ConfigFileName), func(doc map[string]any) {
			doc["format_version"] = 99
		})
		_, err := pack.Load(ctx, path)
		require.ErrorIs(t, err, pack.ErrCorruptPackage)
	})

	t.Run("no version directory", func(t *testing.T) {
		path := create(t, additionParams())
		require.NoError(t, os.RemoveAll(filepath.Join(path, "0")))
		_, err := pack.Load(ctx, path)
		require.ErrorIs(t, err, pack.ErrCorruptPackage)
	})

	t.Run("selected version missing", func(t *testing.T) {
		path := create(t, additionParams())
		_, err := pack.Load(ctx, path, pack.WithVersion(3))
		require.ErrorIs(t, err, pack.ErrNotFound)
	})

	t.Run("missing backend config", func(t *testing.T) {
		path := create(t, additionParams())
		require.NoError(t, os.Remove(filepath.Join(path, "0", pack.ConfigFileName)))
		_, err := pack.Load(ctx, path)
		require.ErrorIs(t, err, pack.ErrCorruptPackage)
	})

	t.Run("missing artifact", func(t *testing.T) {
		path := create(t, additionParams())
		require.NoError(t, os.Remove(filepath.Join(path, "0", pack.DataDirName, "model.pgraph")))
		_, err := pack.Load(ctx, path)
		require.ErrorIs(t, err, pack.ErrCorruptPackage)
	})

	t.Run("incomplete mapping", func(t *testing.T) {
		path := create(t, additionParams())
		editJSON(t, filepath.Join(path, "0", pack.ConfigFileName), func(doc map[string]any) {
			delete(doc["node_name_mapping"].(map[string]any), "out")
		})
		_, err := pack.Load(ctx, path)
		require.ErrorIs(t, err, pack.ErrCorruptPackage)
	})

	t.Run("unresolved identifier", func(t *testing.T) {
		path := create(t, additionParams())
		editJSON(t, filepath.Join(path, "0", pack.ConfigFileName), func(doc map[string]any) {
			doc["node_name_mapping"].(map[string]any)["out"] = "some_namespace/missing:0"
		})
		_, err := pack.Load(ctx, path)
		require.ErrorIs(t, err, pack.ErrCorruptPackage)
		require.ErrorIs(t, err, backend.ErrUnresolvedIdentifier)
	})

	t.Run("negative dimension", func(t *testing.T) {
		path := create(t, additionParams())
		editJSON(t, filepath.Join(path, "0", pack.ConfigFileName), func(doc map[string]any) {
			doc["input_spec"].([]any)[0].(map[string]any)["shape"] = []any{-1}
		})
		_, err := pack.Load(ctx, path)
		require.ErrorIs(t, err, pack.ErrCorruptPackage)
		require.ErrorIs(t, err, spec.ErrSpec)
	})

	t.Run("cancelled", func(t *testing.T) {
		path := create(t, additionParams())
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := pack.Load(cctx, path)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestVersionSelection(t *testing.T) {
	path := create(t, additionParams())
	for _, v := range []string{"2", "10"} {
		require.NoError(t, os.CopyFS(filepath.Join(path, v), os.DirFS(filepath.Join(path, "0"))))
	}
	require.NoError(t, os.Mkdir(filepath.Join(path, "not-a-version"), 0o750))

	versions, err := pack.Versions(path)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2, 10}, versions)

	assert.Equal(t, 10, load(t, path).Version())
	assert.Equal(t, 2, load(t, path, pack.WithVersion(2)).Version())
}

func TestVerify(t *testing.T) {
	ctx := context.Background()
	p := additionParams()
	p.TestInput, p.ExpectedOutput = nil, nil

	t.Run("pass", func(t *testing.T) {
		path := create(t, p)
		err := pack.Verify(ctx, path,
			map[string]*tensor.Tensor{"x": f32(1), "y": f32(2)},
			map[string]*tensor.Tensor{"out": f32(3)})
		require.NoError(t, err)
		assert.DirExists(t, path)
	})

	t.Run("mismatch removes package", func(t *testing.T) {
		path := create(t, p)
		err := pack.Verify(ctx, path,
			map[string]*tensor.Tensor{"x": f32(1), "y": f32(2)},
			map[string]*tensor.Tensor{"out": f32(4)})
		require.ErrorIs(t, err, pack.ErrVerification)
		assert.NoDirExists(t, path)
	})

	t.Run("undeclared expected output", func(t *testing.T) {
		path := create(t, p)
		err := pack.Verify(ctx, path,
			map[string]*tensor.Tensor{"x": f32(1), "y": f32(2)},
			map[string]*tensor.Tensor{"sum": f32(3)})
		require.ErrorIs(t, err, pack.ErrVerification)
		assert.NoDirExists(t, path)
	})

	t.Run("not a package", func(t *testing.T) {
		dir := t.TempDir()
		err := pack.Verify(ctx, dir, nil, nil)
		require.ErrorIs(t, err, pack.ErrNotFound)
		assert.DirExists(t, dir)
	})
}

const accumulatorScript = `
INPUTS = ["x"]
OUTPUTS = ["total"]

def init(state):
    state["total"] = 0.0

def infer(inputs, state):
    state["total"] += inputs["x"][0]
    return {"total": [state["total"]]}
`

func TestStarlarkPackage(t *testing.T) {
	p := pack.CreateParams{
		ModelName:      "starlark_accumulator",
		Platform:       "starlark",
		InputSpec:      []spec.TensorSpec{{Name: "x", DType: tensor.Float32, Shape: spec.Dims(1)}},
		OutputSpec:     []spec.TensorSpec{{Name: "total", DType: tensor.Float32, Shape: spec.Dims(1)}},
		Source:         backend.Source{Model: accumulatorScript},
		InitOpNames:    []string{"init"},
		TestInput:      map[string]*tensor.Tensor{"x": f32(5)},
		ExpectedOutput: map[string]*tensor.Tensor{"total": f32(5)},
	}
	path := create(t, p)
	assert.FileExists(t, filepath.Join(path, "0", pack.DataDirName, "model.star"))

	model := load(t, path)
	assert.Equal(t, map[string]string{"x": "x", "total": "total"}, model.BackendConfig().NodeNameMapping)

	for _, tc := range []struct{ in, want float32 }{{2, 2}, {4, 6}} {
		out, err := model.Infer(context.Background(), map[string]*tensor.Tensor{"x": f32(tc.in)})
		require.NoError(t, err)
		assert.Equal(t, []float32{tc.want}, out["total"].AsFloat32())
	}
}

func TestModelClose(t *testing.T) {
	m, err := pack.Load(context.Background(), create(t, additionParams()))
	require.NoError(t, err)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	_, err = m.Infer(context.Background(), map[string]*tensor.Tensor{"x": f32(1), "y": f32(1)})
	require.ErrorIs(t, err, pack.ErrModelClosed)
}

func TestConcurrentLoads(t *testing.T) {
	path := create(t, additionParams())
	loader := pack.NewLoader(nil)

	var g errgroup.Group
	for i := range 8 {
		g.Go(func() error {
			m, err := loader.Load(context.Background(), path)
			if err != nil {
				return err
			}
			defer m.Close()
			out, err := m.Infer(context.Background(), map[string]*tensor.Tensor{"x": f32(float32(i)), "y": f32(1)})
			if err != nil {
				return err
			}
			assert.Equal(t, []float32{float32(i) + 1}, out["out"].AsFloat32())
			return nil
		})
	}
	require.NoError(t, g.Wait())
}

func TestCreateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	dir := t.TempDir()

	_, err := pack.Create(ctx, filepath.Join(dir, "pkg"), additionParams())
	require.ErrorIs(t, err, context.Canceled)
	assertOnlyEntries(t, dir)
}
