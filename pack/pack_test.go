// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package pack_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/parcel/backend"
	"github.com/born-ml/parcel/graph"
	"github.com/born-ml/parcel/pack"
	"github.com/born-ml/parcel/tensor"
)

// echoBackend returns each fed tensor under every fetched identifier.
type echoBackend struct{}

func (echoBackend) Platform() string     { return "echo" }
func (echoBackend) ArtifactName() string { return "echo.txt" }

func (echoBackend) Serialize(_ context.Context, src backend.Source) ([]byte, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if src.Path != "" {
		return os.ReadFile(src.Path)
	}
	s, ok := src.Model.(string)
	if !ok {
		return nil, fmt.Errorf("%w: %T", backend.ErrUnsupportedSource, src.Model)
	}
	return []byte(s), nil
}

func (echoBackend) Load(_ context.Context, req backend.LoadRequest) (backend.Session, error) {
	if _, err := os.Stat(filepath.Join(req.DataDir, "echo.txt")); err != nil {
		return nil, fmt.Errorf("%w: %w", backend.ErrInvalidArtifact, err)
	}
	return echoSession{}, nil
}

type echoSession struct{}

func (echoSession) Run(_ context.Context, feeds map[string]*tensor.Tensor, fetches []string) (map[string]*tensor.Tensor, error) {
	out := make(map[string]*tensor.Tensor, len(fetches))
	for _, id := range fetches {
		out[id] = feeds[id]
	}
	return out, nil
}

func (echoSession) Close() error { return nil }

func echoRegistry() *backend.Registry {
	return backend.NewRegistry(
		backend.GraphRegistration(),
		backend.Registration{
			Platform: "echo",
			Factory:  func(*slog.Logger) backend.Backend { return echoBackend{} },
		},
	)
}

func TestCustomBackend(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "echo")
	reg := echoRegistry()

	x := tensor.Must(tensor.FromSlice([]int32{1, 2, 3}))
	_, err := pack.Create(ctx, path, pack.CreateParams{
		ModelName:       "echo",
		Platform:        "echo",
		Source:          backend.Source{Model: "echo"},
		NodeNameMapping: map[string]string{"in": "value", "out": "value"},
		InputSpec:       []pack.TensorSpec{{Name: "in", DType: tensor.Int32, Shape: pack.Dims(-1)}},
		OutputSpec:      []pack.TensorSpec{{Name: "out", DType: tensor.Int32, Shape: pack.Dims(-1)}},
		TestInput:       map[string]*tensor.Tensor{"in": x},
		ExpectedOutput:  map[string]*tensor.Tensor{"out": x},
	}, pack.WithRegistry(reg))
	require.NoError(t, err)

	model, err := pack.NewLoader(reg).Load(ctx, path)
	require.NoError(t, err)
	defer model.Close()

	out, err := model.Infer(ctx, map[string]*tensor.Tensor{"in": x})
	require.NoError(t, err)
	assert.True(t, tensor.Equal(x, out["out"]))

	// The default registry does not know the platform.
	_, err = pack.Load(ctx, path)
	require.ErrorIs(t, err, pack.ErrCorruptPackage)
	require.ErrorIs(t, err, pack.ErrUnsupportedPlatform)
}

func TestBuilderPackage(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "scaled")

	b := graph.NewBuilder()
	x := b.Placeholder("x", tensor.Float32, pack.Dims(-1))
	two := b.Const("two", tensor.Scalar(float32(2)))
	b.Mul("double", x, two)

	in := tensor.Must(tensor.FromSlice([]float32{1, 2}))
	pkg, err := pack.Create(ctx, path, pack.CreateParams{
		ModelName:       "scaled",
		Platform:        backend.GraphPlatform,
		Source:          backend.Source{Model: b.Graph()},
		NodeNameMapping: map[string]string{"x": x, "y": graph.OutputID("double")},
		InputSpec:       []pack.TensorSpec{{Name: "x", DType: tensor.Float32, Shape: pack.Dims(-1)}},
		OutputSpec:      []pack.TensorSpec{{Name: "y", DType: tensor.Float32, Shape: pack.Dims(-1)}},
		TestInput:       map[string]*tensor.Tensor{"x": in},
		ExpectedOutput:  map[string]*tensor.Tensor{"y": tensor.Must(tensor.FromSlice([]float32{2, 4}))},
	}, pack.WithTransform(backend.FoldTransform))
	require.NoError(t, err)
	assert.True(t, pkg.Verified)

	cfg, err := pack.ReadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, pack.FormatVersion, cfg.FormatVersion)
	assert.Equal(t, "graph", cfg.Platform)

	versions, err := pack.Versions(path)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, versions)

	model, err := pack.Load(ctx, path)
	require.NoError(t, err)
	require.NoError(t, model.Close())

	_, err = model.Infer(ctx, map[string]*tensor.Tensor{"x": in})
	require.ErrorIs(t, err, pack.ErrModelClosed)
}
