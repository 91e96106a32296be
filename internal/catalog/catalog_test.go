package catalog_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/parcel/internal/catalog"
)

func open(t *testing.T) *catalog.Store {
	t.Helper()
	s, err := catalog.Open(filepath.Join(t.TempDir(), "state", "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMigrations(t *testing.T) {
	s := open(t)
	v, err := s.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(2), v)
}

func TestRecordAndGet(t *testing.T) {
	s := open(t)
	ctx := context.Background()
	dir := t.TempDir()

	e, err := s.Record(ctx, catalog.Entry{
		Path:      filepath.Join(dir, "adder"),
		ModelName: "adder",
		Platform:  "graph",
		Verified:  true,
		Transform: "fold",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.CreatedAt.IsZero())

	got, err := s.Get(ctx, filepath.Join(dir, "adder"))
	require.NoError(t, err)
	assert.Equal(t, e.ID, got.ID)
	assert.Equal(t, "graph", got.Platform)
	assert.True(t, got.Verified)
	assert.Equal(t, "fold", got.Transform)
	assert.True(t, e.CreatedAt.Equal(got.CreatedAt))

	_, err = s.Get(ctx, filepath.Join(dir, "missing"))
	require.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestRecordReplacesPath(t *testing.T) {
	s := open(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "pkg")

	first, err := s.Record(ctx, catalog.Entry{Path: path, ModelName: "a", Platform: "graph"})
	require.NoError(t, err)
	second, err := s.Record(ctx, catalog.Entry{Path: path, ModelName: "b", Platform: "starlark"})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	entries, err := s.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "b", entries[0].ModelName)
}

func TestListOrderAndFilter(t *testing.T) {
	s := open(t)
	ctx := context.Background()
	dir := t.TempDir()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, name := range []string{"a", "b", "a"} {
		_, err := s.Record(ctx, catalog.Entry{
			Path:      filepath.Join(dir, name+string(rune('0'+i))),
			ModelName: name,
			Platform:  "graph",
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, filepath.Join(dir, "a2"), all[0].Path)
	assert.Equal(t, filepath.Join(dir, "a0"), all[2].Path)

	onlyA, err := s.List(ctx, "a")
	require.NoError(t, err)
	assert.Len(t, onlyA, 2)
}

func TestPrune(t *testing.T) {
	s := open(t)
	ctx := context.Background()
	dir := t.TempDir()

	kept := filepath.Join(dir, "kept")
	require.NoError(t, os.Mkdir(kept, 0o750))
	gone := filepath.Join(dir, "gone")

	for _, p := range []string{kept, gone} {
		_, err := s.Record(ctx, catalog.Entry{Path: p, ModelName: filepath.Base(p), Platform: "graph"})
		require.NoError(t, err)
	}

	pruned, err := s.Prune(ctx)
	require.NoError(t, err)
	require.Len(t, pruned, 1)
	assert.Equal(t, gone, pruned[0].Path)

	entries, err := s.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, kept, entries[0].Path)
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	ctx := context.Background()

	s, err := catalog.Open(path)
	require.NoError(t, err)
	_, err = s.Record(ctx, catalog.Entry{Path: filepath.Join(t.TempDir(), "pkg"), ModelName: "m", Platform: "graph"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = catalog.Open(path)
	require.NoError(t, err)
	defer s.Close()
	entries, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
