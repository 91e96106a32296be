package graphbackend

import (
	"bytes"
	"context"
	"fmt"

	"github.com/born-ml/parcel/internal/backend"
	"github.com/born-ml/parcel/internal/graph"
	"github.com/born-ml/parcel/internal/serialization"
)

// FoldTransformName names the constant-folding transform.
const FoldTransformName = "fold"

// FoldTransform rewrites a serialized graph with constant subgraphs folded
// into Const nodes. Identifiers are preserved, so node name mappings stay
// valid.
type FoldTransform struct{}

// Name implements backend.Transform.
func (FoldTransform) Name() string { return FoldTransformName }

// Apply implements backend.Transform.
func (FoldTransform) Apply(ctx context.Context, artifact []byte) ([]byte, error) {
	if !bytes.HasPrefix(artifact, []byte(serialization.MagicBytes)) {
		return nil, fmt.Errorf("%w: artifact is not a serialized graph", backend.ErrTransformUnavailable)
	}
	g, header, err := serialization.Unmarshal(artifact, serialization.ReaderOptions{})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	folded, n, err := graph.Fold(g)
	if err != nil {
		return nil, err
	}

	metadata := header.Metadata
	if metadata == nil {
		metadata = make(map[string]string)
	}
	metadata["transform"] = FoldTransformName
	metadata["folded_nodes"] = fmt.Sprint(n)
	return serialization.Marshal(folded, metadata)
}

// Transform implements backend.TransformProvider.
func (b *Backend) Transform(name string) (backend.Transform, error) {
	if name == FoldTransformName {
		return FoldTransform{}, nil
	}
	return nil, backend.TransformUnavailable(Platform, name)
}
