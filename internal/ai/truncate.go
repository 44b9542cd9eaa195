package ai

import (
	"context"
	"fmt"
)

// WrapTruncation cuts embeddings down to dim values (Matryoshka truncation).
// Query vectors and stored chunk vectors must go through the same wrapper, or
// cosine scores against the chunk store are meaningless. The dimension is
// folded into ModelName so cache keys never mix truncation settings.
func WrapTruncation(e IEmbedder, dim int) IEmbedder {
	if e == nil || dim <= 0 {
		return e
	}
	return &truncatingEmbedder{next: e, dim: dim}
}

type truncatingEmbedder struct {
	next IEmbedder
	dim  int
}

func (t *truncatingEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	values, err := t.next.Embed(ctx, text, taskType)
	if err != nil {
		return nil, err
	}
	if len(values) < t.dim {
		return nil, fmt.Errorf("embedding has %d dims, want at least %d", len(values), t.dim)
	}
	return values[:t.dim], nil
}

func (t *truncatingEmbedder) ModelName() string {
	if t.next == nil {
		return ""
	}
	return fmt.Sprintf("%s@%d", t.next.ModelName(), t.dim)
}
