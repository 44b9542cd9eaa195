package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type staticEmbedder struct {
	vec []float32
}

func (s *staticEmbedder) ModelName() string { return "vendor/embed" }

func (s *staticEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	return s.vec, nil
}

func TestWrapTruncationCutsToDim(t *testing.T) {
	upstream := &staticEmbedder{vec: []float32{1, 2, 3, 4}}
	wrapped := WrapTruncation(upstream, 2)

	values, err := wrapped.Embed(context.Background(), "x", "RETRIEVAL_QUERY")
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2}, values)
	require.Equal(t, "vendor/embed@2", wrapped.ModelName())
}

func TestWrapTruncationRejectsShortVectors(t *testing.T) {
	upstream := &staticEmbedder{vec: []float32{1, 2}}
	wrapped := WrapTruncation(upstream, 4)

	_, err := wrapped.Embed(context.Background(), "x", "RETRIEVAL_QUERY")
	require.Error(t, err)
}
