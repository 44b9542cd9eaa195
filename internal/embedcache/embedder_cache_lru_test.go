package embedcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	calls int
	vec   []float32
}

func (c *countingEmbedder) ModelName() string { return "test/embed@1536" }

func (c *countingEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	c.calls++
	return c.vec, nil
}

func TestLruEmbedderCachesByTextAndTaskType(t *testing.T) {
	upstream := &countingEmbedder{vec: []float32{0.1, 0.2}}
	cached := WrapLruCacheToEmbedder(upstream, 16, time.Minute)

	first, err := cached.Embed(context.Background(), "hello", "RETRIEVAL_QUERY")
	require.NoError(t, err)
	second, err := cached.Embed(context.Background(), "hello", "RETRIEVAL_QUERY")
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, upstream.calls)

	// Same text under a different task type misses.
	_, err = cached.Embed(context.Background(), "hello", "RETRIEVAL_DOCUMENT")
	require.NoError(t, err)
	require.Equal(t, 2, upstream.calls)

	_, err = cached.Embed(context.Background(), "other text", "RETRIEVAL_QUERY")
	require.NoError(t, err)
	require.Equal(t, 3, upstream.calls)
}

func TestLruEmbedderReturnsCopies(t *testing.T) {
	upstream := &countingEmbedder{vec: []float32{0.5}}
	cached := WrapLruCacheToEmbedder(upstream, 16, time.Minute)

	first, err := cached.Embed(context.Background(), "hello", "RETRIEVAL_QUERY")
	require.NoError(t, err)
	first[0] = 99

	second, err := cached.Embed(context.Background(), "hello", "RETRIEVAL_QUERY")
	require.NoError(t, err)
	require.InDelta(t, 0.5, float64(second[0]), 1e-6)
}

func TestWrapLruCacheDisabledPassesThrough(t *testing.T) {
	upstream := &countingEmbedder{vec: []float32{0.1}}
	require.Equal(t, upstream, WrapLruCacheToEmbedder(upstream, 0, time.Minute))
	require.Equal(t, upstream, WrapLruCacheToEmbedder(upstream, 16, 0))
}
