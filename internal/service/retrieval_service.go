package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/leafmind/studypal/internal/ai"
	"github.com/leafmind/studypal/internal/model"
	appErr "github.com/leafmind/studypal/internal/pkg/errors"
)

// TaskTypeQuery must pair with the task type used by the ingestion pipeline
// for document chunks, same as the embedding model itself.
const (
	TaskTypeQuery    = "RETRIEVAL_QUERY"
	TaskTypeDocument = "RETRIEVAL_DOCUMENT"
)

type chunkSearcher interface {
	SearchSimilar(ctx context.Context, userID string, queryVec []float32, topK int) ([]model.RetrievedChunk, error)
}

// RetrievalService embeds a query and finds the caller's most similar chunks.
// Pure read path: no chunk or document state is touched.
type RetrievalService struct {
	embedder    ai.IEmbedder
	chunks      chunkSearcher
	defaultTopK int
}

func NewRetrievalService(embedder ai.IEmbedder, chunks chunkSearcher, defaultTopK int) *RetrievalService {
	if defaultTopK <= 0 {
		defaultTopK = 5
	}
	return &RetrievalService{embedder: embedder, chunks: chunks, defaultTopK: defaultTopK}
}

// Retrieve returns up to topK chunks ordered by descending similarity.
// A whitespace-only query short-circuits to an empty result without touching
// the embedding provider. An unknown user simply matches nothing.
func (s *RetrievalService) Retrieve(ctx context.Context, userID, queryText string, topK int) ([]model.RetrievedChunk, error) {
	trimmed := strings.TrimSpace(queryText)
	if trimmed == "" {
		return []model.RetrievedChunk{}, nil
	}
	if topK <= 0 {
		topK = s.defaultTopK
	}
	logger := logutil.GetLogger(ctx).With(zap.String("user_id", userID), zap.Int("top_k", topK))
	queryVec, err := s.embedder.Embed(ctx, trimmed, TaskTypeQuery)
	if err != nil {
		logger.Error("failed to embed query", zap.Error(err))
		return nil, fmt.Errorf("%w: embed query: %s", appErr.ErrUnavailable, err)
	}
	results, err := s.chunks.SearchSimilar(ctx, userID, queryVec, topK)
	if err != nil {
		logger.Error("chunk search failed", zap.Error(err))
		return nil, fmt.Errorf("%w: chunk search: %s", appErr.ErrUnavailable, err)
	}
	logger.Debug("chunks retrieved", zap.Int("results", len(results)))
	return results, nil
}
