package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/leafmind/studypal/internal/model"
	appErr "github.com/leafmind/studypal/internal/pkg/errors"
)

const answerPromptWithContext = `You are a knowledgeable and helpful AI tutor. Answer the student's question accurately and clearly.

When relevant context is provided below, base your answer on it and cite sources using [Source N] notation where N is the source number. If the context does not contain enough information to answer fully, supplement with your general knowledge and say so.

Context from the student's uploaded documents:
%s`

const answerPromptNoContext = `You are a knowledgeable and helpful AI tutor. Answer the student's question accurately and clearly. No document context is available for this question.`

type modelCaller interface {
	Generate(ctx context.Context, model string, prompt string) (string, error)
}

type Answer struct {
	Text      string
	ModelUsed string
}

// AnswerService produces a grounded answer by trying an ordered chain of
// models one at a time. The chain and failure criteria are deterministic;
// only the model output is not.
type AnswerService struct {
	llm          modelCaller
	fallbacks    []string
	historyTurns int
	callTimeout  time.Duration
}

func NewAnswerService(llm modelCaller, fallbacks []string, historyTurns int, callTimeout time.Duration) *AnswerService {
	if historyTurns <= 0 {
		historyTurns = 10
	}
	return &AnswerService{
		llm:          llm,
		fallbacks:    fallbacks,
		historyTurns: historyTurns,
		callTimeout:  callTimeout,
	}
}

// GenerateAnswer tries primaryModel first, then the configured fallbacks,
// skipping duplicates. Candidates run strictly in sequence, each bounded by
// the call timeout; a provider error, timeout, or empty response advances the
// chain. Exhaustion returns ErrUnavailable, never a fabricated answer.
func (s *AnswerService) GenerateAnswer(ctx context.Context, primaryModel string, chunks []model.RetrievedChunk, history []model.ChatMessage, question string) (*Answer, error) {
	prompt := s.buildPrompt(chunks, history, question)
	chain := s.buildChain(primaryModel)
	logger := logutil.GetLogger(ctx).With(zap.String("primary_model", primaryModel))

	var lastErr error
	for _, candidate := range chain {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := s.attempt(ctx, candidate, prompt)
		if err != nil {
			logger.Warn("answer candidate failed", zap.String("model", candidate), zap.Error(err))
			lastErr = err
			continue
		}
		if candidate != primaryModel {
			logger.Info("primary model failed, used fallback", zap.String("model", candidate))
		}
		return &Answer{Text: text, ModelUsed: candidate}, nil
	}
	logger.Error("all answer candidates failed", zap.Error(lastErr))
	return nil, fmt.Errorf("%w: all models failed: %s", appErr.ErrUnavailable, lastErr)
}

func (s *AnswerService) attempt(ctx context.Context, candidate, prompt string) (string, error) {
	if s.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.callTimeout)
		defer cancel()
	}
	text, err := s.llm.Generate(ctx, candidate, prompt)
	if err != nil {
		return "", err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("empty response")
	}
	return text, nil
}

func (s *AnswerService) buildChain(primaryModel string) []string {
	chain := make([]string, 0, len(s.fallbacks)+1)
	chain = append(chain, primaryModel)
	for _, fb := range s.fallbacks {
		if fb != primaryModel {
			chain = append(chain, fb)
		}
	}
	return chain
}

func (s *AnswerService) buildPrompt(chunks []model.RetrievedChunk, history []model.ChatMessage, question string) string {
	var sb strings.Builder
	if len(chunks) > 0 {
		sb.WriteString(fmt.Sprintf(answerPromptWithContext, buildContextBlock(chunks)))
	} else {
		sb.WriteString(answerPromptNoContext)
	}
	sb.WriteString("\n")

	window := s.windowHistory(history)
	if len(window) > 0 {
		sb.WriteString("\nConversation so far:\n")
		for _, msg := range window {
			switch msg.Role {
			case model.RoleUser:
				sb.WriteString("Student: ")
			case model.RoleAssistant:
				sb.WriteString("Tutor: ")
			default:
				continue
			}
			sb.WriteString(msg.Content)
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\nStudent: ")
	sb.WriteString(question)
	sb.WriteString("\nTutor:")
	return sb.String()
}

// windowHistory keeps only the most recent turns; older history stays in
// storage but is never sent upstream.
func (s *AnswerService) windowHistory(history []model.ChatMessage) []model.ChatMessage {
	max := s.historyTurns * 2
	if len(history) > max {
		history = history[len(history)-max:]
	}
	return history
}

func buildContextBlock(chunks []model.RetrievedChunk) string {
	if len(chunks) == 0 {
		return "(no relevant document context found)"
	}
	lines := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		label := chunk.Filename
		if label == "" {
			label = chunk.DocumentTitle
		}
		lines = append(lines, fmt.Sprintf("[Source %d] %s (%s):\n%s", i+1, label, chunk.SourceType, strings.TrimSpace(chunk.Snippet)))
	}
	return strings.Join(lines, "\n\n")
}
