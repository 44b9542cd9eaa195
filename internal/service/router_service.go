package service

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/leafmind/studypal/internal/ai"
	"github.com/leafmind/studypal/internal/config"
	"github.com/leafmind/studypal/internal/model"
)

var codingKeywords = regexp.MustCompile(
	`(?i)\b(code|coding|program|script|function|class|method|bug|debug|` +
		`algorithm|syntax|compile|runtime|exception|stack|array|list|dict|` +
		`javascript|python|java|c\+\+|typescript|sql|html|css|api|json|` +
		`git|github|docker|bash|shell|loop|variable|import|library|` +
		`framework|module|package|implement|refactor|test|unit test|` +
		`error|fix the code|write a|write the)\b`,
)

var reasoningKeywords = regexp.MustCompile(
	`(?i)\b(prove|proof|derive|derivation|theorem|lemma|corollary|` +
		`explain why|reasoning|logic|infer|inference|hypothesis|` +
		`calculus|integral|derivative|equation|matrix|probability|` +
		`statistics|physics|chemistry|math|solve|step.?by.?step|` +
		`analyze|analysis|compare|evaluate|argue|argument)\b`,
)

const classifyPrompt = `You are a query classifier for an AI tutoring system. Classify the user's message into exactly one of these categories:
  coding    - the message is primarily about programming or code
  reasoning - the message requires multi-step mathematical, logical, or scientific reasoning
  general   - everything else (factual question, concept explanation, etc.)

Respond ONLY with a JSON object on a single line, no markdown:
{"category": "<coding|reasoning|general>"}

MESSAGE:
%s`

// RouterService picks a model tier for a message: a keyword pass first, then
// a model-based classifier only when the keywords are inconclusive. Routing
// never fails; a broken classifier degrades to the general tier and the
// decision records which stage produced it.
type RouterService struct {
	classifier ai.IGenerator
	policy     config.RouterPolicy
}

func NewRouterService(classifier ai.IGenerator, policy config.RouterPolicy) *RouterService {
	return &RouterService{classifier: classifier, policy: policy}
}

func (s *RouterService) Route(ctx context.Context, message string) model.RoutingDecision {
	decision := s.routeHeuristics(message)
	if decision.Confidence != model.ConfidenceLow {
		return decision
	}
	return s.classify(ctx, message)
}

func (s *RouterService) routeHeuristics(message string) model.RoutingDecision {
	msg := strings.TrimSpace(message)
	if msg == "" {
		return s.decision(model.CategoryGeneral, model.ConfidenceHigh, model.StageHeuristics)
	}

	codingHits := len(codingKeywords.FindAllString(msg, -1))
	reasoningHits := len(reasoningKeywords.FindAllString(msg, -1))

	if codingHits > 0 && codingHits >= reasoningHits {
		return s.decision(model.CategoryCoding, model.ConfidenceHigh, model.StageHeuristics)
	}
	if reasoningHits > 0 {
		return s.decision(model.CategoryReasoning, model.ConfidenceHigh, model.StageHeuristics)
	}
	// Short messages carry too little signal for keywords alone.
	if len(strings.Fields(msg)) < 6 {
		return model.RoutingDecision{
			Category:   model.CategoryUncertain,
			Confidence: model.ConfidenceLow,
			Stage:      model.StageHeuristics,
		}
	}
	return s.decision(model.CategoryGeneral, model.ConfidenceHigh, model.StageHeuristics)
}

func (s *RouterService) classify(ctx context.Context, message string) model.RoutingDecision {
	logger := logutil.GetLogger(ctx)
	if s.classifier == nil {
		return s.decision(model.CategoryGeneral, model.ConfidenceFallback, model.StageClassifierFallback)
	}
	raw, err := s.classifier.Generate(ctx, fmt.Sprintf(classifyPrompt, message))
	if err != nil {
		logger.Warn("classifier failed, falling back to general", zap.Error(err))
		return s.decision(model.CategoryGeneral, model.ConfidenceFallback, model.StageClassifierFallback)
	}
	category, err := parseCategory(raw)
	if err != nil {
		logger.Warn("classifier output unparseable, falling back to general", zap.String("raw", raw), zap.Error(err))
		return s.decision(model.CategoryGeneral, model.ConfidenceFallback, model.StageClassifierFallback)
	}
	return s.decision(category, model.ConfidenceHigh, model.StageClassifier)
}

func (s *RouterService) decision(category, confidence, stage string) model.RoutingDecision {
	return model.RoutingDecision{
		Category:   category,
		Model:      s.modelForCategory(category),
		Confidence: confidence,
		Stage:      stage,
	}
}

func (s *RouterService) modelForCategory(category string) string {
	switch category {
	case model.CategoryCoding:
		return s.policy.CodingModel
	case model.CategoryReasoning:
		return s.policy.ReasoningModel
	default:
		return s.policy.GeneralModel
	}
}

func parseCategory(output string) (string, error) {
	clean := strings.TrimSpace(output)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)
	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start >= 0 && end > start {
		clean = clean[start : end+1]
	}
	var parsed struct {
		Category string `json:"category"`
	}
	if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
		return "", err
	}
	category := strings.ToLower(strings.TrimSpace(parsed.Category))
	switch category {
	case model.CategoryCoding, model.CategoryReasoning, model.CategoryGeneral:
		return category, nil
	}
	return model.CategoryGeneral, nil
}
