package model

const (
	CategoryGeneral   = "general"
	CategoryReasoning = "reasoning"
	CategoryCoding    = "coding"
	CategoryUncertain = "uncertain"
)

const (
	ConfidenceHigh     = "high"
	ConfidenceLow      = "low"
	ConfidenceFallback = "fallback"
)

const (
	StageHeuristics         = "heuristics"
	StageClassifier         = "classifier"
	StageClassifierFallback = "classifier_fallback"
)

// RoutingDecision records how a message was routed to a model tier. It is
// ephemeral but serialized into the assistant ChatMessage for audit.
type RoutingDecision struct {
	Category   string `json:"category"`
	Model      string `json:"model,omitempty"`
	Confidence string `json:"confidence"`
	Stage      string `json:"stage"`
}
