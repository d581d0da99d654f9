package shared

import (
	"time"
)

// Outcomes of a model call as stored in execution_metrics.
const (
	OutcomeOK       = "ok"
	OutcomeFallback = "fallback"
)

// TokenUsage is what a provider reports for one generation.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Model            string
}

// AgentMeta describes one model call: which prompt ran, what it cost and how
// long it took.
type AgentMeta struct {
	AgentName string
	Usage     TokenUsage
	Latency   time.Duration
}

// Outcome maps a call error to its recorded outcome.
func Outcome(err error) string {
	if err != nil {
		return OutcomeFallback
	}
	return OutcomeOK
}
