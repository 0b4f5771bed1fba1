// Package llm is the language-model transport boundary. Responses are
// decoded here into a closed set of event variants so the rest of the
// pipeline never inspects response shape.
package llm

import "context"

// Event is one decoded message from the model transport.
type Event interface{ isEvent() }

// AssistantText is a chunk of generated text.
type AssistantText struct {
	Text string
}

// UsageResult carries token and cost accounting for a completed request.
type UsageResult struct {
	InputTokens  int
	OutputTokens int
	Cost         float64
}

func (AssistantText) isEvent() {}
func (UsageResult) isEvent()   {}

// Request is a single-turn completion request.
type Request struct {
	System string
	Prompt string
}

// Client sends a completion request and returns the decoded events. No
// timeout is enforced here beyond the transport's own; cancel via ctx.
type Client interface {
	Complete(ctx context.Context, req Request) ([]Event, error)
}
