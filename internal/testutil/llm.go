package testutil

import (
	"context"
	"fmt"
	"sync"

	"gitre-go/internal/llm"
)

// FakeCompletion is one scripted model response: either events or an error.
type FakeCompletion struct {
	Events []llm.Event
	Err    error
}

// FakeClient is an llm.Client that replays scripted completions in order and
// records the requests it received. Safe for concurrent use.
type FakeClient struct {
	mu       sync.Mutex
	queue    []FakeCompletion
	requests []llm.Request
}

func NewFakeClient(completions ...FakeCompletion) *FakeClient {
	return &FakeClient{queue: completions}
}

// TextCompletion builds a FakeCompletion with one text event and the given
// usage numbers.
func TextCompletion(text string, inputTokens, outputTokens int, cost float64) FakeCompletion {
	return FakeCompletion{
		Events: []llm.Event{
			llm.AssistantText{Text: text},
			llm.UsageResult{InputTokens: inputTokens, OutputTokens: outputTokens, Cost: cost},
		},
	}
}

// Enqueue appends further completions to the script.
func (c *FakeClient) Enqueue(completions ...FakeCompletion) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queue = append(c.queue, completions...)
}

// Requests returns the requests received so far, in order.
func (c *FakeClient) Requests() []llm.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]llm.Request{}, c.requests...)
}

func (c *FakeClient) Complete(ctx context.Context, req llm.Request) ([]llm.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests = append(c.requests, req)
	if len(c.queue) == 0 {
		return nil, fmt.Errorf("unscripted completion request")
	}
	next := c.queue[0]
	c.queue = c.queue[1:]
	return next.Events, next.Err
}
