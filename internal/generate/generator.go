package generate

import (
	"context"
	"fmt"
	"strings"

	"gitre-go/internal/gitre"
	"gitre-go/internal/llm"
	"gitre-go/internal/model"
)

// MessageGenerator produces GeneratedMessages from commit records through an
// llm.Client. It implements gitre.Generator.
type MessageGenerator struct {
	client llm.Client
	logger gitre.Logger
}

func NewMessageGenerator(client llm.Client, logger gitre.Logger) *MessageGenerator {
	if logger == nil {
		logger = gitre.NopLogger{}
	}
	return &MessageGenerator{client: client, logger: logger}
}

// complete sends a prompt and folds the resulting events into text, token
// count and cost. Text parts are joined with newlines.
func (g *MessageGenerator) complete(ctx context.Context, prompt string) (string, int, float64, error) {
	events, err := g.client.Complete(ctx, llm.Request{System: systemPrompt, Prompt: prompt})
	if err != nil {
		return "", 0, 0, err
	}

	var parts []string
	var tokens int
	var cost float64
	for _, ev := range events {
		switch e := ev.(type) {
		case llm.AssistantText:
			parts = append(parts, e.Text)
		case llm.UsageResult:
			tokens += e.InputTokens + e.OutputTokens
			cost += e.Cost
		}
	}
	return strings.Join(parts, "\n"), tokens, cost, nil
}

// Generate analyzes a single commit and returns its message plus token and
// cost accounting for the request.
func (g *MessageGenerator) Generate(ctx context.Context, commit model.CommitRecord) (model.GeneratedMessage, int, float64, error) {
	text, tokens, cost, err := g.complete(ctx, singlePrompt(commit))
	if err != nil {
		return model.GeneratedMessage{}, tokens, cost, fmt.Errorf("generate %s: %w", commit.ShortHash, err)
	}
	if strings.TrimSpace(text) == "" {
		return model.GeneratedMessage{}, tokens, cost, fmt.Errorf("generate %s: %w", commit.ShortHash, ErrEmptyResponse)
	}

	v, err := ExtractJSON(text)
	if err != nil {
		return model.GeneratedMessage{}, tokens, cost, fmt.Errorf("generate %s: %w", commit.ShortHash, err)
	}

	obj, err := firstObject(v)
	if err != nil {
		return model.GeneratedMessage{}, tokens, cost, fmt.Errorf("generate %s: %w", commit.ShortHash, err)
	}

	msg, err := ParseSingle(obj, commit)
	if err != nil {
		return model.GeneratedMessage{}, tokens, cost, fmt.Errorf("generate %s: %w", commit.ShortHash, err)
	}
	return msg, tokens, cost, nil
}

// GenerateBatch analyzes several commits in one request and pairs the
// returned array with the commits by position. A response that comes back as
// a lone object is treated as a one-element array. Any index the response is
// missing, or whose element is not an object, falls back to an individual
// Generate call for that commit. A fallback call that itself fails, including
// one that gets an empty response, aborts the whole batch.
func (g *MessageGenerator) GenerateBatch(ctx context.Context, commits []model.CommitRecord) (gitre.GenerationResult, error) {
	switch len(commits) {
	case 0:
		return gitre.GenerationResult{}, nil
	case 1:
		msg, tokens, cost, err := g.Generate(ctx, commits[0])
		if err != nil {
			return gitre.GenerationResult{}, err
		}
		return gitre.GenerationResult{
			Messages:    []model.GeneratedMessage{msg},
			TotalTokens: tokens,
			TotalCost:   cost,
		}, nil
	}

	text, tokens, cost, err := g.complete(ctx, batchPrompt(commits))
	if err != nil {
		return gitre.GenerationResult{}, fmt.Errorf("generate batch of %d: %w", len(commits), err)
	}

	var list []any
	if strings.TrimSpace(text) != "" {
		if v, extractErr := ExtractJSON(text); extractErr == nil {
			switch t := v.(type) {
			case []any:
				list = t
			case map[string]any:
				list = []any{t}
			}
		} else {
			g.logger.Warn("batch response unparseable, falling back per commit", "size", len(commits), "error", extractErr)
		}
	} else {
		g.logger.Warn("batch response empty, falling back per commit", "size", len(commits))
	}

	result := gitre.GenerationResult{
		Messages:    make([]model.GeneratedMessage, 0, len(commits)),
		TotalTokens: tokens,
		TotalCost:   cost,
	}
	for i, commit := range commits {
		var obj map[string]any
		if i < len(list) {
			obj, _ = list[i].(map[string]any)
		}
		if obj == nil {
			g.logger.Warn("missing batch element, generating individually", "index", i, "hash", commit.ShortHash)
			msg, t, c, genErr := g.Generate(ctx, commit)
			if genErr != nil {
				return gitre.GenerationResult{}, genErr
			}
			result.Messages = append(result.Messages, msg)
			result.TotalTokens += t
			result.TotalCost += c
			continue
		}
		msg, parseErr := ParseSingle(obj, commit)
		if parseErr != nil {
			return gitre.GenerationResult{}, fmt.Errorf("generate %s: %w", commit.ShortHash, parseErr)
		}
		result.Messages = append(result.Messages, msg)
	}
	return result, nil
}

// Label generates a commit message for staged, uncommitted changes. The
// returned message carries the placeholder hash "staged".
func (g *MessageGenerator) Label(ctx context.Context, diffStat, diffPatch string) (model.GeneratedMessage, int, float64, error) {
	if strings.TrimSpace(diffPatch) == "" {
		return model.GeneratedMessage{}, 0, 0, fmt.Errorf("no staged changes to label")
	}

	text, tokens, cost, err := g.complete(ctx, labelPrompt(diffStat, diffPatch))
	if err != nil {
		return model.GeneratedMessage{}, tokens, cost, fmt.Errorf("label staged changes: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return model.GeneratedMessage{}, tokens, cost, fmt.Errorf("label staged changes: %w", ErrEmptyResponse)
	}

	v, err := ExtractJSON(text)
	if err != nil {
		return model.GeneratedMessage{}, tokens, cost, fmt.Errorf("label staged changes: %w", err)
	}
	obj, err := firstObject(v)
	if err != nil {
		return model.GeneratedMessage{}, tokens, cost, fmt.Errorf("label staged changes: %w", err)
	}

	placeholder := model.CommitRecord{
		Hash:            "staged",
		ShortHash:       "staged",
		OriginalMessage: "[staged]",
	}
	msg, err := ParseSingle(obj, placeholder)
	if err != nil {
		return model.GeneratedMessage{}, tokens, cost, fmt.Errorf("label staged changes: %w", err)
	}
	return msg, tokens, cost, nil
}

// firstObject unwraps an extraction result into a single object: a lone
// object passes through, an array yields its first object element.
func firstObject(v any) (map[string]any, error) {
	switch t := v.(type) {
	case map[string]any:
		return t, nil
	case []any:
		if len(t) > 0 {
			if obj, ok := t[0].(map[string]any); ok {
				return obj, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: response is not a JSON object", ErrUnparseableResponse)
}
