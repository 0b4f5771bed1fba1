package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	defaultBaseURL   = "https://api.anthropic.com"
	defaultMaxTokens = 4096
	apiVersion       = "2023-06-01"
)

// AnthropicConfig configures the Anthropic Messages API client.
type AnthropicConfig struct {
	BaseURL   string // defaults to the public API endpoint
	APIKey    string
	Model     string
	MaxTokens int
	// Per-million-token prices used for cost accounting. Zero disables
	// cost reporting.
	InputPricePerMTok  float64
	OutputPricePerMTok float64
}

// AnthropicClient implements Client over the Anthropic Messages API.
type AnthropicClient struct {
	cfg        AnthropicConfig
	httpClient *http.Client
}

func NewAnthropicClient(cfg AnthropicConfig) *AnthropicClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	return &AnthropicClient{
		cfg:        cfg,
		httpClient: &http.Client{},
	}
}

// Complete sends the request and decodes the response into events:
// one AssistantText per text content block, then a single UsageResult.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) ([]Event, error) {
	payload := map[string]any{
		"model":      c.cfg.Model,
		"max_tokens": c.cfg.MaxTokens,
		"system":     req.System,
		"messages": []map[string]string{
			{"role": "user", "content": req.Prompt},
		},
	}

	body, err := c.post(ctx, "/v1/messages", payload)
	if err != nil {
		return nil, fmt.Errorf("anthropic messages: %w", err)
	}

	var resp struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Usage struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("anthropic messages decode: %w", err)
	}

	var events []Event
	for _, block := range resp.Content {
		if block.Type == "text" {
			events = append(events, AssistantText{Text: block.Text})
		}
	}
	events = append(events, UsageResult{
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		Cost:         c.cost(resp.Usage.InputTokens, resp.Usage.OutputTokens),
	})
	return events, nil
}

func (c *AnthropicClient) cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1e6*c.cfg.InputPricePerMTok +
		float64(outputTokens)/1e6*c.cfg.OutputPricePerMTok
}

// post is a helper for POST requests to the API (JSON in, JSON out).
func (c *AnthropicClient) post(ctx context.Context, path string, payload any) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.cfg.APIKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}
