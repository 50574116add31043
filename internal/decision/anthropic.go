package decision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// anthropicVersion is the API version header value.
const anthropicVersion = "2023-06-01"

// defaultAnthropicEndpoint is the Messages API URL.
const defaultAnthropicEndpoint = "https://api.anthropic.com/v1/messages"

// AnthropicCompleter talks to the Anthropic Messages API.
type AnthropicCompleter struct {
	Endpoint  string
	APIKey    string
	Model     string
	MaxTokens int
	Client    *http.Client
}

// NewAnthropicCompleter creates a completer for the Anthropic API.
// An empty endpoint uses the public API URL.
func NewAnthropicCompleter(endpoint, apiKey, model string) *AnthropicCompleter {
	if endpoint == "" {
		endpoint = defaultAnthropicEndpoint
	}
	return &AnthropicCompleter{
		Endpoint:  endpoint,
		APIKey:    apiKey,
		Model:     model,
		MaxTokens: defaultMaxTokens,
		Client:    &http.Client{Timeout: 60 * time.Second},
	}
}

// Name identifies the completer in logs.
func (a *AnthropicCompleter) Name() string { return "anthropic" }

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
	Temperature float64            `json:"temperature"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Complete sends one Messages API request.
func (a *AnthropicCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	maxTokens := a.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	body, err := json.Marshal(anthropicRequest{
		Model:       a.Model,
		MaxTokens:   maxTokens,
		System:      system,
		Messages:    []anthropicMessage{{Role: "user", Content: user}},
		Temperature: 0,
	})
	if err != nil {
		return "", NewFatalError(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", NewFatalError(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.APIKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	client := a.Client
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", NewTransientError(fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", NewTransientError(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyHTTPStatus(resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", NewFatalError(fmt.Errorf("parse response: %w", err))
	}

	var content string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}
	if content == "" {
		return "", NewFatalError(fmt.Errorf("response contained no text content"))
	}
	return content, nil
}
