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

// maxResponseBytes bounds how much of a completion response is read.
const maxResponseBytes = 1 << 20

// defaultMaxTokens is enough for a single-decision JSON object.
const defaultMaxTokens = 512

// ChatCompleter talks to any OpenAI-compatible chat completions
// endpoint (OpenAI, Groq, Ollama's /v1 route, vLLM, ...).
type ChatCompleter struct {
	Endpoint  string
	APIKey    string
	Model     string
	MaxTokens int
	Client    *http.Client
}

// NewChatCompleter creates a completer for an OpenAI-compatible endpoint.
func NewChatCompleter(endpoint, apiKey, model string) *ChatCompleter {
	return &ChatCompleter{
		Endpoint:  endpoint,
		APIKey:    apiKey,
		Model:     model,
		MaxTokens: defaultMaxTokens,
		Client:    &http.Client{Timeout: 60 * time.Second},
	}
}

// Name identifies the completer in logs.
func (c *ChatCompleter) Name() string { return "chat" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends one chat completion request. Temperature is pinned to
// zero: decisions must be as deterministic as the service allows.
func (c *ChatCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	maxTokens := c.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	body, err := json.Marshal(chatRequest{
		Model: c.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		MaxTokens:   maxTokens,
		Temperature: 0,
	})
	if err != nil {
		return "", NewFatalError(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", NewFatalError(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	client := c.Client
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

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", NewFatalError(fmt.Errorf("parse response: %w", err))
	}
	if len(parsed.Choices) == 0 {
		return "", NewFatalError(fmt.Errorf("response contained no choices"))
	}
	return parsed.Choices[0].Message.Content, nil
}
