package decision

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ppiankov/neurorouter"
)

func chatReply(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	})
	return string(b)
}

func TestChatCompleterSendsExpectedRequest(t *testing.T) {
	var got chatRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(chatReply(`{"action":"done"}`)))
	}))
	defer srv.Close()

	c := NewChatCompleter(srv.URL, "test-key", "test-model")
	out, err := c.Complete(context.Background(), "system text", "user text")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if out != `{"action":"done"}` {
		t.Errorf("unexpected content: %q", out)
	}

	if auth != "Bearer test-key" {
		t.Errorf("expected bearer auth, got %q", auth)
	}
	if got.Model != "test-model" {
		t.Errorf("expected model test-model, got %q", got.Model)
	}
	if got.Temperature != 0 {
		t.Errorf("temperature must be pinned to 0, got %v", got.Temperature)
	}
	if len(got.Messages) != 2 || got.Messages[0].Role != "system" || got.Messages[1].Role != "user" {
		t.Errorf("unexpected messages: %+v", got.Messages)
	}
}

func TestChatCompleterUnauthorizedIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewChatCompleter(srv.URL, "bad-key", "test-model")
	_, err := c.Complete(context.Background(), "s", "u")
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsFatal(err) {
		t.Errorf("401 must be fatal, got %v", err)
	}
}

func TestChatCompleterRateLimitIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewChatCompleter(srv.URL, "key", "test-model")
	_, err := c.Complete(context.Background(), "s", "u")
	if !IsTransient(err) {
		t.Errorf("429 must be transient, got %v", err)
	}
	if !errors.Is(err, neurorouter.ErrRateLimited) {
		t.Errorf("429 must carry the rate limit sentinel, got %v", err)
	}
}

func TestChatCompleterServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream blew up", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewChatCompleter(srv.URL, "key", "test-model")
	_, err := c.Complete(context.Background(), "s", "u")
	if !IsTransient(err) {
		t.Errorf("5xx must be transient, got %v", err)
	}
}

func TestChatCompleterRejectsEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewChatCompleter(srv.URL, "key", "test-model")
	_, err := c.Complete(context.Background(), "s", "u")
	if !IsFatal(err) {
		t.Errorf("empty choices must be fatal, got %v", err)
	}
}

func TestAnthropicCompleterSendsExpectedRequest(t *testing.T) {
	var got anthropicRequest
	var apiKey, version string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("x-api-key")
		version = r.Header.Get("anthropic-version")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{"content":[{"type":"text","text":"{\"action\":\"done\""},{"type":"text","text":"}"}]}`))
	}))
	defer srv.Close()

	c := NewAnthropicCompleter(srv.URL, "test-key", "test-model")
	out, err := c.Complete(context.Background(), "system text", "user text")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if out != `{"action":"done"}` {
		t.Errorf("text blocks must concatenate, got %q", out)
	}

	if apiKey != "test-key" {
		t.Errorf("expected x-api-key header, got %q", apiKey)
	}
	if version != anthropicVersion {
		t.Errorf("expected anthropic-version %q, got %q", anthropicVersion, version)
	}
	if got.System != "system text" {
		t.Errorf("system prompt must use the system field, got %q", got.System)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" {
		t.Errorf("unexpected messages: %+v", got.Messages)
	}
	if got.Temperature != 0 {
		t.Errorf("temperature must be pinned to 0, got %v", got.Temperature)
	}
}

func TestAnthropicCompleterOverloadedIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"type":"overloaded_error"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewAnthropicCompleter(srv.URL, "key", "test-model")
	_, err := c.Complete(context.Background(), "s", "u")
	if !IsTransient(err) {
		t.Errorf("529-style overload must be transient, got %v", err)
	}
}
