package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *GroqProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	provider, err := NewGroqProvider(GroqConfig{
		APIKey:  "test-key",
		Model:   "llama-3.3-70b-versatile",
		BaseURL: server.URL,
	})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return provider
}

func TestGroqChat_Content(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", auth)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "Paris is the capital of France."}},
			},
		})
	})

	msg, err := provider.Chat(context.Background(), []Message{{Role: RoleUser, Content: "capital of France?"}}, nil)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if msg.Content != "Paris is the capital of France." {
		t.Errorf("unexpected content %q", msg.Content)
	}
	if len(msg.ToolCalls) != 0 {
		t.Errorf("expected no tool calls, got %d", len(msg.ToolCalls))
	}
}

func TestGroqChat_ToolCalls(t *testing.T) {
	var gotPayload map[string]any
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotPayload)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{
					"role":    "assistant",
					"content": "",
					"tool_calls": []map[string]any{
						{
							"id":   "call-1",
							"type": "function",
							"function": map[string]any{
								"name":      "web_search",
								"arguments": `{"query":"latest news"}`,
							},
						},
					},
				}},
			},
		})
	})

	tools := []ToolDefinition{{
		Name:        "web_search",
		Description: "general web search",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"query": map[string]any{"type": "string"}},
			"required":   []string{"query"},
		},
	}}
	msg, err := provider.Chat(context.Background(), []Message{{Role: RoleUser, Content: "latest news"}}, tools)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if len(msg.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(msg.ToolCalls))
	}
	call := msg.ToolCalls[0]
	if call.ID != "call-1" || call.Name != "web_search" {
		t.Errorf("unexpected tool call %+v", call)
	}
	if _, ok := gotPayload["tools"]; !ok {
		t.Error("expected tools in request payload")
	}
}

func TestGroqChat_ToolResultRoundTrip(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Messages []wireMessage `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		if len(payload.Messages) != 3 {
			t.Errorf("expected 3 wire messages, got %d", len(payload.Messages))
		} else {
			assistant := payload.Messages[1]
			if len(assistant.ToolCalls) != 1 || assistant.ToolCalls[0].Function.Name != "news_search" {
				t.Errorf("assistant tool calls not preserved: %+v", assistant.ToolCalls)
			}
			if payload.Messages[2].ToolCallID != "call-9" {
				t.Errorf("tool result not linked to call: %+v", payload.Messages[2])
			}
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "summary"}},
			},
		})
	})

	messages := []Message{
		{Role: RoleUser, Content: "news?"},
		{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "call-9", Name: "news_search", Arguments: `{"query":"news"}`}}},
		{Role: RoleTool, Content: "[]", ToolCallID: "call-9"},
	}
	msg, err := provider.Chat(context.Background(), messages, nil)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if msg.Content != "summary" {
		t.Errorf("unexpected content %q", msg.Content)
	}
}

func TestGroqChat_HTTPError(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})
	if _, err := provider.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil); err == nil {
		t.Fatal("expected error on 429 response")
	}
}

func TestGroqChat_EmptyResponse(t *testing.T) {
	provider := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": "  "}},
			},
		})
	})
	if _, err := provider.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil); err == nil {
		t.Fatal("expected error on empty response")
	}
}

func TestNewGroqProvider_Validation(t *testing.T) {
	if _, err := NewGroqProvider(GroqConfig{Model: "m"}); err == nil {
		t.Error("expected error for missing API key")
	}
	if _, err := NewGroqProvider(GroqConfig{APIKey: "k"}); err == nil {
		t.Error("expected error for missing model")
	}
}
