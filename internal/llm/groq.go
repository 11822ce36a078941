package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type GroqConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
}

// GroqProvider speaks the OpenAI-compatible chat completions API that Groq
// exposes, including function-style tool calling.
type GroqProvider struct {
	apiKey      string
	model       string
	baseURL     string
	temperature float64
	client      *http.Client
}

func NewGroqProvider(cfg GroqConfig) (*GroqProvider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("missing API key for Groq provider")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, errors.New("missing model for Groq provider")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.groq.com/openai/v1"
	}
	return &GroqProvider{
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		baseURL:     strings.TrimRight(baseURL, "/"),
		temperature: cfg.Temperature,
		client:      &http.Client{Timeout: 60 * time.Second},
	}, nil
}

type wireToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type wireMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []wireToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type wireTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string         `json:"name"`
		Description string         `json:"description"`
		Parameters  map[string]any `json:"parameters"`
	} `json:"function"`
}

func (p *GroqProvider) Chat(ctx context.Context, messages []Message, tools []ToolDefinition) (*Message, error) {
	payload := map[string]any{
		"model":       p.model,
		"temperature": p.temperature,
		"messages":    toWireMessages(messages),
	}
	if len(tools) > 0 {
		payload["tools"] = toWireTools(tools)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("LLM request failed: %s", resp.Status)
	}

	var parsed struct {
		Choices []struct {
			Message wireMessage `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	if len(parsed.Choices) == 0 {
		return nil, errors.New("LLM response had no choices")
	}
	out := fromWireMessage(parsed.Choices[0].Message)
	if strings.TrimSpace(out.Content) == "" && len(out.ToolCalls) == 0 {
		return nil, errors.New("LLM response was empty")
	}
	return &out, nil
}

func toWireMessages(messages []Message) []wireMessage {
	results := make([]wireMessage, 0, len(messages))
	for _, msg := range messages {
		wire := wireMessage{
			Role:       msg.Role,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, call := range msg.ToolCalls {
			item := wireToolCall{ID: call.ID, Type: "function"}
			item.Function.Name = call.Name
			item.Function.Arguments = call.Arguments
			wire.ToolCalls = append(wire.ToolCalls, item)
		}
		results = append(results, wire)
	}
	return results
}

func toWireTools(tools []ToolDefinition) []wireTool {
	results := make([]wireTool, 0, len(tools))
	for _, tool := range tools {
		item := wireTool{Type: "function"}
		item.Function.Name = tool.Name
		item.Function.Description = tool.Description
		item.Function.Parameters = tool.Parameters
		results = append(results, item)
	}
	return results
}

func fromWireMessage(wire wireMessage) Message {
	msg := Message{
		Role:       wire.Role,
		Content:    strings.TrimSpace(wire.Content),
		ToolCallID: wire.ToolCallID,
	}
	if msg.Role == "" {
		msg.Role = RoleAssistant
	}
	for _, call := range wire.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: call.Function.Arguments,
		})
	}
	return msg
}
