package llm

import (
	"context"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is a structured request from the model to invoke a named tool.
// Arguments is the raw JSON argument object as the model produced it.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Message is one conversation message. Assistant messages may carry tool
// calls; tool messages answer one call and reference it via ToolCallID.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolDefinition describes a callable tool to the model. Parameters is a
// JSON-schema object.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

type Provider interface {
	Chat(ctx context.Context, messages []Message, tools []ToolDefinition) (*Message, error)
}

// Handle is a resolved, ready-to-use backend bound to one credential and
// one model tier. Cheap to discard and re-resolve.
type Handle struct {
	Provider Provider
	Model    string
}

func (h *Handle) Chat(ctx context.Context, messages []Message, tools []ToolDefinition) (*Message, error) {
	return h.Provider.Chat(ctx, messages, tools)
}
