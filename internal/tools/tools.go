// Package tools exposes the callable functions the model can invoke
// during a turn: web, news, and research search plus per-thread
// document retrieval.
package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aralabs/ara/internal/llm"
)

// Result is the shared shape all external searches reduce to.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Tool is a model-invocable function. Invoke never fails on upstream
// errors; it degrades to explanatory text the model can read.
type Tool interface {
	Definition() llm.ToolDefinition
	Invoke(ctx context.Context, args json.RawMessage) (string, error)
}

type Registry struct {
	order []string
	tools map[string]Tool
}

func NewRegistry(tools ...Tool) *Registry {
	registry := &Registry{tools: map[string]Tool{}}
	for _, tool := range tools {
		name := tool.Definition().Name
		if _, exists := registry.tools[name]; exists {
			continue
		}
		registry.order = append(registry.order, name)
		registry.tools[name] = tool
	}
	return registry
}

func (r *Registry) Definitions() []llm.ToolDefinition {
	definitions := make([]llm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		definitions = append(definitions, r.tools[name].Definition())
	}
	return definitions
}

func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (string, error) {
	tool, ok := r.tools[name]
	if !ok {
		return "", fmt.Errorf("unknown tool %q", name)
	}
	return tool.Invoke(ctx, args)
}

func marshalResults(results []Result) string {
	if results == nil {
		results = []Result{}
	}
	encoded, err := json.Marshal(results)
	if err != nil {
		return "[]"
	}
	return string(encoded)
}

func queryArg(args json.RawMessage) (string, error) {
	var parsed struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &parsed); err != nil {
		return "", fmt.Errorf("invalid tool arguments: %w", err)
	}
	if parsed.Query == "" {
		return "", fmt.Errorf("tool arguments missing query")
	}
	return parsed.Query, nil
}

func queryParameters(description string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": description,
			},
		},
		"required": []string{"query"},
	}
}
