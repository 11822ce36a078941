// Package agent runs the reasoning loop for a conversation turn: model
// calls, tool execution, checkpointing, and event publication.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/aralabs/ara/internal/events"
	"github.com/aralabs/ara/internal/llm"
	"github.com/aralabs/ara/internal/store"
	"github.com/aralabs/ara/internal/tools"
)

// Snapshot is one externally visible state of an in-flight turn.
type Snapshot struct {
	Content string `json:"content"`
	Done    bool   `json:"done"`
	Warning string `json:"warning,omitempty"`
}

// ProviderFunc resolves a model backend for one turn. It runs before
// any state is written, so a resolution failure aborts the turn
// cleanly.
type ProviderFunc func(ctx context.Context) (llm.Provider, error)

// RegistryFunc builds the tool set for one thread. Document search is
// thread-bound, so the registry cannot be shared across threads.
type RegistryFunc func(threadID string) *tools.Registry

type Engine struct {
	store     store.Store
	broker    *events.Broker
	provider  ProviderFunc
	toolsFor  RegistryFunc
	system    func() string
	maxRounds int
}

func NewEngine(s store.Store, broker *events.Broker, provider ProviderFunc, toolsFor RegistryFunc, system func() string, maxRounds int) *Engine {
	return &Engine{
		store:     s,
		broker:    broker,
		provider:  provider,
		toolsFor:  toolsFor,
		system:    system,
		maxRounds: maxRounds,
	}
}

// Turn runs one user message through the reasoning loop. Failures
// before any state is written return an error; failures after that
// surface as a warning on the final snapshot, with completed cycles
// already committed.
func (e *Engine) Turn(ctx context.Context, threadID string, text string) (<-chan Snapshot, error) {
	provider, err := e.provider(ctx)
	if err != nil {
		return nil, err
	}
	history, err := e.store.LoadThread(ctx, threadID)
	if err != nil {
		return nil, err
	}

	snapshots := make(chan Snapshot, 8)
	go e.run(ctx, provider, threadID, text, history, snapshots)
	return snapshots, nil
}

func (e *Engine) run(ctx context.Context, provider llm.Provider, threadID string, text string, history []llm.Message, snapshots chan<- Snapshot) {
	defer close(snapshots)

	e.publish(threadID, "turn.started", map[string]any{"text": text})

	registry := e.toolsFor(threadID)
	definitions := registry.Definitions()

	userMessage := llm.Message{Role: llm.RoleUser, Content: text}
	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: e.system()})
	messages = append(messages, history...)
	messages = append(messages, userMessage)

	firstTurn := len(history) == 0
	named := !firstTurn
	var warning string

	// delta holds the messages produced since the last committed
	// checkpoint. The first cycle's delta starts with the user message.
	delta := []llm.Message{userMessage}

	for round := 0; ; round++ {
		reply, err := provider.Chat(ctx, messages, definitions)
		if err != nil {
			e.publish(threadID, "turn.failed", map[string]any{"error": err.Error()})
			snapshots <- Snapshot{Done: true, Warning: fmt.Sprintf("the model backend failed mid-turn: %v", err)}
			return
		}

		if !named {
			e.nameThread(ctx, threadID, text)
			named = true
		}

		if len(reply.ToolCalls) == 0 {
			messages = append(messages, *reply)
			delta = append(delta, *reply)
			e.commit(ctx, threadID, delta, &warning)
			e.publish(threadID, "answer.updated", map[string]any{"content": reply.Content})
			e.publish(threadID, "turn.completed", nil)
			snapshots <- Snapshot{Content: reply.Content, Done: true, Warning: warning}
			return
		}

		if e.maxRounds > 0 && round+1 >= e.maxRounds {
			// Unanswered tool calls must not reach the checkpoint, or
			// replaying the thread would hand the model a dangling
			// request.
			final := *reply
			final.ToolCalls = nil
			delta = append(delta, final)
			e.commit(ctx, threadID, delta, &warning)
			e.publish(threadID, "turn.completed", nil)
			if warning == "" {
				warning = "stopped before the tool loop finished"
			}
			snapshots <- Snapshot{Content: final.Content, Done: true, Warning: warning}
			return
		}

		messages = append(messages, *reply)
		delta = append(delta, *reply)

		if reply.Content != "" {
			e.publish(threadID, "answer.updated", map[string]any{"content": reply.Content})
			snapshots <- Snapshot{Content: reply.Content}
		}

		// Tool results keep the request order of the calls that asked
		// for them.
		for _, call := range reply.ToolCalls {
			e.publish(threadID, "tool.called", map[string]any{"tool": call.Name, "arguments": call.Arguments})
			output, err := registry.Invoke(ctx, call.Name, json.RawMessage(call.Arguments))
			if err != nil {
				output = fmt.Sprintf("tool %s failed: %v", call.Name, err)
			}
			e.publish(threadID, "tool.completed", map[string]any{"tool": call.Name})

			result := llm.Message{Role: llm.RoleTool, Content: output, ToolCallID: call.ID}
			messages = append(messages, result)
			delta = append(delta, result)
		}

		e.commit(ctx, threadID, delta, &warning)
		delta = nil
	}
}

// commit appends the accumulated delta as one checkpoint. Persistence
// problems degrade the turn to a warning instead of failing it.
func (e *Engine) commit(ctx context.Context, threadID string, delta []llm.Message, warning *string) {
	if len(delta) == 0 {
		return
	}
	if err := e.store.AppendCheckpoint(ctx, threadID, delta); err != nil {
		log.Printf("agent: checkpoint append failed for thread %s: %v", threadID, err)
		*warning = "the conversation could not be saved; this turn may be lost on restart"
	}
}

func (e *Engine) nameThread(ctx context.Context, threadID string, text string) {
	name := deriveThreadName(text)
	if err := e.store.SetThreadName(ctx, threadID, name); err != nil {
		log.Printf("agent: naming thread %s failed: %v", threadID, err)
	}
}

// deriveThreadName flattens the first user message into a single display
// line before truncating.
func deriveThreadName(text string) string {
	name := strings.ReplaceAll(strings.TrimSpace(text), "\n", " ")
	runes := []rune(name)
	if len(runes) <= 40 {
		return name
	}
	return string(runes[:40]) + "..."
}

func (e *Engine) publish(threadID string, eventType string, payload map[string]any) {
	e.broker.Publish(events.TurnEvent{
		ThreadID: threadID,
		Type:     eventType,
		Ts:       time.Now().UTC().Format(time.RFC3339Nano),
		Payload:  payload,
	})
}
