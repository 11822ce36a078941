package store

import (
	"context"
	"strings"

	"github.com/aralabs/ara/internal/llm"
)

// Checkpoint is one durably stored increment of a thread's message
// sequence. The latest reachable state for a thread is the replay of all
// of its checkpoints in creation order, deduplicated.
type Checkpoint struct {
	ID        string
	ThreadID  string
	State     []llm.Message
	CreatedAt string
}

// ThreadName is the persisted display name of a thread, set once from the
// first user message.
type ThreadName struct {
	ThreadID  string
	Name      string
	CreatedAt string
	UpdatedAt string
}

// DocumentChunk is one indexed excerpt of an ingested document, scoped to
// a thread's collection.
type DocumentChunk struct {
	ID        string
	ThreadID  string
	Content   string
	Page      int
	Embedding []float32
	CreatedAt string
}

type DocumentMeta struct {
	ThreadID  string
	Filename  string
	Pages     int
	Chunks    int
	CreatedAt string
	UpdatedAt string
}

// LLMSettings is an optional runtime override of the model provider
// configuration. API keys are stored AES-GCM encrypted.
type LLMSettings struct {
	PrimaryModel    string
	FallbackModel   string
	BaseURL         string
	APIKeyEnc       string
	BackupAPIKeyEnc string
	CreatedAt       string
	UpdatedAt       string
}

type Store interface {
	AppendCheckpoint(ctx context.Context, threadID string, delta []llm.Message) error
	LoadThread(ctx context.Context, threadID string) ([]llm.Message, error)
	ListThreads(ctx context.Context) ([]string, error)
	GetThreadName(ctx context.Context, threadID string) (string, error)
	SetThreadName(ctx context.Context, threadID string, name string) error

	ReplaceDocumentChunks(ctx context.Context, threadID string, meta DocumentMeta, chunks []DocumentChunk) error
	SearchDocumentChunks(ctx context.Context, threadID string, embedding []float32, limit int) ([]DocumentChunk, error)
	GetDocumentMeta(ctx context.Context, threadID string) (*DocumentMeta, error)

	GetLLMSettings(ctx context.Context) (*LLMSettings, error)
	UpsertLLMSettings(ctx context.Context, settings LLMSettings) error
}

// FallbackThreadName derives a display name for threads that were never
// named.
func FallbackThreadName(threadID string) string {
	id := strings.TrimSpace(threadID)
	if len(id) > 8 {
		id = id[:8]
	}
	return "Chat " + id
}

// ReplayMessages flattens checkpoint deltas into one conversation,
// dropping replay artifacts: messages with an identical (role, content,
// tool-call) identity keep only their first occurrence, in order.
func ReplayMessages(deltas [][]llm.Message) []llm.Message {
	seen := map[string]struct{}{}
	results := []llm.Message{}
	for _, delta := range deltas {
		for _, msg := range delta {
			key := dedupeKey(msg)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			results = append(results, msg)
		}
	}
	return results
}

func dedupeKey(msg llm.Message) string {
	parts := []string{msg.Role, msg.Content, msg.ToolCallID}
	for _, call := range msg.ToolCalls {
		parts = append(parts, call.ID, call.Name, call.Arguments)
	}
	return strings.Join(parts, "\x00")
}
