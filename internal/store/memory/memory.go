// Package memory holds an in-memory Store used by unit tests and local
// runs without Postgres. Semantics mirror the postgres implementation.
package memory

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aralabs/ara/internal/llm"
	"github.com/aralabs/ara/internal/store"
)

type MemoryStore struct {
	mu          sync.RWMutex
	checkpoints map[string][]store.Checkpoint
	names       map[string]store.ThreadName
	chunks      map[string][]store.DocumentChunk
	docMeta     map[string]store.DocumentMeta
	settings    *store.LLMSettings
}

func New() *MemoryStore {
	return &MemoryStore{
		checkpoints: map[string][]store.Checkpoint{},
		names:       map[string]store.ThreadName{},
		chunks:      map[string][]store.DocumentChunk{},
		docMeta:     map[string]store.DocumentMeta{},
	}
}

func (m *MemoryStore) AppendCheckpoint(ctx context.Context, threadID string, delta []llm.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := store.Checkpoint{
		ID:        uuid.New().String(),
		ThreadID:  threadID,
		State:     append([]llm.Message{}, delta...),
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	m.checkpoints[threadID] = append(m.checkpoints[threadID], cp)
	return nil
}

func (m *MemoryStore) LoadThread(ctx context.Context, threadID string) ([]llm.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	checkpoints := m.checkpoints[threadID]
	deltas := make([][]llm.Message, 0, len(checkpoints))
	for _, cp := range checkpoints {
		deltas = append(deltas, cp.State)
	}
	return store.ReplayMessages(deltas), nil
}

func (m *MemoryStore) ListThreads(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	results := make([]string, 0, len(m.checkpoints))
	for threadID := range m.checkpoints {
		if strings.TrimSpace(threadID) == "" {
			continue
		}
		results = append(results, threadID)
	}
	sort.Strings(results)
	return results, nil
}

func (m *MemoryStore) GetThreadName(ctx context.Context, threadID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if name, ok := m.names[threadID]; ok && strings.TrimSpace(name.Name) != "" {
		return name.Name, nil
	}
	return store.FallbackThreadName(threadID), nil
}

func (m *MemoryStore) SetThreadName(ctx context.Context, threadID string, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	existing, ok := m.names[threadID]
	if !ok {
		existing = store.ThreadName{ThreadID: threadID, CreatedAt: now}
	}
	existing.Name = name
	existing.UpdatedAt = now
	m.names[threadID] = existing
	return nil
}

func (m *MemoryStore) ReplaceDocumentChunks(ctx context.Context, threadID string, meta store.DocumentMeta, chunks []store.DocumentChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	cloned := make([]store.DocumentChunk, 0, len(chunks))
	for _, chunk := range chunks {
		copied := chunk
		copied.ThreadID = threadID
		if copied.ID == "" {
			copied.ID = uuid.New().String()
		}
		if copied.CreatedAt == "" {
			copied.CreatedAt = now
		}
		copied.Embedding = append([]float32{}, chunk.Embedding...)
		cloned = append(cloned, copied)
	}
	m.chunks[threadID] = cloned
	meta.ThreadID = threadID
	if existing, ok := m.docMeta[threadID]; ok {
		meta.CreatedAt = existing.CreatedAt
	} else {
		meta.CreatedAt = now
	}
	meta.UpdatedAt = now
	m.docMeta[threadID] = meta
	return nil
}

func (m *MemoryStore) SearchDocumentChunks(ctx context.Context, threadID string, embedding []float32, limit int) ([]store.DocumentChunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 {
		return []store.DocumentChunk{}, nil
	}
	chunks := m.chunks[threadID]
	type scored struct {
		chunk store.DocumentChunk
		score float64
	}
	ranked := make([]scored, 0, len(chunks))
	for _, chunk := range chunks {
		ranked = append(ranked, scored{chunk: chunk, score: cosineSimilarity(embedding, chunk.Embedding)})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	results := make([]store.DocumentChunk, 0, len(ranked))
	for _, item := range ranked {
		results = append(results, item.chunk)
	}
	return results, nil
}

func (m *MemoryStore) GetDocumentMeta(ctx context.Context, threadID string) (*store.DocumentMeta, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	meta, ok := m.docMeta[threadID]
	if !ok {
		return nil, nil
	}
	cloned := meta
	return &cloned, nil
}

func (m *MemoryStore) GetLLMSettings(ctx context.Context) (*store.LLMSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.settings == nil {
		return nil, nil
	}
	cloned := *m.settings
	return &cloned, nil
}

func (m *MemoryStore) UpsertLLMSettings(ctx context.Context, settings store.LLMSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cloned := settings
	m.settings = &cloned
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
