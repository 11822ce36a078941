package api

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/mock"

	"github.com/aralabs/ara/internal/agent"
	"github.com/aralabs/ara/internal/config"
	"github.com/aralabs/ara/internal/events"
	"github.com/aralabs/ara/internal/llm"
	"github.com/aralabs/ara/internal/store"
	"github.com/aralabs/ara/internal/store/memory"
)

type MockStore struct {
	mock.Mock
}

func (m *MockStore) AppendCheckpoint(ctx context.Context, threadID string, delta []llm.Message) error {
	args := m.Called(ctx, threadID, delta)
	return args.Error(0)
}

func (m *MockStore) LoadThread(ctx context.Context, threadID string) ([]llm.Message, error) {
	args := m.Called(ctx, threadID)
	var result []llm.Message
	if value := args.Get(0); value != nil {
		result = value.([]llm.Message)
	}
	return result, args.Error(1)
}

func (m *MockStore) ListThreads(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	var result []string
	if value := args.Get(0); value != nil {
		result = value.([]string)
	}
	return result, args.Error(1)
}

func (m *MockStore) GetThreadName(ctx context.Context, threadID string) (string, error) {
	args := m.Called(ctx, threadID)
	return args.String(0), args.Error(1)
}

func (m *MockStore) SetThreadName(ctx context.Context, threadID string, name string) error {
	args := m.Called(ctx, threadID, name)
	return args.Error(0)
}

func (m *MockStore) ReplaceDocumentChunks(ctx context.Context, threadID string, meta store.DocumentMeta, chunks []store.DocumentChunk) error {
	args := m.Called(ctx, threadID, meta, chunks)
	return args.Error(0)
}

func (m *MockStore) SearchDocumentChunks(ctx context.Context, threadID string, embedding []float32, limit int) ([]store.DocumentChunk, error) {
	args := m.Called(ctx, threadID, embedding, limit)
	var result []store.DocumentChunk
	if value := args.Get(0); value != nil {
		result = value.([]store.DocumentChunk)
	}
	return result, args.Error(1)
}

func (m *MockStore) GetDocumentMeta(ctx context.Context, threadID string) (*store.DocumentMeta, error) {
	args := m.Called(ctx, threadID)
	if value := args.Get(0); value != nil {
		return value.(*store.DocumentMeta), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) GetLLMSettings(ctx context.Context) (*store.LLMSettings, error) {
	args := m.Called(ctx)
	if value := args.Get(0); value != nil {
		return value.(*store.LLMSettings), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStore) UpsertLLMSettings(ctx context.Context, settings store.LLMSettings) error {
	args := m.Called(ctx, settings)
	return args.Error(0)
}

type stubEngine struct {
	snapshots []agent.Snapshot
	err       error
	threadID  string
	text      string
}

func (e *stubEngine) Turn(ctx context.Context, threadID string, text string) (<-chan agent.Snapshot, error) {
	e.threadID = threadID
	e.text = text
	if e.err != nil {
		return nil, e.err
	}
	ch := make(chan agent.Snapshot, len(e.snapshots))
	for _, snapshot := range e.snapshots {
		ch <- snapshot
	}
	close(ch)
	return ch, nil
}

type stubIndex struct {
	meta      *store.DocumentMeta
	ingestErr error
	metaErr   error
}

func (i *stubIndex) Ingest(ctx context.Context, threadID string, filename string, data []byte) (*store.DocumentMeta, error) {
	if i.ingestErr != nil {
		return nil, i.ingestErr
	}
	meta := &store.DocumentMeta{ThreadID: threadID, Filename: filename, Pages: 1, Chunks: 1}
	i.meta = meta
	return meta, nil
}

func (i *stubIndex) Metadata(ctx context.Context, threadID string) (*store.DocumentMeta, error) {
	if i.metaErr != nil {
		return nil, i.metaErr
	}
	return i.meta, nil
}

func newHTTPServer(t *testing.T, server *Server) *httptest.Server {
	t.Helper()
	httpServer := httptest.NewServer(server.Router())
	t.Cleanup(httpServer.Close)
	return httpServer
}

func newTestServer(t *testing.T, s store.Store, engine TurnEngine, cfg config.Config) (*Server, *httptest.Server) {
	t.Helper()
	if s == nil {
		s = memory.New()
	}
	if engine == nil {
		engine = &stubEngine{}
	}
	server := NewServer(s, events.NewBroker(), engine, &stubIndex{}, cfg)
	httpServer := httptest.NewServer(server.Router())
	t.Cleanup(httpServer.Close)
	return server, httpServer
}
