package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aralabs/ara/internal/agent"
	"github.com/aralabs/ara/internal/config"
	"github.com/aralabs/ara/internal/events"
	"github.com/aralabs/ara/internal/rag"
	"github.com/aralabs/ara/internal/store"
)

type Server struct {
	store  store.Store
	broker Broker
	engine TurnEngine
	index  DocumentIndex
	cfg    config.Config
}

type Broker interface {
	Publish(event events.TurnEvent)
	Subscribe(ctx context.Context, threadID string) <-chan events.TurnEvent
}

type TurnEngine interface {
	Turn(ctx context.Context, threadID string, text string) (<-chan agent.Snapshot, error)
}

type DocumentIndex interface {
	Ingest(ctx context.Context, threadID string, filename string, data []byte) (*store.DocumentMeta, error)
	Metadata(ctx context.Context, threadID string) (*store.DocumentMeta, error)
}

var _ DocumentIndex = (*rag.Index)(nil)

func NewServer(store store.Store, broker Broker, engine TurnEngine, index DocumentIndex, cfg config.Config) *Server {
	return &Server{
		store:  store,
		broker: broker,
		engine: engine,
		index:  index,
		cfg:    cfg,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(quietRequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Post("/threads", s.createThread)
	r.Get("/threads", s.listThreads)
	r.Get("/threads/{id}/messages", s.listMessages)
	r.Post("/threads/{id}/messages", s.postMessage)
	r.Get("/threads/{id}/events", s.streamEvents)
	r.Post("/threads/{id}/document", s.uploadDocument)
	r.Get("/threads/{id}/document", s.getDocument)
	r.Get("/settings/llm", s.getLLMSettings)
	r.Post("/settings/llm", s.updateLLMSettings)
	r.Get("/health", s.health)
	r.Get("/ready", s.ready)

	return r
}

func quietRequestLogger(next http.Handler) http.Handler {
	logged := middleware.Logger(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shouldSuppressRequestLog(r.Method, r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		logged.ServeHTTP(w, r)
	})
}

func shouldSuppressRequestLog(method string, path string) bool {
	cleanPath := strings.TrimSpace(path)
	if method == http.MethodGet && strings.HasSuffix(cleanPath, "/events") {
		return true
	}
	if method == http.MethodGet && (cleanPath == "/threads" || strings.HasPrefix(cleanPath, "/settings/")) {
		return true
	}
	if method == http.MethodOptions {
		return true
	}
	return false
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type subsystemStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type readinessResponse struct {
	Status     string                     `json:"status"`
	Subsystems map[string]subsystemStatus `json:"subsystems"`
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	subsystems := map[string]subsystemStatus{}
	overall := http.StatusOK

	if _, err := s.store.ListThreads(ctx); err != nil {
		subsystems["store"] = subsystemStatus{Status: "error", Error: err.Error()}
		overall = http.StatusServiceUnavailable
	} else {
		subsystems["store"] = subsystemStatus{Status: "ok"}
	}

	configured, err := s.llmConfigured(ctx)
	switch {
	case err != nil:
		subsystems["llm"] = subsystemStatus{Status: "error", Error: err.Error()}
		overall = http.StatusServiceUnavailable
	case configured:
		subsystems["llm"] = subsystemStatus{Status: "ok"}
	default:
		subsystems["llm"] = subsystemStatus{Status: "unconfigured"}
	}

	if strings.TrimSpace(s.cfg.HuggingFaceAPIKey) == "" {
		subsystems["embeddings"] = subsystemStatus{Status: "unconfigured"}
	} else {
		subsystems["embeddings"] = subsystemStatus{Status: "ok"}
	}

	status := "ok"
	if overall != http.StatusOK {
		status = "degraded"
	}
	writeJSONStatus(w, readinessResponse{Status: status, Subsystems: subsystems}, overall)
}

func writeJSONStatus(w http.ResponseWriter, value any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

func (s *Server) llmConfigured(ctx context.Context) (bool, error) {
	if strings.TrimSpace(s.cfg.GroqAPIKey) != "" {
		return true, nil
	}
	settings, err := s.store.GetLLMSettings(ctx)
	if err != nil {
		return false, err
	}
	return settings != nil && settings.APIKeyEnc != "", nil
}

func (s *Server) ensureLLMConfigured(w http.ResponseWriter, ctx context.Context) bool {
	configured, err := s.llmConfigured(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return false
	}
	if !configured {
		http.Error(w, "LLM setup required", http.StatusPreconditionFailed)
		return false
	}
	return true
}

func sendSSE(w http.ResponseWriter, event events.TurnEvent) {
	payload, _ := json.Marshal(event)
	fmt.Fprintf(w, "id: %s:%d\n", event.ThreadID, event.Seq)
	fmt.Fprint(w, "event: turn_event\n")
	fmt.Fprintf(w, "data: %s\n\n", payload)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Last-Event-ID, X-Filename")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) Start(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()
	return server.ListenAndServe()
}
