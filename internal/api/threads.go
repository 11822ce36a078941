package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/aralabs/ara/internal/store"
)

type threadSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (s *Server) createThread(w http.ResponseWriter, r *http.Request) {
	id := uuid.New().String()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(threadSummary{
		ID:   id,
		Name: store.FallbackThreadName(id),
	})
}

func (s *Server) listThreads(w http.ResponseWriter, r *http.Request) {
	ids, err := s.store.ListThreads(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	summaries := make([]threadSummary, 0, len(ids))
	for _, id := range ids {
		name, err := s.store.GetThreadName(r.Context(), id)
		if err != nil {
			name = store.FallbackThreadName(id)
		}
		summaries = append(summaries, threadSummary{ID: id, Name: name})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"threads": summaries})
}

type messageView struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "id")
	history, err := s.store.LoadThread(r.Context(), threadID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	// Tool plumbing stays internal; clients see the conversational
	// transcript only.
	views := make([]messageView, 0, len(history))
	for _, message := range history {
		if message.Role != "user" && message.Role != "assistant" {
			continue
		}
		if message.Content == "" {
			continue
		}
		views = append(views, messageView{Role: message.Role, Content: message.Content})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"messages": views})
}

type postMessageRequest struct {
	Content string `json:"content"`
}

func (s *Server) postMessage(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "id")
	if !s.ensureLLMConfigured(w, r.Context()) {
		return
	}

	var req postMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	if req.Content == "" {
		http.Error(w, "message content required", http.StatusBadRequest)
		return
	}

	snapshots, err := s.engine.Turn(r.Context(), threadID, req.Content)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	for snapshot := range snapshots {
		payload, _ := json.Marshal(snapshot)
		fmt.Fprint(w, "event: snapshot\n")
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}
}

func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "id")
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	eventsChan := s.broker.Subscribe(ctx, threadID)
	heartbeat := time.NewTicker(15 * time.Second)
	defer heartbeat.Stop()

	flusher.Flush()
	for {
		select {
		case event, ok := <-eventsChan:
			if !ok {
				return
			}
			sendSSE(w, event)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case <-ctx.Done():
			return
		}
	}
}
