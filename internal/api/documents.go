package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/aralabs/ara/internal/rag"
)

const maxDocumentBytes = 32 << 20

func (s *Server) uploadDocument(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "id")

	filename := strings.TrimSpace(r.Header.Get("X-Filename"))
	if filename == "" {
		filename = "document"
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDocumentBytes))
	if err != nil {
		http.Error(w, "document too large", http.StatusRequestEntityTooLarge)
		return
	}

	meta, err := s.index.Ingest(r.Context(), threadID, filename, data)
	if err != nil {
		switch {
		case errors.Is(err, rag.ErrEmptyInput):
			http.Error(w, "document is empty", http.StatusBadRequest)
		case errors.Is(err, rag.ErrExtractionFailed):
			http.Error(w, "could not extract text from document", http.StatusUnprocessableEntity)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(meta)
}

func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "id")
	meta, err := s.index.Metadata(r.Context(), threadID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if meta == nil {
		http.Error(w, "no document uploaded", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(meta)
}
