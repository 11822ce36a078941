// Package rag maintains one retrieval index per conversation thread:
// document ingestion, chunking, embedding, and similarity search.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aralabs/ara/internal/embed"
	"github.com/aralabs/ara/internal/store"
)

const (
	// NoDocumentSentinel is returned when a thread has no ingested
	// document.
	NoDocumentSentinel = "No document has been uploaded for this conversation. Please upload a PDF first."
	// NoResultsSentinel is returned when search finds nothing relevant.
	NoResultsSentinel = "No relevant information found in the document."
)

var (
	ErrEmptyInput       = errors.New("document is empty")
	ErrExtractionFailed = errors.New("document text extraction failed")
	ErrNoEmbedder       = errors.New("no embedding backend configured")
)

type Config struct {
	ChunkChars       int
	ChunkOverlap     int
	RetrievalResults int
}

type Index struct {
	store     store.Store
	embedder  embed.Embedder
	extractor Extractor
	config    Config
}

func NewIndex(s store.Store, embedder embed.Embedder, extractor Extractor, config Config) *Index {
	if config.ChunkChars <= 0 {
		config.ChunkChars = 1000
	}
	if config.ChunkOverlap < 0 || config.ChunkOverlap >= config.ChunkChars {
		config.ChunkOverlap = 200
	}
	if config.RetrievalResults <= 0 {
		config.RetrievalResults = 4
	}
	return &Index{store: s, embedder: embedder, extractor: extractor, config: config}
}

// Ingest extracts, chunks, and embeds a document and replaces whatever
// the thread had before. One document per thread.
func (x *Index) Ingest(ctx context.Context, threadID string, filename string, data []byte) (*store.DocumentMeta, error) {
	if x.embedder == nil {
		return nil, ErrNoEmbedder
	}
	if len(data) == 0 {
		return nil, ErrEmptyInput
	}
	pages, err := x.extractor.Extract(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}
	if len(pages) == 0 {
		return nil, ErrExtractionFailed
	}

	chunks := []store.DocumentChunk{}
	texts := []string{}
	for _, page := range pages {
		for _, piece := range splitText(page.Text, x.config.ChunkChars, x.config.ChunkOverlap) {
			if strings.TrimSpace(piece) == "" {
				continue
			}
			chunks = append(chunks, store.DocumentChunk{
				ThreadID: threadID,
				Content:  piece,
				Page:     page.Number,
			})
			texts = append(texts, piece)
		}
	}
	if len(chunks) == 0 {
		return nil, ErrExtractionFailed
	}

	vectors, err := x.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	for i := range chunks {
		if i < len(vectors) {
			chunks[i].Embedding = vectors[i]
		}
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	meta := store.DocumentMeta{
		ThreadID:  threadID,
		Filename:  filename,
		Pages:     len(pages),
		Chunks:    len(chunks),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := x.store.ReplaceDocumentChunks(ctx, threadID, meta, chunks); err != nil {
		return nil, err
	}
	return &meta, nil
}

// Search embeds the query and returns the top matching excerpts as a
// single formatted string. Sentinel strings stand in for error states
// so the caller can hand the result straight to the model.
func (x *Index) Search(ctx context.Context, threadID string, query string) (string, error) {
	has, err := x.HasDocument(ctx, threadID)
	if err != nil {
		return "", err
	}
	if !has {
		return NoDocumentSentinel, nil
	}
	if x.embedder == nil {
		return NoResultsSentinel, nil
	}

	vectors, err := x.embedder.Embed(ctx, []string{query})
	if err != nil {
		return "", err
	}
	if len(vectors) == 0 {
		return NoResultsSentinel, nil
	}

	chunks, err := x.store.SearchDocumentChunks(ctx, threadID, vectors[0], x.config.RetrievalResults)
	if err != nil {
		return "", err
	}
	if len(chunks) == 0 {
		return NoResultsSentinel, nil
	}

	excerpts := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		excerpts = append(excerpts, fmt.Sprintf("[Page %d]\n%s", chunk.Page, chunk.Content))
	}
	return strings.Join(excerpts, "\n\n---\n\n"), nil
}

func (x *Index) HasDocument(ctx context.Context, threadID string) (bool, error) {
	meta, err := x.store.GetDocumentMeta(ctx, threadID)
	if err != nil {
		return false, err
	}
	return meta != nil, nil
}

func (x *Index) Metadata(ctx context.Context, threadID string) (*store.DocumentMeta, error) {
	return x.store.GetDocumentMeta(ctx, threadID)
}
