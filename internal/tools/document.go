package tools

import (
	"context"
	"encoding/json"

	"github.com/aralabs/ara/internal/llm"
	"github.com/aralabs/ara/internal/rag"
)

// DocumentSearch retrieves excerpts from the document uploaded to one
// thread. The thread is bound at construction so the model only ever
// supplies the query.
type DocumentSearch struct {
	index    *rag.Index
	threadID string
}

func NewDocumentSearch(index *rag.Index, threadID string) *DocumentSearch {
	return &DocumentSearch{index: index, threadID: threadID}
}

func (d *DocumentSearch) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "document_search",
		Description: "Search the document uploaded to this conversation for relevant passages.",
		Parameters:  queryParameters("What to look for in the document."),
	}
}

func (d *DocumentSearch) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	query, err := queryArg(args)
	if err != nil {
		return "", err
	}
	excerpts, err := d.index.Search(ctx, d.threadID, query)
	if err != nil {
		return rag.NoResultsSentinel, nil
	}
	return excerpts, nil
}
