package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aralabs/ara/internal/llm"
)

const defaultSerperURL = "https://google.serper.dev/search"

// WebSearch queries Serper for general web results.
type WebSearch struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewWebSearch(apiKey string) *WebSearch {
	return &WebSearch{
		apiKey:  apiKey,
		baseURL: defaultSerperURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (w *WebSearch) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "web_search",
		Description: "Search the web for current information on any topic.",
		Parameters:  queryParameters("The search query."),
	}
}

func (w *WebSearch) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	query, err := queryArg(args)
	if err != nil {
		return "", err
	}
	results, err := w.search(ctx, query)
	if err != nil {
		return fmt.Sprintf("web search is unavailable: %v", err), nil
	}
	return marshalResults(results), nil
}

func (w *WebSearch) search(ctx context.Context, query string) ([]Result, error) {
	payload, err := json.Marshal(map[string]any{"q": query, "num": 5})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-KEY", w.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("serper returned status %d", resp.StatusCode)
	}

	var parsed struct {
		Organic []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(parsed.Organic))
	for _, item := range parsed.Organic {
		results = append(results, Result{Title: item.Title, URL: item.Link, Snippet: item.Snippet})
	}
	return results, nil
}
