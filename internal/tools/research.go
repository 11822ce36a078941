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

const defaultTavilyURL = "https://api.tavily.com/search"

// ResearchSearch queries Tavily for deeper research-oriented results.
type ResearchSearch struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewResearchSearch(apiKey string) *ResearchSearch {
	return &ResearchSearch{
		apiKey:  apiKey,
		baseURL: defaultTavilyURL,
		client:  &http.Client{Timeout: 20 * time.Second},
	}
}

func (r *ResearchSearch) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "research_search",
		Description: "Search for in-depth research material and analysis on a topic.",
		Parameters:  queryParameters("The research question or topic."),
	}
}

func (r *ResearchSearch) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	query, err := queryArg(args)
	if err != nil {
		return "", err
	}
	results, err := r.search(ctx, query)
	if err != nil {
		return fmt.Sprintf("research search is unavailable: %v", err), nil
	}
	return marshalResults(results), nil
}

func (r *ResearchSearch) search(ctx context.Context, query string) ([]Result, error) {
	payload, err := json.Marshal(map[string]any{
		"api_key":     r.apiKey,
		"query":       query,
		"max_results": 5,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily returned status %d", resp.StatusCode)
	}

	var parsed struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(parsed.Results))
	for _, item := range parsed.Results {
		results = append(results, Result{Title: item.Title, URL: item.URL, Snippet: item.Content})
	}
	return results, nil
}
