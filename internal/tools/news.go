package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/aralabs/ara/internal/llm"
)

const defaultNewsAPIURL = "https://newsapi.org/v2/everything"

// NewsSearch queries NewsAPI for recent articles, newest first.
type NewsSearch struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func NewNewsSearch(apiKey string) *NewsSearch {
	return &NewsSearch{
		apiKey:  apiKey,
		baseURL: defaultNewsAPIURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (n *NewsSearch) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        "news_search",
		Description: "Search recent news articles, ordered by publication date.",
		Parameters:  queryParameters("The news topic to search for."),
	}
}

func (n *NewsSearch) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	query, err := queryArg(args)
	if err != nil {
		return "", err
	}
	results, err := n.search(ctx, query)
	if err != nil {
		return fmt.Sprintf("news search is unavailable: %v", err), nil
	}
	return marshalResults(results), nil
}

func (n *NewsSearch) search(ctx context.Context, query string) ([]Result, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("sortBy", "publishedAt")
	params.Set("pageSize", "5")
	params.Set("apiKey", n.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("newsapi returned status %d", resp.StatusCode)
	}

	var parsed struct {
		Articles []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"articles"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(parsed.Articles))
	for _, article := range parsed.Articles {
		results = append(results, Result{Title: article.Title, URL: article.URL, Snippet: article.Description})
	}
	return results, nil
}
