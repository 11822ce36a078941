// Package embed turns text into dense vectors through the Hugging Face
// Inference API feature-extraction pipeline.
package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

type HFConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimensions int
	BatchSize  int
	MaxRetries int
}

type HFEmbedder struct {
	config        HFConfig
	client        *http.Client
	retryInterval time.Duration
}

func NewHFEmbedder(config HFConfig) (*HFEmbedder, error) {
	if config.APIKey == "" {
		return nil, errors.New("embedding api key is required")
	}
	if config.Model == "" {
		config.Model = "BAAI/bge-small-en-v1.5"
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://api-inference.huggingface.co"
	}
	if config.Dimensions <= 0 {
		config.Dimensions = 384
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 16
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	return &HFEmbedder{
		config:        config,
		client:        &http.Client{Timeout: 30 * time.Second},
		retryInterval: 400 * time.Millisecond,
	}, nil
}

// Embed returns one vector per input text, in input order. A batch that
// keeps failing after retries degrades to zero vectors instead of
// failing the whole call.
func (e *HFEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.config.BatchSize {
		end := start + e.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		vectors, err := e.embedBatchWithRetry(ctx, batch)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Printf("embed: batch %d-%d failed after retries, substituting zero vectors: %v", start, end, err)
			vectors = make([][]float32, len(batch))
			for i := range vectors {
				vectors[i] = make([]float32, e.config.Dimensions)
			}
		}
		results = append(results, vectors...)
	}
	return results, nil
}

// retryPolicy waits longer after each failed attempt, starting at the
// configured interval and doubling, capped at MaxRetries attempts total.
func (e *HFEmbedder) retryPolicy(ctx context.Context) backoff.BackOff {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = e.retryInterval
	policy.RandomizationFactor = 0
	policy.Multiplier = 2
	return backoff.WithContext(
		backoff.WithMaxRetries(policy, uint64(e.config.MaxRetries-1)),
		ctx,
	)
}

func (e *HFEmbedder) embedBatchWithRetry(ctx context.Context, batch []string) ([][]float32, error) {
	var vectors [][]float32
	policy := e.retryPolicy(ctx)
	operation := func() error {
		result, err := e.embedBatch(ctx, batch)
		if err != nil {
			return err
		}
		vectors = result
		return nil
	}
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}
	return vectors, nil
}

func (e *HFEmbedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	payload, err := json.Marshal(map[string]any{"inputs": batch})
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/pipeline/feature-extraction/%s", e.config.BaseURL, e.config.Model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+e.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding request failed with status %d: %s", resp.StatusCode, string(body))
	}

	vectors, err := normalizeVectors(body)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(batch) {
		return nil, fmt.Errorf("embedding response has %d vectors for %d inputs", len(vectors), len(batch))
	}
	for i, vector := range vectors {
		if len(vector) != e.config.Dimensions {
			return nil, fmt.Errorf("embedding %d has %d dimensions, want %d", i, len(vector), e.config.Dimensions)
		}
	}
	return vectors, nil
}

// normalizeVectors flattens the inference API's response shapes. The
// pipeline returns [[f]] for a batch, but some deployments wrap each
// vector in an extra token axis, yielding [[[f]]].
func normalizeVectors(body []byte) ([][]float32, error) {
	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}
	outer, ok := parsed.([]any)
	if !ok || len(outer) == 0 {
		return nil, errors.New("embedding response is not a non-empty array")
	}

	switch outer[0].(type) {
	case float64:
		vector, err := toVector(outer)
		if err != nil {
			return nil, err
		}
		return [][]float32{vector}, nil
	case []any:
		vectors := make([][]float32, 0, len(outer))
		for _, item := range outer {
			row, ok := item.([]any)
			if !ok || len(row) == 0 {
				return nil, errors.New("embedding response row is not a non-empty array")
			}
			if inner, ok := row[0].([]any); ok {
				// Token axis present; the first row is the pooled vector.
				vector, err := toVector(inner)
				if err != nil {
					return nil, err
				}
				vectors = append(vectors, vector)
				continue
			}
			vector, err := toVector(row)
			if err != nil {
				return nil, err
			}
			vectors = append(vectors, vector)
		}
		return vectors, nil
	default:
		return nil, errors.New("embedding response has unexpected shape")
	}
}

func toVector(values []any) ([]float32, error) {
	vector := make([]float32, 0, len(values))
	for _, value := range values {
		number, ok := value.(float64)
		if !ok {
			return nil, errors.New("embedding vector contains a non-numeric value")
		}
		vector = append(vector, float32(number))
	}
	return vector, nil
}
