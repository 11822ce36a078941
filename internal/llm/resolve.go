package llm

import (
	"errors"
	"log"
)

type Credentials struct {
	APIKey       string
	BackupAPIKey string
}

type Options struct {
	BaseURL       string
	PrimaryModel  string
	FallbackModel string
	Temperature   float64
}

type candidate struct {
	apiKey string
	model  string
}

// Resolve walks the ranked credential x model-tier list and returns a
// handle for the first combination that constructs successfully. Keys are
// tried primary-first, and within a key the primary tier before the
// fallback tier. Exhausting every combination yields ErrProviderUnavailable.
func Resolve(creds Credentials, opts Options) (*Handle, error) {
	candidates := buildCandidates(creds, opts)
	provider, model, err := firstSuccess(candidates, opts)
	if err != nil {
		return nil, err
	}
	return &Handle{Provider: provider, Model: model}, nil
}

func buildCandidates(creds Credentials, opts Options) []candidate {
	keys := []string{creds.APIKey, creds.BackupAPIKey}
	models := []string{opts.PrimaryModel}
	if opts.FallbackModel != "" && opts.FallbackModel != opts.PrimaryModel {
		models = append(models, opts.FallbackModel)
	}
	candidates := []candidate{}
	for _, key := range keys {
		if key == "" {
			continue
		}
		for _, model := range models {
			candidates = append(candidates, candidate{apiKey: key, model: model})
		}
	}
	return candidates
}

func firstSuccess(candidates []candidate, opts Options) (Provider, string, error) {
	var failures []error
	for _, item := range candidates {
		provider, err := NewGroqProvider(GroqConfig{
			APIKey:      item.apiKey,
			Model:       item.model,
			BaseURL:     opts.BaseURL,
			Temperature: opts.Temperature,
		})
		if err != nil {
			log.Printf("llm: candidate %s unavailable: %v", item.model, err)
			failures = append(failures, err)
			continue
		}
		return provider, item.model, nil
	}
	if len(failures) > 0 {
		return nil, "", errors.Join(ErrProviderUnavailable, errors.Join(failures...))
	}
	return nil, "", ErrProviderUnavailable
}
