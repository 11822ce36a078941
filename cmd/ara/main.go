package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aralabs/ara/internal/agent"
	"github.com/aralabs/ara/internal/api"
	"github.com/aralabs/ara/internal/config"
	"github.com/aralabs/ara/internal/embed"
	"github.com/aralabs/ara/internal/events"
	"github.com/aralabs/ara/internal/llm"
	"github.com/aralabs/ara/internal/prompt"
	"github.com/aralabs/ara/internal/rag"
	"github.com/aralabs/ara/internal/secrets"
	"github.com/aralabs/ara/internal/store"
	"github.com/aralabs/ara/internal/store/postgres"
	"github.com/aralabs/ara/internal/tools"
)

type server interface {
	Start(ctx context.Context, addr string) error
}

var (
	loadConfig = func() (config.Config, error) {
		return config.Load(), nil
	}
	newBroker = events.NewBroker
	newStore  = func(conn string) (*postgres.PostgresStore, error) {
		return postgres.New(conn)
	}
	newEmbedder = func(cfg config.Config) (embed.Embedder, error) {
		embedder, err := embed.NewHFEmbedder(embed.HFConfig{
			APIKey:     cfg.HuggingFaceAPIKey,
			BaseURL:    cfg.EmbeddingBaseURL,
			Model:      cfg.EmbeddingModel,
			Dimensions: cfg.EmbeddingDimensions,
			BatchSize:  cfg.EmbeddingBatchSize,
			MaxRetries: cfg.EmbeddingMaxRetries,
		})
		if err != nil {
			// Returning the typed nil would box into a non-nil
			// interface and defeat the index's nil-embedder guard.
			return nil, err
		}
		return embedder, nil
	}
	newServer = func(st store.Store, broker *events.Broker, engine *agent.Engine, index *rag.Index, cfg config.Config) server {
		return api.NewServer(st, broker, engine, index, cfg)
	}
	notifyContext = signal.NotifyContext
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := notifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	broker := newBroker()
	st, err := newStore(cfg.PostgresURL)
	if err != nil {
		return err
	}

	embedder, err := newEmbedder(cfg)
	if err != nil {
		log.Printf("warning: embeddings disabled: %v", err)
	}

	index := rag.NewIndex(st, embedder, rag.TextExtractor{}, rag.Config{
		ChunkChars:       cfg.ChunkChars,
		ChunkOverlap:     cfg.ChunkOverlap,
		RetrievalResults: cfg.RetrievalResults,
	})

	engine := agent.NewEngine(
		st,
		broker,
		providerResolver(st, cfg),
		toolRegistry(index, cfg),
		func() string { return prompt.System(time.Now()) },
		cfg.MaxToolRounds,
	)

	srv := newServer(st, broker, engine, index, cfg)

	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Printf("Ara listening on %s", addr)
	if err := srv.Start(ctx, addr); err != nil {
		return err
	}

	return nil
}

// providerResolver prefers credentials saved through the settings API
// and falls back to the environment. Resolution happens per turn so a
// settings change applies without a restart.
func providerResolver(st store.Store, cfg config.Config) agent.ProviderFunc {
	return func(ctx context.Context) (llm.Provider, error) {
		creds := llm.Credentials{
			APIKey:       cfg.GroqAPIKey,
			BackupAPIKey: cfg.GroqAPIKeyBackup,
		}
		opts := llm.Options{
			BaseURL:       cfg.GroqBaseURL,
			PrimaryModel:  cfg.PrimaryModel,
			FallbackModel: cfg.FallbackModel,
			Temperature:   cfg.Temperature,
		}

		settings, err := st.GetLLMSettings(ctx)
		if err != nil {
			log.Printf("llm: reading saved settings failed, using environment: %v", err)
		}
		if settings != nil {
			if settings.PrimaryModel != "" {
				opts.PrimaryModel = settings.PrimaryModel
			}
			if settings.FallbackModel != "" {
				opts.FallbackModel = settings.FallbackModel
			}
			if settings.BaseURL != "" {
				opts.BaseURL = settings.BaseURL
			}
			if cfg.SecretsKey != "" {
				if key, err := secrets.ParseKey(cfg.SecretsKey); err == nil {
					if settings.APIKeyEnc != "" {
						if apiKey, err := secrets.Decrypt(key, settings.APIKeyEnc); err == nil {
							creds.APIKey = apiKey
						}
					}
					if settings.BackupAPIKeyEnc != "" {
						if backupKey, err := secrets.Decrypt(key, settings.BackupAPIKeyEnc); err == nil {
							creds.BackupAPIKey = backupKey
						}
					}
				}
			}
		}

		return llm.Resolve(creds, opts)
	}
}

func toolRegistry(index *rag.Index, cfg config.Config) agent.RegistryFunc {
	return func(threadID string) *tools.Registry {
		available := []tools.Tool{}
		if cfg.SerperAPIKey != "" {
			available = append(available, tools.NewWebSearch(cfg.SerperAPIKey))
		}
		if cfg.NewsAPIKey != "" {
			available = append(available, tools.NewNewsSearch(cfg.NewsAPIKey))
		}
		if cfg.TavilyAPIKey != "" {
			available = append(available, tools.NewResearchSearch(cfg.TavilyAPIKey))
		}
		available = append(available, tools.NewDocumentSearch(index, threadID))
		return tools.NewRegistry(available...)
	}
}
