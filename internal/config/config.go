package config

import (
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Port        string
	PostgresURL string

	GroqAPIKey       string
	GroqAPIKeyBackup string
	GroqBaseURL      string
	PrimaryModel     string
	FallbackModel    string
	Temperature      float64

	SerperAPIKey      string
	NewsAPIKey        string
	TavilyAPIKey      string
	HuggingFaceAPIKey string

	EmbeddingModel      string
	EmbeddingBaseURL    string
	EmbeddingDimensions int
	EmbeddingBatchSize  int
	EmbeddingMaxRetries int

	ChunkChars       int
	ChunkOverlap     int
	RetrievalResults int
	MaxToolRounds    int

	SecretsKey string
}

func Load() Config {
	port := getEnv("ARA_PORT", "8080")
	postgresURL := getEnv("POSTGRES_URL", "")
	if postgresURL == "" {
		postgresURL = buildPostgresURL()
	}
	return Config{
		Port:        port,
		PostgresURL: postgresURL,

		GroqAPIKey:       getEnv("GROQ_API_KEY", ""),
		GroqAPIKeyBackup: getEnv("GROQ_API_KEY_BACKUP", ""),
		GroqBaseURL:      getEnv("GROQ_BASE_URL", ""),
		PrimaryModel:     getEnv("ARA_PRIMARY_MODEL", "llama-3.3-70b-versatile"),
		FallbackModel:    getEnv("ARA_FALLBACK_MODEL", "llama-3.1-8b-instant"),
		Temperature:      getEnvFloat("ARA_TEMPERATURE", 0.25),

		SerperAPIKey:      getEnv("SERPER_API_KEY", ""),
		NewsAPIKey:        getEnv("NEWSAPI_KEY", ""),
		TavilyAPIKey:      getEnv("TAVILY_API_KEY", ""),
		HuggingFaceAPIKey: getEnv("HUGGINGFACE_API_KEY", ""),

		EmbeddingModel:      getEnv("ARA_EMBEDDING_MODEL", "BAAI/bge-small-en-v1.5"),
		EmbeddingBaseURL:    getEnv("ARA_EMBEDDING_BASE_URL", ""),
		EmbeddingDimensions: getEnvInt("ARA_EMBEDDING_DIMENSIONS", 384),
		EmbeddingBatchSize:  getEnvInt("ARA_EMBEDDING_BATCH_SIZE", 16),
		EmbeddingMaxRetries: getEnvInt("ARA_EMBEDDING_MAX_RETRIES", 3),

		ChunkChars:       getEnvInt("ARA_CHUNK_CHARS", 1000),
		ChunkOverlap:     getEnvInt("ARA_CHUNK_OVERLAP", 200),
		RetrievalResults: getEnvInt("ARA_RETRIEVAL_RESULTS", 4),
		MaxToolRounds:    getEnvInt("ARA_MAX_TOOL_ROUNDS", 0),

		SecretsKey: getEnv("ARA_SECRETS_KEY", ""),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func buildPostgresURL() string {
	user := getEnv("POSTGRES_USER", "ara")
	password := getEnv("POSTGRES_PASSWORD", "ara")
	host := getEnv("POSTGRES_HOST", "localhost")
	port := getEnv("POSTGRES_PORT", "5432")
	database := getEnv("POSTGRES_DB", "ara")
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", user, password, host, port, database)
}
