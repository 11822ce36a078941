package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/aralabs/ara/internal/llm"
	"github.com/aralabs/ara/internal/store"
)

const documentEmbeddingDimensions = 384

type PostgresStore struct {
	db *sql.DB
}

var openDB = sql.Open

func New(conn string) (*PostgresStore, error) {
	db, err := openDB("pgx", conn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := verifySchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func verifySchema(ctx context.Context, db *sql.DB) error {
	required := []string{
		"checkpoints",
		"thread_names",
		"document_meta",
		"document_chunks",
		"llm_settings",
	}
	for _, table := range required {
		var regclass sql.NullString
		if err := db.QueryRowContext(ctx, "SELECT to_regclass($1)", fmt.Sprintf("public.%s", table)).Scan(&regclass); err != nil {
			return err
		}
		if !regclass.Valid {
			return fmt.Errorf("database schema missing: %s table not found (run migrations/001_init.sql)", table)
		}
	}
	return nil
}

func (p *PostgresStore) AppendCheckpoint(ctx context.Context, threadID string, delta []llm.Message) error {
	state, err := json.Marshal(delta)
	if err != nil {
		return err
	}
	const query = `
		INSERT INTO checkpoints (id, thread_id, state, created_at)
		VALUES ($1, $2, $3, $4)
	`
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err = p.db.ExecContext(ctx, query, uuid.New().String(), threadID, state, now)
	return err
}

func (p *PostgresStore) LoadThread(ctx context.Context, threadID string) ([]llm.Message, error) {
	const query = `
		SELECT state
		FROM checkpoints
		WHERE thread_id = $1
		ORDER BY seq ASC
	`
	rows, err := p.db.QueryContext(ctx, query, threadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	deltas := [][]llm.Message{}
	for rows.Next() {
		var stateBytes []byte
		if err := rows.Scan(&stateBytes); err != nil {
			return nil, err
		}
		delta := []llm.Message{}
		if err := json.Unmarshal(stateBytes, &delta); err != nil {
			// A partial or corrupt checkpoint must not make the whole
			// thread unreadable.
			log.Printf("store: skipping malformed checkpoint for thread %s: %v", threadID, err)
			continue
		}
		deltas = append(deltas, delta)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return store.ReplayMessages(deltas), nil
}

func (p *PostgresStore) ListThreads(ctx context.Context) ([]string, error) {
	const query = `
		SELECT DISTINCT thread_id
		FROM checkpoints
		ORDER BY thread_id ASC
	`
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []string{}
	for rows.Next() {
		var threadID sql.NullString
		if err := rows.Scan(&threadID); err != nil {
			log.Printf("store: skipping unreadable checkpoint row: %v", err)
			continue
		}
		if !threadID.Valid || strings.TrimSpace(threadID.String) == "" {
			continue
		}
		results = append(results, threadID.String)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *PostgresStore) GetThreadName(ctx context.Context, threadID string) (string, error) {
	const query = `
		SELECT name
		FROM thread_names
		WHERE thread_id = $1
	`
	var name string
	if err := p.db.QueryRowContext(ctx, query, threadID).Scan(&name); err != nil {
		if err == sql.ErrNoRows {
			return store.FallbackThreadName(threadID), nil
		}
		return "", err
	}
	if strings.TrimSpace(name) == "" {
		return store.FallbackThreadName(threadID), nil
	}
	return name, nil
}

func (p *PostgresStore) SetThreadName(ctx context.Context, threadID string, name string) error {
	const query = `
		INSERT INTO thread_names (thread_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (thread_id)
		DO UPDATE SET name = EXCLUDED.name, updated_at = EXCLUDED.updated_at
	`
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := p.db.ExecContext(ctx, query, threadID, name, now)
	return err
}

func (p *PostgresStore) ReplaceDocumentChunks(ctx context.Context, threadID string, meta store.DocumentMeta, chunks []store.DocumentChunk) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err = tx.ExecContext(ctx, "DELETE FROM document_chunks WHERE thread_id = $1", threadID); err != nil {
		return err
	}

	const metaQuery = `
		INSERT INTO document_meta (thread_id, filename, pages, chunks, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (thread_id)
		DO UPDATE SET filename = EXCLUDED.filename, pages = EXCLUDED.pages, chunks = EXCLUDED.chunks, updated_at = EXCLUDED.updated_at
	`
	if _, err = tx.ExecContext(ctx, metaQuery, threadID, meta.Filename, meta.Pages, meta.Chunks, now); err != nil {
		return err
	}

	for _, chunk := range chunks {
		id := chunk.ID
		if id == "" {
			id = uuid.New().String()
		}
		query := `
			INSERT INTO document_chunks (id, thread_id, content, page, embedding, created_at)
			VALUES ($1, $2, $3, $4, NULL, $5)
		`
		params := []any{id, threadID, chunk.Content, chunk.Page, now}
		if len(chunk.Embedding) == documentEmbeddingDimensions {
			query = `
				INSERT INTO document_chunks (id, thread_id, content, page, embedding, created_at)
				VALUES ($1, $2, $3, $4, $5::vector, $6)
			`
			params = []any{id, threadID, chunk.Content, chunk.Page, formatVector(chunk.Embedding), now}
		}
		if _, err = tx.ExecContext(ctx, query, params...); err != nil {
			return err
		}
	}

	err = tx.Commit()
	return err
}

func (p *PostgresStore) SearchDocumentChunks(ctx context.Context, threadID string, embedding []float32, limit int) ([]store.DocumentChunk, error) {
	if limit <= 0 {
		return []store.DocumentChunk{}, nil
	}
	if len(embedding) != documentEmbeddingDimensions {
		return []store.DocumentChunk{}, nil
	}
	vector := formatVector(embedding)
	const query = `
		SELECT id, thread_id, content, page, created_at
		FROM document_chunks
		WHERE thread_id = $1 AND embedding IS NOT NULL
		ORDER BY embedding <=> $2::vector
		LIMIT $3
	`
	rows, err := p.db.QueryContext(ctx, query, threadID, vector, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []store.DocumentChunk{}
	for rows.Next() {
		var createdAt time.Time
		var chunk store.DocumentChunk
		if err := rows.Scan(&chunk.ID, &chunk.ThreadID, &chunk.Content, &chunk.Page, &createdAt); err != nil {
			return nil, err
		}
		chunk.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)
		results = append(results, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (p *PostgresStore) GetDocumentMeta(ctx context.Context, threadID string) (*store.DocumentMeta, error) {
	const query = `
		SELECT thread_id, filename, pages, chunks, created_at, updated_at
		FROM document_meta
		WHERE thread_id = $1
	`
	var createdAt time.Time
	var updatedAt time.Time
	meta := store.DocumentMeta{}
	if err := p.db.QueryRowContext(ctx, query, threadID).Scan(
		&meta.ThreadID,
		&meta.Filename,
		&meta.Pages,
		&meta.Chunks,
		&createdAt,
		&updatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	meta.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)
	meta.UpdatedAt = updatedAt.UTC().Format(time.RFC3339Nano)
	return &meta, nil
}

func (p *PostgresStore) GetLLMSettings(ctx context.Context) (*store.LLMSettings, error) {
	const query = `
		SELECT primary_model, fallback_model, base_url, api_key_enc, backup_api_key_enc, created_at, updated_at
		FROM llm_settings
		WHERE id = 1
	`
	var createdAt time.Time
	var updatedAt time.Time
	settings := store.LLMSettings{}
	if err := p.db.QueryRowContext(ctx, query).Scan(
		&settings.PrimaryModel,
		&settings.FallbackModel,
		&settings.BaseURL,
		&settings.APIKeyEnc,
		&settings.BackupAPIKeyEnc,
		&createdAt,
		&updatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	settings.CreatedAt = createdAt.UTC().Format(time.RFC3339Nano)
	settings.UpdatedAt = updatedAt.UTC().Format(time.RFC3339Nano)
	return &settings, nil
}

func (p *PostgresStore) UpsertLLMSettings(ctx context.Context, settings store.LLMSettings) error {
	const query = `
		INSERT INTO llm_settings
			(id, primary_model, fallback_model, base_url, api_key_enc, backup_api_key_enc, created_at, updated_at)
		VALUES
			(1, $1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id)
		DO UPDATE SET
			primary_model = EXCLUDED.primary_model,
			fallback_model = EXCLUDED.fallback_model,
			base_url = EXCLUDED.base_url,
			api_key_enc = EXCLUDED.api_key_enc,
			backup_api_key_enc = EXCLUDED.backup_api_key_enc,
			updated_at = EXCLUDED.updated_at
	`
	_, err := p.db.ExecContext(
		ctx,
		query,
		settings.PrimaryModel,
		settings.FallbackModel,
		settings.BaseURL,
		settings.APIKeyEnc,
		settings.BackupAPIKeyEnc,
		settings.CreatedAt,
		settings.UpdatedAt,
	)
	return err
}

func formatVector(values []float32) string {
	parts := make([]string, 0, len(values))
	for _, value := range values {
		parts = append(parts, strconv.FormatFloat(float64(value), 'f', -1, 32))
	}
	return "[" + strings.Join(parts, ",") + "]"
}
