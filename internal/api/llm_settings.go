package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/aralabs/ara/internal/secrets"
	"github.com/aralabs/ara/internal/store"
)

var encryptLLMSecret = secrets.Encrypt

type llmSettingsRequest struct {
	PrimaryModel  string `json:"primary_model"`
	FallbackModel string `json:"fallback_model"`
	BaseURL       string `json:"base_url"`
	APIKey        string `json:"api_key"`
	BackupAPIKey  string `json:"backup_api_key"`
}

type llmSettingsResponse struct {
	Configured      bool   `json:"configured"`
	PrimaryModel    string `json:"primary_model"`
	FallbackModel   string `json:"fallback_model"`
	BaseURL         string `json:"base_url"`
	HasAPIKey       bool   `json:"has_api_key"`
	HasBackupAPIKey bool   `json:"has_backup_api_key"`
	APIKeyHint      string `json:"api_key_hint,omitempty"`
}

func (s *Server) getLLMSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.store.GetLLMSettings(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	response := llmSettingsResponse{
		Configured:    false,
		PrimaryModel:  s.cfg.PrimaryModel,
		FallbackModel: s.cfg.FallbackModel,
		BaseURL:       s.cfg.GroqBaseURL,
	}
	if settings != nil {
		response.Configured = true
		response.PrimaryModel = settings.PrimaryModel
		response.FallbackModel = settings.FallbackModel
		response.BaseURL = settings.BaseURL
		response.HasAPIKey = settings.APIKeyEnc != ""
		response.HasBackupAPIKey = settings.BackupAPIKeyEnc != ""
		if settings.APIKeyEnc != "" && s.cfg.SecretsKey != "" {
			if key, err := secrets.ParseKey(s.cfg.SecretsKey); err == nil {
				if apiKey, err := secrets.Decrypt(key, settings.APIKeyEnc); err == nil {
					if len(apiKey) >= 4 {
						response.APIKeyHint = apiKey[len(apiKey)-4:]
					}
				}
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(response)
}

func (s *Server) updateLLMSettings(w http.ResponseWriter, r *http.Request) {
	var req llmSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request", http.StatusBadRequest)
		return
	}
	settings, err := s.store.GetLLMSettings(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	primaryModel := firstNonEmpty(req.PrimaryModel, s.cfg.PrimaryModel)
	fallbackModel := firstNonEmpty(req.FallbackModel, s.cfg.FallbackModel)
	baseURL := firstNonEmpty(req.BaseURL, s.cfg.GroqBaseURL)
	if settings != nil {
		primaryModel = firstNonEmpty(req.PrimaryModel, settings.PrimaryModel)
		fallbackModel = firstNonEmpty(req.FallbackModel, settings.FallbackModel)
		baseURL = firstNonEmpty(req.BaseURL, settings.BaseURL)
	}

	apiKeyEnc := ""
	backupAPIKeyEnc := ""
	if settings != nil {
		apiKeyEnc = settings.APIKeyEnc
		backupAPIKeyEnc = settings.BackupAPIKeyEnc
	}
	if req.APIKey != "" || req.BackupAPIKey != "" {
		key, err := secrets.ParseKey(s.cfg.SecretsKey)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if req.APIKey != "" {
			ciphertext, err := encryptLLMSecret(key, req.APIKey)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			apiKeyEnc = ciphertext
		}
		if req.BackupAPIKey != "" {
			ciphertext, err := encryptLLMSecret(key, req.BackupAPIKey)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			backupAPIKeyEnc = ciphertext
		}
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	createdAt := now
	if settings != nil && settings.CreatedAt != "" {
		createdAt = settings.CreatedAt
	}
	newSettings := store.LLMSettings{
		PrimaryModel:    primaryModel,
		FallbackModel:   fallbackModel,
		BaseURL:         baseURL,
		APIKeyEnc:       apiKeyEnc,
		BackupAPIKeyEnc: backupAPIKeyEnc,
		CreatedAt:       createdAt,
		UpdatedAt:       now,
	}
	if err := s.store.UpsertLLMSettings(r.Context(), newSettings); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.getLLMSettings(w, r)
}

func firstNonEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}
