package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aralabs/ara/internal/config"
	"github.com/aralabs/ara/internal/secrets"
	"github.com/aralabs/ara/internal/store/memory"
)

var testSecretsKey = strings.Repeat("k", 32)

func TestGetLLMSettings_Unconfigured(t *testing.T) {
	_, httpServer := newTestServer(t, nil, nil, config.Config{
		PrimaryModel:  "llama-3.3-70b-versatile",
		FallbackModel: "llama-3.1-8b-instant",
	})

	resp, err := http.Get(httpServer.URL + "/settings/llm")
	require.NoError(t, err)
	defer resp.Body.Close()

	var response llmSettingsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&response))
	require.False(t, response.Configured)
	require.Equal(t, "llama-3.3-70b-versatile", response.PrimaryModel)
	require.False(t, response.HasAPIKey)
}

func TestUpdateLLMSettings_EncryptsAndNeverEchoesKeys(t *testing.T) {
	s := memory.New()
	_, httpServer := newTestServer(t, s, nil, config.Config{SecretsKey: testSecretsKey})

	body := bytes.NewBufferString(`{
		"primary_model": "llama-3.3-70b-versatile",
		"api_key": "gsk_primary_secret",
		"backup_api_key": "gsk_backup_secret"
	}`)
	resp, err := http.Post(httpServer.URL+"/settings/llm", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "gsk_primary_secret")
	require.NotContains(t, string(raw), "gsk_backup_secret")

	var response llmSettingsResponse
	require.NoError(t, json.Unmarshal(raw, &response))
	require.True(t, response.Configured)
	require.True(t, response.HasAPIKey)
	require.True(t, response.HasBackupAPIKey)
	require.Equal(t, "cret", response.APIKeyHint)

	settings, err := s.GetLLMSettings(context.Background())
	require.NoError(t, err)
	require.NotNil(t, settings)
	require.NotEqual(t, "gsk_primary_secret", settings.APIKeyEnc)

	key, err := secrets.ParseKey(testSecretsKey)
	require.NoError(t, err)
	decrypted, err := secrets.Decrypt(key, settings.APIKeyEnc)
	require.NoError(t, err)
	require.Equal(t, "gsk_primary_secret", decrypted)
}

func TestUpdateLLMSettings_PreservesExistingKey(t *testing.T) {
	s := memory.New()
	_, httpServer := newTestServer(t, s, nil, config.Config{SecretsKey: testSecretsKey})

	body := bytes.NewBufferString(`{"primary_model": "llama-3.3-70b-versatile", "api_key": "gsk_original"}`)
	resp, err := http.Post(httpServer.URL+"/settings/llm", "application/json", body)
	require.NoError(t, err)
	resp.Body.Close()

	body = bytes.NewBufferString(`{"primary_model": "llama-3.4-maverick"}`)
	resp, err = http.Post(httpServer.URL+"/settings/llm", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()

	var response llmSettingsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&response))
	require.Equal(t, "llama-3.4-maverick", response.PrimaryModel)
	require.True(t, response.HasAPIKey)
}

func TestUpdateLLMSettings_MissingSecretsKey(t *testing.T) {
	_, httpServer := newTestServer(t, nil, nil, config.Config{})

	body := bytes.NewBufferString(`{"api_key": "gsk_x"}`)
	resp, err := http.Post(httpServer.URL+"/settings/llm", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdateLLMSettings_InvalidBody(t *testing.T) {
	_, httpServer := newTestServer(t, nil, nil, config.Config{})

	body := bytes.NewBufferString(`{not json`)
	resp, err := http.Post(httpServer.URL+"/settings/llm", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
