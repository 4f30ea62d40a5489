package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/yatra/internal/types"
)

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"GOOGLE_API_KEY", "OLLAMA_BASE_URL", "DATABASE_URL",
		"YATRA_CORPUS_DIR", "YATRA_REVIEWS_FILE", "PORT",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig(t *testing.T) {
	clearEnv(t)

	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
llm:
  provider: "ollama"
  base_url: "http://localhost:11434"
  model: "llama3"
  max_tokens: 1000
  temperature: 0.5

corpus:
  dir: "pdfs"
  max_documents: 12
  urls:
    - "https://example.com/uttarakhand"

processor:
  chunk_size: 500
  chunk_overlap: 100

index:
  backend: "pgvector"
  database_url: "postgres://localhost:5432/test"
  top_k: 6

reviews:
  file: "board.json"

server:
  port: 9090
  session_ttl: 30m
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, ProviderOllama, config.LLM.Provider)
	assert.Equal(t, "http://localhost:11434", config.LLM.BaseURL)
	assert.Equal(t, "llama3", config.LLM.Model)
	assert.Equal(t, "nomic-embed-text:latest", config.LLM.EmbeddingModel)
	assert.Equal(t, 1000, config.LLM.MaxTokens)
	assert.Equal(t, 0.5, *config.LLM.Temperature)
	assert.Equal(t, "pdfs", config.Corpus.Dir)
	assert.Equal(t, 12, config.Corpus.MaxDocuments)
	assert.Equal(t, []string{"https://example.com/uttarakhand"}, config.Corpus.URLs)
	assert.Equal(t, 500, config.Processor.ChunkSize)
	assert.Equal(t, 100, *config.Processor.ChunkOverlap)
	assert.Equal(t, BackendPGVector, config.Index.Backend)
	assert.Equal(t, 6, config.Index.TopK)
	assert.Equal(t, "board.json", config.Reviews.File)
	assert.Equal(t, 9090, config.Server.Port)
	assert.Equal(t, 30*time.Minute, config.Server.SessionTTL)
	assert.Empty(t, config.Validate())
}

func TestExplicitZeroesSurviveDefaults(t *testing.T) {
	clearEnv(t)

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	configData := `
llm:
  temperature: 0
processor:
  chunk_overlap: 0
`
	require.NoError(t, os.WriteFile(configPath, []byte(configData), 0644))

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	require.NotNil(t, config.LLM.Temperature)
	require.NotNil(t, config.Processor.ChunkOverlap)
	assert.Equal(t, 0.0, *config.LLM.Temperature)
	assert.Equal(t, 0, *config.Processor.ChunkOverlap)
}

func TestDefaults(t *testing.T) {
	clearEnv(t)

	config, err := getDefaultConfig()
	require.NoError(t, err)

	assert.Equal(t, ProviderGoogleAI, config.LLM.Provider)
	assert.Equal(t, "gemini-1.5-pro", config.LLM.Model)
	assert.Equal(t, "embedding-001", config.LLM.EmbeddingModel)
	assert.Equal(t, "data", config.Corpus.Dir)
	assert.Equal(t, 30, config.Corpus.MaxDocuments)
	assert.Equal(t, 700, config.Processor.ChunkSize)
	assert.Equal(t, 50, *config.Processor.ChunkOverlap)
	assert.Equal(t, BackendMemory, config.Index.Backend)
	assert.Equal(t, 4, config.Index.TopK)
	assert.Equal(t, "reviews.json", config.Reviews.File)
	assert.Equal(t, 8080, config.Server.Port)
}

func TestLoadConfigErrors(t *testing.T) {
	clearEnv(t)

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	badPath := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(badPath, []byte("llm: [unclosed"), 0644))
	_, err = LoadConfig(badPath)
	assert.Error(t, err)
}

func TestConfigValidation(t *testing.T) {
	valid := func() Config {
		c := Config{}
		applyDefaults(&c)
		c.LLM.APIKey = "test-key"
		return c
	}

	tests := []struct {
		name          string
		mutate        func(c *Config)
		errorMessages []string
	}{
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
		{
			name: "missing api key",
			mutate: func(c *Config) {
				c.LLM.APIKey = ""
			},
			errorMessages: []string{"llm.api_key: GOOGLE_API_KEY is required"},
		},
		{
			name: "invalid config",
			mutate: func(c *Config) {
				c.LLM.MaxTokens = 10000
				temperature, overlap := 3.0, 800
				c.LLM.Temperature = &temperature
				c.Processor.ChunkOverlap = &overlap
				c.Index.Backend = "faiss"
				c.Server.Port = 0
			},
			errorMessages: []string{
				"llm.max_tokens: max_tokens must be between 1 and 8192",
				"llm.temperature: temperature must be between 0 and 2",
				"processor.chunk_overlap: chunk_overlap must be non-negative and less than chunk_size",
				"index.backend: unknown index backend: faiss",
				"server.port: port must be between 1 and 65535",
			},
		},
		{
			name: "pgvector without database",
			mutate: func(c *Config) {
				c.Index.Backend = BackendPGVector
			},
			errorMessages: []string{"index.database_url: database_url is required"},
		},
		{
			name: "ollama with bad url",
			mutate: func(c *Config) {
				c.LLM.Provider = ProviderOllama
				c.LLM.BaseURL = "invalid-url"
			},
			errorMessages: []string{"llm.base_url: invalid Ollama base URL"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := valid()
			tt.mutate(&config)

			errs := config.Validate()
			require.Len(t, errs, len(tt.errorMessages))
			for i, msg := range tt.errorMessages {
				assert.Contains(t, errs[i].Error(), msg)
				assert.False(t, errors.Is(errs[i], types.ErrInvalidInput))
			}
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "env-key")
	t.Setenv("OLLAMA_BASE_URL", "http://env-ollama:11434")
	t.Setenv("DATABASE_URL", "postgres://env-db:5432/test")
	t.Setenv("YATRA_CORPUS_DIR", "/srv/corpus")
	t.Setenv("YATRA_REVIEWS_FILE", "/srv/reviews.json")
	t.Setenv("PORT", "7000")

	config := &Config{}
	mergeWithEnv(config)

	assert.Equal(t, "env-key", config.LLM.APIKey)
	assert.Equal(t, "http://env-ollama:11434", config.LLM.BaseURL)
	assert.Equal(t, "postgres://env-db:5432/test", config.Index.DatabaseURL)
	assert.Equal(t, "/srv/corpus", config.Corpus.Dir)
	assert.Equal(t, "/srv/reviews.json", config.Reviews.File)
	assert.Equal(t, 7000, config.Server.Port)
}
