package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

// EmbedderConfig controls batching of embedding calls.
type EmbedderConfig struct {
	BatchSize     int
	StripNewLines bool
}

// NewEmbeddingClient returns the client that embeds corpus chunks and queries.
// Ollama serves embeddings from a separate client bound to EmbeddingModel.
func NewEmbeddingClient(ctx context.Context, config ChatConfig) (embeddings.EmbedderClient, error) {
	if config.Provider != ProviderOllama {
		return NewClient(ctx, config)
	}

	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	model := config.EmbeddingModel
	if model == "" {
		model = config.Model
	}
	client, err := ollama.New(ollama.WithModel(model), ollama.WithServerURL(config.BaseURL))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ollama embeddings: %w", err)
	}
	return client, nil
}

// NewEmbedderWithConfig wraps a provider client in a langchaingo embedder.
func NewEmbedderWithConfig(client embeddings.EmbedderClient, config EmbedderConfig) (embeddings.Embedder, error) {
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}

	return embeddings.NewEmbedder(client,
		embeddings.WithBatchSize(config.BatchSize),
		embeddings.WithStripNewLines(config.StripNewLines),
	)
}
