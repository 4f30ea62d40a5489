package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
)

const (
	ProviderGoogleAI = "googleai"
	ProviderOllama   = "ollama"
)

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Provider       string
	Model          string
	EmbeddingModel string
	APIKey         string
	BaseURL        string // Ollama server URL
	Temperature    float64
	MaxTokens      int
}

// Client is a provider client that can both complete prompts and embed text.
type Client interface {
	llms.Model
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// NewClient builds the provider client named by config.Provider.
func NewClient(ctx context.Context, config ChatConfig) (Client, error) {
	switch config.Provider {
	case ProviderGoogleAI, "":
		if config.APIKey == "" {
			return nil, errors.New("googleai provider requires an API key")
		}
		opts := []googleai.Option{googleai.WithAPIKey(config.APIKey)}
		if config.Model != "" {
			opts = append(opts, googleai.WithDefaultModel(config.Model))
		}
		if config.EmbeddingModel != "" {
			opts = append(opts, googleai.WithDefaultEmbeddingModel(config.EmbeddingModel))
		}
		client, err := googleai.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize googleai: %w", err)
		}
		return client, nil
	case ProviderOllama:
		if config.BaseURL == "" {
			config.BaseURL = "http://localhost:11434" // Default Ollama URL
		}
		client, err := ollama.New(ollama.WithModel(config.Model), ollama.WithServerURL(config.BaseURL))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ollama: %w", err)
		}
		return client, nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", config.Provider)
	}
}

// ChatEngine sends a single rendered prompt to the completion model.
type ChatEngine struct {
	config ChatConfig
	llm    llms.Model
}

// NewWithConfig creates a new ChatEngine over model with the given configuration.
func NewWithConfig(model llms.Model, config ChatConfig) (*ChatEngine, error) {
	if model == nil {
		return nil, errors.New("chat engine requires a model")
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return nil, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.MaxTokens < 0 {
		return nil, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 2048
	}

	return &ChatEngine{
		config: config,
		llm:    model,
	}, nil
}

// Complete makes exactly one completion call and returns the first choice's text.
func (ce *ChatEngine) Complete(ctx context.Context, prompt string) (string, error) {
	opts := []llms.CallOption{
		llms.WithMaxTokens(ce.config.MaxTokens),
		llms.WithTemperature(ce.config.Temperature),
	}

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	response, err := ce.llm.GenerateContent(ctx, content, opts...)
	if err != nil {
		return "", fmt.Errorf("chat error: %w", err)
	}
	if response == nil || len(response.Choices) == 0 || response.Choices[0] == nil {
		return "", errors.New("chat error: empty response from model")
	}

	return response.Choices[0].Content, nil
}
