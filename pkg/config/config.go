package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM struct {
		Provider       string   `yaml:"provider"`
		Model          string   `yaml:"model"`
		EmbeddingModel string   `yaml:"embedding_model"`
		BaseURL        string   `yaml:"base_url"`
		APIKey         string   `yaml:"api_key"`
		MaxTokens      int      `yaml:"max_tokens"`
		Temperature    *float64 `yaml:"temperature"` // nil means unset; 0 is a valid setting
	} `yaml:"llm"`

	Corpus struct {
		Dir          string   `yaml:"dir"`
		URLs         []string `yaml:"urls"`
		MaxDocuments int      `yaml:"max_documents"`
	} `yaml:"corpus"`

	Processor struct {
		ChunkSize    int  `yaml:"chunk_size"`
		ChunkOverlap *int `yaml:"chunk_overlap"`
	} `yaml:"processor"`

	Index struct {
		Backend     string `yaml:"backend"`
		TopK        int    `yaml:"top_k"`
		DatabaseURL string `yaml:"database_url"`
		TableName   string `yaml:"table_name"`
		VectorDim   int    `yaml:"vector_dim"`
		BatchSize   int    `yaml:"batch_size"`
	} `yaml:"index"`

	Scraper struct {
		MaxDepth       int      `yaml:"max_depth"`
		RateLimit      float64  `yaml:"rate_limit"`
		IgnorePatterns []string `yaml:"ignore_patterns"`
	} `yaml:"scraper"`

	Reviews struct {
		File string `yaml:"file"`
	} `yaml:"reviews"`

	Server struct {
		Port        int           `yaml:"port"`
		SessionTTL  time.Duration `yaml:"session_ttl"`
		MaxSessions int           `yaml:"max_sessions"`
	} `yaml:"server"`

	Log struct {
		Level       string `yaml:"level"`
		Development bool   `yaml:"development"`
	} `yaml:"log"`
}

func LoadConfig(path string) (*Config, error) {
	// A missing .env is the normal case outside development.
	_ = godotenv.Load()

	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/yatra/config.yaml"),
			"/etc/yatra/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

// ApplyDefaults fills every unset field. Call it again after changing the
// provider so provider-specific model names follow.
func (c *Config) ApplyDefaults() {
	applyDefaults(c)
}

func applyDefaults(config *Config) {
	if config.LLM.Provider == "" {
		config.LLM.Provider = ProviderGoogleAI
	}
	if config.LLM.Model == "" {
		switch config.LLM.Provider {
		case ProviderOllama:
			config.LLM.Model = "mistral"
		default:
			config.LLM.Model = "gemini-1.5-pro"
		}
	}
	if config.LLM.EmbeddingModel == "" {
		switch config.LLM.Provider {
		case ProviderOllama:
			config.LLM.EmbeddingModel = "nomic-embed-text:latest"
		default:
			config.LLM.EmbeddingModel = "embedding-001"
		}
	}
	if config.LLM.BaseURL == "" && config.LLM.Provider == ProviderOllama {
		config.LLM.BaseURL = "http://localhost:11434"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2048
	}
	if config.LLM.Temperature == nil {
		temperature := 0.7
		config.LLM.Temperature = &temperature
	}

	if config.Corpus.Dir == "" {
		config.Corpus.Dir = "data"
	}
	if config.Corpus.MaxDocuments == 0 {
		config.Corpus.MaxDocuments = 30
	}

	if config.Processor.ChunkSize == 0 {
		config.Processor.ChunkSize = 700
	}
	if config.Processor.ChunkOverlap == nil {
		overlap := 50
		config.Processor.ChunkOverlap = &overlap
	}

	if config.Index.Backend == "" {
		config.Index.Backend = BackendMemory
	}
	if config.Index.TopK == 0 {
		config.Index.TopK = 4
	}
	if config.Index.TableName == "" {
		config.Index.TableName = "trip_chunks"
	}
	if config.Index.VectorDim == 0 {
		config.Index.VectorDim = 768
	}
	if config.Index.BatchSize == 0 {
		config.Index.BatchSize = 100
	}

	if config.Scraper.MaxDepth == 0 {
		config.Scraper.MaxDepth = 1
	}
	if config.Scraper.RateLimit == 0 {
		config.Scraper.RateLimit = 2.0
	}

	if config.Reviews.File == "" {
		config.Reviews.File = "reviews.json"
	}

	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Server.SessionTTL == 0 {
		config.Server.SessionTTL = 2 * time.Hour
	}
	if config.Server.MaxSessions == 0 {
		config.Server.MaxSessions = 64
	}

	if config.Log.Level == "" {
		config.Log.Level = "info"
	}
}

func mergeWithEnv(config *Config) {
	if apiKey := os.Getenv("GOOGLE_API_KEY"); apiKey != "" {
		config.LLM.APIKey = apiKey
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" {
		config.LLM.BaseURL = baseURL
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Index.DatabaseURL = dbURL
	}
	if dir := os.Getenv("YATRA_CORPUS_DIR"); dir != "" {
		config.Corpus.Dir = dir
	}
	if file := os.Getenv("YATRA_REVIEWS_FILE"); file != "" {
		config.Reviews.File = file
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
}
