package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/tmc/langchaingo/embeddings"
	"go.uber.org/zap"

	"github.com/xhad/yatra/internal/types"
	cfgPkg "github.com/xhad/yatra/pkg/config"
	"github.com/xhad/yatra/pkg/llm"
	"github.com/xhad/yatra/pkg/loader"
	"github.com/xhad/yatra/pkg/logging"
	"github.com/xhad/yatra/pkg/processor"
	"github.com/xhad/yatra/pkg/rag"
	"github.com/xhad/yatra/pkg/review"
	"github.com/xhad/yatra/pkg/store"
	"github.com/xhad/yatra/server"
)

type flags struct {
	configPath string
	cli        bool
	provider   string
	model      string
	ollamaURL  string
	dbURL      string
	corpusDir  string
	backend    string
	port       int
	logLevel   string
}

func main() {
	opts := parseFlags()

	config, err := cfgPkg.LoadConfig(opts.configPath)
	if err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
	opts.apply(config)

	if errs := config.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("Invalid configuration: %v", e)
		}
		os.Exit(1)
	}

	logger, err := logging.New(config.Log.Level, config.Log.Development)
	if err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config, opts.cli, logger); err != nil {
		logger.Error("exiting", zap.Error(err))
		os.Exit(1)
	}
}

func parseFlags() flags {
	var f flags

	flag.StringVar(&f.configPath, "config", "", "Path to config file")
	flag.BoolVar(&f.cli, "cli", false, "Plan trips in the terminal instead of serving the web page")
	flag.StringVar(&f.provider, "provider", "", "LLM provider (googleai or ollama)")
	flag.StringVar(&f.model, "model", "", "LLM model to use")
	flag.StringVar(&f.ollamaURL, "ollama-url", "", "Ollama server URL")
	flag.StringVar(&f.dbURL, "db-url", "", "PostgreSQL connection string for the pgvector index")
	flag.StringVar(&f.corpusDir, "corpus", "", "Directory of PDF travel guides")
	flag.StringVar(&f.backend, "index", "", "Index backend (memory or pgvector)")
	flag.IntVar(&f.port, "port", 0, "HTTP port")
	flag.StringVar(&f.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.Parse()

	return f
}

// apply overrides config values with the flags given on the command line.
func (f flags) apply(config *cfgPkg.Config) {
	if f.provider != "" && f.provider != config.LLM.Provider {
		config.LLM.Provider = f.provider
		config.LLM.Model = ""
		config.LLM.EmbeddingModel = ""
		config.ApplyDefaults()
	}
	if f.model != "" {
		config.LLM.Model = f.model
	}
	if f.ollamaURL != "" {
		config.LLM.BaseURL = f.ollamaURL
	}
	if f.dbURL != "" {
		config.Index.DatabaseURL = f.dbURL
	}
	if f.corpusDir != "" {
		config.Corpus.Dir = f.corpusDir
	}
	if f.backend != "" {
		config.Index.Backend = f.backend
	}
	if f.port != 0 {
		config.Server.Port = f.port
	}
	if f.logLevel != "" {
		config.Log.Level = f.logLevel
	}
}

// app holds the components shared by every planning session.
type app struct {
	config  *cfgPkg.Config
	log     *zap.Logger
	embeds  embeddings.EmbedderClient
	chat    *llm.ChatEngine
	source  types.Source
	pg      *store.PGVector
	reviews *review.JSONStore
}

func newApp(ctx context.Context, config *cfgPkg.Config, logger *zap.Logger) (*app, error) {
	chatConfig := llm.ChatConfig{
		Provider:       config.LLM.Provider,
		Model:          config.LLM.Model,
		EmbeddingModel: config.LLM.EmbeddingModel,
		APIKey:         config.LLM.APIKey,
		BaseURL:        config.LLM.BaseURL,
		Temperature:    *config.LLM.Temperature,
		MaxTokens:      config.LLM.MaxTokens,
	}

	client, err := llm.NewClient(ctx, chatConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize llm client: %w", err)
	}

	chat, err := llm.NewWithConfig(client, chatConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat engine: %w", err)
	}

	embeds, err := llm.NewEmbeddingClient(ctx, chatConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding client: %w", err)
	}

	source := loader.Multi{loader.PDFDir{Dir: config.Corpus.Dir, Logger: logger}}
	if len(config.Corpus.URLs) > 0 {
		source = append(source, loader.Web{
			URLs:      config.Corpus.URLs,
			MaxDepth:  config.Scraper.MaxDepth,
			RateLimit: config.Scraper.RateLimit,
			Ignore:    config.Scraper.IgnorePatterns,
			Logger:    logger,
		})
	}

	a := &app{
		config:  config,
		log:     logger,
		embeds:  embeds,
		chat:    chat,
		source:  source,
		reviews: review.NewJSONStore(config.Reviews.File, logger),
	}

	if config.Index.Backend == cfgPkg.BackendPGVector {
		a.pg, err = store.NewPGVector(ctx, store.VectorStoreConfig{
			ConnString: config.Index.DatabaseURL,
			TableName:  config.Index.TableName,
			VectorDim:  config.Index.VectorDim,
			BatchSize:  config.Index.BatchSize,
			Logger:     logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize vector store: %w", err)
		}
	}

	return a, nil
}

// newSession builds the retrieval session for one visitor or CLI run.
func (a *app) newSession(id string) (*rag.Session, error) {
	emb, err := llm.NewEmbedderWithConfig(a.embeds, llm.EmbedderConfig{
		BatchSize:     a.config.Index.BatchSize,
		StripNewLines: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	var vs types.VectorStore = store.NewMemory()
	if a.pg != nil {
		vs = a.pg.Collection(id)
	}

	p := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:    a.config.Processor.ChunkSize,
		ChunkOverlap: *a.config.Processor.ChunkOverlap,
		MaxDocuments: a.config.Corpus.MaxDocuments,
	})

	return rag.NewSession(rag.SessionConfig{
		Source:    a.source,
		Processor: &p,
		Embedder:  emb,
		Store:     vs,
		Logger:    a.log.With(zap.String("session", id)),
	})
}

func (a *app) Close() {
	if a.pg != nil {
		a.pg.Close()
	}
}

func run(ctx context.Context, config *cfgPkg.Config, cli bool, logger *zap.Logger) error {
	a, err := newApp(ctx, config, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if cli {
		return runCLI(ctx, a)
	}

	srv, err := server.New(server.Config{
		Port:        config.Server.Port,
		TopK:        config.Index.TopK,
		SessionTTL:  config.Server.SessionTTL,
		MaxSessions: config.Server.MaxSessions,
		Logger:      logger,
	}, a.newSession, a.chat, a.reviews)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	return srv.ListenAndServe(ctx)
}
