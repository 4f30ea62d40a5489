package rag

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tmc/langchaingo/embeddings"
	"go.uber.org/zap"

	"github.com/xhad/yatra/internal/types"
	"github.com/xhad/yatra/pkg/index"
	"github.com/xhad/yatra/pkg/logging"
)

type SessionConfig struct {
	Source    types.Source
	Processor types.Processor
	Embedder  embeddings.Embedder
	Store     types.VectorStore
	Logger    *zap.Logger
}

// Session owns one user's embedding index. The index is built on first use
// and reused until Rebuild or Close.
type Session struct {
	mu     sync.Mutex
	config SessionConfig
	index  *index.Index
	built  bool
	builds int
	log    *zap.Logger
}

func NewSession(config SessionConfig) (*Session, error) {
	if config.Source == nil {
		return nil, errors.New("session requires a document source")
	}
	if config.Processor == nil {
		return nil, errors.New("session requires a processor")
	}

	log := logging.OrNop(config.Logger)
	ix, err := index.New(config.Embedder, config.Store, log)
	if err != nil {
		return nil, err
	}

	return &Session{config: config, index: ix, log: log}, nil
}

// EnsureIndex builds the index if this session has not built it yet.
func (s *Session) EnsureIndex(ctx context.Context) (*index.Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.built {
		return s.index, nil
	}
	if err := s.build(ctx); err != nil {
		return nil, err
	}
	return s.index, nil
}

// Rebuild reloads the corpus and replaces the index.
func (s *Session) Rebuild(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.built = false
	return s.build(ctx)
}

// Builds reports how many times the index has been built.
func (s *Session) Builds() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.builds
}

func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.built = false
	s.index.Close()
}

func (s *Session) build(ctx context.Context) error {
	docs, err := s.config.Source.Load(ctx)
	if err != nil && len(docs) == 0 {
		if errors.Is(err, types.ErrCorpusUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %v", types.ErrCorpusUnavailable, err)
	}
	if len(docs) == 0 {
		return fmt.Errorf("%w: corpus is empty", types.ErrCorpusUnavailable)
	}
	if err != nil {
		s.log.Warn("corpus partially loaded", zap.Error(err))
	}

	chunks, err := s.config.Processor.Process(docs)
	if err != nil {
		return fmt.Errorf("failed to process documents: %w", err)
	}

	if err := s.index.Build(ctx, chunks); err != nil {
		return err
	}

	s.built = true
	s.builds++
	s.log.Info("session index ready",
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(chunks)),
		zap.Int("builds", s.builds))
	return nil
}
