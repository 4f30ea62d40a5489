package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"go.uber.org/zap"

	"github.com/xhad/yatra/internal/models"
	"github.com/xhad/yatra/internal/types"
	"github.com/xhad/yatra/pkg/logging"
)

// Index embeds chunks and keeps them in a vector store for similarity search.
type Index struct {
	embedder embeddings.Embedder
	store    types.VectorStore
	log      *zap.Logger
}

func New(embedder embeddings.Embedder, store types.VectorStore, logger *zap.Logger) (*Index, error) {
	if embedder == nil {
		return nil, errors.New("index requires an embedder")
	}
	if store == nil {
		return nil, errors.New("index requires a vector store")
	}
	return &Index{embedder: embedder, store: store, log: logging.OrNop(logger)}, nil
}

// Build replaces the index contents with chunks.
func (ix *Index) Build(ctx context.Context, chunks []models.Chunk) error {
	if err := ix.store.Reset(ctx); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return fmt.Errorf("%w: no chunks to index", types.ErrCorpusUnavailable)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors, err := ix.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	if err := ix.store.Store(ctx, chunks, vectors); err != nil {
		return fmt.Errorf("failed to store chunks: %w", err)
	}

	ix.log.Info("index built", zap.Int("chunks", len(chunks)))
	return nil
}

// Search returns the k chunks nearest to text.
func (ix *Index) Search(ctx context.Context, text string, k int) ([]models.Chunk, error) {
	vector, err := ix.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return ix.store.Query(ctx, vector, k)
}

func (ix *Index) Close() {
	ix.store.Close()
}
