package types

import (
	"context"

	"github.com/xhad/yatra/internal/models"
)

// Core interfaces
type Source interface {
	Load(ctx context.Context) ([]models.Document, error)
}

type VectorStore interface {
	Reset(ctx context.Context) error
	Store(ctx context.Context, chunks []models.Chunk, vectors [][]float32) error
	Query(ctx context.Context, embedding []float32, limit int) ([]models.Chunk, error)
	Close()
}

type Processor interface {
	Process(docs []models.Document) ([]models.Chunk, error)
}

type Generator interface {
	Answer(ctx context.Context, query models.Query) (*models.Itinerary, error)
}

type ReviewStore interface {
	Load() []models.Review
	Save(review models.Review) error
}
