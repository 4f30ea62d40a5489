package store

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"github.com/xhad/yatra/internal/models"
	"github.com/xhad/yatra/internal/types"
)

// MemoryStore is an exact nearest-neighbour store using cosine similarity.
type MemoryStore struct {
	mu      sync.RWMutex
	dim     int
	vectors [][]float32
	norms   []float64
	chunks  []models.Chunk
}

var _ types.VectorStore = (*MemoryStore)(nil)

func NewMemory() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dim = 0
	s.vectors = nil
	s.norms = nil
	s.chunks = nil
	return nil
}

func (s *MemoryStore) Store(_ context.Context, chunks []models.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return errors.New("chunks and vectors length mismatch")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, v := range vectors {
		if len(v) == 0 {
			return errors.New("empty vector")
		}
		if s.dim == 0 {
			s.dim = len(v)
		}
		if len(v) != s.dim {
			return errors.New("vector dimension mismatch")
		}
		s.vectors = append(s.vectors, v)
		s.norms = append(s.norms, norm(v))
		s.chunks = append(s.chunks, chunks[i])
	}
	return nil
}

// Query returns up to limit chunks, most similar first. Ties keep insertion order.
func (s *MemoryStore) Query(_ context.Context, embedding []float32, limit int) ([]models.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.vectors) == 0 {
		return nil, nil
	}
	if len(embedding) != s.dim {
		return nil, errors.New("query vector dimension mismatch")
	}
	if limit <= 0 {
		limit = 4
	}

	qn := norm(embedding)
	scores := make([]float64, len(s.vectors))
	for i, v := range s.vectors {
		scores[i] = cosine(v, embedding, s.norms[i], qn)
	}

	idxs := make([]int, len(scores))
	for i := range idxs {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool { return scores[idxs[a]] > scores[idxs[b]] })

	if limit > len(idxs) {
		limit = len(idxs)
	}
	results := make([]models.Chunk, 0, limit)
	for _, j := range idxs[:limit] {
		results = append(results, s.chunks[j])
	}
	return results, nil
}

// Len reports how many chunks are indexed.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

func (s *MemoryStore) Close() {}

func norm(v []float32) float64 {
	sum := 0.0
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a, b []float32, na, nb float64) float64 {
	if na == 0 || nb == 0 {
		return 0
	}
	dot := 0.0
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (na * nb)
}
