package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xhad/yatra/internal/models"
)

func getTestConfig(t *testing.T) VectorStoreConfig {
	url := os.Getenv("YATRA_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("YATRA_TEST_DATABASE_URL not set")
	}
	return VectorStoreConfig{
		ConnString: url,
		TableName:  "test_trip_chunks",
		VectorDim:  3,
		BatchSize:  2,
	}
}

func TestPGVectorCollection(t *testing.T) {
	ctx := context.Background()
	vs, err := NewPGVector(ctx, getTestConfig(t))
	require.NoError(t, err)
	defer vs.Close()

	a := vs.Collection("session-a")
	b := vs.Collection("session-b")
	defer a.Close()
	defer b.Close()

	chunks := []models.Chunk{
		{ID: "guide.pdf#1/0", DocumentID: "guide.pdf#1", Source: "guide.pdf", Page: 1, Content: "Naini Lake"},
		{ID: "guide.pdf#1/1", DocumentID: "guide.pdf#1", Source: "guide.pdf", Page: 1, Index: 1, Content: "Snow View"},
		{ID: "guide.pdf#2/0", DocumentID: "guide.pdf#2", Source: "guide.pdf", Page: 2, Content: "Rafting"},
	}
	vectors := [][]float32{{1, 0, 0}, {0.8, 0.2, 0}, {0, 0, 1}}

	require.NoError(t, a.Store(ctx, chunks, vectors))
	require.NoError(t, b.Store(ctx, chunks[2:], vectors[2:]))

	results, err := a.Query(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Naini Lake", results[0].Content)
	assert.Equal(t, "Snow View", results[1].Content)

	results, err = b.Query(ctx, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)

	require.NoError(t, a.Reset(ctx))
	results, err = a.Query(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSanitizeUTF8(t *testing.T) {
	assert.Equal(t, "Nainital", sanitizeUTF8("Nainital"))
	assert.Equal(t, "ab", sanitizeUTF8("a\xffb"))
}
