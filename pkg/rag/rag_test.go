package rag_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms/fake"

	"github.com/xhad/yatra/internal/models"
	"github.com/xhad/yatra/internal/types"
	"github.com/xhad/yatra/pkg/llm"
	"github.com/xhad/yatra/pkg/processor"
	"github.com/xhad/yatra/pkg/rag"
	"github.com/xhad/yatra/pkg/store"
)

var places = []string{"nainital", "mussoorie", "rishikesh", "corbett"}

// staticSource serves two 20-page guides.
type staticSource struct {
	mu    sync.Mutex
	loads int
	err   error
	empty bool
}

func (s *staticSource) Load(_ context.Context) ([]models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads++
	if s.err != nil || s.empty {
		return nil, s.err
	}

	var docs []models.Document
	for _, file := range []string{"kumaon.pdf", "garhwal.pdf"} {
		for page := 0; page < 20; page++ {
			place := places[(page+len(docs))%len(places)]
			docs = append(docs, models.Document{
				ID:      fmt.Sprintf("%s#%d", file, page),
				Source:  file,
				Page:    page,
				Content: strings.Repeat(fmt.Sprintf("Page %d of %s covers %s sights and food. ", page, file, place), 30),
			})
		}
	}
	return docs, nil
}

// countingEmbedder gives each place its own axis and counts document batches.
type countingEmbedder struct {
	mu        sync.Mutex
	documents int
	err       error
}

func vector(text string) []float32 {
	text = strings.ToLower(text)
	v := make([]float32, len(places)+1)
	for i, p := range places {
		v[i] = float32(strings.Count(text, p))
	}
	v[len(places)] = 0.1
	return v
}

func (e *countingEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.documents++
	e.mu.Unlock()
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = vector(t)
	}
	return out, nil
}

func (e *countingEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return vector(text), nil
}

// recordingCompleter remembers prompts and answers from a fake model.
type recordingCompleter struct {
	engine  *llm.ChatEngine
	prompts []string
}

func newCompleter(t *testing.T, responses ...string) *recordingCompleter {
	engine, err := llm.NewWithConfig(fake.NewFakeLLM(responses), llm.ChatConfig{})
	require.NoError(t, err)
	return &recordingCompleter{engine: engine}
}

func (r *recordingCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	r.prompts = append(r.prompts, prompt)
	return r.engine.Complete(ctx, prompt)
}

func newSession(t *testing.T, src types.Source, emb *countingEmbedder) *rag.Session {
	p := processor.NewWithConfig(processor.ProcessorConfig{ChunkSize: 700, ChunkOverlap: 50, MaxDocuments: 30})
	s, err := rag.NewSession(rag.SessionConfig{
		Source:    src,
		Processor: &p,
		Embedder:  emb,
		Store:     store.NewMemory(),
	})
	require.NoError(t, err)
	return s
}

func TestAnswerBuildsIndexOnce(t *testing.T) {
	ctx := context.Background()
	src := &staticSource{}
	emb := &countingEmbedder{}
	session := newSession(t, src, emb)
	chat := newCompleter(t, "Day 1: Naini Lake boating", "Day 1: Snow View point")

	gen, err := rag.NewGenerator(session, chat, rag.GeneratorConfig{TopK: 4})
	require.NoError(t, err)

	query := models.Query{Destination: "Nainital", DayCount: 5, Budget: 5000}
	first, err := gen.Answer(ctx, query)
	require.NoError(t, err)
	assert.Equal(t, "Day 1: Naini Lake boating", first.Text)
	assert.Equal(t, "https://www.google.com/maps/place/Nainital", first.MapsURL)
	require.Len(t, first.Sources, 4)
	for _, c := range first.Sources {
		assert.Contains(t, c.Content, "nainital")
	}

	second, err := gen.Answer(ctx, query)
	require.NoError(t, err)
	assert.NotEmpty(t, second.Text)

	assert.Equal(t, 1, session.Builds())
	assert.Equal(t, 1, src.loads)
	assert.Equal(t, 1, emb.documents)

	require.Len(t, chat.prompts, 2)
	assert.Contains(t, chat.prompts[0], "Destination: Nainital")
	assert.Contains(t, chat.prompts[0], "Days: 5")
	assert.Contains(t, chat.prompts[0], "Budget: 5000 INR")
	assert.Contains(t, chat.prompts[0], "<context>Page")
}

func TestChunkingIsDeterministic(t *testing.T) {
	src := &staticSource{}
	docs, err := src.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 40)

	p := processor.NewWithConfig(processor.ProcessorConfig{ChunkSize: 700, ChunkOverlap: 50, MaxDocuments: 30})
	a, err := p.Process(docs)
	require.NoError(t, err)
	b, err := p.Process(docs)
	require.NoError(t, err)

	require.NotEmpty(t, a)
	assert.Equal(t, a, b)
	for _, c := range a {
		assert.NotEqual(t, "garhwal.pdf#10", c.DocumentID, "pages past the cap are not chunked")
	}
}

func TestEnsureIndexAndRebuild(t *testing.T) {
	ctx := context.Background()
	src := &staticSource{}
	session := newSession(t, src, &countingEmbedder{})

	_, err := session.EnsureIndex(ctx)
	require.NoError(t, err)
	_, err = session.EnsureIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, session.Builds())

	require.NoError(t, session.Rebuild(ctx))
	assert.Equal(t, 2, session.Builds())
	assert.Equal(t, 2, src.loads)
}

func TestEmptyCorpus(t *testing.T) {
	tests := []struct {
		name string
		src  *staticSource
	}{
		{"no documents", &staticSource{empty: true}},
		{"unreadable", &staticSource{err: errors.New("permission denied")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := newSession(t, tt.src, &countingEmbedder{})
			chat := newCompleter(t, "never")
			gen, err := rag.NewGenerator(session, chat, rag.GeneratorConfig{})
			require.NoError(t, err)

			_, err = gen.Answer(context.Background(), models.Query{Destination: "Nainital", DayCount: 2, Budget: 3000})
			require.Error(t, err)

			var genErr *types.GenerationError
			assert.True(t, errors.As(err, &genErr))
			assert.True(t, errors.Is(err, types.ErrCorpusUnavailable))
			assert.Contains(t, err.Error(), "an error occurred while processing your request")
			assert.Empty(t, chat.prompts)
			assert.Equal(t, 0, session.Builds())
		})
	}
}

func TestAnswerWrapsDownstreamFailures(t *testing.T) {
	ctx := context.Background()
	query := models.Query{Destination: "Rishikesh", DayCount: 3, Budget: 4000}

	t.Run("embedding service", func(t *testing.T) {
		emb := &countingEmbedder{err: errors.New("embedding service unreachable")}
		gen, err := rag.NewGenerator(newSession(t, &staticSource{}, emb), newCompleter(t, "x"), rag.GeneratorConfig{})
		require.NoError(t, err)

		_, err = gen.Answer(ctx, query)
		var genErr *types.GenerationError
		require.True(t, errors.As(err, &genErr))
		assert.Contains(t, err.Error(), "embedding service unreachable")
	})

	t.Run("empty answer", func(t *testing.T) {
		gen, err := rag.NewGenerator(newSession(t, &staticSource{}, &countingEmbedder{}), newCompleter(t, "   "), rag.GeneratorConfig{})
		require.NoError(t, err)

		_, err = gen.Answer(ctx, query)
		var genErr *types.GenerationError
		assert.True(t, errors.As(err, &genErr))
	})
}

func TestRenderPrompt(t *testing.T) {
	prompt, err := rag.RenderPrompt("Mall Road <shops> & cafes", models.Query{Destination: "Mussoorie", DayCount: 4, Budget: 7500})
	require.NoError(t, err)
	assert.Contains(t, prompt, "<context>Mall Road <shops> & cafes</context>")
	assert.Contains(t, prompt, "Destination: Mussoorie")
	assert.Contains(t, prompt, "Days: 4")
	assert.Contains(t, prompt, "Budget: 7500 INR")
}

func TestNewGeneratorRequiresDependencies(t *testing.T) {
	_, err := rag.NewGenerator(nil, newCompleter(t, "x"), rag.GeneratorConfig{})
	assert.Error(t, err)
	_, err = rag.NewGenerator(newSession(t, &staticSource{}, &countingEmbedder{}), nil, rag.GeneratorConfig{})
	assert.Error(t, err)
}
