package rag

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/tmc/langchaingo/prompts"
	"go.uber.org/zap"

	"github.com/xhad/yatra/internal/models"
	"github.com/xhad/yatra/internal/types"
	"github.com/xhad/yatra/pkg/logging"
	"github.com/xhad/yatra/pkg/trip"
)

const promptTemplate = `
Provide a detailed trip plan for the given destination, number of days, and budget.
Include recommendations for local cuisine, hotels, attractions, and activities within the specified budget.
<context>{{.context}}</context>
Destination: {{.destination}}
Days: {{.days}}
Budget: {{.budget}} INR
`

var tripPrompt = prompts.NewPromptTemplate(promptTemplate, []string{"context", "destination", "days", "budget"})

// RenderPrompt fills the trip prompt with retrieved context and the query.
func RenderPrompt(retrieved string, query models.Query) (string, error) {
	return tripPrompt.Format(map[string]any{
		"context":     retrieved,
		"destination": query.Destination,
		"days":        query.DayCount,
		"budget":      query.Budget,
	})
}

// Completer sends one prompt to a language model.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type GeneratorConfig struct {
	TopK   int
	Logger *zap.Logger
}

// Generator answers trip queries from a session's index and a completion model.
type Generator struct {
	session *Session
	chat    Completer
	topK    int
	log     *zap.Logger
}

var _ types.Generator = (*Generator)(nil)

func NewGenerator(session *Session, chat Completer, config GeneratorConfig) (*Generator, error) {
	if session == nil {
		return nil, errors.New("generator requires a session")
	}
	if chat == nil {
		return nil, errors.New("generator requires a completion model")
	}
	if config.TopK <= 0 {
		config.TopK = 4
	}
	return &Generator{
		session: session,
		chat:    chat,
		topK:    config.TopK,
		log:     logging.OrNop(config.Logger),
	}, nil
}

// Answer retrieves context for the destination and asks the model for an
// itinerary. Every failure is returned as a *types.GenerationError.
func (g *Generator) Answer(ctx context.Context, query models.Query) (*models.Itinerary, error) {
	start := time.Now()

	ix, err := g.session.EnsureIndex(ctx)
	if err != nil {
		return nil, g.fail(query, err)
	}

	chunks, err := ix.Search(ctx, query.Destination, g.topK)
	if err != nil {
		return nil, g.fail(query, err)
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	prompt, err := RenderPrompt(strings.Join(texts, "\n\n"), query)
	if err != nil {
		return nil, g.fail(query, err)
	}

	answer, err := g.chat.Complete(ctx, prompt)
	if err != nil {
		return nil, g.fail(query, err)
	}
	if strings.TrimSpace(answer) == "" {
		return nil, g.fail(query, errors.New("model returned an empty answer"))
	}

	it := &models.Itinerary{
		Query:   query,
		Text:    answer,
		MapsURL: trip.MapsURL(query.Destination),
		Sources: chunks,
		Elapsed: time.Since(start),
	}
	g.log.Info("itinerary generated",
		zap.String("destination", query.Destination),
		zap.Int("days", query.DayCount),
		zap.Int("sources", len(chunks)),
		zap.Duration("elapsed", it.Elapsed))
	return it, nil
}

func (g *Generator) fail(query models.Query, err error) error {
	g.log.Error("generation failed", zap.String("destination", query.Destination), zap.Error(err))
	return &types.GenerationError{Err: err}
}
