package processor

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/xhad/yatra/internal/models"
)

type ProcessorConfig struct {
	ChunkSize      int
	ChunkOverlap   int // zero means no overlap
	MaxDocuments   int // only the first MaxDocuments pages are chunked
	MinChunkLength int
}

// Processor splits pages into overlapping chunks with a recursive character splitter.
type Processor struct {
	config   ProcessorConfig
	splitter textsplitter.RecursiveCharacter
}

func NewWithConfig(config ProcessorConfig) Processor {
	if config.ChunkSize == 0 {
		config.ChunkSize = 700
	}
	if config.MinChunkLength == 0 {
		config.MinChunkLength = 1
	}

	return Processor{
		config: config,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(config.ChunkSize),
			textsplitter.WithChunkOverlap(config.ChunkOverlap),
		),
	}
}

func (p *Processor) Process(docs []models.Document) ([]models.Chunk, error) {
	if p.config.MaxDocuments > 0 && len(docs) > p.config.MaxDocuments {
		docs = docs[:p.config.MaxDocuments]
	}

	var chunks []models.Chunk
	for _, doc := range docs {
		texts, err := p.splitter.SplitText(cleanText(doc.Content))
		if err != nil {
			return nil, fmt.Errorf("failed to split document %s: %w", doc.ID, err)
		}

		index := 0
		for _, text := range texts {
			text = strings.TrimSpace(text)
			if len([]rune(text)) < p.config.MinChunkLength {
				continue
			}
			chunks = append(chunks, models.Chunk{
				ID:         fmt.Sprintf("%s/%d", doc.ID, index),
				DocumentID: doc.ID,
				Source:     doc.Source,
				Page:       doc.Page,
				Index:      index,
				Content:    text,
			})
			index++
		}
	}

	return chunks, nil
}

// cleanText collapses runs of spaces and tabs but keeps line breaks, which the
// splitter uses as preferred boundaries.
func cleanText(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
