// Package loader reads the trip corpus: PDF pages from a directory and,
// optionally, pages crawled from a list of URLs.
package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"

	"github.com/xhad/yatra/internal/models"
	"github.com/xhad/yatra/internal/types"
	"github.com/xhad/yatra/pkg/logging"
	"github.com/xhad/yatra/pkg/scraper"
)

// PDFDir loads every *.pdf file in Dir, one Document per page, files in name order.
type PDFDir struct {
	Dir    string
	Logger *zap.Logger
}

var _ types.Source = PDFDir{}

func (p PDFDir) Load(ctx context.Context) ([]models.Document, error) {
	log := logging.OrNop(p.Logger)

	entries, err := os.ReadDir(p.Dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrCorpusUnavailable, err)
	}

	var docs []models.Document
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".pdf") {
			continue
		}

		path := filepath.Join(p.Dir, entry.Name())
		pages, err := loadPDF(ctx, path)
		if err != nil {
			log.Warn("skipping unreadable pdf", zap.String("path", path), zap.Error(err))
			continue
		}

		for _, page := range pages {
			docs = append(docs, pageToDocument(entry.Name(), page))
		}
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: no readable pdf pages in %s", types.ErrCorpusUnavailable, p.Dir)
	}

	log.Info("loaded pdf corpus", zap.String("dir", p.Dir), zap.Int("pages", len(docs)))
	return docs, nil
}

func loadPDF(ctx context.Context, path string) ([]schema.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	return documentloaders.NewPDF(f, info.Size()).Load(ctx)
}

func pageToDocument(source string, page schema.Document) models.Document {
	number, _ := page.Metadata["page"].(int)
	return models.Document{
		ID:       fmt.Sprintf("%s#%d", source, number),
		Source:   source,
		Page:     number,
		Content:  page.PageContent,
		Metadata: page.Metadata,
	}
}

// Web crawls each URL with the scraper and returns the pages in URL order.
type Web struct {
	URLs      []string
	MaxDepth  int
	RateLimit float64
	Ignore    []string
	Logger    *zap.Logger
}

var _ types.Source = Web{}

func (w Web) Load(ctx context.Context) ([]models.Document, error) {
	log := logging.OrNop(w.Logger)

	var docs []models.Document
	for _, u := range w.URLs {
		s, err := scraper.NewWithConfig(scraper.ScraperConfig{
			BaseURL:        u,
			MaxDepth:       w.MaxDepth,
			RateLimit:      w.RateLimit,
			IgnorePatterns: w.Ignore,
			Logger:         log,
			OnProgress: func(page string) {
				log.Debug("scraped corpus page", zap.String("url", page))
			},
		})
		if err != nil {
			log.Warn("skipping corpus url", zap.String("url", u), zap.Error(err))
			continue
		}

		pages, err := s.Scrape(ctx, u)
		if err != nil {
			log.Warn("failed to scrape corpus url", zap.String("url", u), zap.Error(err))
		}
		docs = append(docs, pages...)
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: no pages scraped from %d urls", types.ErrCorpusUnavailable, len(w.URLs))
	}

	return docs, nil
}

// Multi concatenates the documents of several sources. A failing source is
// tolerated as long as another one yields documents.
type Multi []types.Source

func (m Multi) Load(ctx context.Context) ([]models.Document, error) {
	var docs []models.Document
	var errs []error
	for _, src := range m {
		d, err := src.Load(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		docs = append(docs, d...)
	}

	if len(docs) == 0 {
		if len(errs) == 0 {
			return nil, types.ErrCorpusUnavailable
		}
		err := errors.Join(errs...)
		if !errors.Is(err, types.ErrCorpusUnavailable) {
			err = fmt.Errorf("%w: %v", types.ErrCorpusUnavailable, err)
		}
		return nil, err
	}

	return docs, nil
}
