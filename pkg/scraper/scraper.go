package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xhad/yatra/internal/models"
	"github.com/xhad/yatra/pkg/logging"
)

type ScraperConfig struct {
	BaseURL           string
	MaxDepth          int
	RateLimit         float64 // requests per second
	IgnorePatterns    []string
	AllowedExtensions []string
	Timeout           time.Duration
	OnProgress        func(url string)
	Logger            *zap.Logger
}

// Scraper crawls a single host and turns each page into a Document.
type Scraper struct {
	config   ScraperConfig
	client   *http.Client
	visited  map[string]bool
	limiter  *rate.Limiter
	baseHost string
	log      *zap.Logger
}

func NewWithConfig(config ScraperConfig) (*Scraper, error) {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxDepth == 0 {
		config.MaxDepth = 1
	}
	if config.RateLimit == 0 {
		config.RateLimit = 2
	}
	if len(config.AllowedExtensions) == 0 {
		config.AllowedExtensions = []string{".html", ".htm", ".php"}
	}

	parsedURL, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: missing host", config.BaseURL)
	}

	return &Scraper{
		config: config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
		visited:  make(map[string]bool),
		limiter:  rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		baseHost: parsedURL.Host,
		log:      logging.OrNop(config.Logger),
	}, nil
}

// allowed reports whether link stays on the base host, has no extension or an
// allowed one, and matches no ignore pattern.
func (s *Scraper) allowed(link *url.URL) bool {
	if link.Host != s.baseHost {
		return false
	}

	if ext := strings.ToLower(path.Ext(link.Path)); ext != "" {
		htmlLike := false
		for _, allowedExt := range s.config.AllowedExtensions {
			if ext == allowedExt {
				htmlLike = true
				break
			}
		}
		if !htmlLike {
			return false
		}
	}

	raw := link.String()
	for _, pattern := range s.config.IgnorePatterns {
		if strings.Contains(raw, pattern) {
			return false
		}
	}
	return true
}

// boilerplate is stripped from travel pages before their text is read.
var boilerplate = []string{
	"script", "style", "noscript", "nav", "header", "footer", "form", "iframe",
	".cookie-banner", ".advertisement", ".share-buttons",
}

var noisePhrases = []string{
	"Cookie Policy",
	"Accept Cookies",
	"Privacy Policy",
	"Terms of Service",
	"Book Now",
	"Subscribe to our newsletter",
}

func pageText(doc *goquery.Document) string {
	doc.Find(strings.Join(boilerplate, ", ")).Remove()

	text := ""
	for _, selector := range []string{"main", "article", ".entry-content", ".post-content", "#content", ".content"} {
		if sel := doc.Find(selector); sel.Length() > 0 {
			text = sel.First().Text()
			break
		}
	}
	if strings.TrimSpace(text) == "" {
		text = doc.Find("body").Text()
	}

	for _, phrase := range noisePhrases {
		text = strings.ReplaceAll(text, phrase, " ")
	}
	return strings.Join(strings.Fields(text), " ")
}

// links returns the absolute, fragment-free targets of the page's anchors.
func links(doc *goquery.Document, base *url.URL) []*url.URL {
	var out []*url.URL
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		target := base.ResolveReference(ref)
		target.Fragment = ""
		out = append(out, target)
	})
	return out
}

// Scrape crawls from url up to MaxDepth and returns the visited pages in crawl order.
func (s *Scraper) Scrape(ctx context.Context, rawURL string) ([]models.Document, error) {
	start, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}

	var documents []models.Document
	err = s.crawl(ctx, start, 0, &documents)
	return documents, err
}

func (s *Scraper) crawl(ctx context.Context, page *url.URL, depth int, documents *[]models.Document) error {
	key := page.String()
	if depth > s.config.MaxDepth || s.visited[key] || !s.allowed(page) {
		return nil
	}
	s.visited[key] = true

	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	doc, resp, err := s.fetch(ctx, key)
	if err != nil {
		return err
	}

	if s.config.OnProgress != nil {
		s.config.OnProgress(key)
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	targets := links(doc, page)

	*documents = append(*documents, models.Document{
		ID:      key,
		Source:  key,
		Page:    len(*documents) + 1,
		Content: pageText(doc),
		Metadata: map[string]interface{}{
			"title":        title,
			"depth":        depth,
			"contentType":  resp.Header.Get("Content-Type"),
			"lastModified": resp.Header.Get("Last-Modified"),
		},
	})

	for _, target := range targets {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := s.crawl(ctx, target, depth+1, documents); err != nil {
			s.log.Warn("error scraping URL", zap.String("url", target.String()), zap.Error(err))
		}
	}
	return nil
}

func (s *Scraper) fetch(ctx context.Context, pageURL string) (*goquery.Document, *http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("received status code %d for URL: %s", resp.StatusCode, pageURL)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse %s: %w", pageURL, err)
	}
	return doc, resp, nil
}
