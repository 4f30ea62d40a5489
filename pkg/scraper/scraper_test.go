package scraper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScraperConfig(t *testing.T) {
	config := ScraperConfig{
		BaseURL:        "https://example.com",
		MaxDepth:       5,
		RateLimit:      1.0,
		IgnorePatterns: []string{"/ignore/", "private"},
		Timeout:        10 * time.Second,
	}

	s, err := NewWithConfig(config)
	require.NoError(t, err)
	assert.Equal(t, config.BaseURL, s.config.BaseURL)
	assert.Equal(t, config.MaxDepth, s.config.MaxDepth)
	assert.Equal(t, "example.com", s.baseHost)

	_, err = NewWithConfig(ScraperConfig{BaseURL: "not a url"})
	assert.Error(t, err)
}

func TestAllowed(t *testing.T) {
	config := ScraperConfig{
		BaseURL:        "https://example.com",
		IgnorePatterns: []string{"/ignore/", "private"},
	}

	s, err := NewWithConfig(config)
	require.NoError(t, err)

	tests := []struct {
		url      string
		expected bool
	}{
		{"https://example.com/docs/", true},
		{"https://example.com/page.html", true},
		{"https://example.com/ignore/page.html", false},
		{"https://other-domain.com/page.html", false},
		{"https://example.com/file.pdf", false},
		{"https://example.com/treks/kedarkantha", true},
		{"https://example.com/private/notes", false},
		{"https://example.com/photo.JPG", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			u, err := url.Parse(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, s.allowed(u))
		})
	}
}

func TestScrapeWithMockServer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`
			<html>
				<head><title>Nainital Guide</title></head>
				<body>
					<main>
						<h1>Naini Lake</h1>
						<p>Boating on the lake is best in the morning.</p>
						<a href="/food.html">Food</a>
						<a href="/food.html#thali">Thali</a>
						<a href="/guide.pdf">PDF</a>
					</main>
					<footer>Subscribe to our newsletter</footer>
					<script>var tracking = 1;</script>
				</body>
			</html>
		`))
	})
	mux.HandleFunc("/food.html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><article>Try Bhatt ki Churdkani. Privacy Policy</article></body></html>`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	var progress []string
	s, err := NewWithConfig(ScraperConfig{
		BaseURL:   server.URL,
		MaxDepth:  1,
		RateLimit: 100,
		OnProgress: func(url string) {
			progress = append(progress, url)
		},
	})
	require.NoError(t, err)

	docs, err := s.Scrape(context.Background(), server.URL+"/")
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, server.URL+"/", docs[0].Source)
	assert.Equal(t, "Nainital Guide", docs[0].Metadata["title"])
	assert.Contains(t, docs[0].Content, "Naini Lake")
	assert.Contains(t, docs[0].Content, "Boating on the lake")
	assert.NotContains(t, docs[0].Content, "tracking")

	assert.Equal(t, server.URL+"/food.html", docs[1].Source)
	assert.Equal(t, "Try Bhatt ki Churdkani.", docs[1].Content)
	assert.Len(t, progress, 2)
}

func TestScrapeCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>ok</body></html>`))
	}))
	defer server.Close()

	s, err := NewWithConfig(ScraperConfig{BaseURL: server.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.Scrape(ctx, server.URL+"/")
	assert.Error(t, err)
}
