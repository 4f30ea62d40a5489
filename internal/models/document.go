package models

import "time"

// Document is one page of source text, a PDF page or a scraped web page.
type Document struct {
	ID       string
	Source   string
	Page     int
	Content  string
	Metadata map[string]interface{}
}

// Chunk is a bounded slice of a Document's text.
type Chunk struct {
	ID         string
	DocumentID string
	Source     string
	Page       int
	Index      int
	Content    string
}

// Query is a validated trip request.
type Query struct {
	Destination string
	DayCount    int
	Budget      int
}

// Itinerary is the generated plan for one Query.
type Itinerary struct {
	Query   Query
	Text    string
	MapsURL string
	Sources []Chunk
	Elapsed time.Duration
}

// Review is a single traveler review as stored in the reviews file.
type Review struct {
	Name   string `json:"name"`
	Rating int    `json:"rating"`
	Review string `json:"review"`
}
