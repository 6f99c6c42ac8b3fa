package core

import "time"

// SearchResult is a recalled memory snippet with a relevance score.
type SearchResult struct {
	ID        string
	Content   string
	Score     float64
	CreatedAt time.Time
	Metadata  map[string]any
}
