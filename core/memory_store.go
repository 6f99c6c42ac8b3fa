package core

import "context"

// MemoryStore defines persistence + retrieval (search) for conversational
// memory snippets. Implementations can back search with embeddings, keywords
// or any heuristic.
type MemoryStore interface {
	Store(ctx context.Context, sessionID string, content string, metadata map[string]any) error
	Search(ctx context.Context, sessionID string, query string, limit int) ([]SearchResult, error)
	Delete(ctx context.Context, sessionID string, memoryID string) error
}
