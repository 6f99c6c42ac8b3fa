package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/opsmesh/core"
)

// ErrMemoryNotFound is returned when deleting an unknown memory id.
var ErrMemoryNotFound = errors.New("memory not found")

// DefaultMaxPerSession bounds how many snippets are kept per session.
const DefaultMaxPerSession = 200

type storedMemory struct {
	id        string
	content   string
	lower     string
	metadata  map[string]any
	createdAt time.Time
}

// Options configures InMemoryStore.
type Options struct {
	// MaxPerSession drops the oldest snippets once exceeded. Zero selects
	// DefaultMaxPerSession.
	MaxPerSession int
	Now           func() time.Time
}

// InMemoryStore is a process-local MemoryStore. Search lowercases the query,
// splits it into terms and scores each snippet by the fraction of terms it
// contains. An empty query matches everything with score 1.
type InMemoryStore struct {
	mu      sync.RWMutex
	storage map[string][]storedMemory
	opts    Options
}

// NewInMemoryStore creates a new in-memory memory store.
func NewInMemoryStore(optFns ...func(o *Options)) *InMemoryStore {
	opts := Options{MaxPerSession: DefaultMaxPerSession, Now: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxPerSession <= 0 {
		opts.MaxPerSession = DefaultMaxPerSession
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &InMemoryStore{storage: make(map[string][]storedMemory), opts: opts}
}

// Store appends a snippet to the session.
func (m *InMemoryStore) Store(ctx context.Context, sessionID, content string, metadata map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("store memory: empty content")
	}

	md := make(map[string]any, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	entries := append(m.storage[sessionID], storedMemory{
		id:        core.NewID(),
		content:   content,
		lower:     strings.ToLower(content),
		metadata:  md,
		createdAt: m.opts.Now().UTC(),
	})
	if over := len(entries) - m.opts.MaxPerSession; over > 0 {
		entries = append([]storedMemory(nil), entries[over:]...)
	}
	m.storage[sessionID] = entries
	return nil
}

// Search returns up to limit snippets ordered by score, newest first on ties.
func (m *InMemoryStore) Search(ctx context.Context, sessionID, query string, limit int) ([]core.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []core.SearchResult{}, nil
	}

	terms := strings.Fields(strings.ToLower(query))

	m.mu.RLock()
	entries := m.storage[sessionID]
	results := make([]core.SearchResult, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		score := 1.0
		if len(terms) > 0 {
			hits := 0
			for _, term := range terms {
				if strings.Contains(e.lower, term) {
					hits++
				}
			}
			if hits == 0 {
				continue
			}
			score = float64(hits) / float64(len(terms))
		}
		md := make(map[string]any, len(e.metadata))
		for k, v := range e.metadata {
			md[k] = v
		}
		results = append(results, core.SearchResult{
			ID:        e.id,
			Content:   e.content,
			Score:     score,
			CreatedAt: e.createdAt,
			Metadata:  md,
		})
	}
	m.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Delete removes a stored memory entry by id.
func (m *InMemoryStore) Delete(ctx context.Context, sessionID, memoryID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.storage[sessionID]
	for i, e := range entries {
		if e.id == memoryID {
			m.storage[sessionID] = append(entries[:i:i], entries[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("delete %q: %w", memoryID, ErrMemoryNotFound)
}
