package session

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hupe1980/opsmesh/core"
)

// DefaultCacheSize is the number of sessions CachedStore keeps hot.
const DefaultCacheSize = 256

// CachedStore decorates a durable SessionStore with an LRU read cache.
// Writes go through to the backing store first; the cache is updated only
// after the backing store accepted the write.
type CachedStore struct {
	inner core.SessionStore
	cache *lru.Cache[string, *core.Session]
}

// NewCachedStore wraps inner with an LRU cache holding up to size sessions.
func NewCachedStore(inner core.SessionStore, size int) (*CachedStore, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, *core.Session](size)
	if err != nil {
		return nil, fmt.Errorf("create session cache: %w", err)
	}
	return &CachedStore{inner: inner, cache: cache}, nil
}

// Create creates the session in the backing store and caches it.
func (c *CachedStore) Create(ctx context.Context, sessionID string) (*core.Session, error) {
	sess, err := c.inner.Create(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	c.cache.Add(sessionID, sess.Clone())
	return sess, nil
}

// Get serves from cache when possible and falls back to the backing store.
func (c *CachedStore) Get(ctx context.Context, sessionID string) (*core.Session, error) {
	if sess, ok := c.cache.Get(sessionID); ok {
		return sess.Clone(), nil
	}
	sess, err := c.inner.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	c.cache.Add(sessionID, sess.Clone())
	return sess, nil
}

// AppendEvent writes through and mirrors the event into a cached copy.
func (c *CachedStore) AppendEvent(ctx context.Context, sessionID string, ev core.Event) error {
	if err := c.inner.AppendEvent(ctx, sessionID, ev); err != nil {
		c.cache.Remove(sessionID)
		return err
	}
	if sess, ok := c.cache.Peek(sessionID); ok {
		sess.AddEvent(ev)
	}
	return nil
}

// Delete removes the session from the backing store and the cache.
func (c *CachedStore) Delete(ctx context.Context, sessionID string) error {
	c.cache.Remove(sessionID)
	return c.inner.Delete(ctx, sessionID)
}

// Ping forwards to the backing store when it supports health checks.
func (c *CachedStore) Ping(ctx context.Context) error {
	if p, ok := c.inner.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Len returns the number of cached sessions.
func (c *CachedStore) Len() int { return c.cache.Len() }
