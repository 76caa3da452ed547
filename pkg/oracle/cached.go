package oracle

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru"
)

// Cached memoizes query results across the sessions of an inner connector.
// Only successful answers are cached.
type Cached struct {
	inner Connector
	cache *lru.Cache
}

// NewCached wraps inner with an LRU of the given size.
func NewCached(inner Connector, size int) (*Cached, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create oracle cache: %w", err)
	}
	return &Cached{inner: inner, cache: cache}, nil
}

func (c *Cached) Open(ctx context.Context) (Session, error) {
	session, err := c.inner.Open(ctx)
	if err != nil {
		return nil, err
	}
	return &cachedSession{inner: session, cache: c.cache}, nil
}

func (c *Cached) Close(ctx context.Context) error {
	c.cache.Purge()
	return c.inner.Close(ctx)
}

// Len returns the number of cached answers.
func (c *Cached) Len() int {
	return c.cache.Len()
}

type cachedSession struct {
	inner Session
	cache *lru.Cache
}

func (s *cachedSession) Query(ctx context.Context, q Query) (Result, error) {
	if v, ok := s.cache.Get(q); ok {
		return v.(Result), nil
	}
	result, err := s.inner.Query(ctx, q)
	if err != nil {
		return Result{}, err
	}
	s.cache.Add(q, result)
	return result, nil
}

func (s *cachedSession) Close(ctx context.Context) error {
	return s.inner.Close(ctx)
}
