package slogengine

import (
	"sync"
	"time"

	"github.com/slogengine/slogengine/blog"
	"github.com/slogengine/slogengine/model"
)

// PostLister is the part of blog.Service the cache reads from.
type PostLister interface {
	List(user string) ([]model.Post, error)
}

type cacheEntry struct {
	posts   []model.Post
	fetched time.Time
}

// PostCache is an in-memory cache of each user's post listing with TTL.
// Cached slices are shared between readers and must not be modified.
type PostCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	source  PostLister
	now     func() time.Time
}

// NewPostCache creates a PostCache backed by the given lister. A ttl of zero
// or less disables caching.
func NewPostCache(src PostLister, ttl time.Duration) *PostCache {
	return &PostCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		source:  src,
		now:     time.Now,
	}
}

func (c *PostCache) lookup(user string) ([]model.Post, bool) {
	e, ok := c.entries[user]
	if !ok || c.now().Sub(e.fetched) >= c.ttl {
		return nil, false
	}
	return e.posts, true
}

// List returns user's posts, newest first, loading them on a miss.
func (c *PostCache) List(user string) ([]model.Post, error) {
	if c.ttl <= 0 {
		return c.source.List(user)
	}

	c.mu.RLock()
	posts, ok := c.lookup(user)
	c.mu.RUnlock()
	if ok {
		return posts, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if posts, ok := c.lookup(user); ok {
		return posts, nil
	}
	posts, err := c.source.List(user)
	if err != nil {
		return nil, err
	}
	c.entries[user] = cacheEntry{posts: posts, fetched: c.now()}
	return posts, nil
}

// Paged returns one page of user's deduplicated, filtered listing.
func (c *PostCache) Paged(user string, req model.PagedRequest) (model.PagedResult[model.Post], error) {
	posts, err := c.List(user)
	if err != nil {
		return model.PagedResult[model.Post]{}, err
	}
	return blog.Page(posts, req), nil
}

// Invalidate drops user's cached listing so the next read reloads it.
func (c *PostCache) Invalidate(user string) {
	c.mu.Lock()
	delete(c.entries, user)
	c.mu.Unlock()
}
