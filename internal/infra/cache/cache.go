// Package cache provides in-memory caching of resolved story descriptors.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/abujamalhack/Snapchat-pro/internal/domain"
)

// StoryCache caches media descriptors per username so repeated requests for
// the same profile don't re-scrape the page within the TTL.
type StoryCache struct {
	cache *gocache.Cache
}

// New creates a StoryCache with the given TTL and cleanup interval.
func New(ttl, cleanupInterval time.Duration) *StoryCache {
	return &StoryCache{
		cache: gocache.New(ttl, cleanupInterval),
	}
}

// Default creates a StoryCache with default settings.
// TTL: 5 minutes, Cleanup: 10 minutes
func Default() *StoryCache {
	return New(5*time.Minute, 10*time.Minute)
}

// Get retrieves cached descriptors for a username.
func (c *StoryCache) Get(username string) ([]domain.MediaDescriptor, bool) {
	if item, found := c.cache.Get(username); found {
		if stories, ok := item.([]domain.MediaDescriptor); ok {
			return stories, true
		}
	}
	return nil, false
}

// Set stores descriptors for a username with the default TTL.
func (c *StoryCache) Set(username string, stories []domain.MediaDescriptor) {
	c.cache.Set(username, stories, gocache.DefaultExpiration)
}

// SetWithTTL stores descriptors with a custom TTL.
func (c *StoryCache) SetWithTTL(username string, stories []domain.MediaDescriptor, ttl time.Duration) {
	c.cache.Set(username, stories, ttl)
}

// Invalidate removes a username's cached descriptors.
func (c *StoryCache) Invalidate(username string) {
	c.cache.Delete(username)
}

// Flush removes all items from cache.
func (c *StoryCache) Flush() {
	c.cache.Flush()
}

// ItemCount returns the number of cached usernames.
func (c *StoryCache) ItemCount() int {
	return c.cache.ItemCount()
}
