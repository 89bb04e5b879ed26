package rag

import (
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jonboulle/clockwork"
)

type cachedResponse struct {
	text     string
	cachedAt time.Time
}

// Cache maps normalized questions to generated answers for a fixed TTL.
// Keys ignore the asking user and any filters. A nil *Cache never hits.
type Cache struct {
	entries *expirable.LRU[string, cachedResponse]
	ttl     time.Duration
	clock   clockwork.Clock
}

// NewCache returns nil when ttl or size is not positive, disabling caching.
func NewCache(size int, ttl time.Duration, clock clockwork.Clock) *Cache {
	if size <= 0 || ttl <= 0 {
		return nil
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Cache{
		entries: expirable.NewLRU[string, cachedResponse](size, nil, ttl),
		ttl:     ttl,
		clock:   clock,
	}
}

// NormalizeQuery lowercases q, trims it and collapses inner whitespace.
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// Get returns the cached answer for question if it has not expired.
func (c *Cache) Get(question string) (string, bool) {
	if c == nil {
		return "", false
	}
	key := NormalizeQuery(question)
	entry, ok := c.entries.Get(key)
	if !ok {
		return "", false
	}
	// The LRU expires on wall time; the injected clock decides here.
	if c.clock.Since(entry.cachedAt) >= c.ttl {
		c.entries.Remove(key)
		return "", false
	}
	return entry.text, true
}

// Put stores answer under the normalized question.
func (c *Cache) Put(question, answer string) {
	if c == nil {
		return
	}
	c.entries.Add(NormalizeQuery(question), cachedResponse{text: answer, cachedAt: c.clock.Now()})
}

// Len reports the number of live entries.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}
