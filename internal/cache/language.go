package cache

import (
	"container/list"
	"sync"
	"time"
)

const (
	DefaultLanguageCacheSize = 100
	DefaultLanguageCacheTTL  = 5 * time.Minute
)

// LanguageCache maps a conversation id to the set of languages spoken by its
// active participants. Entries expire after a TTL; at capacity the oldest
// entry by insertion order is evicted.
type LanguageCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	order    *list.List
	entries  map[string]*list.Element
	now      func() time.Time
}

type languageEntry struct {
	conversationID string
	languages      []string
	insertedAt     time.Time
}

func NewLanguageCache(capacity int, ttl time.Duration) *LanguageCache {
	if capacity <= 0 {
		capacity = DefaultLanguageCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultLanguageCacheTTL
	}
	return &LanguageCache{
		capacity: capacity,
		ttl:      ttl,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
		now:      time.Now,
	}
}

func (c *LanguageCache) Get(conversationID string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[conversationID]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*languageEntry)
	if c.now().Sub(entry.insertedAt) > c.ttl {
		c.order.Remove(el)
		delete(c.entries, conversationID)
		return nil, false
	}
	return entry.languages, true
}

// Set records the language set. Re-setting an existing conversation refreshes
// its TTL but keeps its insertion-order slot.
func (c *LanguageCache) Set(conversationID string, languages []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[conversationID]; ok {
		entry := el.Value.(*languageEntry)
		entry.languages = languages
		entry.insertedAt = c.now()
		return
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*languageEntry).conversationID)
		}
	}

	el := c.order.PushFront(&languageEntry{
		conversationID: conversationID,
		languages:      languages,
		insertedAt:     c.now(),
	})
	c.entries[conversationID] = el
}

func (c *LanguageCache) Has(conversationID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[conversationID]
	if !ok {
		return false
	}
	return c.now().Sub(el.Value.(*languageEntry).insertedAt) <= c.ttl
}

func (c *LanguageCache) Delete(conversationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[conversationID]; ok {
		c.order.Remove(el)
		delete(c.entries, conversationID)
	}
}

func (c *LanguageCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.entries = make(map[string]*list.Element)
}

// CleanExpired removes every expired entry and returns how many were dropped.
func (c *LanguageCache) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		entry := el.Value.(*languageEntry)
		if c.now().Sub(entry.insertedAt) > c.ttl {
			c.order.Remove(el)
			delete(c.entries, entry.conversationID)
			removed++
		}
		el = prev
	}
	return removed
}

func (c *LanguageCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
