// Package cache holds the orchestrator's process-local state: completed
// translations, conversation language sets, completion dedup and dispatched
// task context. All containers are safe for concurrent use.
package cache

import (
	"container/list"
	"sync"

	"github.com/meshychat/meshy/internal/domain"
)

const DefaultTranslationCacheSize = 1000

// TranslationCache is a bounded LRU of completed translations keyed on
// (messageId, sourceLanguage, targetLanguage). No TTL: entries stay until
// evicted by capacity.
type TranslationCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	entries  map[string]*list.Element
}

type translationEntry struct {
	key    string
	result domain.TranslationResult
}

func NewTranslationCache(capacity int) *TranslationCache {
	if capacity <= 0 {
		capacity = DefaultTranslationCacheSize
	}
	return &TranslationCache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
}

// TranslationKey builds the cache key. sourceLanguage may be empty when the
// source was auto-detected.
func TranslationKey(messageID, sourceLanguage, targetLanguage string) string {
	return messageID + ":" + sourceLanguage + ":" + targetLanguage
}

func (c *TranslationCache) Get(key string) (domain.TranslationResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return domain.TranslationResult{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*translationEntry).result, true
}

func (c *TranslationCache) Set(key string, result domain.TranslationResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*translationEntry).result = result
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&translationEntry{key: key, result: result})
	c.entries[key] = el

	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*translationEntry).key)
		}
	}
}

func (c *TranslationCache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

func (c *TranslationCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
