package cache

import (
	"fmt"
	"testing"
	"time"
)

func newTestLanguageCache(capacity int, ttl time.Duration) (*LanguageCache, *time.Time) {
	now := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	c := NewLanguageCache(capacity, ttl)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestLanguageCacheGetSet(t *testing.T) {
	c, _ := newTestLanguageCache(10, 5*time.Minute)

	if _, ok := c.Get("conv_a"); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Set("conv_a", []string{"en", "es"})
	langs, ok := c.Get("conv_a")
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if len(langs) != 2 || langs[0] != "en" || langs[1] != "es" {
		t.Errorf("unexpected languages: %v", langs)
	}
}

func TestLanguageCacheExpiry(t *testing.T) {
	c, now := newTestLanguageCache(10, 5*time.Minute)

	c.Set("conv_a", []string{"en"})

	*now = now.Add(4 * time.Minute)
	if _, ok := c.Get("conv_a"); !ok {
		t.Fatal("expected hit before ttl")
	}

	*now = now.Add(2 * time.Minute)
	if _, ok := c.Get("conv_a"); ok {
		t.Fatal("expected expiry after ttl")
	}
	if c.Len() != 0 {
		t.Errorf("expected expired entry removed, len %d", c.Len())
	}
}

func TestLanguageCacheSetRefreshesTTL(t *testing.T) {
	c, now := newTestLanguageCache(10, 5*time.Minute)

	c.Set("conv_a", []string{"en"})
	*now = now.Add(4 * time.Minute)
	c.Set("conv_a", []string{"en", "fr"})

	*now = now.Add(4 * time.Minute)
	langs, ok := c.Get("conv_a")
	if !ok {
		t.Fatal("expected refreshed entry to survive")
	}
	if len(langs) != 2 {
		t.Errorf("expected updated languages, got %v", langs)
	}
}

func TestLanguageCacheEvictsOldestInsertion(t *testing.T) {
	c, _ := newTestLanguageCache(3, 5*time.Minute)

	c.Set("a", []string{"en"})
	c.Set("b", []string{"en"})
	c.Set("c", []string{"en"})
	// Re-setting a keeps its insertion slot, so a is still the oldest.
	c.Set("a", []string{"en", "de"})
	c.Set("d", []string{"en"})

	if _, ok := c.Get("a"); ok {
		t.Error("expected a to be evicted as oldest insertion")
	}
	if _, ok := c.Get("b"); !ok {
		t.Error("expected b to survive")
	}
}

func TestLanguageCacheStaysBounded(t *testing.T) {
	c, _ := newTestLanguageCache(100, 5*time.Minute)
	for i := 0; i < 250; i++ {
		c.Set(fmt.Sprintf("conv-%d", i), []string{"en"})
	}
	if c.Len() != 100 {
		t.Errorf("expected len capped at 100, got %d", c.Len())
	}
}

func TestLanguageCacheCleanExpired(t *testing.T) {
	c, now := newTestLanguageCache(10, 5*time.Minute)

	c.Set("a", []string{"en"})
	c.Set("b", []string{"en"})
	*now = now.Add(6 * time.Minute)
	c.Set("c", []string{"en"})

	removed := c.CleanExpired()
	if removed != 2 {
		t.Errorf("expected 2 removed, got %d", removed)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry left, got %d", c.Len())
	}
	if _, ok := c.Get("c"); !ok {
		t.Error("expected fresh entry to survive cleanup")
	}
}

func TestLanguageCacheDelete(t *testing.T) {
	c, _ := newTestLanguageCache(10, 5*time.Minute)

	c.Set("conv_a", []string{"en"})
	c.Delete("conv_a")
	if _, ok := c.Get("conv_a"); ok {
		t.Error("expected miss after delete")
	}

	// Deleting a missing key is a no-op.
	c.Delete("conv_b")
}
