package cache

import (
	"testing"
	"time"
)

func TestCacheGetSet(t *testing.T) {
	c := New[string, int]()

	if _, ok := c.Get("missing", time.Minute); ok {
		t.Fatal("expected miss for missing key")
	}

	c.Set("a", 42)
	v, ok := c.Get("a", time.Minute)
	if !ok {
		t.Fatal("expected hit for fresh key")
	}
	if v != 42 {
		t.Fatalf("got %d, want 42", v)
	}
}

func TestCacheExpiry(t *testing.T) {
	c := New[string, string]()

	now := time.Now()
	c.now = func() time.Time { return now }
	c.Set("k", "v")

	// Reads within the TTL hit, reads beyond it miss.
	c.now = func() time.Time { return now.Add(30 * time.Second) }
	if _, ok := c.Get("k", time.Minute); !ok {
		t.Fatal("expected hit inside TTL")
	}

	c.now = func() time.Time { return now.Add(2 * time.Minute) }
	if _, ok := c.Get("k", time.Minute); ok {
		t.Fatal("expected miss after TTL")
	}
}

func TestCachePerReadTTL(t *testing.T) {
	c := New[string, int]()

	now := time.Now()
	c.now = func() time.Time { return now }
	c.Set("k", 1)

	c.now = func() time.Time { return now.Add(10 * time.Second) }
	if _, ok := c.Get("k", 5*time.Second); ok {
		t.Fatal("caller with a 5s tolerance should miss a 10s-old entry")
	}
	if _, ok := c.Get("k", time.Minute); !ok {
		t.Fatal("caller with a 1m tolerance should hit the same entry")
	}
}

func TestCacheInvalidate(t *testing.T) {
	c := New[int, string]()

	c.Set(1, "one")
	c.Set(2, "two")
	if c.Len() != 2 {
		t.Fatalf("got %d entries, want 2", c.Len())
	}

	c.Invalidate(1)
	if _, ok := c.Get(1, time.Minute); ok {
		t.Fatal("expected miss after invalidate")
	}
	if _, ok := c.Get(2, time.Minute); !ok {
		t.Fatal("other keys must survive invalidation")
	}
}
