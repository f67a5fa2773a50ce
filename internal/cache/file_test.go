package cache

import (
	"path/filepath"
	"testing"
	"time"
)

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "kv.json")

	s := NewFileStore(path)
	if _, ok := s.Get("theme"); ok {
		t.Fatal("empty store returned a value")
	}

	s.Set("theme", "dark")
	if v, ok := s.Get("theme"); !ok || v != "dark" {
		t.Fatalf("Get(theme) = %q, %v; want dark, true", v, ok)
	}

	// A fresh store on the same path sees the persisted value.
	reloaded := NewFileStore(path)
	if v, ok := reloaded.Get("theme"); !ok || v != "dark" {
		t.Fatalf("reloaded Get(theme) = %q, %v; want dark, true", v, ok)
	}
}

func TestFileStore_OverwriteLastWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.json")
	s := NewFileStore(path)

	s.Set("theme", "light")
	s.Set("theme", "dark")
	if v, _ := s.Get("theme"); v != "dark" {
		t.Errorf("Get(theme) = %q, want dark", v)
	}
}

func TestLRUCache_EvictionAndTTL(t *testing.T) {
	c := NewLRUCache[int](2, 50*time.Millisecond)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3) // evicts a

	if _, ok := c.Get("a"); ok {
		t.Error("oldest entry survived eviction")
	}
	if v, ok := c.Get("b"); !ok || v != 2 {
		t.Errorf("Get(b) = %d, %v; want 2, true", v, ok)
	}

	time.Sleep(60 * time.Millisecond)
	if _, ok := c.Get("b"); ok {
		t.Error("expired entry returned")
	}
	if got := c.CleanExpired(); got != 1 {
		// "b" was dropped lazily by Get; only "c" remains expired.
		t.Errorf("CleanExpired() = %d, want 1", got)
	}
	if c.Size() != 0 {
		t.Errorf("Size() = %d, want 0", c.Size())
	}
}
