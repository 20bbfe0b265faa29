package bundle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/funvibe/funir/internal/config"
)

func TestCacheKey(t *testing.T) {
	input := []byte("bundle bytes")
	fp := []byte("static=true;handler=false")

	key := CacheKey(input, fp)
	if len(key) != 16 {
		t.Fatalf("key length: got %d, want 16", len(key))
	}
	if key != CacheKey(input, fp) {
		t.Error("key is not deterministic")
	}
	if key == CacheKey([]byte("other bytes"), fp) {
		t.Error("key ignores the input")
	}
	if key == CacheKey(input, []byte("static=false;handler=false")) {
		t.Error("key ignores the fingerprint")
	}
	// The separator keeps (input, fingerprint) pairs unambiguous.
	if CacheKey([]byte("ab"), []byte("c")) == CacheKey([]byte("a"), []byte("bc")) {
		t.Error("key collides across the input/fingerprint boundary")
	}
}

func TestCacheStoreLookup(t *testing.T) {
	c := NewCache(t.TempDir())
	key := CacheKey([]byte("in"), []byte("fp"))

	if got := c.Lookup(key); got != nil {
		t.Fatalf("Lookup before Store: got %q, want nil", got)
	}
	if err := c.Store(key, []byte("lowered")); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if got := c.Lookup(key); string(got) != "lowered" {
		t.Errorf("Lookup: got %q, want %q", got, "lowered")
	}
	if got := c.Lookup("0000000000000000"); got != nil {
		t.Errorf("Lookup of unknown key: got %q, want nil", got)
	}
}

func TestCacheEvictsEmptyEntry(t *testing.T) {
	dir := t.TempDir()
	c := NewCache(dir)
	path := filepath.Join(dir, "deadbeefdeadbeef"+config.LoweredBundleExt)
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("writing empty entry: %v", err)
	}

	if got := c.Lookup("deadbeefdeadbeef"); got != nil {
		t.Fatalf("Lookup of empty entry: got %q, want nil", got)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("empty entry was not evicted")
	}
}

func TestCacheDisabled(t *testing.T) {
	c := NewCache("")
	if err := c.Store("k", []byte("data")); err != nil {
		t.Fatalf("Store on disabled cache: %v", err)
	}
	if got := c.Lookup("k"); got != nil {
		t.Errorf("Lookup on disabled cache: got %q, want nil", got)
	}
	if err := c.Clean(); err != nil {
		t.Errorf("Clean on disabled cache: %v", err)
	}
}

func TestCacheClean(t *testing.T) {
	c := NewCache(filepath.Join(t.TempDir(), "cache"))
	if err := c.Store("abc", []byte("data")); err != nil {
		t.Fatalf("Store failed: %v", err)
	}
	if err := c.Clean(); err != nil {
		t.Fatalf("Clean failed: %v", err)
	}
	if got := c.Lookup("abc"); got != nil {
		t.Errorf("Lookup after Clean: got %q, want nil", got)
	}
}
