package colors

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestCache(t *testing.T) *ColorCache {
	t.Helper()
	cache, err := NewColorCache(filepath.Join(t.TempDir(), FileName))
	if err != nil {
		t.Fatalf("NewColorCache failed: %v", err)
	}
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.Now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return cache
}

func TestGetColorIDStablePerSender(t *testing.T) {
	cache := newTestCache(t)

	first := cache.GetColorID("Ana Souza")
	if first != "1" {
		t.Errorf("Expected first colour 1, got %s", first)
	}
	if got := cache.GetColorID("  ana souza "); got != first {
		t.Errorf("Expected same colour for same sender, got %s", got)
	}
	if got := cache.GetColorID("Bob"); got != "2" {
		t.Errorf("Expected colour 2 for second sender, got %s", got)
	}
	if got := cache.GetColorID(""); got != NoSenderColor {
		t.Errorf("Expected %s for no sender, got %s", NoSenderColor, got)
	}
}

func TestGetColorIDEvictsLeastRecentlyUsed(t *testing.T) {
	cache := newTestCache(t)

	for i := 0; i < paletteSize; i++ {
		cache.GetColorID(fmt.Sprintf("sender-%d", i))
	}
	// sender-0 becomes the most recent; sender-1 is now the oldest.
	cache.GetColorID("sender-0")

	got := cache.GetColorID("newcomer")
	if got != "2" {
		t.Errorf("Expected newcomer to recycle colour 2, got %s", got)
	}
	if _, ok := cache.Senders["sender-1"]; ok {
		t.Error("Expected sender-1 to be evicted")
	}
	if len(cache.Senders) != paletteSize {
		t.Errorf("Expected %d senders, got %d", paletteSize, len(cache.Senders))
	}
}

func TestColorCacheSaveAndReload(t *testing.T) {
	cache := newTestCache(t)
	cache.GetColorID("Ana")
	cache.GetColorID("Bob")
	if err := cache.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	reloaded, err := NewColorCache(cache.Path)
	if err != nil {
		t.Fatalf("NewColorCache failed: %v", err)
	}
	if got := reloaded.GetColorID("bob"); got != "2" {
		t.Errorf("Expected persisted colour 2, got %s", got)
	}
}

func TestColorCacheNullFile(t *testing.T) {
	for name, content := range map[string]string{
		"null file":  "null\n",
		"null entry": `{"ana": null}`,
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), FileName)
			if err := os.WriteFile(path, []byte(content), 0600); err != nil {
				t.Fatal(err)
			}
			cache, err := NewColorCache(path)
			if err != nil {
				t.Fatalf("NewColorCache failed: %v", err)
			}
			if got := cache.GetColorID("Ana"); got != "1" {
				t.Errorf("Expected colour 1, got %s", got)
			}
			if got := cache.GetColorID("Bob"); got != "2" {
				t.Errorf("Expected colour 2, got %s", got)
			}
		})
	}
}
