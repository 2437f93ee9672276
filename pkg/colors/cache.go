// Package colors hands out Google Calendar event colours per sender, so
// tasks from the same correspondent share a colour.
package colors

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	// FileName is the cache file inside the config directory.
	FileName = "sender_colors.json"

	// NoSenderColor is used for tasks without a sender (graphite).
	NoSenderColor = "8"

	// Event colours 1..11 are the ones Google Calendar offers.
	paletteSize = 11
)

type SenderState struct {
	ColorID      string    `json:"color_id"`
	LastModified time.Time `json:"last_modified"`
}

type ColorCache struct {
	Path    string
	Senders map[string]*SenderState `json:"senders"`
	Now     func() time.Time
	dirty   bool
}

// NewColorCache opens the cache stored at path. A missing file yields an
// empty cache.
func NewColorCache(path string) (*ColorCache, error) {
	cache := &ColorCache{
		Path:    path,
		Senders: make(map[string]*SenderState),
		Now:     time.Now,
	}

	if _, err := os.Stat(path); err == nil {
		if err := cache.Load(); err != nil {
			return nil, err
		}
	}
	return cache, nil
}

func (c *ColorCache) Load() error {
	f, err := os.Open(c.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	var senders map[string]*SenderState
	if err := json.NewDecoder(f).Decode(&senders); err != nil {
		return err
	}
	if senders == nil {
		senders = make(map[string]*SenderState)
	}
	for sender, state := range senders {
		if state == nil {
			delete(senders, sender)
		}
	}
	c.Senders = senders
	return nil
}

func (c *ColorCache) Save() error {
	if !c.dirty {
		return nil
	}
	dir := filepath.Dir(c.Path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		log.Printf("Error creating color cache directory: %v", err)
		return err
	}

	f, err := os.Create(c.Path)
	if err != nil {
		log.Printf("Error creating color cache file: %v", err)
		return err
	}
	defer f.Close()
	err = json.NewEncoder(f).Encode(c.Senders)
	if err == nil {
		c.dirty = false
	}
	return err
}

// GetColorID returns the colour of a sender. New senders take a free colour;
// when all are taken the least recently used sender gives up its colour.
func (c *ColorCache) GetColorID(sender string) string {
	key := strings.ToLower(strings.TrimSpace(sender))
	if key == "" {
		return NoSenderColor
	}

	if state, exists := c.Senders[key]; exists {
		state.LastModified = c.now()
		c.dirty = true
		return state.ColorID
	}
	return c.assignColor(key)
}

func (c *ColorCache) assignColor(sender string) string {
	used := make(map[string]bool)
	for _, s := range c.Senders {
		used[s.ColorID] = true
	}

	for i := 1; i <= paletteSize; i++ {
		id := strconv.Itoa(i)
		if !used[id] {
			c.claim(sender, id)
			return id
		}
	}

	var oldest string
	var oldestTime time.Time
	for s, state := range c.Senders {
		if oldest == "" || state.LastModified.Before(oldestTime) {
			oldestTime = state.LastModified
			oldest = s
		}
	}

	recycled := c.Senders[oldest].ColorID
	delete(c.Senders, oldest)
	c.claim(sender, recycled)
	return recycled
}

func (c *ColorCache) claim(sender, id string) {
	c.Senders[sender] = &SenderState{ColorID: id, LastModified: c.now()}
	c.dirty = true
}

func (c *ColorCache) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}
