// Package index remembers which calendar event mirrors which task, so
// push-calendar can fetch an event directly instead of searching for it.
package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// FileName is the index file inside the config directory.
const FileName = "events.json"

// EventIndex maps task ids to calendar event ids. It is not safe for
// concurrent use.
type EventIndex struct {
	Mappings map[string]string `json:"mappings"`
	Path     string            `json:"-"`
	dirty    bool
}

// NewEventIndex opens the index stored at path. A missing file yields an
// empty index.
func NewEventIndex(path string) (*EventIndex, error) {
	idx := &EventIndex{
		Mappings: make(map[string]string),
		Path:     path,
	}

	if _, err := os.Stat(path); err == nil {
		if err := idx.Load(); err != nil {
			return nil, fmt.Errorf("event index %s is unreadable: %w", path, err)
		}
	}

	return idx, nil
}

func (idx *EventIndex) Load() error {
	f, err := os.Open(idx.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	var mappings map[string]string
	if err := json.NewDecoder(f).Decode(&mappings); err != nil {
		return err
	}
	// A file holding null decodes to a nil map.
	if mappings == nil {
		mappings = make(map[string]string)
	}
	idx.Mappings = mappings
	idx.dirty = false
	return nil
}

// Save writes the index if it changed since the last Load or Save.
func (idx *EventIndex) Save() error {
	if !idx.dirty {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(idx.Path), 0700); err != nil {
		return err
	}

	f, err := os.Create(idx.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(idx.Mappings); err != nil {
		return err
	}
	idx.dirty = false
	return nil
}

// Get returns the event id for a task, or "" when none is known.
func (idx *EventIndex) Get(taskID string) string {
	return idx.Mappings[taskID]
}

func (idx *EventIndex) Set(taskID, eventID string) {
	if idx.Mappings[taskID] != eventID {
		idx.Mappings[taskID] = eventID
		idx.dirty = true
	}
}

func (idx *EventIndex) Remove(taskID string) {
	if _, exists := idx.Mappings[taskID]; exists {
		delete(idx.Mappings, taskID)
		idx.dirty = true
	}
}

// TaskIDs returns the indexed task ids in sorted order.
func (idx *EventIndex) TaskIDs() []string {
	ids := make([]string, 0, len(idx.Mappings))
	for id := range idx.Mappings {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (idx *EventIndex) Len() int {
	return len(idx.Mappings)
}
