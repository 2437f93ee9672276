package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/harrisonrobin/outlook-todo/pkg/model"
)

// DefaultPath is the state file used when nothing else is configured.
const DefaultPath = "todo_state.json"

// Store loads and saves the whole task list.
type Store interface {
	Load() (*model.TaskList, error)
	Save(*model.TaskList) error
}

// CorruptStateError is returned when the state file exists but cannot be
// understood as a task list.
type CorruptStateError struct {
	Path string
	Err  error
}

func (e *CorruptStateError) Error() string {
	return fmt.Sprintf("corrupt state file %s: %v", e.Path, e.Err)
}

func (e *CorruptStateError) Unwrap() error { return e.Err }

// PersistenceError is returned when the task list cannot be written.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("could not persist state to %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// FileStore keeps the task list as a JSON array in a single file.
type FileStore struct {
	Path string
}

// NewFileStore returns a store backed by path.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = DefaultPath
	}
	return &FileStore{Path: path}
}

// Load reads the task list. A missing file is an empty list.
func (s *FileStore) Load() (*model.TaskList, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return model.NewTaskList(), nil
		}
		return nil, &CorruptStateError{Path: s.Path, Err: err}
	}
	defer f.Close()

	var tasks []model.Task
	if err := json.NewDecoder(f).Decode(&tasks); err != nil {
		return nil, &CorruptStateError{Path: s.Path, Err: fmt.Errorf("failed to decode task list: %w", err)}
	}
	if tasks == nil {
		tasks = []model.Task{}
	}
	list := &model.TaskList{Tasks: tasks}
	if err := Validate(list); err != nil {
		return nil, &CorruptStateError{Path: s.Path, Err: err}
	}
	return list, nil
}

// Save replaces the state file with the given list. The content is written
// to a temporary sibling first and renamed over the target.
func (s *FileStore) Save(list *model.TaskList) error {
	tasks := list.Tasks
	if tasks == nil {
		tasks = []model.Task{}
	}
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return &PersistenceError{Path: s.Path, Err: err}
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return &PersistenceError{Path: s.Path, Err: fmt.Errorf("failed to create state directory: %w", err)}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.Path)+".tmp-*")
	if err != nil {
		return &PersistenceError{Path: s.Path, Err: err}
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return &PersistenceError{Path: s.Path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &PersistenceError{Path: s.Path, Err: err}
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		os.Remove(tmpName)
		return &PersistenceError{Path: s.Path, Err: err}
	}
	if err := os.Rename(tmpName, s.Path); err != nil {
		os.Remove(tmpName)
		return &PersistenceError{Path: s.Path, Err: err}
	}
	return nil
}

// Validate checks the list invariants: unique ids, unique message ids and
// CompletedAt being set exactly for completed tasks.
func Validate(list *model.TaskList) error {
	ids := make(map[string]bool)
	messageIDs := make(map[string]bool)
	for i, t := range list.Tasks {
		if t.ID == "" {
			return fmt.Errorf("task %d has no id", i)
		}
		if ids[t.ID] {
			return fmt.Errorf("duplicate task id %q", t.ID)
		}
		ids[t.ID] = true
		if t.MessageID != "" {
			if messageIDs[t.MessageID] {
				return fmt.Errorf("duplicate message id %q", t.MessageID)
			}
			messageIDs[t.MessageID] = true
		}
		if t.Completed != (t.CompletedAt != nil) {
			return fmt.Errorf("task %q: completed=%t does not match completed_at", t.ID, t.Completed)
		}
	}
	return nil
}
