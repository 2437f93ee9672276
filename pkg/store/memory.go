package store

import "github.com/harrisonrobin/outlook-todo/pkg/model"

// MemoryStore is a Store that never touches the disk.
type MemoryStore struct {
	tasks []model.Task
	Saves int
	// SaveErr, when set, is returned by Save wrapped in a PersistenceError.
	SaveErr error
}

// NewMemoryStore returns a store preloaded with tasks.
func NewMemoryStore(tasks ...model.Task) *MemoryStore {
	return &MemoryStore{tasks: cloneTasks(tasks)}
}

func (s *MemoryStore) Load() (*model.TaskList, error) {
	return &model.TaskList{Tasks: cloneTasks(s.tasks)}, nil
}

func (s *MemoryStore) Save(list *model.TaskList) error {
	if s.SaveErr != nil {
		return &PersistenceError{Path: "memory", Err: s.SaveErr}
	}
	s.tasks = cloneTasks(list.Tasks)
	s.Saves++
	return nil
}

// Tasks returns a copy of the stored tasks.
func (s *MemoryStore) Tasks() []model.Task {
	return cloneTasks(s.tasks)
}

func cloneTasks(tasks []model.Task) []model.Task {
	out := make([]model.Task, len(tasks))
	for i, t := range tasks {
		if t.CompletedAt != nil {
			at := *t.CompletedAt
			t.CompletedAt = &at
		}
		out[i] = t
	}
	return out
}
