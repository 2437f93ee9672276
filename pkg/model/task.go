package model

import (
	"sort"
	"time"
)

const (
	PENDING   = "pending"
	COMPLETED = "completed"
)

// Task is a locally tracked to-do item, optionally linked to an e-mail.
type Task struct {
	ID          string     `json:"id"`
	MessageID   string     `json:"message_id,omitempty"`
	Subject     string     `json:"subject"`
	Sender      string     `json:"sender,omitempty"`
	ReceivedAt  time.Time  `json:"received_at"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Notes       string     `json:"notes"`
	SourceLink  string     `json:"source_link,omitempty"`
	BodyPreview string     `json:"body_preview,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Status returns the textual completion status.
func (t Task) Status() string {
	if t.Completed {
		return COMPLETED
	}
	return PENDING
}

// Complete marks the task done at the given time. It is a no-op on a
// completed task so CompletedAt keeps its first value.
func (t *Task) Complete(at time.Time) {
	if t.Completed {
		return
	}
	t.Completed = true
	t.CompletedAt = &at
}

// Overdue reports whether a pending task's schedule lies before now.
func (t Task) Overdue(now time.Time) bool {
	return !t.Completed && !t.ScheduledAt.IsZero() && t.ScheduledAt.Before(now)
}

// Message is an upstream e-mail record as delivered by a gateway.
type Message struct {
	ID          string
	Subject     string
	Sender      string
	ReceivedAt  time.Time
	BodyPreview string
	WebLink     string
}

// TaskList is the ordered, process-wide to-do state.
type TaskList struct {
	Tasks []Task
}

// NewTaskList returns an empty list.
func NewTaskList() *TaskList {
	return &TaskList{Tasks: []Task{}}
}

// FindByMessageID returns the task created from the given message, or nil.
func (l *TaskList) FindByMessageID(messageID string) *Task {
	if messageID == "" {
		return nil
	}
	for i := range l.Tasks {
		if l.Tasks[i].MessageID == messageID {
			return &l.Tasks[i]
		}
	}
	return nil
}

// FindByID returns the task with the given identifier, or nil.
func (l *TaskList) FindByID(id string) *Task {
	for i := range l.Tasks {
		if l.Tasks[i].ID == id {
			return &l.Tasks[i]
		}
	}
	return nil
}

// Append adds a task to the end of the list.
func (l *TaskList) Append(t Task) {
	l.Tasks = append(l.Tasks, t)
}

// Active returns the tasks that are not completed, in list order.
func (l *TaskList) Active() []Task {
	var active []Task
	for _, t := range l.Tasks {
		if !t.Completed {
			active = append(active, t)
		}
	}
	return active
}

// Sorted returns a copy of the tasks ordered by schedule, ties kept in list order.
func (l *TaskList) Sorted() []Task {
	return SortBySchedule(l.Tasks)
}

// Len returns the number of tasks.
func (l *TaskList) Len() int {
	return len(l.Tasks)
}

// SortBySchedule returns a copy of tasks ordered by ScheduledAt ascending.
func SortBySchedule(tasks []Task) []Task {
	sorted := make([]Task, len(tasks))
	copy(sorted, tasks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ScheduledAt.Before(sorted[j].ScheduledAt)
	})
	return sorted
}
