package google

import (
	"context"
	"fmt"
	"log"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/harrisonrobin/outlook-todo/pkg/colors"
	"github.com/harrisonrobin/outlook-todo/pkg/index"
	"github.com/harrisonrobin/outlook-todo/pkg/model"
	"github.com/harrisonrobin/outlook-todo/pkg/util"
)

// Outcome describes what SyncTask did with a task's event.
type Outcome string

const (
	Created   Outcome = "created"
	Updated   Outcome = "updated"
	Unchanged Outcome = "unchanged"
)

// PushResult counts the outcomes of a Push.
type PushResult struct {
	Created   int
	Updated   int
	Unchanged int
	Skipped   int
	Deleted   int
	Failed    int
}

// CalendarClient mirrors tasks into one Google calendar.
type CalendarClient struct {
	srv        *calendar.Service
	calendarID string
	index      *index.EventIndex
	colors     *colors.ColorCache
	Now        func() time.Time
}

// NewCalendarClient creates a new Google Calendar client. idx and cache may be nil.
func NewCalendarClient(srv *calendar.Service, calendarID string, idx *index.EventIndex, cache *colors.ColorCache) *CalendarClient {
	return &CalendarClient{srv: srv, calendarID: calendarID, index: idx, colors: cache, Now: time.Now}
}

// Push syncs every scheduled task. Per-task failures are logged and
// counted; they do not stop the run.
func (c *CalendarClient) Push(ctx context.Context, tasks []model.Task) PushResult {
	var res PushResult
	for i := range tasks {
		task := tasks[i]
		if task.ScheduledAt.IsZero() && task.CompletedAt == nil {
			res.Skipped++
			continue
		}
		outcome, err := c.SyncTask(ctx, task)
		if err != nil {
			log.Printf("could not mirror task %s (%s): %v", task.ID, task.Subject, err)
			res.Failed++
			continue
		}
		switch outcome {
		case Created:
			res.Created++
		case Updated:
			res.Updated++
		default:
			res.Unchanged++
		}
	}
	deleted, failed := c.Prune(ctx, tasks)
	res.Deleted += deleted
	res.Failed += failed
	return res
}

// Prune deletes the events of indexed tasks that are no longer in tasks.
// Events that no longer carry the task's id are only dropped from the
// index. It returns the number of deleted events and of failed deletions.
func (c *CalendarClient) Prune(ctx context.Context, tasks []model.Task) (deleted, failed int) {
	if c.index == nil {
		return 0, 0
	}
	known := make(map[string]bool, len(tasks))
	for _, task := range tasks {
		known[task.ID] = true
	}

	for _, taskID := range c.index.TaskIDs() {
		if known[taskID] {
			continue
		}
		event, err := c.srv.Events.Get(c.calendarID, c.index.Get(taskID)).Context(ctx).Do()
		if err != nil || event.Status == "cancelled" {
			c.index.Remove(taskID)
			continue
		}
		if owner, ok := util.GetTaskIDFromEvent(event); !ok || owner != taskID {
			c.index.Remove(taskID)
			continue
		}
		if err := c.DeleteEvent(ctx, event.Id); err != nil {
			log.Printf("could not delete event %s of removed task %s: %v", event.Id, taskID, err)
			failed++
			continue
		}
		c.index.Remove(taskID)
		deleted++
	}
	return deleted, failed
}

// SyncTask creates the task's event or patches it when it drifted.
func (c *CalendarClient) SyncTask(ctx context.Context, task model.Task) (Outcome, error) {
	colorID := util.DefaultColorID
	if c.colors != nil {
		colorID = c.colors.GetColorID(task.Sender)
	}
	event, err := util.ConvertTaskToCalendarEvent(&task, colorID, c.now())
	if err != nil {
		return "", err
	}

	var existingEvent *calendar.Event
	// 1. Try local index first
	if c.index != nil {
		if eventID := c.index.Get(task.ID); eventID != "" {
			existingEvent, err = c.srv.Events.Get(c.calendarID, eventID).Context(ctx).Do()
			if err != nil || existingEvent.Status == "cancelled" {
				existingEvent = nil
				c.index.Remove(task.ID)
			}
		}
	}

	// 2. Fallback to API search if not found in index
	if existingEvent == nil {
		existingEvent, err = c.GetEventByTaskID(ctx, task.ID)
		if err != nil {
			return "", fmt.Errorf("error searching for event: %w", err)
		}
	}

	if existingEvent != nil {
		patch, err := util.EventNeedsUpdate(existingEvent, event)
		if err != nil {
			return "", fmt.Errorf("could not compare task with its calendar event: %w", err)
		}
		if patch == nil {
			c.remember(task.ID, existingEvent.Id)
			return Unchanged, nil
		}
		updatedEvent, err := c.PatchEvent(ctx, existingEvent.Id, patch)
		if err != nil {
			return "", err
		}
		c.remember(task.ID, updatedEvent.Id)
		return Updated, nil
	}

	createdEvent, err := c.srv.Events.Insert(c.calendarID, event).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	c.remember(task.ID, createdEvent.Id)
	return Created, nil
}

// PatchEvent performs a partial update on an event.
func (c *CalendarClient) PatchEvent(ctx context.Context, eventID string, patch *calendar.Event) (*calendar.Event, error) {
	return c.srv.Events.Patch(c.calendarID, eventID, patch).Context(ctx).Do()
}

// DeleteEvent deletes an event from the calendar.
func (c *CalendarClient) DeleteEvent(ctx context.Context, eventID string) error {
	return c.srv.Events.Delete(c.calendarID, eventID).Context(ctx).Do()
}

// GetEventByTaskID searches for a live event carrying the task id in its
// private extended properties.
func (c *CalendarClient) GetEventByTaskID(ctx context.Context, taskID string) (*calendar.Event, error) {
	events, err := c.srv.Events.List(c.calendarID).
		PrivateExtendedProperty(fmt.Sprintf("%s=%s", util.TaskIDProperty, taskID)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	for _, item := range events.Items {
		if item.Status != "cancelled" {
			return item, nil
		}
	}
	return nil, nil
}

func (c *CalendarClient) remember(taskID, eventID string) {
	if c.index != nil && eventID != "" {
		c.index.Set(taskID, eventID)
	}
}

func (c *CalendarClient) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}
