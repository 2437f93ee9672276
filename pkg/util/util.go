package util

import (
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/harrisonrobin/outlook-todo/pkg/model"
)

const (
	// TaskIDProperty is the private extended property that ties an event to its task.
	TaskIDProperty = "outlook_todo_id"

	DefaultColorID  = "1"
	DefaultDuration = 30 * time.Minute

	donePrefix    = "✓"
	overduePrefix = "!"
)

// EventNeedsUpdate returns a patch event if the fields shared between a task
// event and the existing calendar event differ, or nil when they match.
func EventNeedsUpdate(existingEvent *calendar.Event, targetEvent *calendar.Event) (*calendar.Event, error) {
	patch := &calendar.Event{}
	needsUpdate := false

	if existingEvent.Summary != targetEvent.Summary {
		patch.Summary = targetEvent.Summary
		needsUpdate = true
	}

	if existingEvent.Description != targetEvent.Description {
		patch.Description = targetEvent.Description
		needsUpdate = true
	}

	if existingEvent.ColorId != targetEvent.ColorId {
		patch.ColorId = targetEvent.ColorId
		needsUpdate = true
	}

	if existingEvent.Start == nil || existingEvent.End == nil {
		patch.Start = targetEvent.Start
		patch.End = targetEvent.End
		return patch, nil
	}

	existingStartTime, err := time.Parse(time.RFC3339, existingEvent.Start.DateTime)
	if err != nil {
		return nil, err
	}
	targetStartTime, err := time.Parse(time.RFC3339, targetEvent.Start.DateTime)
	if err != nil {
		return nil, err
	}
	existingEndTime, err := time.Parse(time.RFC3339, existingEvent.End.DateTime)
	if err != nil {
		return nil, err
	}
	targetEndTime, err := time.Parse(time.RFC3339, targetEvent.End.DateTime)
	if err != nil {
		return nil, err
	}

	if !existingStartTime.Equal(targetStartTime) || !existingEndTime.Equal(targetEndTime) {
		patch.Start = targetEvent.Start
		patch.End = targetEvent.End
		needsUpdate = true
	}

	if needsUpdate {
		return patch, nil
	}
	return nil, nil
}

// ConvertTaskToCalendarEvent builds the calendar event mirroring a task.
// Pending tasks occupy their scheduled slot; completed ones end at their
// completion time.
func ConvertTaskToCalendarEvent(task *model.Task, colorID string, now time.Time) (*calendar.Event, error) {
	if task == nil {
		return nil, fmt.Errorf("could not convert nil Task")
	}
	if colorID == "" {
		colorID = DefaultColorID
	}

	summary := task.Subject
	if task.Completed {
		summary = fmt.Sprintf("%s %s", donePrefix, task.Subject)
	} else if task.Overdue(now) {
		summary = fmt.Sprintf("%s %s", overduePrefix, task.Subject)
	}

	var start, end time.Time
	switch {
	case task.Completed && task.CompletedAt != nil:
		end = *task.CompletedAt
		start = end.Add(-DefaultDuration)
	case !task.ScheduledAt.IsZero():
		start = task.ScheduledAt
		end = start.Add(DefaultDuration)
	default:
		return nil, fmt.Errorf("task has no schedule: %s", task.ID)
	}

	event := &calendar.Event{
		Summary: summary,
		ColorId: colorID,
		Start: &calendar.EventDateTime{
			DateTime: start.UTC().Format(time.RFC3339),
		},
		End: &calendar.EventDateTime{
			DateTime: end.UTC().Format(time.RFC3339),
		},
		Description: eventDescription(task),
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{
				TaskIDProperty: task.ID,
			},
		},
	}
	if task.SourceLink != "" {
		event.Source = &calendar.EventSource{Title: "Outlook", Url: task.SourceLink}
	}
	return event, nil
}

func eventDescription(task *model.Task) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Status: %s\n", task.Status()))
	if task.Sender != "" {
		b.WriteString(fmt.Sprintf("From: %s\n", task.Sender))
	}
	if !task.ReceivedAt.IsZero() {
		b.WriteString(fmt.Sprintf("Received: %s\n", task.ReceivedAt.UTC().Format(time.RFC3339)))
	}
	b.WriteString(fmt.Sprintf("ID: %s\n", task.ID))
	if task.SourceLink != "" {
		b.WriteString(fmt.Sprintf("Link: %s\n", task.SourceLink))
	}

	if notes := strings.TrimSpace(task.Notes); notes != "" {
		b.WriteString("\nNotes:\n")
		for _, line := range strings.Split(notes, "\n") {
			b.WriteString(fmt.Sprintf("‣ %s\n", line))
		}
	}
	if preview := strings.TrimSpace(task.BodyPreview); preview != "" {
		b.WriteString("\nPreview:\n")
		b.WriteString(preview)
		b.WriteString("\n")
	}
	return b.String()
}

// GetTaskIDFromEvent returns the task id an event was created for.
func GetTaskIDFromEvent(event *calendar.Event) (string, bool) {
	if event == nil || event.ExtendedProperties == nil {
		return "", false
	}
	id, ok := event.ExtendedProperties.Private[TaskIDProperty]
	return id, ok && id != ""
}
