package util

import (
	"strings"
	"testing"
	"time"

	"github.com/harrisonrobin/outlook-todo/pkg/model"
)

func TestConvertTaskToCalendarEvent(t *testing.T) {
	scheduled := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)
	task := &model.Task{
		ID:          "AAMkAGI2",
		MessageID:   "AAMkAGI2",
		Subject:     "Review contract",
		Sender:      "Ana",
		ScheduledAt: scheduled,
		Notes:       "Call legal\nSend summary",
		SourceLink:  "https://outlook.office.com/mail/1",
	}

	event, err := ConvertTaskToCalendarEvent(task, "5", scheduled.Add(-time.Hour))
	if err != nil {
		t.Fatalf("ConvertTaskToCalendarEvent failed: %v", err)
	}

	if event.ExtendedProperties == nil || event.ExtendedProperties.Private == nil {
		t.Fatal("ExtendedProperties or Private map is nil")
	}
	if id, ok := GetTaskIDFromEvent(event); !ok || id != task.ID {
		t.Errorf("Expected %s %s, got %v", TaskIDProperty, task.ID, id)
	}
	if event.Summary != "Review contract" {
		t.Errorf("Expected plain summary, got %q", event.Summary)
	}
	if event.ColorId != "5" {
		t.Errorf("Expected colour 5, got %s", event.ColorId)
	}
	if event.Start.DateTime != "2023-01-01T12:00:00Z" || event.End.DateTime != "2023-01-01T12:30:00Z" {
		t.Errorf("unexpected slot %s - %s", event.Start.DateTime, event.End.DateTime)
	}
	for _, want := range []string{"Status: pending", "From: Ana", "‣ Call legal", "‣ Send summary", "Link: https://outlook.office.com/mail/1"} {
		if !strings.Contains(event.Description, want) {
			t.Errorf("Expected description to contain %q, got: %s", want, event.Description)
		}
	}
	if event.Source == nil || event.Source.Url != task.SourceLink {
		t.Errorf("Expected event source link, got %+v", event.Source)
	}
}

func TestConvertTaskPrefixes(t *testing.T) {
	scheduled := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)
	task := &model.Task{ID: "t1", Subject: "Pay invoice", ScheduledAt: scheduled}

	event, err := ConvertTaskToCalendarEvent(task, "", scheduled.Add(time.Hour))
	if err != nil {
		t.Fatalf("ConvertTaskToCalendarEvent failed: %v", err)
	}
	if event.Summary != "! Pay invoice" {
		t.Errorf("Expected overdue prefix, got %q", event.Summary)
	}
	if event.ColorId != DefaultColorID {
		t.Errorf("Expected default colour, got %s", event.ColorId)
	}

	done := scheduled.Add(3 * time.Hour)
	task.Complete(done)
	event, err = ConvertTaskToCalendarEvent(task, "", done.Add(time.Hour))
	if err != nil {
		t.Fatalf("ConvertTaskToCalendarEvent failed: %v", err)
	}
	if event.Summary != "✓ Pay invoice" {
		t.Errorf("Expected done prefix, got %q", event.Summary)
	}
	if event.End.DateTime != "2023-01-01T15:00:00Z" || event.Start.DateTime != "2023-01-01T14:30:00Z" {
		t.Errorf("Expected slot ending at completion, got %s - %s", event.Start.DateTime, event.End.DateTime)
	}
}

func TestConvertTaskWithoutSchedule(t *testing.T) {
	if _, err := ConvertTaskToCalendarEvent(&model.Task{ID: "x", Subject: "s"}, "", time.Now()); err == nil {
		t.Error("Expected error for unscheduled task")
	}
	if _, err := ConvertTaskToCalendarEvent(nil, "", time.Now()); err == nil {
		t.Error("Expected error for nil task")
	}
}

func TestEventNeedsUpdate(t *testing.T) {
	scheduled := time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)
	task := &model.Task{ID: "t1", Subject: "Pay invoice", ScheduledAt: scheduled}
	now := scheduled.Add(-time.Hour)

	existing, _ := ConvertTaskToCalendarEvent(task, "3", now)
	target, _ := ConvertTaskToCalendarEvent(task, "3", now)
	patch, err := EventNeedsUpdate(existing, target)
	if err != nil {
		t.Fatalf("EventNeedsUpdate failed: %v", err)
	}
	if patch != nil {
		t.Errorf("Expected no patch for identical events, got %+v", patch)
	}

	task.ScheduledAt = scheduled.Add(2 * time.Hour)
	task.Subject = "Pay invoice #42"
	target, _ = ConvertTaskToCalendarEvent(task, "3", now)
	patch, err = EventNeedsUpdate(existing, target)
	if err != nil {
		t.Fatalf("EventNeedsUpdate failed: %v", err)
	}
	if patch == nil {
		t.Fatal("Expected a patch")
	}
	if patch.Summary != "Pay invoice #42" || patch.Start == nil || patch.ColorId != "" {
		t.Errorf("unexpected patch %+v", patch)
	}
}
