package todo

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harrisonrobin/outlook-todo/pkg/gateway"
	"github.com/harrisonrobin/outlook-todo/pkg/markdown"
	"github.com/harrisonrobin/outlook-todo/pkg/model"
	"github.com/harrisonrobin/outlook-todo/pkg/store"
)

// App wires the store, the mail gateway and the exporter together. Every
// operation loads the list at its start and saves it before returning when
// it changed anything.
type App struct {
	Store    store.Store
	Gateway  gateway.Gateway
	Exporter *markdown.Exporter
	Now      func() time.Time
}

// NewApp returns an App using the wall clock and the default exporter.
// gw may be nil for commands that never talk to the mail server.
func NewApp(s store.Store, gw gateway.Gateway) *App {
	return &App{
		Store:    s,
		Gateway:  gw,
		Exporter: markdown.NewExporter(),
		Now:      time.Now,
	}
}

// MarkResult is the outcome of MarkDone. Warning is set when the task was
// completed locally but the upstream read flag could not be updated.
type MarkResult struct {
	Task        model.Task
	Warning     *GatewayWarning
	AlreadyDone bool
}

// Sync fetches up to limit unread messages and turns new ones into tasks.
// schedule, when non-nil, overrides the scheduled time of every created task.
func (a *App) Sync(ctx context.Context, limit int, schedule *time.Time) (SyncResult, error) {
	if a.Gateway == nil {
		return SyncResult{}, fmt.Errorf("no mail gateway configured")
	}
	if limit <= 0 {
		limit = gateway.DefaultLimit
	}

	list, err := a.Store.Load()
	if err != nil {
		return SyncResult{}, err
	}

	msgs, err := a.Gateway.FetchUnread(ctx, limit)
	if err != nil {
		return SyncResult{}, fmt.Errorf("failed to fetch unread messages: %w", err)
	}
	log.Printf("fetched %d unread message(s)", len(msgs))

	result, err := Reconcile(list, msgs, schedule, a.Now())
	if err != nil {
		return SyncResult{}, err
	}
	if len(result.Created) > 0 {
		if err := a.Store.Save(list); err != nil {
			return SyncResult{}, err
		}
	}
	return result, nil
}

// List returns all tasks ordered by schedule.
func (a *App) List() ([]model.Task, error) {
	list, err := a.Store.Load()
	if err != nil {
		return nil, err
	}
	return list.Sorted(), nil
}

// MarkDone completes the task referenced by a message id (or, for manual
// tasks, by task id) and then asks the gateway to flag the mail as read.
// The local completion is kept even if the gateway call fails.
func (a *App) MarkDone(ctx context.Context, ref string) (MarkResult, error) {
	list, err := a.Store.Load()
	if err != nil {
		return MarkResult{}, err
	}

	task := lookup(list, ref)
	if task == nil {
		return MarkResult{}, &TaskNotFoundError{Ref: ref}
	}
	if task.Completed {
		return MarkResult{Task: *task, AlreadyDone: true}, nil
	}

	task.Complete(a.Now())
	if err := a.Store.Save(list); err != nil {
		return MarkResult{}, err
	}
	result := MarkResult{Task: *task}

	if task.MessageID == "" {
		return result, nil
	}
	if a.Gateway == nil {
		result.Warning = &GatewayWarning{MessageID: task.MessageID, Err: fmt.Errorf("no mail gateway configured")}
		return result, nil
	}
	if err := a.Gateway.MarkRead(ctx, task.MessageID); err != nil {
		result.Warning = &GatewayWarning{MessageID: task.MessageID, Err: err}
	}
	return result, nil
}

// AddManual records a task that has no source e-mail.
func (a *App) AddManual(subject, sender string, scheduledAt time.Time, preview, link string) (model.Task, error) {
	if strings.TrimSpace(subject) == "" {
		return model.Task{}, fmt.Errorf("subject must not be empty")
	}
	list, err := a.Store.Load()
	if err != nil {
		return model.Task{}, err
	}

	now := a.Now()
	if scheduledAt.IsZero() {
		scheduledAt = now
	}
	task := model.Task{
		ID:          "manual-" + uuid.New().String(),
		Subject:     subject,
		Sender:      sender,
		ReceivedAt:  scheduledAt,
		ScheduledAt: scheduledAt,
		SourceLink:  link,
		BodyPreview: preview,
		CreatedAt:   now,
	}
	list.Append(task)
	if err := a.Store.Save(list); err != nil {
		return model.Task{}, err
	}
	return task, nil
}

// SetNotes replaces the free-text notes of a task.
func (a *App) SetNotes(ref, notes string) (model.Task, error) {
	list, err := a.Store.Load()
	if err != nil {
		return model.Task{}, err
	}
	task := lookup(list, ref)
	if task == nil {
		return model.Task{}, &TaskNotFoundError{Ref: ref}
	}
	task.Notes = notes
	if err := a.Store.Save(list); err != nil {
		return model.Task{}, err
	}
	return *task, nil
}

// SummaryString renders the task list as a Markdown table.
func (a *App) SummaryString() (string, error) {
	list, err := a.Store.Load()
	if err != nil {
		return "", err
	}
	return a.Exporter.Summary(list.Tasks), nil
}

// ExportSummary writes the Markdown table to path and returns the absolute path.
func (a *App) ExportSummary(path string) (string, error) {
	list, err := a.Store.Load()
	if err != nil {
		return "", err
	}
	return a.Exporter.WriteSummary(path, list.Tasks)
}

// ExportActive mirrors the active tasks into dir as one note file each.
func (a *App) ExportActive(dir string) ([]string, error) {
	list, err := a.Store.Load()
	if err != nil {
		return nil, err
	}
	return a.Exporter.ExportActive(dir, list.Tasks)
}

func lookup(list *model.TaskList, ref string) *model.Task {
	if task := list.FindByMessageID(ref); task != nil {
		return task
	}
	return list.FindByID(ref)
}
