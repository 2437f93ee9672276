package todo

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harrisonrobin/outlook-todo/pkg/gateway"
	"github.com/harrisonrobin/outlook-todo/pkg/markdown"
	"github.com/harrisonrobin/outlook-todo/pkg/model"
	"github.com/harrisonrobin/outlook-todo/pkg/store"
)

var (
	received = time.Date(2023, 9, 1, 10, 0, 0, 0, time.UTC)
	clock    = time.Date(2023, 9, 2, 9, 0, 0, 0, time.UTC)
)

func reportMessage() model.Message {
	return model.Message{
		ID:          "m1",
		Subject:     "Report",
		Sender:      "Alice",
		ReceivedAt:  received,
		BodyPreview: "Hello",
		WebLink:     "https://outlook.example/m1",
	}
}

func newTestApp(msgs ...model.Message) (*App, *store.MemoryStore, *gateway.Memory) {
	s := store.NewMemoryStore()
	g := gateway.NewMemory(msgs...)
	app := NewApp(s, g)
	app.Exporter = &markdown.Exporter{Location: time.UTC}
	app.Now = func() time.Time { return clock }
	return app, s, g
}

func TestSyncCreatesTaskScheduledAtReceiveTime(t *testing.T) {
	app, s, _ := newTestApp(reportMessage())

	result, err := app.Sync(context.Background(), 0, nil)
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if len(result.Created) != 1 || result.Skipped != 0 {
		t.Fatalf("Expected 1 created and 0 skipped, got %d/%d", len(result.Created), result.Skipped)
	}

	tasks := s.Tasks()
	if len(tasks) != 1 {
		t.Fatalf("Expected 1 stored task, got %d", len(tasks))
	}
	task := tasks[0]
	if !task.ScheduledAt.Equal(received) {
		t.Errorf("Expected scheduled_at %v, got %v", received, task.ScheduledAt)
	}
	if task.Completed || task.CompletedAt != nil {
		t.Error("New task must not be completed")
	}
	if task.Notes != "" {
		t.Errorf("Expected empty notes, got %q", task.Notes)
	}
	if task.SourceLink != "https://outlook.example/m1" || task.Sender != "Alice" {
		t.Errorf("Expected link and sender to be copied, got %+v", task)
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	app, s, _ := newTestApp(reportMessage())
	ctx := context.Background()

	if _, err := app.Sync(ctx, 0, nil); err != nil {
		t.Fatalf("first Sync failed: %v", err)
	}
	first := s.Tasks()

	result, err := app.Sync(ctx, 0, nil)
	if err != nil {
		t.Fatalf("second Sync failed: %v", err)
	}
	if len(result.Created) != 0 || result.Skipped != 1 {
		t.Errorf("Expected 0 created and 1 skipped, got %d/%d", len(result.Created), result.Skipped)
	}
	second := s.Tasks()
	if len(second) != len(first) || second[0] != first[0] {
		t.Errorf("re-running sync changed the list: %+v vs %+v", first, second)
	}
	if s.Saves != 1 {
		t.Errorf("Expected a save only when tasks were created, got %d saves", s.Saves)
	}
}

func TestSyncPreservesCompletionAndNotes(t *testing.T) {
	app, s, _ := newTestApp(reportMessage())
	ctx := context.Background()

	if _, err := app.Sync(ctx, 0, nil); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if _, err := app.SetNotes("m1", "waiting on numbers"); err != nil {
		t.Fatalf("SetNotes failed: %v", err)
	}
	if _, err := app.MarkDone(ctx, "m1"); err != nil {
		t.Fatalf("MarkDone failed: %v", err)
	}
	if _, err := app.Sync(ctx, 0, nil); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	task := s.Tasks()[0]
	if !task.Completed || task.Notes != "waiting on numbers" {
		t.Errorf("sync must not reset tasks, got %+v", task)
	}
}

func TestSyncScheduleOverride(t *testing.T) {
	app, s, _ := newTestApp(reportMessage())
	schedule := time.Date(2023, 9, 5, 8, 0, 0, 0, time.UTC)

	if _, err := app.Sync(context.Background(), 0, &schedule); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if got := s.Tasks()[0].ScheduledAt; !got.Equal(schedule) {
		t.Errorf("Expected scheduled_at %v, got %v", schedule, got)
	}
}

func TestSyncRejectsMalformedMessageAtomically(t *testing.T) {
	bad := model.Message{ID: "m2", ReceivedAt: received}
	app, s, _ := newTestApp(reportMessage(), bad)

	_, err := app.Sync(context.Background(), 0, nil)
	var invalid *InvalidMessageError
	if !errors.As(err, &invalid) {
		t.Fatalf("Expected InvalidMessageError, got %v", err)
	}
	if invalid.ID != "m2" {
		t.Errorf("Expected error for m2, got %q", invalid.ID)
	}
	if len(s.Tasks()) != 0 || s.Saves != 0 {
		t.Errorf("malformed batch must not be partially applied, got %d tasks", len(s.Tasks()))
	}
}

func TestSyncGatewayFailure(t *testing.T) {
	app, s, g := newTestApp(reportMessage())
	g.FetchErr = errors.New("unauthorized")

	if _, err := app.Sync(context.Background(), 0, nil); err == nil {
		t.Fatal("Expected fetch error")
	}
	if s.Saves != 0 {
		t.Error("store must not be written when the fetch fails")
	}
}

func TestReconcileUniquenessWithinBatch(t *testing.T) {
	list := model.NewTaskList()
	msgs := []model.Message{reportMessage(), reportMessage(), {ID: "m2", Subject: "Other", ReceivedAt: received}}

	result, err := Reconcile(list, msgs, nil, clock)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if len(result.Created) != 2 || result.Skipped != 1 {
		t.Errorf("Expected 2 created and 1 skipped, got %d/%d", len(result.Created), result.Skipped)
	}
	if err := store.Validate(list); err != nil {
		t.Errorf("reconciled list violates invariants: %v", err)
	}
}

func TestReconcileMissingID(t *testing.T) {
	_, err := Reconcile(model.NewTaskList(), []model.Message{{Subject: "x"}}, nil, clock)
	var invalid *InvalidMessageError
	if !errors.As(err, &invalid) || invalid.Index != 0 {
		t.Fatalf("Expected InvalidMessageError at index 0, got %v", err)
	}
}

func TestMarkDone(t *testing.T) {
	app, s, g := newTestApp(reportMessage())
	ctx := context.Background()
	if _, err := app.Sync(ctx, 0, nil); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	result, err := app.MarkDone(ctx, "m1")
	if err != nil {
		t.Fatalf("MarkDone failed: %v", err)
	}
	if result.Warning != nil {
		t.Errorf("unexpected warning: %v", result.Warning)
	}
	if !result.Task.Completed || result.Task.CompletedAt == nil || !result.Task.CompletedAt.Equal(clock) {
		t.Errorf("Expected completed task at %v, got %+v", clock, result.Task)
	}
	if len(g.MarkCalls) != 1 || g.MarkCalls[0] != "m1" {
		t.Errorf("Expected one read-mark call for m1, got %v", g.MarkCalls)
	}
	if !s.Tasks()[0].Completed {
		t.Error("completion must be persisted")
	}

	again, err := app.MarkDone(ctx, "m1")
	if err != nil {
		t.Fatalf("second MarkDone failed: %v", err)
	}
	if len(g.MarkCalls) != 1 || !again.AlreadyDone || !again.Task.CompletedAt.Equal(clock) {
		t.Error("completing a done task must be a no-op")
	}
}

func TestMarkDoneGatewayFailureKeepsLocalCompletion(t *testing.T) {
	app, s, g := newTestApp(reportMessage())
	ctx := context.Background()
	if _, err := app.Sync(ctx, 0, nil); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	g.MarkReadErr = errors.New("503 service unavailable")

	result, err := app.MarkDone(ctx, "m1")
	if err != nil {
		t.Fatalf("MarkDone must not fail on gateway errors, got %v", err)
	}
	if result.Warning == nil || !errors.Is(result.Warning, g.MarkReadErr) {
		t.Fatalf("Expected gateway warning, got %v", result.Warning)
	}
	if !result.Task.Completed {
		t.Error("Expected task to be reported completed")
	}
	if !s.Tasks()[0].Completed {
		t.Error("local completion must not be rolled back")
	}
}

func TestMarkDoneUnknownTask(t *testing.T) {
	app, _, g := newTestApp()
	_, err := app.MarkDone(context.Background(), "nope")
	var notFound *TaskNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Expected TaskNotFoundError, got %v", err)
	}
	if len(g.MarkCalls) != 0 {
		t.Error("gateway must not be called for unknown tasks")
	}
}

func TestManualTaskLifecycle(t *testing.T) {
	app, s, g := newTestApp()
	ctx := context.Background()
	when := time.Date(2023, 9, 3, 15, 0, 0, 0, time.UTC)

	task, err := app.AddManual("Call Bob", "me", when, "", "")
	if err != nil {
		t.Fatalf("AddManual failed: %v", err)
	}
	if !strings.HasPrefix(task.ID, "manual-") || task.MessageID != "" {
		t.Errorf("unexpected manual task identity: %+v", task)
	}

	result, err := app.MarkDone(ctx, task.ID)
	if err != nil {
		t.Fatalf("MarkDone failed: %v", err)
	}
	if !result.Task.Completed || result.Warning != nil {
		t.Errorf("unexpected result %+v", result)
	}
	if len(g.MarkCalls) != 0 {
		t.Error("manual tasks have no mail to flag")
	}
	if err := store.Validate(&model.TaskList{Tasks: s.Tasks()}); err != nil {
		t.Errorf("invariants violated: %v", err)
	}

	if _, err := app.AddManual("  ", "", when, "", ""); err == nil {
		t.Error("Expected error for empty subject")
	}
}

func TestSetNotesUnknownTask(t *testing.T) {
	app, _, _ := newTestApp()
	_, err := app.SetNotes("missing", "x")
	var notFound *TaskNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Expected TaskNotFoundError, got %v", err)
	}
}

func TestExportsAgainstFileStore(t *testing.T) {
	dir := t.TempDir()
	app, _, _ := newTestApp(reportMessage())
	app.Store = store.NewFileStore(filepath.Join(dir, "state.json"))
	ctx := context.Background()

	if _, err := app.Sync(ctx, 0, nil); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}

	summaryPath := filepath.Join(dir, "todo.md")
	path, err := app.ExportSummary(summaryPath)
	if err != nil {
		t.Fatalf("ExportSummary failed: %v", err)
	}
	if path != summaryPath {
		t.Errorf("Expected %s, got %s", summaryPath, path)
	}

	notes := filepath.Join(dir, "active")
	written, err := app.ExportActive(notes)
	if err != nil {
		t.Fatalf("ExportActive failed: %v", err)
	}
	if len(written) != 1 {
		t.Fatalf("Expected one note, got %v", written)
	}

	if _, err := app.MarkDone(ctx, "m1"); err != nil {
		t.Fatalf("MarkDone failed: %v", err)
	}
	written, err = app.ExportActive(notes)
	if err != nil {
		t.Fatalf("ExportActive failed: %v", err)
	}
	entries, _ := os.ReadDir(notes)
	if len(written) != 0 || len(entries) != 0 {
		t.Errorf("Expected notes directory to be cleared, got %v", entries)
	}

	summary, err := app.SummaryString()
	if err != nil {
		t.Fatalf("SummaryString failed: %v", err)
	}
	if !strings.Contains(summary, markdown.DoneGlyph) {
		t.Errorf("Expected completed glyph in summary:\n%s", summary)
	}
}
