package markdown

import (
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harrisonrobin/outlook-todo/pkg/model"
)

const (
	DoneGlyph    = "✅"
	PendingGlyph = "⬜"

	displayLayout  = "2006-01-02 15:04 MST"
	maxSubjectSlug = 40
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Exporter renders tasks as Markdown. Times are shown in Location.
type Exporter struct {
	Location *time.Location
}

// NewExporter returns an exporter that formats times in the local zone.
func NewExporter() *Exporter {
	return &Exporter{Location: time.Local}
}

func (e *Exporter) formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	loc := e.Location
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(displayLayout)
}

// Summary returns a Markdown table with one row per task, ordered by schedule.
func (e *Exporter) Summary(tasks []model.Task) string {
	rows := []string{
		"| Scheduled | Subject | Status | Link |",
		"| --- | --- | --- | --- |",
	}
	for _, t := range model.SortBySchedule(tasks) {
		link := "-"
		if t.SourceLink != "" {
			link = fmt.Sprintf("[open](%s)", escapeCell(t.SourceLink))
		}
		rows = append(rows, fmt.Sprintf("| %s | %s | %s | %s |",
			e.formatTime(t.ScheduledAt), escapeCell(t.Subject), glyph(t), link))
	}
	if len(rows) == 2 {
		rows = append(rows, "| _No tasks available_ |  |  |  |")
	}
	return strings.Join(rows, "\n") + "\n"
}

// WriteSummary writes the summary table to path, creating parent directories.
// It returns the absolute path written.
func (e *Exporter) WriteSummary(path string, tasks []model.Task) (string, error) {
	abs, err := filepath.Abs(expandHome(path))
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	if err := os.WriteFile(abs, []byte(e.Summary(tasks)), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", abs, err)
	}
	return abs, nil
}

type frontMatter struct {
	ID        string `yaml:"id"`
	MessageID string `yaml:"message_id,omitempty"`
	Scheduled string `yaml:"scheduled"`
	Status    string `yaml:"status"`
}

// Note returns a standalone Markdown document describing a single task.
func (e *Exporter) Note(t model.Task) (string, error) {
	fm, err := yaml.Marshal(frontMatter{
		ID:        t.ID,
		MessageID: t.MessageID,
		Scheduled: t.ScheduledAt.UTC().Format(time.RFC3339),
		Status:    t.Status(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode front matter: %w", err)
	}

	subject := t.Subject
	if strings.TrimSpace(subject) == "" {
		subject = "(no subject)"
	}
	status := PendingGlyph + " Pending"
	if t.Completed {
		status = DoneGlyph + " Done"
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(fm)
	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "# %s\n\n", subject)
	if t.Sender != "" {
		fmt.Fprintf(&b, "- **Sender:** %s\n", t.Sender)
	}
	fmt.Fprintf(&b, "- **Received:** %s\n", e.formatTime(t.ReceivedAt))
	fmt.Fprintf(&b, "- **Scheduled:** %s\n", e.formatTime(t.ScheduledAt))
	fmt.Fprintf(&b, "- **Status:** %s\n", status)
	if t.SourceLink != "" {
		fmt.Fprintf(&b, "- **Link:** %s\n", t.SourceLink)
	}
	if strings.TrimSpace(t.Notes) != "" {
		fmt.Fprintf(&b, "\n## Notes\n\n%s\n", strings.TrimSpace(t.Notes))
	}
	if strings.TrimSpace(t.BodyPreview) != "" {
		fmt.Fprintf(&b, "\n## Preview\n\n%s\n", strings.TrimSpace(t.BodyPreview))
	}
	return b.String(), nil
}

// FileName returns the note file name for a task. It only depends on the
// task's subject and identifier.
func FileName(t model.Task) string {
	subject := safeComponent(t.Subject)
	if len(subject) > maxSubjectSlug {
		subject = subject[:maxSubjectSlug]
	}
	return fmt.Sprintf("%s-%s.md", subject, safeComponent(t.ID))
}

// uniqueFileName is FileName with a hash of the raw identifier appended, for
// tasks whose identifiers only differ in characters safeComponent replaces.
func uniqueFileName(t model.Task) string {
	h := fnv.New32a()
	h.Write([]byte(t.ID))
	return fmt.Sprintf("%s-%08x.md", strings.TrimSuffix(FileName(t), ".md"), h.Sum32())
}

// ExportActive writes one note per active task into dir and removes every
// other .md file there, so the notes in dir mirror the active set exactly.
// Files with other extensions and sub-directories are left alone. It returns
// the sorted paths written.
func (e *Exporter) ExportActive(dir string, tasks []model.Task) ([]string, error) {
	abs, err := filepath.Abs(expandHome(dir))
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create notes directory: %w", err)
	}

	var active []model.Task
	shared := make(map[string]int)
	for _, t := range model.SortBySchedule(tasks) {
		if t.Completed {
			continue
		}
		active = append(active, t)
		shared[FileName(t)]++
	}

	keep := make(map[string]bool)
	var written []string
	for _, t := range active {
		name := FileName(t)
		if shared[name] > 1 {
			name = uniqueFileName(t)
		}
		content, err := e.Note(t)
		if err != nil {
			return nil, err
		}
		path := filepath.Join(abs, name)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return nil, fmt.Errorf("failed to write note %s: %w", path, err)
		}
		keep[name] = true
		written = append(written, path)
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes directory: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || keep[entry.Name()] || filepath.Ext(entry.Name()) != ".md" {
			continue
		}
		if err := os.Remove(filepath.Join(abs, entry.Name())); err != nil {
			return nil, fmt.Errorf("failed to remove stale note %s: %w", entry.Name(), err)
		}
	}

	sort.Strings(written)
	return written, nil
}

func glyph(t model.Task) string {
	if t.Completed {
		return DoneGlyph
	}
	return PendingGlyph
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}

func safeComponent(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		value = "task"
	}
	return unsafeChars.ReplaceAllString(value, "_")
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}
