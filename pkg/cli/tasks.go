package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/harrisonrobin/outlook-todo/pkg/gateway"
	"github.com/harrisonrobin/outlook-todo/pkg/model"
)

var (
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	overdueStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	idStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// scheduleLayouts are the ISO 8601 forms accepted by --schedule. Forms
// without an offset are read in local time.
var scheduleLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseSchedule(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	for _, layout := range scheduleLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid ISO-8601 time %q", value)
}

func newSyncCmd(opts *options) *cobra.Command {
	var limit int
	var schedule string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Import unread Outlook mails as tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var override *time.Time
			if schedule != "" {
				t, err := parseSchedule(schedule)
				if err != nil {
					return err
				}
				override = &t
			}

			app, _, err := opts.app(cmd.Context(), true, true)
			if err != nil {
				return err
			}
			result, err := app.Sync(cmd.Context(), limit, override)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(result.Created) == 0 {
				fmt.Fprintln(out, "No new unread mails were found.")
				return nil
			}
			fmt.Fprintf(out, "Imported %d mail(s) into the to-do list:\n", len(result.Created))
			for _, t := range result.Created {
				fmt.Fprintf(out, " - %s (scheduled for %s)\n", t.Subject, t.ScheduledAt.Format(time.RFC3339))
			}
			if result.Skipped > 0 {
				fmt.Fprintf(out, "Skipped %d already known mail(s).\n", result.Skipped)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", gateway.DefaultLimit, "Maximum number of emails to fetch")
	cmd.Flags().StringVar(&schedule, "schedule", "", "Override the scheduled time for all created tasks (ISO-8601 format)")
	return cmd
}

func newListCmd(opts *options) *cobra.Command {
	var asMarkdown bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all known tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, _, err := opts.app(cmd.Context(), false, false)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if asMarkdown {
				md, err := app.SummaryString()
				if err != nil {
					return err
				}
				rendered, err := glamour.Render(md, "dark")
				if err != nil {
					rendered = md
				}
				fmt.Fprint(out, rendered)
				return nil
			}

			tasks, err := app.List()
			if err != nil {
				return err
			}
			if len(tasks) == 0 {
				fmt.Fprintln(out, "No tasks available.")
				return nil
			}
			now := app.Now()
			for _, t := range tasks {
				fmt.Fprintf(out, "%s %s - scheduled for %s %s\n",
					statusLabel(t, now),
					t.Subject,
					t.ScheduledAt.Format(time.RFC3339),
					idStyle.Render("("+t.ID+")"))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asMarkdown, "markdown", false, "Render the list as a Markdown table")
	return cmd
}

func statusLabel(t model.Task, now time.Time) string {
	switch {
	case t.Completed:
		return doneStyle.Render("[Done]")
	case t.Overdue(now):
		return overdueStyle.Render("[Overdue]")
	default:
		return pendingStyle.Render("[Pending]")
	}
}

func newMarkDoneCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "mark-done <message-id>",
		Short: "Mark a task as complete and flag its e-mail as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, _, err := opts.app(cmd.Context(), true, false)
			if err != nil {
				return err
			}
			result, err := app.MarkDone(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case result.AlreadyDone:
				fmt.Fprintf(out, "'%s' was already complete.\n", result.Task.Subject)
			case result.Warning != nil:
				fmt.Fprintf(out, "Marked '%s' as complete.\n", result.Task.Subject)
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", result.Warning)
			case result.Task.MessageID == "":
				fmt.Fprintf(out, "Marked '%s' as complete.\n", result.Task.Subject)
			default:
				fmt.Fprintf(out, "Marked '%s' as complete and flagged the original e-mail as read.\n", result.Task.Subject)
			}
			return nil
		},
	}
}

func newExportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "export-markdown [path]",
		Short: "Write the current tasks to a Markdown file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "todo.md"
			if len(args) == 1 {
				path = args[0]
			}
			app, _, err := opts.app(cmd.Context(), false, false)
			if err != nil {
				return err
			}
			written, err := app.ExportSummary(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote Markdown overview to %s\n", written)
			return nil
		},
	}
}

func newExportActiveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "export-active-markdown [directory]",
		Short: "Create individual Markdown files for each active task",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "active_tasks"
			if len(args) == 1 {
				dir = args[0]
			}
			app, _, err := opts.app(cmd.Context(), false, false)
			if err != nil {
				return err
			}
			paths, err := app.ExportActive(dir)
			if err != nil {
				return err
			}

			abs, err := filepath.Abs(dir)
			if err != nil {
				abs = dir
			}
			if len(paths) > 0 {
				abs = filepath.Dir(paths[0])
			}
			out := cmd.OutOrStdout()
			if len(paths) == 0 {
				fmt.Fprintf(out, "No active tasks found. Cleared Markdown directory at %s.\n", abs)
				return nil
			}
			fmt.Fprintf(out, "Wrote %d Markdown file(s) to %s:\n", len(paths), abs)
			for _, p := range paths {
				fmt.Fprintf(out, " - %s\n", filepath.Base(p))
			}
			return nil
		},
	}
}

func newAddCmd(opts *options) *cobra.Command {
	var sender, schedule, preview, link string

	cmd := &cobra.Command{
		Use:   "add <subject>",
		Short: "Add a task that has no source e-mail",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var at time.Time
			if schedule != "" {
				t, err := parseSchedule(schedule)
				if err != nil {
					return err
				}
				at = t
			}
			app, _, err := opts.app(cmd.Context(), false, false)
			if err != nil {
				return err
			}
			task, err := app.AddManual(strings.Join(args, " "), sender, at, preview, link)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added '%s' (%s), scheduled for %s\n", task.Subject, task.ID, task.ScheduledAt.Format(time.RFC3339))
			return nil
		},
	}
	cmd.Flags().StringVar(&sender, "sender", "", "Who the task is for or from")
	cmd.Flags().StringVar(&schedule, "schedule", "", "Scheduled time (ISO-8601, default now)")
	cmd.Flags().StringVar(&preview, "preview", "", "Short description")
	cmd.Flags().StringVar(&link, "link", "", "Related URL")
	return cmd
}

func newNoteCmd(opts *options) *cobra.Command {
	var clearNotes bool

	cmd := &cobra.Command{
		Use:   "note <id> [text...]",
		Short: "Replace the notes of a task",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args[1:], " ")
			if text == "" && !clearNotes {
				return errors.New("note text is required (use --clear to remove notes)")
			}
			app, _, err := opts.app(cmd.Context(), false, false)
			if err != nil {
				return err
			}
			task, err := app.SetNotes(args[0], text)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated notes of '%s'\n", task.Subject)
			return nil
		},
	}
	cmd.Flags().BoolVar(&clearNotes, "clear", false, "Remove the notes")
	return cmd
}
