package todo

import (
	"strings"
	"time"

	"github.com/harrisonrobin/outlook-todo/pkg/model"
)

// SyncResult describes what a reconciliation changed.
type SyncResult struct {
	Created []model.Task
	Skipped int
}

// Reconcile adds a task for every message not yet known to list. Messages
// already tracked are left untouched. All messages are validated before the
// list is modified, so a malformed message leaves list unchanged.
func Reconcile(list *model.TaskList, msgs []model.Message, defaultSchedule *time.Time, now time.Time) (SyncResult, error) {
	for i, msg := range msgs {
		if strings.TrimSpace(msg.ID) == "" {
			return SyncResult{}, &InvalidMessageError{Index: i, Reason: "missing id"}
		}
		if strings.TrimSpace(msg.Subject) == "" {
			return SyncResult{}, &InvalidMessageError{Index: i, ID: msg.ID, Reason: "missing subject"}
		}
	}

	var result SyncResult
	for _, msg := range msgs {
		if list.FindByMessageID(msg.ID) != nil || list.FindByID(msg.ID) != nil {
			result.Skipped++
			continue
		}
		task := newTaskFromMessage(msg, defaultSchedule, now)
		list.Append(task)
		result.Created = append(result.Created, task)
	}
	return result, nil
}

func newTaskFromMessage(msg model.Message, defaultSchedule *time.Time, now time.Time) model.Task {
	scheduled := msg.ReceivedAt
	if scheduled.IsZero() {
		scheduled = now
	}
	if defaultSchedule != nil {
		scheduled = *defaultSchedule
	}
	return model.Task{
		ID:          msg.ID,
		MessageID:   msg.ID,
		Subject:     msg.Subject,
		Sender:      msg.Sender,
		ReceivedAt:  msg.ReceivedAt,
		ScheduledAt: scheduled,
		SourceLink:  msg.WebLink,
		BodyPreview: msg.BodyPreview,
		CreatedAt:   now,
	}
}
