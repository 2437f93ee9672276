package todo

import "fmt"

// InvalidMessageError rejects a gateway message that cannot become a task.
type InvalidMessageError struct {
	Index  int
	ID     string
	Reason string
}

func (e *InvalidMessageError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("invalid message at position %d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("invalid message %s: %s", e.ID, e.Reason)
}

// TaskNotFoundError is returned when no task matches a reference.
type TaskNotFoundError struct {
	Ref string
}

func (e *TaskNotFoundError) Error() string {
	return fmt.Sprintf("no task with id %s exists", e.Ref)
}

// GatewayWarning reports that the upstream read flag could not be set after
// the task was completed locally.
type GatewayWarning struct {
	MessageID string
	Err       error
}

func (e *GatewayWarning) Error() string {
	return fmt.Sprintf("task completed locally, but marking message %s as read failed: %v", e.MessageID, e.Err)
}

func (e *GatewayWarning) Unwrap() error { return e.Err }
