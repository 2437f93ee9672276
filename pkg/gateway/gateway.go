// Package gateway defines the mail capability the to-do app depends on.
package gateway

import (
	"context"
	"fmt"

	"github.com/harrisonrobin/outlook-todo/pkg/model"
)

// DefaultLimit is the number of unread messages fetched per sync.
const DefaultLimit = 25

// Gateway supplies unread messages and accepts read-state updates.
type Gateway interface {
	FetchUnread(ctx context.Context, limit int) ([]model.Message, error)
	MarkRead(ctx context.Context, messageID string) error
}

// Memory is a Gateway over a fixed message set, used for tests and demos.
type Memory struct {
	Messages []model.Message
	Read     map[string]bool
	// MarkReadErr, when set, is returned by every MarkRead call.
	MarkReadErr error
	// FetchErr, when set, is returned by every FetchUnread call.
	FetchErr  error
	MarkCalls []string
}

// NewMemory returns a gateway holding msgs as unread.
func NewMemory(msgs ...model.Message) *Memory {
	return &Memory{Messages: msgs, Read: make(map[string]bool)}
}

func (m *Memory) FetchUnread(_ context.Context, limit int) ([]model.Message, error) {
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	var unread []model.Message
	for _, msg := range m.Messages {
		if m.Read[msg.ID] {
			continue
		}
		if limit > 0 && len(unread) >= limit {
			break
		}
		unread = append(unread, msg)
	}
	return unread, nil
}

func (m *Memory) MarkRead(_ context.Context, messageID string) error {
	m.MarkCalls = append(m.MarkCalls, messageID)
	if m.MarkReadErr != nil {
		return m.MarkReadErr
	}
	for _, msg := range m.Messages {
		if msg.ID == messageID {
			if m.Read == nil {
				m.Read = make(map[string]bool)
			}
			m.Read[messageID] = true
			return nil
		}
	}
	return fmt.Errorf("message %s not found", messageID)
}
