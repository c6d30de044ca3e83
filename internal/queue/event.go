package queue

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType is the routing key of a task change event
type EventType string

const (
	// EventTaskCreated is emitted after tasks or sub-tasks are created
	EventTaskCreated EventType = "task.created"
	// EventTaskUpdated is emitted after tasks are modified
	EventTaskUpdated EventType = "task.updated"
	// EventTaskDeleted is emitted after tasks are removed
	EventTaskDeleted EventType = "task.deleted"
	// EventProjectCreated is emitted after a project is created
	EventProjectCreated EventType = "project.created"
)

// EventTypes lists every type a publisher may emit
var EventTypes = []EventType{EventTaskCreated, EventTaskUpdated, EventTaskDeleted, EventProjectCreated}

func knownEventType(t EventType) bool {
	for _, known := range EventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ErrInvalidEvent marks a message that cannot be processed
var ErrInvalidEvent = errors.New("invalid task event")

// TaskEvent records one successful mutating tool call
type TaskEvent struct {
	ID         uuid.UUID   `json:"id"`
	Type       EventType   `json:"type"`
	Tool       string      `json:"tool"`
	SessionID  string      `json:"session_id,omitempty"`
	TaskIDs    []uuid.UUID `json:"task_ids,omitempty"`
	Count      int64       `json:"count"`
	OccurredAt time.Time   `json:"occurred_at"`
}

// NewTaskEvent creates a new event for tool
func NewTaskEvent(eventType EventType, tool string, count int64, taskIDs ...uuid.UUID) *TaskEvent {
	return &TaskEvent{
		ID:         uuid.New(),
		Type:       eventType,
		Tool:       tool,
		TaskIDs:    taskIDs,
		Count:      count,
		OccurredAt: time.Now().UTC(),
	}
}

// Validate reports whether the event can be processed
func (e *TaskEvent) Validate() error {
	if e.ID == uuid.Nil {
		return fmt.Errorf("%w: missing id", ErrInvalidEvent)
	}
	if !knownEventType(e.Type) {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Type)
	}
	if e.Tool == "" {
		return fmt.Errorf("%w: missing tool", ErrInvalidEvent)
	}
	if e.Count < 0 {
		return fmt.Errorf("%w: negative count", ErrInvalidEvent)
	}
	return nil
}
