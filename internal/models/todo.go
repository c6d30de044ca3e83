package models

import (
	"time"

	"github.com/google/uuid"
)

// TaskType records who authored a task
type TaskType string

const (
	TaskTypeUser TaskType = "user"
	TaskTypeAI   TaskType = "AI"
)

// Task represents a todo item. Sub-tasks are tasks with ParentID set.
type Task struct {
	ID          uuid.UUID  `json:"id"`
	TaskName    string     `json:"taskName" validate:"required,max=500"`
	Description string     `json:"description" validate:"required,max=5000"`
	DueDate     time.Time  `json:"dueDate" validate:"required"`
	Priority    int        `json:"priority"`
	IsCompleted bool       `json:"isCompleted"`
	Type        TaskType   `json:"type" validate:"required,task_type"`
	Label       string     `json:"label"`
	ProjectID   *uuid.UUID `json:"projectId,omitempty"`
	ParentID    *uuid.UUID `json:"parentId,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// ApplyDefaults fills the fields the store would otherwise default.
func (t *Task) ApplyDefaults() {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Type == "" {
		t.Type = TaskTypeUser
	}
}

// TaskFilter is a sparse query over tasks. Nil fields are unconstrained.
type TaskFilter struct {
	TaskName    *string    `json:"taskName,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Priority    *int       `json:"priority,omitempty"`
	IsCompleted *bool      `json:"isCompleted,omitempty"`
	CreatedAt   *time.Time `json:"createdAt,omitempty"`
	Label       *string    `json:"label,omitempty"`
	Type        *TaskType  `json:"type,omitempty"`
	ProjectID   *uuid.UUID `json:"projectId,omitempty"`
	ParentID    *uuid.UUID `json:"parentId,omitempty"`
	SearchTerm  string     `json:"searchTerm,omitempty"`
}

// TaskPatch is a partial update. Nil fields are left untouched.
type TaskPatch struct {
	TaskName    *string    `json:"taskName,omitempty" validate:"omitempty,min=1,max=500"`
	Description *string    `json:"description,omitempty" validate:"omitempty,min=1,max=5000"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Priority    *int       `json:"priority,omitempty"`
	IsCompleted *bool      `json:"isCompleted,omitempty"`
	Type        *TaskType  `json:"type,omitempty" validate:"omitempty,task_type"`
	Label       *string    `json:"label,omitempty"`
	ProjectID   *uuid.UUID `json:"projectId,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.TaskName == nil && p.Description == nil && p.DueDate == nil &&
		p.Priority == nil && p.IsCompleted == nil && p.Type == nil &&
		p.Label == nil && p.ProjectID == nil
}

// Apply copies the set fields of the patch onto t and reports whether any
// value actually changed.
func (p TaskPatch) Apply(t *Task) bool {
	changed := false
	if p.TaskName != nil && *p.TaskName != t.TaskName {
		t.TaskName = *p.TaskName
		changed = true
	}
	if p.Description != nil && *p.Description != t.Description {
		t.Description = *p.Description
		changed = true
	}
	if p.DueDate != nil && !p.DueDate.Equal(t.DueDate) {
		t.DueDate = *p.DueDate
		changed = true
	}
	if p.Priority != nil && *p.Priority != t.Priority {
		t.Priority = *p.Priority
		changed = true
	}
	if p.IsCompleted != nil && *p.IsCompleted != t.IsCompleted {
		t.IsCompleted = *p.IsCompleted
		changed = true
	}
	if p.Type != nil && *p.Type != t.Type {
		t.Type = *p.Type
		changed = true
	}
	if p.Label != nil && *p.Label != t.Label {
		t.Label = *p.Label
		changed = true
	}
	if p.ProjectID != nil && (t.ProjectID == nil || *p.ProjectID != *t.ProjectID) {
		id := *p.ProjectID
		t.ProjectID = &id
		changed = true
	}
	return changed
}
